package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/rs485.go/pkg/bus"
	"github.com/robotalks/rs485.go/pkg/gateway/pb"
	"github.com/robotalks/rs485.go/pkg/link/pipe"
	"github.com/robotalks/rs485.go/pkg/rs485"
)

const testTimeout = 2 * time.Second

type fakeSub struct {
	broker  *fakeBroker
	filter  string
	handler Handler
}

func (s *fakeSub) Close() error {
	s.broker.lock.Lock()
	defer s.broker.lock.Unlock()
	for i, sub := range s.broker.subs {
		if sub == s {
			s.broker.subs = append(s.broker.subs[:i], s.broker.subs[i+1:]...)
			break
		}
	}
	return nil
}

type fakeBroker struct {
	lock     sync.Mutex
	subs     []*fakeSub
	retained map[string][]byte
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{retained: make(map[string][]byte)}
}

func (b *fakeBroker) Publish(topic string, payload []byte, retain bool) error {
	var handlers []Handler
	b.lock.Lock()
	if retain {
		b.retained[topic] = payload
	}
	for _, sub := range b.subs {
		if MatchTopic(topic, sub.filter) {
			handlers = append(handlers, sub.handler)
		}
	}
	b.lock.Unlock()
	for _, h := range handlers {
		h(topic, payload)
	}
	return nil
}

func (b *fakeBroker) Subscribe(filter string, handler Handler) (Unsubscriber, error) {
	sub := &fakeSub{broker: b, filter: filter, handler: handler}
	b.lock.Lock()
	b.subs = append(b.subs, sub)
	b.lock.Unlock()
	return sub, nil
}

func (b *fakeBroker) subscribed(filter string) bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	for _, sub := range b.subs {
		if sub.filter == filter {
			return true
		}
	}
	return false
}

func (b *fakeBroker) retainedMeta(topic string) (meta Meta, ok bool) {
	b.lock.Lock()
	data := b.retained[topic]
	b.lock.Unlock()
	if data == nil {
		return
	}
	return meta, json.Unmarshal(data, &meta) == nil
}

func (b *fakeBroker) collect(filter string) <-chan []byte {
	ch := make(chan []byte, 16)
	b.Subscribe(filter, func(topic string, payload []byte) {
		ch <- payload
	})
	return ch
}

func startBus(ctx context.Context, t *testing.T, hub *pipe.Hub, role rs485.Role, addr byte) *bus.Bus {
	port := hub.Attach()
	b := bus.New(port, rs485.Config{})
	b.ResponseTimeout = 100 * time.Millisecond
	require.NoError(t, b.Initialize(role, addr))
	go b.Run(ctx)
	t.Cleanup(func() { port.Close() })
	return b
}

func receiveFrame(t *testing.T, ch <-chan []byte) *pb.Frame {
	select {
	case data := <-ch:
		f, err := pb.DecodeFrame(data)
		require.NoError(t, err)
		return f
	case <-time.After(testTimeout):
		t.Fatal("frame not published")
	}
	return nil
}

func TestBridge(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := pipe.NewHub()
	broker := newFakeBroker()
	master := startBus(ctx, t, hub, rs485.RoleMaster, 0)
	slave := startBus(ctx, t, hub, rs485.RoleSlave, 5)
	go NewBridge(broker, master, "m").Run(ctx)
	go NewBridge(broker, slave, "s").Run(ctx)

	require.Eventually(t, func() bool {
		return broker.subscribed("m/tx") && broker.subscribed("s/respond")
	}, testTimeout, time.Millisecond)
	meta, ok := broker.retainedMeta("s/meta")
	require.True(t, ok)
	require.Equal(t, Meta{Node: "s", Role: "slave", Address: 5, Params: 12, Returns: 8, Online: true}, meta)

	// the application behind the slave doubles the first parameter.
	slaveRx := broker.collect("s/rx")
	broker.Subscribe("s/rx", func(topic string, payload []byte) {
		f, err := pb.DecodeFrame(payload)
		if err != nil || !f.ResponseRequired {
			return
		}
		data, _ := pb.Encode(&pb.Frame{Id: f.Id, Command: f.Command, Params: []byte{f.Params[0] * 2}})
		broker.Publish("s/respond", data, false)
	})
	replies := broker.collect("m/reply")
	faults := broker.collect("m/fault")

	data, err := pb.Encode(&pb.Frame{Id: 1, Address: 5, ResponseRequired: true, Command: 0x10, Params: []byte{21}})
	require.NoError(t, err)
	require.NoError(t, broker.Publish("m/tx", data, false))

	req := receiveFrame(t, slaveRx)
	require.Equal(t, uint32(0x10), req.Command)
	require.Equal(t, byte(21), req.Params[0])

	reply := receiveFrame(t, replies)
	require.Equal(t, uint64(1), reply.Id)
	require.Zero(t, reply.Error)
	require.Equal(t, uint32(5), reply.Address)
	require.Equal(t, uint32(0x10), reply.Command)
	require.Equal(t, byte(42), reply.Params[0])

	data, err = pb.Encode(&pb.Frame{Id: 2, Address: 9, ResponseRequired: true, Command: 1})
	require.NoError(t, err)
	require.NoError(t, broker.Publish("m/tx", data, false))
	reply = receiveFrame(t, replies)
	require.Equal(t, uint64(2), reply.Id)
	require.Equal(t, uint32(rs485.ResponseTimeout), reply.Error)

	select {
	case data := <-faults:
		fault, err := pb.DecodeFault(data)
		require.NoError(t, err)
		require.Equal(t, uint32(rs485.ResponseTimeout), fault.Code)
		require.Equal(t, "m", fault.Node)
	case <-time.After(testTimeout):
		t.Fatal("fault not published")
	}
}
