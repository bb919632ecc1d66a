// Package mqtt bridges a bus node to an MQTT broker.
//
// Topics are relative to the prefix in the broker URL:
//
//	<node>/meta     retained JSON Meta of the node
//	<node>/rx       pb.Frame for every frame consumed from the bus
//	<node>/fault    pb.Fault for every asynchronous error
//	<node>/tx       master: pb.Frame request to send
//	<node>/reply    master: pb.Frame reply to a request, same Id
//	<node>/respond  slave: pb.Frame response to the request with the same Id
package mqtt

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/rs485.go/pkg/bus"
	"github.com/robotalks/rs485.go/pkg/gateway/pb"
	"github.com/robotalks/rs485.go/pkg/rs485"
)

// Topics under <node>/.
const (
	TopicMeta    = "meta"
	TopicRx      = "rx"
	TopicFault   = "fault"
	TopicTx      = "tx"
	TopicReply   = "reply"
	TopicRespond = "respond"
)

// DefaultRespondTimeout is how long a slave waits for a response from
// MQTT before giving up the request.
const DefaultRespondTimeout = 200 * time.Millisecond

const queueLen = 16

// Unsubscriber cancels a subscription.
type Unsubscriber interface {
	Close() error
}

// Broker is the part of Queue used by the Bridge.
type Broker interface {
	Publish(topic string, payload []byte, retain bool) error
	Subscribe(filter string, handler Handler) (Unsubscriber, error)
}

// Meta describes a node.
type Meta struct {
	Node    string `json:"node"`
	Role    string `json:"role"`
	Address int    `json:"address,omitempty"`
	Host    string `json:"host,omitempty"`
	Params  int    `json:"params"`
	Returns int    `json:"returns"`
	Online  bool   `json:"online"`
}

// Topic returns the topic of a node.
func Topic(node, name string) string {
	return node + "/" + name
}

// Bridge connects a Bus to a Broker.
type Bridge struct {
	Broker         Broker
	Bus            *bus.Bus
	Node           string
	Host           string
	RespondTimeout time.Duration

	seq       uint64
	txCh      chan *pb.Frame
	respondCh chan *pb.Frame
}

// NewBridge creates a Bridge.
func NewBridge(broker Broker, b *bus.Bus, node string) *Bridge {
	return &Bridge{
		Broker:         broker,
		Bus:            b,
		Node:           node,
		RespondTimeout: DefaultRespondTimeout,
		txCh:           make(chan *pb.Frame, queueLen),
		respondCh:      make(chan *pb.Frame, 1),
	}
}

// Meta returns the node description.
func (g *Bridge) Meta() Meta {
	codec := g.Bus.Codec()
	return Meta{
		Node:    g.Node,
		Role:    g.Bus.Role().String(),
		Address: int(g.Bus.Address()),
		Host:    g.Host,
		Params:  codec.ParamLen(),
		Returns: codec.ReturnLen(),
		Online:  true,
	}
}

// Run implements framework.Runnable.
func (g *Bridge) Run(ctx context.Context) error {
	if err := g.publishMeta(true); err != nil {
		return err
	}
	defer g.publishMeta(false)

	var topic string
	var handler Handler
	if g.Bus.Role() == rs485.RoleMaster {
		topic, handler = TopicTx, g.enqueue(g.txCh)
	} else {
		topic, handler = TopicRespond, g.enqueue(g.respondCh)
	}
	sub, err := g.Broker.Subscribe(Topic(g.Node, topic), handler)
	if err != nil {
		return err
	}
	defer sub.Close()

	if g.Bus.Role() == rs485.RoleMaster {
		go g.serveRequests(ctx)
		return g.watchFaults(ctx)
	}
	return g.serveSlave(ctx)
}

func (g *Bridge) publishMeta(online bool) error {
	meta := g.Meta()
	meta.Online = online
	data, err := json.Marshal(&meta)
	if err != nil {
		return err
	}
	return g.Broker.Publish(Topic(g.Node, TopicMeta), data, true)
}

func (g *Bridge) enqueue(ch chan *pb.Frame) Handler {
	return func(topic string, payload []byte) {
		f, err := pb.DecodeFrame(payload)
		if err != nil {
			glog.Warningf("bridge: %s: %v", topic, err)
			return
		}
		select {
		case ch <- f:
		default:
			glog.Warningf("bridge: %s: queue full, frame %d dropped", topic, f.Id)
		}
	}
}

func (g *Bridge) publish(name string, msg proto.Message) {
	data, err := pb.Encode(msg)
	if err == nil {
		err = g.Broker.Publish(Topic(g.Node, name), data, false)
	}
	if err != nil {
		glog.Errorf("bridge: publish %s: %v", name, err)
	}
}

func (g *Bridge) publishFaults() {
	codes, overflow := g.Bus.Errors().Drain()
	for i, code := range codes {
		g.publish(TopicFault, pb.NewFault(g.Node, rs485.Code(code), overflow && i == 0))
	}
}

func (g *Bridge) watchFaults(ctx context.Context) error {
	for {
		changed := g.Bus.Changed()
		g.publishFaults()
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (g *Bridge) serveRequests(ctx context.Context) {
	client := bus.NewClient(g.Bus)
	for {
		select {
		case f := <-g.txCh:
			g.publish(TopicReply, g.exchange(ctx, client, f))
		case <-ctx.Done():
			return
		}
	}
}

func (g *Bridge) exchange(ctx context.Context, client *bus.Client, f *pb.Frame) *pb.Frame {
	reply := &pb.Frame{Node: g.Node, Id: f.Id}
	req, err := f.Message()
	if err != nil {
		glog.Warningf("bridge: tx %d: %v", f.Id, err)
		reply.Error = uint32(rs485.InvalidParamSize)
		return reply
	}
	resp, err := client.Do(ctx, &req)
	if err != nil {
		if code, ok := err.(rs485.Code); ok {
			reply.Error = uint32(code)
		} else {
			reply.Error = uint32(rs485.StateMachineReset)
		}
		return reply
	}
	if rs485.IsResponseRequired(&req) {
		reply = pb.NewFrame(g.Node, &resp)
		reply.Id = f.Id
		g.publish(TopicRx, reply)
	}
	return reply
}

func (g *Bridge) serveSlave(ctx context.Context) error {
	var (
		pending  uint64
		deadline <-chan time.Time
	)
	for {
		changed := g.Bus.Changed()
		g.publishFaults()
		if pending == 0 && g.Bus.MessageAvailable() {
			if req, err := g.Bus.ConsumeRequest(); err == nil {
				f := pb.NewFrame(g.Node, &req)
				f.Id = atomic.AddUint64(&g.seq, 1)
				if rs485.IsResponseRequired(&req) {
					pending = f.Id
					deadline = time.After(g.RespondTimeout)
				}
				g.publish(TopicRx, f)
			}
			continue
		}
		select {
		case <-changed:
		case f := <-g.respondCh:
			if pending == 0 || f.Id != pending {
				glog.Warningf("bridge: response %d doesn't match pending request %d", f.Id, pending)
				continue
			}
			msg, err := f.Message()
			if err == nil {
				err = g.Bus.Respond(&msg)
			}
			if err != nil {
				glog.Warningf("bridge: respond %d: %v", f.Id, err)
				g.Bus.Reset()
			}
			pending, deadline = 0, nil
		case <-deadline:
			glog.Warningf("bridge: no response for request %d", pending)
			g.Bus.Reset()
			pending, deadline = 0, nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
