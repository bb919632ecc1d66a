// Package bus drives an rs485.Engine on a link.Link.
//
// Bus is the single serialized entry point of the engine: characters from
// the read loop, settle and receive timers, and application calls all take
// the same lock. Application calls never block; use Changed to wait for the
// next state transition.
package bus

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/rs485.go/pkg/errbuf"
	"github.com/robotalks/rs485.go/pkg/link"
	"github.com/robotalks/rs485.go/pkg/rs485"
)

// Default timing.
const (
	DefaultCharTimeout     = 20 * time.Millisecond
	DefaultResponseTimeout = 250 * time.Millisecond
)

// Bus drives the protocol engine of one node.
type Bus struct {
	Link link.Link
	// Line switches the transceiver direction. If nil and Link implements
	// rs485.DirectionLine, Link is used.
	Line            rs485.DirectionLine
	Turnaround      time.Duration
	CharTimeout     time.Duration
	ResponseTimeout time.Duration

	lock    sync.Mutex
	engine  *rs485.Engine
	dir     *rs485.DirectionController
	errs    *errbuf.Buffer
	state   rs485.State
	fault   rs485.Code
	filter  bool
	changed chan struct{}

	timer       *time.Timer
	timerGen    uint64
	settleTimer *time.Timer
	settleGen   uint64
}

// New creates a Bus.
func New(l link.Link, cfg rs485.Config) *Bus {
	errs := errbuf.New()
	return &Bus{
		Link:            l,
		Turnaround:      rs485.DefaultTurnaround,
		CharTimeout:     DefaultCharTimeout,
		ResponseTimeout: DefaultResponseTimeout,
		engine:          rs485.NewEngine(cfg, errs),
		dir:             rs485.NewDirectionController(nil, rs485.DefaultTurnaround),
		errs:            errs,
		state:           rs485.StateInit,
		changed:         make(chan struct{}),
	}
}

// Initialize sets the role and the local address of the node.
func (b *Bus) Initialize(role rs485.Role, addr byte) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.engine.State() != rs485.StateInit {
		return rs485.ErrInitialized
	}
	line := b.Line
	if line == nil {
		line, _ = b.Link.(rs485.DirectionLine)
	}
	b.dir = rs485.NewDirectionController(line, b.Turnaround)
	r, err := b.engine.Initialize(role, addr)
	b.apply(r)
	if err == nil {
		glog.V(2).Infof("bus: initialized %s address %d", role, b.engine.Address())
	}
	return err
}

// Role returns the role of the node.
func (b *Bus) Role() rs485.Role {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.engine.Role()
}

// Address returns the local address, 0 for the master.
func (b *Bus) Address() byte {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.engine.Address()
}

// Codec returns the frame codec.
func (b *Bus) Codec() rs485.Codec {
	return b.engine.Codec()
}

// State returns the protocol state.
func (b *Bus) State() rs485.State {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.engine.State()
}

// Errors returns the asynchronous error queue.
func (b *Bus) Errors() *errbuf.Buffer {
	return b.errs
}

// Fault returns the last asynchronous error since the last SendRequest.
func (b *Bus) Fault() rs485.Code {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.fault
}

// Changed returns a channel closed on the next state transition, frame
// arrival or asynchronous error.
func (b *Bus) Changed() <-chan struct{} {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.changed
}

// MessageAvailable indicates a received frame waits for ConsumeRequest.
func (b *Bus) MessageAvailable() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.engine.MessageAvailable()
}

// ConsumeRequest returns the received frame.
func (b *Bus) ConsumeRequest() (rs485.Message, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	msg, err := b.engine.ConsumeRequest()
	b.sync(false)
	return msg, err
}

// IsResponseRequired indicates msg owes a response.
func (b *Bus) IsResponseRequired(msg *rs485.Message) bool {
	return rs485.IsResponseRequired(msg)
}

// Respond sends the response to the consumed request.
func (b *Bus) Respond(msg *rs485.Message) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	r, err := b.engine.Respond(msg)
	if err == nil {
		glog.V(2).Infof("bus: respond cmd=%02x params=% x", msg.Command, msg.Params)
	}
	b.apply(r)
	return err
}

// SendRequest starts a request. Master only.
func (b *Bus) SendRequest(msg *rs485.Message) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	r, err := b.engine.SendRequest(msg)
	if err == nil {
		b.fault = rs485.OK
		glog.V(2).Infof("bus: request addr=%d resp=%v cmd=%02x params=% x",
			msg.Address, msg.ResponseRequired, msg.Command, msg.Params)
	}
	b.apply(r)
	return err
}

// Reset forces the engine back to idle, dropping any frame in progress.
func (b *Bus) Reset() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.apply(b.engine.Reset())
}

// Run reads characters from the link until ctx is done or the link fails.
func (b *Bus) Run(ctx context.Context) error {
	defer b.stopTimers()
	charCh, errCh := make(chan rs485.Char), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go b.readLoop(subCtx, charCh, errCh)
	for {
		select {
		case c := <-charCh:
			b.receive(c)
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *Bus) readLoop(ctx context.Context, charCh chan rs485.Char, errCh chan error) {
	for {
		c, err := b.Link.ReadChar()
		if link.IsRecoverable(err) {
			b.lineError()
			continue
		}
		if err != nil {
			errCh <- err
			return
		}
		select {
		case charCh <- c:
		case <-ctx.Done():
			return
		}
	}
}

func (b *Bus) receive(c rs485.Char) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if glog.V(4) {
		glog.Infof("bus: rx %02x addr=%v", c.Data, c.Addr)
	}
	b.apply(b.engine.Receive(c))
}

func (b *Bus) lineError() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.apply(b.engine.LineError())
}

// apply carries out the actions of an engine result. Called with lock held.
func (b *Bus) apply(r rs485.Result) {
	var event bool
	for {
		if r.Err != rs485.OK {
			b.fault, event = r.Err, true
			glog.Warningf("bus: %s in %s", r.Err, r.State)
		}
		if r.Ready {
			event = true
			glog.V(2).Info("bus: frame received")
		}

		switch r.Timer {
		case rs485.TimerRestart:
			b.startTimer(b.CharTimeout)
		case rs485.TimerAwaitResponse:
			b.startTimer(b.ResponseTimeout)
		case rs485.TimerStop:
			b.stopTimer()
		}

		switch r.Switch {
		case rs485.SwitchTransmit:
			d, err := b.dir.Transmit()
			if err != nil {
				glog.Errorf("bus: switch to transmit: %v", err)
				r = b.engine.LineError()
				continue
			}
			if d > 0 {
				b.scheduleSettle(d)
				break
			}
			r = b.engine.Settled()
			continue
		case rs485.SwitchReceive:
			b.cancelSettle()
			if err := b.dir.Receive(); err != nil {
				glog.Errorf("bus: switch to receive: %v", err)
			}
		}

		if !r.Send {
			break
		}
		if glog.V(4) {
			glog.Infof("bus: tx %02x addr=%v", r.Char.Data, r.Char.Addr)
		}
		if err := b.Link.WriteChar(r.Char); err != nil {
			glog.Errorf("bus: write: %v", err)
			r = b.engine.LineError()
			continue
		}
		r = b.engine.Sent()
	}
	b.sync(event)
}

// sync follows the engine state: address filter and change notification.
func (b *Bus) sync(event bool) {
	if filter := b.engine.Filtering(); filter != b.filter {
		b.filter = filter
		if f, ok := b.Link.(link.AddressFilter); ok {
			if err := f.SetAddressFilter(filter); err != nil {
				glog.Errorf("bus: address filter: %v", err)
			}
		}
	}
	if state := b.engine.State(); state != b.state {
		glog.V(4).Infof("bus: state %s -> %s", b.state, state)
		b.state = state
		event = true
	}
	if event {
		b.notify()
	}
}

func (b *Bus) notify() {
	close(b.changed)
	b.changed = make(chan struct{})
}

func (b *Bus) startTimer(d time.Duration) {
	b.stopTimer()
	gen := b.timerGen
	b.timer = time.AfterFunc(d, func() {
		b.lock.Lock()
		defer b.lock.Unlock()
		if gen != b.timerGen {
			return
		}
		b.timer = nil
		b.apply(b.engine.Timeout())
	})
}

func (b *Bus) stopTimer() {
	b.timerGen++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Bus) scheduleSettle(d time.Duration) {
	b.cancelSettle()
	gen := b.settleGen
	b.settleTimer = time.AfterFunc(d, func() {
		b.lock.Lock()
		defer b.lock.Unlock()
		if gen != b.settleGen {
			return
		}
		b.settleTimer = nil
		if !b.dir.Ready() {
			b.scheduleSettle(b.dir.Remaining())
			return
		}
		b.apply(b.engine.Settled())
	})
}

func (b *Bus) cancelSettle() {
	b.settleGen++
	if b.settleTimer != nil {
		b.settleTimer.Stop()
		b.settleTimer = nil
	}
}

func (b *Bus) stopTimers() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.stopTimer()
	b.cancelSettle()
}
