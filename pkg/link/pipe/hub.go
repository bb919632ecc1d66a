// Package pipe implements an in-memory multidrop bus.
//
// Every Port attached to a Hub hears what any other port transmits, but only
// while it is in receive direction, the same way a half-duplex transceiver
// with its receiver disabled during transmit behaves.
package pipe

import (
	"sync"
	"time"

	"github.com/robotalks/rs485.go/pkg/link"
	"github.com/robotalks/rs485.go/pkg/rs485"
)

// DefaultQueueLen is the receive queue length of a port.
const DefaultQueueLen = 256

// Event is a character put on the bus.
type Event struct {
	Port int
	Char rs485.Char
	Time time.Time
}

// Hub connects ports.
type Hub struct {
	// Trace is called for every character put on the bus.
	Trace func(Event)

	lock  sync.RWMutex
	ports []*Port
}

// NewHub creates a Hub.
func NewHub() *Hub {
	return &Hub{}
}

// Attach connects a new port in receive direction.
func (h *Hub) Attach() *Port {
	h.lock.Lock()
	defer h.lock.Unlock()
	p := &Port{
		hub:    h,
		id:     len(h.ports),
		rx:     make(chan rs485.Char, DefaultQueueLen),
		closed: make(chan struct{}),
	}
	h.ports = append(h.ports, p)
	return p
}

func (h *Hub) transmit(from *Port, c rs485.Char) {
	ev := Event{Port: from.id, Char: c, Time: time.Now()}
	h.lock.RLock()
	trace := h.Trace
	for _, p := range h.ports {
		if p != from {
			p.deliver(c)
		}
	}
	h.lock.RUnlock()
	if trace != nil {
		trace(ev)
	}
}

// Port is one node on the Hub. It implements link.Link and
// rs485.DirectionLine.
type Port struct {
	hub     *Hub
	id      int
	rx      chan rs485.Char
	closed  chan struct{}
	once    sync.Once
	lock    sync.Mutex
	dir     rs485.Direction
	overrun bool
}

// ID returns the index of the port on the hub.
func (p *Port) ID() int {
	return p.id
}

// SetDirection implements rs485.DirectionLine.
func (p *Port) SetDirection(d rs485.Direction) error {
	p.lock.Lock()
	p.dir = d
	p.lock.Unlock()
	return nil
}

// Direction returns the current direction.
func (p *Port) Direction() rs485.Direction {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.dir
}

// WriteChar implements link.Writer.
func (p *Port) WriteChar(c rs485.Char) error {
	select {
	case <-p.closed:
		return link.ErrClosed
	default:
	}
	if p.Direction() != rs485.Transmit {
		return link.ErrNotTransmitting
	}
	p.hub.transmit(p, c)
	return nil
}

// ReadChar implements link.Reader. A character lost because the queue was
// full is reported once as link.ErrFraming.
func (p *Port) ReadChar() (rs485.Char, error) {
	p.lock.Lock()
	overrun := p.overrun
	p.overrun = false
	p.lock.Unlock()
	if overrun {
		return rs485.Char{}, link.ErrFraming
	}
	select {
	case c := <-p.rx:
		return c, nil
	case <-p.closed:
		return rs485.Char{}, link.ErrClosed
	}
}

// Close implements io.Closer.
func (p *Port) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *Port) deliver(c rs485.Char) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.dir != rs485.Receive {
		return
	}
	select {
	case p.rx <- c:
	default:
		p.overrun = true
	}
}
