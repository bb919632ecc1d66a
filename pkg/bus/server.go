package bus

import (
	"context"
	"errors"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/rs485.go/pkg/rs485"
)

// Result codes used in the command byte of a response when the handler
// can't produce one.
const (
	ResultFailure     byte = 0xfe
	ResultUnsupported byte = 0xff
)

// ErrUnsupported is returned by handlers for unknown commands.
var ErrUnsupported = errors.New("unsupported command")

// Handler handles a request received by a slave. The returned message is
// sent back if the request owes a response; its address is ignored.
type Handler interface {
	HandleRequest(ctx context.Context, req *rs485.Message) (*rs485.Message, error)
}

// HandlerFunc is func type of Handler.
type HandlerFunc func(ctx context.Context, req *rs485.Message) (*rs485.Message, error)

// HandleRequest implements Handler.
func (f HandlerFunc) HandleRequest(ctx context.Context, req *rs485.Message) (*rs485.Message, error) {
	return f(ctx, req)
}

// Server serves requests on a slave Bus.
type Server struct {
	Bus     *Bus
	Handler Handler
}

// NewServer creates a Server.
func NewServer(b *Bus, h Handler) *Server {
	return &Server{Bus: b, Handler: h}
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	for {
		changed := s.Bus.Changed()
		if s.Bus.MessageAvailable() {
			req, err := s.Bus.ConsumeRequest()
			if err == nil {
				s.serve(ctx, &req)
			}
			continue
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Server) serve(ctx context.Context, req *rs485.Message) {
	glog.V(2).Infof("server: request addr=%d cmd=%02x params=% x", req.Address, req.Command, req.Params)
	resp, err := s.Handler.HandleRequest(ctx, req)
	if !rs485.IsResponseRequired(req) {
		if err != nil {
			glog.Warningf("server: cmd %02x: %v", req.Command, err)
		}
		return
	}
	switch {
	case errors.Is(err, ErrUnsupported):
		resp = &rs485.Message{Command: ResultUnsupported}
	case err != nil:
		glog.Warningf("server: cmd %02x: %v", req.Command, err)
		resp = &rs485.Message{Command: ResultFailure}
	case resp == nil:
		resp = &rs485.Message{Command: req.Command}
	}
	if err = s.Bus.Respond(resp); err == nil {
		return
	}
	glog.Errorf("server: respond cmd %02x: %v", req.Command, err)
	if resp.Command != ResultFailure {
		if err = s.Bus.Respond(&rs485.Message{Command: ResultFailure}); err == nil {
			return
		}
	}
	// the request stays pending otherwise.
	s.Bus.Reset()
}

// Mux routes requests by command.
type Mux struct {
	lock     sync.RWMutex
	handlers map[byte]Handler
}

// NewMux creates a Mux.
func NewMux() *Mux {
	return &Mux{handlers: make(map[byte]Handler)}
}

// Handle registers the handler for cmd.
func (m *Mux) Handle(cmd byte, h Handler) *Mux {
	m.lock.Lock()
	m.handlers[cmd] = h
	m.lock.Unlock()
	return m
}

// HandleFunc registers the handler func for cmd.
func (m *Mux) HandleFunc(cmd byte, f HandlerFunc) *Mux {
	return m.Handle(cmd, f)
}

// HandleRequest implements Handler.
func (m *Mux) HandleRequest(ctx context.Context, req *rs485.Message) (*rs485.Message, error) {
	m.lock.RLock()
	h := m.handlers[req.Command]
	m.lock.RUnlock()
	if h == nil {
		return nil, ErrUnsupported
	}
	return h.HandleRequest(ctx, req)
}
