package bus

import (
	"context"
	"sync"

	"github.com/robotalks/rs485.go/pkg/rs485"
)

// Client runs request/response exchanges on a master Bus, one at a time.
type Client struct {
	Bus *Bus

	lock sync.Mutex
}

// NewClient creates a Client.
func NewClient(b *Bus) *Client {
	return &Client{Bus: b}
}

// Do sends msg and waits for the exchange to finish. For requests which
// owe no response it returns an empty message once the frame is out.
// Asynchronous failures (ResponseTimeout, InvalidCrc, AddressInvalid, ...)
// are returned as rs485.Code errors.
func (c *Client) Do(ctx context.Context, msg *rs485.Message) (rs485.Message, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.waitIdle(ctx); err != nil {
		return rs485.Message{}, err
	}
	if err := c.Bus.SendRequest(msg); err != nil {
		return rs485.Message{}, err
	}
	for {
		changed := c.Bus.Changed()
		if c.Bus.MessageAvailable() {
			return c.Bus.ConsumeRequest()
		}
		if c.Bus.State() == rs485.StateRequest {
			if fault := c.Bus.Fault(); fault != rs485.OK {
				return rs485.Message{}, fault
			}
			return rs485.Message{}, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			// the engine recovers by itself on timeout, nothing to undo.
			return rs485.Message{}, ctx.Err()
		}
	}
}

// waitIdle waits until the bus is able to accept a request. A frame left
// over from a cancelled exchange is discarded.
func (c *Client) waitIdle(ctx context.Context) error {
	for {
		changed := c.Bus.Changed()
		if c.Bus.MessageAvailable() {
			c.Bus.ConsumeRequest()
			continue
		}
		if c.Bus.State() == rs485.StateRequest {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
