package config

import (
	"fmt"
	"io"
	"log"

	"github.com/robotalks/rs485.go/pkg/bus"
	"github.com/robotalks/rs485.go/pkg/link"
	"github.com/robotalks/rs485.go/pkg/link/serial"
	"github.com/robotalks/rs485.go/pkg/link/websocket"
)

// LinkCloser is a link which must be closed after use.
type LinkCloser interface {
	link.Link
	io.Closer
}

// OpenLink opens the configured link.
func (c *Config) OpenLink() (LinkCloser, error) {
	switch c.Link.Kind {
	case LinkSerial:
		l, err := serial.Open(c.SerialConfig())
		if err != nil {
			return nil, err
		}
		return l, nil
	case LinkWebSocket:
		l, err := websocket.Dial(c.Link.URL)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	return nil, fmt.Errorf("unknown link kind %q", c.Link.Kind)
}

// NewBus opens the link and creates an initialized Bus.
func (c *Config) NewBus() (*bus.Bus, io.Closer, error) {
	l, err := c.OpenLink()
	if err != nil {
		return nil, nil, err
	}
	b := bus.New(l, c.EngineConfig())
	b.Turnaround = c.Turnaround()
	b.CharTimeout = c.CharTimeout()
	b.ResponseTimeout = c.ResponseTimeout()
	if err := b.Initialize(c.EngineRole(), byte(c.Address)); err != nil {
		l.Close()
		return nil, nil, err
	}
	return b, l, nil
}

// MustNewBus creates a Bus and fails on error.
func (c *Config) MustNewBus() (*bus.Bus, io.Closer) {
	b, closer, err := c.NewBus()
	if err != nil {
		log.Fatalln(err)
	}
	return b, closer
}
