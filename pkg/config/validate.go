package config

import (
	"fmt"
	"net/url"

	"github.com/robotalks/rs485.go/pkg/rs485"
)

// maxParamLen keeps a frame within 256 bytes.
const maxParamLen = 252

// Validate checks configuration correctness. It doesn't mutate the
// configuration.
func (c *Config) Validate() error {
	role, err := rs485.ParseRole(c.Role)
	if err != nil {
		return fmt.Errorf("role: %v", err)
	}
	if role == rs485.RoleSlave && (c.Address < 1 || c.Address > int(rs485.MaxAddress)) {
		return fmt.Errorf("address: slave address must be 1-%d, got %d", rs485.MaxAddress, c.Address)
	}

	if c.Frame.Params < 1 || c.Frame.Params > maxParamLen {
		return fmt.Errorf("frame.params: must be 1-%d, got %d", maxParamLen, c.Frame.Params)
	}
	if c.Frame.Returns < 1 || c.Frame.Returns > c.Frame.Params {
		return fmt.Errorf("frame.returns: must be 1-%d, got %d", c.Frame.Params, c.Frame.Returns)
	}

	if c.Timing.TurnaroundMs < 0 {
		return fmt.Errorf("timing.turnaround_ms: must not be negative")
	}
	if c.Timing.CharTimeoutMs <= 0 {
		return fmt.Errorf("timing.char_timeout_ms: must be positive")
	}
	if c.Timing.ResponseTimeoutMs <= 0 {
		return fmt.Errorf("timing.response_timeout_ms: must be positive")
	}

	switch c.Link.Kind {
	case LinkSerial:
		sc := c.SerialConfig()
		if err := sc.Validate(); err != nil {
			return fmt.Errorf("link: %v", err)
		}
		if c.Link.GapMs >= c.Timing.TurnaroundMs && c.Timing.TurnaroundMs > 0 {
			return fmt.Errorf("link.gap_ms: must be shorter than timing.turnaround_ms")
		}
	case LinkWebSocket:
		u, err := url.Parse(c.Link.URL)
		if err != nil {
			return fmt.Errorf("link.url: %v", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("link.url: unsupported scheme %q", u.Scheme)
		}
	default:
		return fmt.Errorf("link.kind: unknown %q", c.Link.Kind)
	}

	if c.MQTT.URL != "" {
		u, err := url.Parse(c.MQTT.URL)
		if err != nil {
			return fmt.Errorf("mqtt.url: %v", err)
		}
		switch u.Scheme {
		case "mqtt", "tcp", "ssl", "ws", "wss":
		default:
			return fmt.Errorf("mqtt.url: unsupported scheme %q", u.Scheme)
		}
	}
	return nil
}
