package serial

import (
	"fmt"
	"strings"
	"time"
)

// Backends.
const (
	BackendGoburrow = "goburrow"
	BackendTarm     = "tarm"
)

// Config is the serial port configuration.
type Config struct {
	Device   string
	Baud     int
	DataBits int
	StopBits int
	// Parity is one of N, E, O.
	Parity  string
	Backend string
	// RS485 enables the kernel RS-485 mode, which drives RTS as the
	// transmit enable line. Only supported by the goburrow backend.
	RS485 bool
	// RTSDelay is the delay between raising RTS and the first bit.
	RTSDelay time.Duration
	// Gap is the minimum line idle time before an address character.
	Gap time.Duration
}

// DefaultConfig returns the default configuration for device.
func DefaultConfig(device string) Config {
	return Config{
		Device:   device,
		Baud:     38400,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Backend:  BackendGoburrow,
		Gap:      2 * time.Millisecond,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Device == "" {
		return fmt.Errorf("serial: device required")
	}
	if c.Baud <= 0 {
		return fmt.Errorf("serial: invalid baud %d", c.Baud)
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return fmt.Errorf("serial: invalid data bits %d", c.DataBits)
	}
	if c.StopBits != 1 && c.StopBits != 2 {
		return fmt.Errorf("serial: invalid stop bits %d", c.StopBits)
	}
	switch strings.ToUpper(c.Parity) {
	case "N", "E", "O":
	default:
		return fmt.Errorf("serial: invalid parity %q", c.Parity)
	}
	switch c.Backend {
	case BackendGoburrow:
	case BackendTarm:
		if c.RS485 {
			return fmt.Errorf("serial: rs485 mode requires backend %s", BackendGoburrow)
		}
	default:
		return fmt.Errorf("serial: unknown backend %q", c.Backend)
	}
	if c.Gap <= 0 {
		return fmt.Errorf("serial: gap must be positive")
	}
	// back-to-back characters must never look like a gap.
	if need := c.MinGap(); c.Gap < need {
		return fmt.Errorf("serial: gap %v too short for %d baud, need at least %v", c.Gap, c.Baud, need)
	}
	return nil
}

// CharTime returns the time to clock out one character.
func (c *Config) CharTime() time.Duration {
	bits := 1 + c.DataBits + c.StopBits
	if strings.ToUpper(c.Parity) != "N" {
		bits++
	}
	return time.Duration(bits) * time.Second / time.Duration(c.Baud)
}

// MinGap returns the shortest usable gap, one and a half character times.
func (c *Config) MinGap() time.Duration {
	return c.CharTime() * 3 / 2
}
