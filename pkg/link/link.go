// Package link defines the character level transport below the bus driver.
//
// A Link moves 9-bit characters (rs485.Char) over some medium. Real
// transceivers carry the address marker as the 9th data bit; host links
// without 9-bit support carry it out-of-band or emulate it.
package link

import (
	"errors"

	"github.com/robotalks/rs485.go/pkg/rs485"
)

var (
	// ErrFraming indicates a character was lost because of a UART framing
	// or overrun error. The link stays usable.
	ErrFraming = errors.New("framing error")
	// ErrClosed indicates the link is closed.
	ErrClosed = errors.New("link closed")
	// ErrNotTransmitting indicates a write while the transceiver is in
	// receive direction.
	ErrNotTransmitting = errors.New("transceiver not in transmit direction")
)

// Reader reads characters.
type Reader interface {
	// ReadChar blocks until a character arrives. ErrFraming is recoverable,
	// any other error ends the link.
	ReadChar() (rs485.Char, error)
}

// Writer writes characters.
type Writer interface {
	WriteChar(rs485.Char) error
}

// Link is a bi-directional character stream.
type Link interface {
	Reader
	Writer
}

// AddressFilter is implemented by links able to drop characters without
// the address marker in hardware (multi-processor communication mode).
type AddressFilter interface {
	SetAddressFilter(on bool) error
}

// IsRecoverable indicates a read error which doesn't end the link.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrFraming)
}
