package rs485

import "fmt"

// Code is an error code reported by the engine. The numeric values are the
// ones used by deployed firmware so codes can be exchanged verbatim.
type Code byte

// Error codes.
const (
	OK                    Code = 0
	NoRequestExpected     Code = 1  // asked to send a request in the middle of an exchange
	BroadcastNoResponse   Code = 2  // broadcast cannot ask for a response
	AddressInvalid        Code = 3  // address out of range or unexpected responder
	NoResponseExpected    Code = 4  // respond called without a pending request
	InvalidParamSize      Code = 5  // parameter count does not fit the frame
	InvalidStateReceiving Code = 6  // state machine confused while receiving
	NoRequestAvailable    Code = 7  // consume called without a received frame
	InvalidStateSending   Code = 8  // state machine confused while sending
	RequestDropped        Code = 9  // previous frame not consumed, new one dropped
	InvalidCrc            Code = 10 // CRC16 mismatch
	FrameError            Code = 11 // UART frame or overrun error
	ResponseTimeout       Code = 12 // no response from the addressed slave
	StateMachineReset     Code = 255
)

// Class groups codes by where they originate.
type Class int

// Classes of codes.
const (
	ClassNone Class = iota
	ClassMisuse
	ClassProtocol
	ClassTransport
	ClassFlow
	ClassFatal
)

var codeNames = map[Code]string{
	OK:                    "ok",
	NoRequestExpected:     "no request expected",
	BroadcastNoResponse:   "broadcast cannot require a response",
	AddressInvalid:        "invalid address",
	NoResponseExpected:    "no response expected",
	InvalidParamSize:      "invalid parameter size",
	InvalidStateReceiving: "invalid state while receiving",
	NoRequestAvailable:    "no request available",
	InvalidStateSending:   "invalid state while sending",
	RequestDropped:        "request dropped",
	InvalidCrc:            "invalid crc",
	FrameError:            "frame error",
	ResponseTimeout:       "response timeout",
	StateMachineReset:     "state machine reset",
}

// String implements fmt.Stringer.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code %d", byte(c))
}

// Error implements error.
func (c Code) Error() string {
	return "rs485: " + c.String()
}

// Class returns the class of the code.
func (c Code) Class() Class {
	switch c {
	case NoRequestExpected, NoResponseExpected, NoRequestAvailable:
		return ClassMisuse
	case AddressInvalid, BroadcastNoResponse, InvalidParamSize:
		return ClassProtocol
	case FrameError, InvalidCrc, ResponseTimeout:
		return ClassTransport
	case RequestDropped:
		return ClassFlow
	case StateMachineReset, InvalidStateReceiving, InvalidStateSending:
		return ClassFatal
	}
	return ClassNone
}

// String implements fmt.Stringer.
func (c Class) String() string {
	switch c {
	case ClassMisuse:
		return "misuse"
	case ClassProtocol:
		return "protocol"
	case ClassTransport:
		return "transport"
	case ClassFlow:
		return "flow"
	case ClassFatal:
		return "fatal"
	}
	return "none"
}
