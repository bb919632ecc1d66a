package rs485

import "fmt"

// State is the protocol state of an Engine.
type State byte

// Protocol states.
const (
	StateInit     State = 0 // not yet initialized
	StateRequest  State = 1 // idle, ready to send or receive a request
	StateCommand  State = 2 // address byte done, command byte next
	StateMsgBody  State = 3 // parameters and CRC
	StateProcess  State = 4 // frame received, waiting to be consumed
	StateResponse State = 5 // response owed (slave) or awaited (master)
	StateReset    State = 6 // forced recovery, always followed by StateRequest
	StateUnknown  State = 7
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRequest:
		return "REQUEST"
	case StateCommand:
		return "COMMAND"
	case StateMsgBody:
		return "MSGBODY"
	case StateProcess:
		return "PROCESS"
	case StateResponse:
		return "RESPONSE"
	case StateReset:
		return "RESET"
	}
	return "UNKNOWN"
}

// Role is the role of a node on the bus.
type Role int

// Roles.
const (
	RoleNone Role = iota
	RoleMaster
	RoleSlave
)

// String implements fmt.Stringer.
func (r Role) String() string {
	switch r {
	case RoleMaster:
		return "master"
	case RoleSlave:
		return "slave"
	}
	return "none"
}

// ParseRole parses the name of a role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "master":
		return RoleMaster, nil
	case "slave":
		return RoleSlave, nil
	}
	return RoleNone, fmt.Errorf("unknown role %q", s)
}

// Char is a 9-bit serial character.
type Char struct {
	Data byte
	// Addr is the 9th bit, set by the master on address bytes only.
	Addr bool
}

// Switch tells the driver how to change the transceiver direction.
type Switch int

const (
	// SwitchNone keeps the direction as-is.
	SwitchNone Switch = iota
	// SwitchTransmit switches to transmit. The driver must wait for the
	// settle delay and call Engine.Settled before the first character.
	SwitchTransmit
	// SwitchReceive switches back to receive immediately.
	SwitchReceive
)

// TimerAction defines what to do with the receive timer.
type TimerAction int

const (
	// TimerNoChange keeps the timer as-is.
	TimerNoChange TimerAction = iota
	// TimerRestart restarts the timer with the inter-character timeout.
	TimerRestart
	// TimerAwaitResponse restarts the timer with the response timeout.
	TimerAwaitResponse
	// TimerStop stops/cancels the timer.
	TimerStop
)

// Result tells the driver what to do after one engine step.
type Result struct {
	State  State
	Switch Switch
	// Send requests Char to be clocked out. The driver calls Engine.Sent
	// once the character left the transmitter.
	Send bool
	Char Char
	// Ready indicates a validated frame became available.
	Ready bool
	Timer TimerAction
	// Err is the asynchronous error pushed to the sink during this step.
	Err Code
}
