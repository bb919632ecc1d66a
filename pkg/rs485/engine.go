package rs485

import (
	"errors"
	"fmt"
)

// ErrInitialized is returned by Initialize once the role is fixed.
var ErrInitialized = errors.New("rs485: already initialized")

// ErrorSink collects asynchronous error codes. Push must never block.
type ErrorSink interface {
	Push(code byte) bool
}

// Config defines the frame layout used by an Engine.
type Config struct {
	// ParamLen is the parameter count of every frame, DefaultParamLen if 0.
	ParamLen int
	// ReturnLen limits the return values of a response, DefaultReturnLen if 0.
	ReturnLen int
}

// Engine is the protocol state machine of one bus node.
//
// Engine is not safe for concurrent use: exactly one serialized entry point
// (see bus.Bus) must call it. Nothing is allocated after NewEngine except
// the copy handed out by ConsumeRequest.
type Engine struct {
	codec Codec
	sink  ErrorSink
	role  Role
	addr  byte
	state State

	tx       bool // current transfer is outgoing
	settling bool // waiting for the line to settle before the first char
	filter   bool // only address marked chars reach the receiver

	buf  []byte
	idx  int  // next byte to send/receive
	cnt  int  // bytes left
	used bool // buffer holds an active frame
	peer byte // master: slave a response is awaited from
	msg  Message
}

// NewEngine creates an Engine in StateInit. sink may be nil.
func NewEngine(cfg Config, sink ErrorSink) *Engine {
	codec := NewCodec(cfg.ParamLen, cfg.ReturnLen)
	return &Engine{
		codec: codec,
		sink:  sink,
		state: StateInit,
		buf:   make([]byte, codec.FrameLen()),
		msg:   Message{Params: make([]byte, codec.ParamLen())},
	}
}

// Codec returns the frame codec of the engine.
func (e *Engine) Codec() Codec { return e.codec }

// State returns the current state.
func (e *Engine) State() State { return e.state }

// Role returns the role set by Initialize.
func (e *Engine) Role() Role { return e.role }

// Address returns the local slave address, 0 for the master.
func (e *Engine) Address() byte { return e.addr }

// Filtering indicates the receiver only needs address marked characters.
// Drivers with hardware address filtering (multi-processor mode) follow it.
func (e *Engine) Filtering() bool { return e.filter }

// MessageAvailable indicates a validated frame waits for ConsumeRequest.
func (e *Engine) MessageAvailable() bool {
	return e.state == StateProcess && e.used
}

// Initialize sets up role and address and enters StateRequest. Role and
// address are fixed afterwards; Reset keeps them.
func (e *Engine) Initialize(role Role, addr byte) (Result, error) {
	if e.state != StateInit {
		return Result{State: e.state}, ErrInitialized
	}
	switch role {
	case RoleMaster:
		addr = 0
	case RoleSlave:
		if addr == BroadcastAddress || addr > MaxAddress {
			return Result{State: e.state}, e.push(AddressInvalid)
		}
	default:
		return Result{State: e.state}, fmt.Errorf("rs485: invalid role %v", role)
	}
	e.role, e.addr = role, addr
	e.toRequest()
	return Result{State: e.state, Switch: SwitchReceive, Timer: TimerStop}, nil
}

// Receive handles one received character.
func (e *Engine) Receive(c Char) (r Result) {
	switch {
	case e.state == StateInit:
	case e.tx:
		// half duplex, nothing is received while the transmitter drives the bus.
	case e.state == StateRequest:
		if e.role == RoleSlave {
			r = e.receiveAddress(c)
		}
	case e.state == StateCommand, e.state == StateMsgBody:
		if c.Addr && e.role == RoleSlave {
			// a new address frame in the middle of a frame: the rest of
			// the old one was lost.
			code := e.push(StateMachineReset)
			e.reset()
			r = e.receiveAddress(c)
			r.Err = code
			if r.Timer == TimerNoChange {
				r.Timer = TimerStop
			}
			break
		}
		r = e.receiveBody(c)
	case e.state == StateResponse && e.role == RoleMaster:
		e.buf[offsetAddress] = c.Data
		e.idx, e.used = offsetCommand, true
		e.state = StateCommand
		r.Timer = TimerRestart
	case e.state == StateProcess, e.state == StateResponse:
		if c.Addr && e.addressed(c.Data) {
			r.Err = e.push(RequestDropped)
		}
	default:
		r.Err = e.push(InvalidStateReceiving)
		e.toRequest()
		r.Switch, r.Timer = SwitchReceive, TimerStop
	}
	r.State = e.state
	return
}

// Settled is called when the settle delay after SwitchTransmit elapsed.
// It returns the first character of the outgoing frame.
func (e *Engine) Settled() (r Result) {
	if e.tx && e.settling {
		e.settling = false
		r.Send = true
		r.Char = Char{Data: e.buf[offsetAddress], Addr: e.role == RoleMaster}
		e.idx, e.cnt = offsetCommand, len(e.buf)-1
	}
	r.State = e.state
	return
}

// Sent is called when the last character left the transmitter.
func (e *Engine) Sent() (r Result) {
	if !e.tx || e.settling || e.idx == 0 {
		r.Err = e.push(InvalidStateSending)
		e.toRequest()
		r.Switch, r.Timer = SwitchReceive, TimerStop
		r.State = e.state
		return
	}
	if e.cnt == 0 {
		return e.finishTx()
	}
	if e.idx >= offsetParams {
		e.state = StateMsgBody
	}
	r.Send, r.Char = true, Char{Data: e.buf[e.idx]}
	e.idx++
	e.cnt--
	r.State = e.state
	return
}

// Timeout is called when the receive timer expires.
func (e *Engine) Timeout() (r Result) {
	switch {
	case e.tx:
	case e.state == StateResponse && e.role == RoleMaster:
		r.Err = e.push(ResponseTimeout)
		e.toRequest()
		r.Timer = TimerStop
	case e.state == StateCommand, e.state == StateMsgBody:
		r.Err = e.push(StateMachineReset)
		e.reset()
		r.Timer = TimerStop
	}
	r.State = e.state
	return
}

// LineError is called on a UART frame or overrun error.
func (e *Engine) LineError() (r Result) {
	if e.state == StateInit {
		r.State = e.state
		return
	}
	r.Err = e.push(FrameError)
	switch {
	case e.state == StateProcess:
	case e.state == StateResponse && e.role == RoleSlave && !e.tx:
		// the validated request is kept until it is answered.
	default:
		if e.tx {
			r.Switch = SwitchReceive
		}
		e.toRequest()
		r.Timer = TimerStop
	}
	r.State = e.state
	return
}

// Reset forces the engine back to StateRequest.
func (e *Engine) Reset() (r Result) {
	r.Err = e.push(StateMachineReset)
	if e.state != StateInit {
		e.reset()
	}
	r.Switch, r.Timer = SwitchReceive, TimerStop
	r.State = e.state
	return
}

// SendRequest starts transmission of a request. Master only, StateRequest
// only.
func (e *Engine) SendRequest(msg *Message) (Result, error) {
	if e.role != RoleMaster || e.state != StateRequest {
		return Result{State: e.state}, e.push(NoRequestExpected)
	}
	if err := e.codec.EncodeTo(e.buf, msg); err != nil {
		return Result{State: e.state}, e.push(codeOf(err))
	}
	e.startTx()
	return Result{State: e.state, Switch: SwitchTransmit, Timer: TimerStop}, nil
}

// ConsumeRequest hands out the received frame. For a slave owing a
// response the engine moves to StateResponse, otherwise back to
// StateRequest.
func (e *Engine) ConsumeRequest() (Message, error) {
	if !e.MessageAvailable() {
		return Message{}, e.push(NoRequestAvailable)
	}
	msg := e.msg.Clone()
	if e.role == RoleSlave && IsResponseRequired(&msg) {
		e.state = StateResponse
	} else {
		e.toRequest()
	}
	return msg, nil
}

// Respond starts transmission of the response to the consumed request.
// The address byte always carries the local address without the response
// flag.
func (e *Engine) Respond(msg *Message) (Result, error) {
	if e.role != RoleSlave || e.state != StateResponse || e.tx {
		return Result{State: e.state}, e.push(NoResponseExpected)
	}
	resp := *msg
	resp.Address, resp.ResponseRequired = e.addr, false
	if err := e.codec.CheckResponse(&resp); err != nil {
		return Result{State: e.state}, e.push(codeOf(err))
	}
	if err := e.codec.EncodeTo(e.buf, &resp); err != nil {
		return Result{State: e.state}, e.push(codeOf(err))
	}
	e.startTx()
	return Result{State: e.state, Switch: SwitchTransmit}, nil
}

func (e *Engine) receiveAddress(c Char) (r Result) {
	if !c.Addr {
		return
	}
	addr := c.Data & addressMask
	if addr != e.addr && addr != BroadcastAddress {
		return
	}
	if addr == BroadcastAddress && c.Data&responseFlag != 0 {
		r.Err = e.push(BroadcastNoResponse)
		return
	}
	e.buf[offsetAddress] = c.Data
	e.idx, e.used = offsetCommand, true
	e.filter = false
	e.state = StateCommand
	r.Timer = TimerRestart
	return
}

func (e *Engine) receiveBody(c Char) (r Result) {
	r.Timer = TimerRestart
	switch e.state {
	case StateCommand:
		e.buf[offsetCommand] = c.Data
		e.idx, e.cnt = offsetParams, len(e.buf)-offsetParams
		e.state = StateMsgBody
	case StateMsgBody:
		e.buf[e.idx] = c.Data
		e.idx++
		if e.cnt--; e.cnt == 0 {
			return e.complete()
		}
	}
	return
}

func (e *Engine) complete() (r Result) {
	r.Timer = TimerStop
	if err := e.codec.DecodeTo(&e.msg, e.buf); err != nil {
		r.Err = e.push(codeOf(err))
		e.toRequest()
		return
	}
	if e.role == RoleMaster && e.msg.Address != e.peer {
		r.Err = e.push(AddressInvalid)
		e.toRequest()
		return
	}
	e.state = StateProcess
	e.filter = e.role == RoleSlave
	r.Ready = true
	return
}

func (e *Engine) finishTx() (r Result) {
	r.Switch = SwitchReceive
	if addr := e.buf[offsetAddress]; e.role == RoleMaster && addr&responseFlag != 0 {
		e.clear()
		e.peer = addr & addressMask
		e.state = StateResponse
		r.Timer = TimerAwaitResponse
	} else {
		e.toRequest()
		r.Timer = TimerStop
	}
	r.State = e.state
	return
}

func (e *Engine) startTx() {
	e.tx, e.settling, e.used = true, true, true
	e.idx, e.cnt = 0, len(e.buf)
	e.filter = false
	e.state = StateCommand
}

func (e *Engine) addressed(b byte) bool {
	if e.role != RoleSlave {
		return true
	}
	addr := b & addressMask
	return addr == e.addr || addr == BroadcastAddress
}

func (e *Engine) push(code Code) Code {
	if e.sink != nil {
		e.sink.Push(byte(code))
	}
	return code
}

func (e *Engine) reset() {
	e.state = StateReset
	e.toRequest()
}

func (e *Engine) toRequest() {
	e.clear()
	e.state = StateRequest
	e.filter = e.role == RoleSlave
}

func (e *Engine) clear() {
	e.tx, e.settling, e.used = false, false, false
	e.idx, e.cnt, e.peer = 0, 0, 0
	for i := range e.buf {
		e.buf[i] = 0
	}
}

func codeOf(err error) Code {
	if code, ok := err.(Code); ok {
		return code
	}
	return StateMachineReset
}
