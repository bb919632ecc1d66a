// Package rs485 provides the request/response protocol engine of a
// half-duplex RS-485 bus with one master and up to 127 slaves.
//
// Every exchange is a fixed-length frame:
//
//	+---------+---------+----------------+---------+---------+
//	| address | command | parameters (N) | CRC low | CRC hi  |
//	+---------+---------+----------------+---------+---------+
//
// The address byte carries the 7-bit slave address in bits 0-6 and the
// response-required flag in bit 7. Address 0 is broadcast and never asks
// for a response.
//
// The master marks address bytes with the 9th (address frame) bit so that
// slaves can keep their receivers in address filtering mode and only wake
// up for frames addressed to them. Slaves never set the 9th bit.
//
// The Engine here is hardware agnostic. It is fed character events by a
// driver (see package bus) and returns a Result describing what the driver
// has to do next: switch the transceiver direction, clock out a character,
// restart or stop the receive timer, or tell the application a frame is
// available.
//
// Every failure returns the engine to StateRequest, with one exception: a
// validated frame not yet consumed (StateProcess), or a slave request not
// yet answered, survives a line error. LineError reports FrameError and
// leaves the frame for ConsumeRequest or Respond; Reset discards it.
package rs485
