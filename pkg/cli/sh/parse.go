package sh

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/robotalks/rs485.go/pkg/rs485"
)

// parseByte parses decimal, 0x hex, 0o octal or 0b binary values.
func parseByte(s string, max uint64) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil || v > max {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	return byte(v), nil
}

// ParseRequest parses "ADDR CMD [PARAM...]" into a request.
func ParseRequest(args []string, responseRequired bool) (msg rs485.Message, err error) {
	if len(args) < 2 {
		return msg, fmt.Errorf("ADDR CMD [PARAM...] expected")
	}
	if msg.Address, err = parseByte(args[0], uint64(rs485.MaxAddress)); err != nil {
		return msg, fmt.Errorf("address: %v", err)
	}
	if msg.Command, err = parseByte(args[1], 0xff); err != nil {
		return msg, fmt.Errorf("command: %v", err)
	}
	for _, arg := range args[2:] {
		v, err := parseByte(arg, 0xff)
		if err != nil {
			return msg, fmt.Errorf("param: %v", err)
		}
		msg.Params = append(msg.Params, v)
	}
	msg.ResponseRequired = responseRequired
	return msg, nil
}

// MessageView is the printable form of a message.
type MessageView struct {
	Address byte   `json:"address"`
	Command byte   `json:"command"`
	Params  []byte `json:"params"`
}

// View creates the MessageView of a message.
func View(msg *rs485.Message) MessageView {
	params := msg.Params
	if params == nil {
		params = []byte{}
	}
	return MessageView{Address: msg.Address, Command: msg.Command, Params: params}
}

// String implements fmt.Stringer.
func (v MessageView) String() string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "addr=%d cmd=0x%02x", v.Address, v.Command)
	if len(v.Params) > 0 {
		fmt.Fprintf(&w, " params=% x", v.Params)
	}
	return w.String()
}
