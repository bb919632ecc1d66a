// Package pb defines the protobuf messages published by the gateway.
//
// The messages are kept in sync with gateway.proto by hand; they only use
// scalar fields so the reflection based marshaller of golang/protobuf
// handles them without generated code.
package pb

import (
	"fmt"
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/rs485.go/pkg/rs485"
)

// Frame is a bus frame exchanged with the MQTT gateway.
type Frame struct {
	Node             string `protobuf:"bytes,1,opt,name=node,proto3" json:"node,omitempty"`
	Address          uint32 `protobuf:"varint,2,opt,name=address,proto3" json:"address,omitempty"`
	ResponseRequired bool   `protobuf:"varint,3,opt,name=response_required,json=responseRequired,proto3" json:"response_required,omitempty"`
	Command          uint32 `protobuf:"varint,4,opt,name=command,proto3" json:"command,omitempty"`
	Params           []byte `protobuf:"bytes,5,opt,name=params,proto3" json:"params,omitempty"`
	Crc              uint32 `protobuf:"varint,6,opt,name=crc,proto3" json:"crc,omitempty"`
	Timestamp        int64  `protobuf:"varint,7,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
	Id               uint64 `protobuf:"varint,8,opt,name=id,proto3" json:"id,omitempty"`
	Error            uint32 `protobuf:"varint,9,opt,name=error,proto3" json:"error,omitempty"`
}

// Reset implements proto.Message.
func (m *Frame) Reset() { *m = Frame{} }

// String implements proto.Message.
func (m *Frame) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*Frame) ProtoMessage() {}

// Fault is an asynchronous error drained from the node.
type Fault struct {
	Node      string `protobuf:"bytes,1,opt,name=node,proto3" json:"node,omitempty"`
	Code      uint32 `protobuf:"varint,2,opt,name=code,proto3" json:"code,omitempty"`
	Name      string `protobuf:"bytes,3,opt,name=name,proto3" json:"name,omitempty"`
	Class     string `protobuf:"bytes,4,opt,name=class,proto3" json:"class,omitempty"`
	Overflow  bool   `protobuf:"varint,5,opt,name=overflow,proto3" json:"overflow,omitempty"`
	Timestamp int64  `protobuf:"varint,6,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
}

// Reset implements proto.Message.
func (m *Fault) Reset() { *m = Fault{} }

// String implements proto.Message.
func (m *Fault) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*Fault) ProtoMessage() {}

// NewFrame converts a bus message.
func NewFrame(node string, msg *rs485.Message) *Frame {
	return &Frame{
		Node:             node,
		Address:          uint32(msg.Address),
		ResponseRequired: msg.ResponseRequired,
		Command:          uint32(msg.Command),
		Params:           append([]byte(nil), msg.Params...),
		Crc:              uint32(msg.CRC),
		Timestamp:        time.Now().UnixNano(),
	}
}

// Message converts the frame back to a bus message.
func (m *Frame) Message() (rs485.Message, error) {
	if m.Address > uint32(rs485.MaxAddress) {
		return rs485.Message{}, fmt.Errorf("address %d out of range", m.Address)
	}
	if m.Command > 0xff {
		return rs485.Message{}, fmt.Errorf("command %d out of range", m.Command)
	}
	return rs485.Message{
		Address:          byte(m.Address),
		ResponseRequired: m.ResponseRequired,
		Command:          byte(m.Command),
		Params:           append([]byte(nil), m.Params...),
	}, nil
}

// NewFault converts an error code.
func NewFault(node string, code rs485.Code, overflow bool) *Fault {
	return &Fault{
		Node:      node,
		Code:      uint32(code),
		Name:      code.String(),
		Class:     code.Class().String(),
		Overflow:  overflow,
		Timestamp: time.Now().UnixNano(),
	}
}

// Encode marshals a message.
func Encode(msg proto.Message) ([]byte, error) {
	return proto.Marshal(msg)
}

// DecodeFrame unmarshals a Frame.
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := proto.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// DecodeFault unmarshals a Fault.
func DecodeFault(data []byte) (*Fault, error) {
	var f Fault
	if err := proto.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
