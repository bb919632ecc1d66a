package rs485

// Frame geometry and address byte layout.
const (
	// BroadcastAddress addresses every slave on the bus.
	BroadcastAddress byte = 0
	// MaxAddress is the highest slave address.
	MaxAddress byte = 127

	// DefaultParamLen is the number of parameter bytes in a frame.
	DefaultParamLen = 12
	// DefaultReturnLen is the number of meaningful return values in a response.
	DefaultReturnLen = 8

	responseFlag byte = 0x80
	addressMask  byte = 0x7f

	offsetAddress = 0
	offsetCommand = 1
	offsetParams  = 2
)

// Message is the decoded form of a frame.
type Message struct {
	Address          byte
	ResponseRequired bool
	Command          byte
	Params           []byte
	// CRC is filled by Decode; Encode always computes it.
	CRC uint16
}

// IsBroadcast indicates the message is sent to all slaves.
func (m *Message) IsBroadcast() bool {
	return m.Address == BroadcastAddress
}

// IsResponseRequired indicates a response is owed for the message.
func IsResponseRequired(m *Message) bool {
	return m != nil && m.ResponseRequired && !m.IsBroadcast()
}

func (m *Message) addressByte() byte {
	b := m.Address & addressMask
	if m.ResponseRequired {
		b |= responseFlag
	}
	return b
}

// Codec packs and unpacks frames of a fixed layout.
type Codec struct {
	paramLen  int
	returnLen int
}

// NewCodec creates a Codec. Non-positive lengths select the defaults.
func NewCodec(paramLen, returnLen int) Codec {
	if paramLen <= 0 {
		paramLen = DefaultParamLen
	}
	if returnLen <= 0 || returnLen > paramLen {
		returnLen = paramLen
		if DefaultReturnLen < returnLen {
			returnLen = DefaultReturnLen
		}
	}
	return Codec{paramLen: paramLen, returnLen: returnLen}
}

// ParamLen returns the parameter count of a frame.
func (c Codec) ParamLen() int {
	return c.paramLen
}

// ReturnLen returns the maximum count of return values in a response.
func (c Codec) ReturnLen() int {
	return c.returnLen
}

// FrameLen returns the length of a frame on the wire.
func (c Codec) FrameLen() int {
	return offsetParams + c.paramLen + 2
}

// Check validates msg for encoding.
func (c Codec) Check(msg *Message) error {
	if msg.Address > MaxAddress {
		return AddressInvalid
	}
	if msg.IsBroadcast() && msg.ResponseRequired {
		return BroadcastNoResponse
	}
	if len(msg.Params) > c.paramLen {
		return InvalidParamSize
	}
	return nil
}

// CheckResponse validates msg as a response.
func (c Codec) CheckResponse(msg *Message) error {
	if len(msg.Params) > c.returnLen {
		return InvalidParamSize
	}
	return c.Check(msg)
}

// Encode returns the wire bytes of msg.
func (c Codec) Encode(msg *Message) ([]byte, error) {
	buf := make([]byte, c.FrameLen())
	if err := c.EncodeTo(buf, msg); err != nil {
		return nil, err
	}
	return buf, nil
}

// EncodeTo encodes msg into buf which must be exactly FrameLen long.
func (c Codec) EncodeTo(buf []byte, msg *Message) error {
	if err := c.Check(msg); err != nil {
		return err
	}
	if len(buf) != c.FrameLen() {
		return InvalidParamSize
	}
	buf[offsetAddress] = msg.addressByte()
	buf[offsetCommand] = msg.Command
	params := buf[offsetParams : offsetParams+c.paramLen]
	n := copy(params, msg.Params)
	for i := n; i < len(params); i++ {
		params[i] = 0
	}
	crc := CRC16(buf[:offsetParams+c.paramLen])
	buf[offsetParams+c.paramLen] = byte(crc)
	buf[offsetParams+c.paramLen+1] = byte(crc >> 8)
	return nil
}

// Decode parses and validates a frame.
func (c Codec) Decode(frame []byte) (msg Message, err error) {
	err = c.DecodeTo(&msg, frame)
	return
}

// DecodeTo parses frame into msg, reusing msg.Params when it is large
// enough.
func (c Codec) DecodeTo(msg *Message, frame []byte) error {
	if len(frame) != c.FrameLen() {
		return InvalidParamSize
	}
	if !CheckCRC16(frame) {
		return InvalidCrc
	}
	addr := frame[offsetAddress]
	if addr&addressMask == BroadcastAddress && addr&responseFlag != 0 {
		return BroadcastNoResponse
	}
	msg.Address = addr & addressMask
	msg.ResponseRequired = addr&responseFlag != 0
	msg.Command = frame[offsetCommand]
	if cap(msg.Params) < c.paramLen {
		msg.Params = make([]byte, c.paramLen)
	}
	msg.Params = msg.Params[:c.paramLen]
	copy(msg.Params, frame[offsetParams:offsetParams+c.paramLen])
	msg.CRC = uint16(frame[offsetParams+c.paramLen]) | uint16(frame[offsetParams+c.paramLen+1])<<8
	return nil
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() Message {
	c := *m
	if c.Params != nil {
		c.Params = append([]byte(nil), c.Params...)
	}
	return c
}
