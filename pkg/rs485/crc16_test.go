package rs485

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCRC16(t *testing.T) {
	testCases := []struct {
		name   string
		data   []byte
		expect uint16
	}{
		{"empty", nil, 0xffff},
		{"check value", []byte("123456789"), 0x4b37},
		{"modbus read request", []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0a}, 0xcdc5},
		{"address command params", []byte{0x85, 0x10, 0xaa, 0xbb}, 0x3e16},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, CRC16(tc.data))
		})
	}
}

func TestCheckCRC16(t *testing.T) {
	frame := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0a, 0xc5, 0xcd}
	require.True(t, CheckCRC16(frame))
	frame[6] ^= 1
	require.False(t, CheckCRC16(frame))
	require.False(t, CheckCRC16([]byte{0x01}))
}

func TestCRC16SingleBitSensitivity(t *testing.T) {
	codec := NewCodec(0, 0)
	frame, err := codec.Encode(&Message{
		Address:          5,
		ResponseRequired: true,
		Command:          0x10,
		Params:           []byte{0xaa, 0xbb, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	})
	require.NoError(t, err)
	span := frame[:codec.FrameLen()-2]
	crc := CRC16(span)
	for i := range span {
		for bit := uint(0); bit < 8; bit++ {
			span[i] ^= 1 << bit
			require.NotEqualf(t, crc, CRC16(span), "byte %d bit %d", i, bit)
			span[i] ^= 1 << bit
		}
	}
	require.True(t, CheckCRC16(frame))
}
