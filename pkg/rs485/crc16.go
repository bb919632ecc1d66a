package rs485

import "github.com/sigurn/crc16"

var crcTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// CRC16 computes CRC-16/MODBUS (reflected polynomial 0xA001, initial value
// 0xffff) over b.
func CRC16(b []byte) uint16 {
	return crc16.Checksum(b, crcTable)
}

// CheckCRC16 verifies the little-endian CRC16 stored in the last two bytes
// of frame against the bytes preceding it.
func CheckCRC16(frame []byte) bool {
	n := len(frame)
	if n < 2 {
		return false
	}
	return CRC16(frame[:n-2]) == uint16(frame[n-2])|uint16(frame[n-1])<<8
}
