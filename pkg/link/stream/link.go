// Package stream carries 9-bit characters over any byte stream.
//
// Each character takes 2 bytes: a flags byte followed by the data byte.
package stream

import (
	"io"
	"sync"

	"github.com/robotalks/rs485.go/pkg/link"
	"github.com/robotalks/rs485.go/pkg/rs485"
)

// Flags in the first byte of an encoded character.
const (
	FlagAddress byte = 1 << 0
	FlagFraming byte = 1 << 1
)

// CharLen is the encoded length of a character.
const CharLen = 2

// Encode encodes a character.
func Encode(c rs485.Char) [CharLen]byte {
	var flags byte
	if c.Addr {
		flags |= FlagAddress
	}
	return [CharLen]byte{flags, c.Data}
}

// Decode decodes a character. It returns link.ErrFraming for characters
// flagged as lost by the sender.
func Decode(b []byte) (rs485.Char, error) {
	if len(b) < CharLen {
		return rs485.Char{}, io.ErrUnexpectedEOF
	}
	if b[0]&FlagFraming != 0 {
		return rs485.Char{}, link.ErrFraming
	}
	return rs485.Char{Data: b[1], Addr: b[0]&FlagAddress != 0}, nil
}

// Link implements link.Link over an io.ReadWriter.
type Link struct {
	io.ReadWriter

	writeLock sync.Mutex
}

// New creates a Link.
func New(rw io.ReadWriter) *Link {
	return &Link{ReadWriter: rw}
}

// ReadChar implements link.Reader.
func (l *Link) ReadChar() (rs485.Char, error) {
	var b [CharLen]byte
	if _, err := io.ReadFull(l.ReadWriter, b[:]); err != nil {
		return rs485.Char{}, err
	}
	return Decode(b[:])
}

// WriteChar implements link.Writer.
func (l *Link) WriteChar(c rs485.Char) error {
	b := Encode(c)
	l.writeLock.Lock()
	defer l.writeLock.Unlock()
	_, err := l.Write(b[:])
	return err
}

// WriteFramingError reports a lost character to the peer.
func (l *Link) WriteFramingError() error {
	l.writeLock.Lock()
	defer l.writeLock.Unlock()
	_, err := l.Write([]byte{FlagFraming, 0})
	return err
}

// Close implements io.Closer.
func (l *Link) Close() error {
	if closer, ok := l.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
