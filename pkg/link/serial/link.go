// Package serial implements link.Link on a host serial port.
//
// Host UARTs have no 9th data bit, so the address marker is emulated with
// line idle time: a character received after the line was idle for at least
// the gap is marked, and a marked character is written only after the line
// was idle for the gap. This matches the deployed framing as long as a frame
// is transmitted back to back and the turnaround is longer than the gap.
// The first character of a response is marked as well; the master takes it
// as the start of the response regardless, and a slave never matches it
// because the responder's own address is in it.
package serial

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/rs485.go/pkg/rs485"
)

const readBufferLen = 64

// Link implements link.Link on a serial port.
type Link struct {
	port io.ReadWriteCloser
	gap  time.Duration

	lock sync.Mutex
	last time.Time // last activity on the line

	buf     []byte
	pending []byte
	first   bool

	now   func() time.Time
	sleep func(time.Duration)
}

// New wraps an opened port. The port must return from Read periodically
// when the line is idle (read timeout).
func New(port io.ReadWriteCloser, gap time.Duration) *Link {
	return &Link{
		port:  port,
		gap:   gap,
		buf:   make([]byte, readBufferLen),
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// ReadChar implements link.Reader. It must be called from a single
// goroutine.
func (l *Link) ReadChar() (rs485.Char, error) {
	for len(l.pending) == 0 {
		n, err := l.port.Read(l.buf)
		if n > 0 {
			now := l.now()
			l.lock.Lock()
			l.first = l.last.IsZero() || now.Sub(l.last) >= l.gap
			l.last = now
			l.lock.Unlock()
			l.pending = l.buf[:n]
			break
		}
		if err != nil && !isIdle(err) && !os.IsTimeout(err) {
			return rs485.Char{}, err
		}
	}
	c := rs485.Char{Data: l.pending[0], Addr: l.first}
	l.pending, l.first = l.pending[1:], false
	if glog.V(4) {
		glog.Infof("serial rx %02x addr=%v", c.Data, c.Addr)
	}
	return c, nil
}

// WriteChar implements link.Writer.
func (l *Link) WriteChar(c rs485.Char) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if c.Addr && !l.last.IsZero() {
		if d := l.gap - l.now().Sub(l.last); d > 0 {
			l.sleep(d)
		}
	}
	_, err := l.port.Write([]byte{c.Data})
	l.last = l.now()
	return err
}

// Close implements io.Closer.
func (l *Link) Close() error {
	return l.port.Close()
}
