package serial

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/rs485.go/pkg/rs485"
)

type fakeRead struct {
	data  []byte
	err   error
	after time.Duration
}

type fakePort struct {
	clock  *fakeClock
	reads  []fakeRead
	writes bytes.Buffer
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.reads) == 0 {
		return 0, errors.New("closed")
	}
	r := p.reads[0]
	p.reads = p.reads[1:]
	p.clock.t = p.clock.t.Add(r.after)
	return copy(b, r.data), r.err
}

func (p *fakePort) Write(b []byte) (int, error) {
	return p.writes.Write(b)
}

func (p *fakePort) Close() error {
	return nil
}

type fakeClock struct {
	t     time.Time
	slept []time.Duration
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.t = c.t.Add(d)
}

func newTestLink(reads ...fakeRead) (*Link, *fakePort, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	port := &fakePort{clock: clock, reads: reads}
	l := New(port, 2*time.Millisecond)
	l.now, l.sleep = clock.now, clock.sleep
	return l, port, clock
}

func TestLinkMarksFirstCharAfterGap(t *testing.T) {
	l, _, _ := newTestLink(
		fakeRead{data: []byte{0x85, 0x10}},
		fakeRead{data: []byte{0xaa}, after: time.Millisecond},
		fakeRead{err: io.EOF, after: 2 * time.Millisecond},
		fakeRead{data: []byte{0x06}, after: time.Millisecond},
	)
	expected := []rs485.Char{
		{Data: 0x85, Addr: true},
		{Data: 0x10},
		{Data: 0xaa},
		{Data: 0x06, Addr: true},
	}
	for _, want := range expected {
		c, err := l.ReadChar()
		require.NoError(t, err)
		require.Equal(t, want, c)
	}
	_, err := l.ReadChar()
	require.EqualError(t, err, "closed")
}

func TestLinkWaitsGapBeforeAddress(t *testing.T) {
	l, port, clock := newTestLink(fakeRead{data: []byte{1}})
	_, err := l.ReadChar()
	require.NoError(t, err)

	clock.t = clock.t.Add(500 * time.Microsecond)
	require.NoError(t, l.WriteChar(rs485.Char{Data: 0x85, Addr: true}))
	require.Equal(t, []time.Duration{1500 * time.Microsecond}, clock.slept)
	require.NoError(t, l.WriteChar(rs485.Char{Data: 0x10}))
	require.Len(t, clock.slept, 1)
	require.Equal(t, []byte{0x85, 0x10}, port.writes.Bytes())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyUSB0")
	require.NoError(t, cfg.Validate())
	require.Equal(t, 260416*time.Nanosecond, cfg.CharTime())

	testCases := []struct {
		name string
		mod  func(*Config)
	}{
		{"no device", func(c *Config) { c.Device = "" }},
		{"baud", func(c *Config) { c.Baud = 0 }},
		{"parity", func(c *Config) { c.Parity = "X" }},
		{"stop bits", func(c *Config) { c.StopBits = 3 }},
		{"backend", func(c *Config) { c.Backend = "other" }},
		{"tarm rs485", func(c *Config) { c.Backend, c.RS485 = BackendTarm, true }},
		{"gap", func(c *Config) { c.Gap = 0 }},
		{"gap below char time", func(c *Config) { c.Baud = 2400 }},
		{"gap without margin", func(c *Config) { c.Baud, c.Gap = 4800, 2100 * time.Microsecond }},
	}
	slow := DefaultConfig("/dev/ttyUSB0")
	slow.Baud = 9600
	require.NoError(t, slow.Validate())
	slow.Baud = 2400
	slow.Gap = 7 * time.Millisecond
	require.NoError(t, slow.Validate())

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConfig("/dev/ttyUSB0")
			tc.mod(&c)
			require.Error(t, c.Validate())
		})
	}
}
