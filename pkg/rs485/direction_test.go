package rs485

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingLine struct {
	dirs []Direction
	err  error
}

func (l *recordingLine) SetDirection(d Direction) error {
	if l.err != nil {
		return l.err
	}
	l.dirs = append(l.dirs, d)
	return nil
}

func TestDirectionController(t *testing.T) {
	line := &recordingLine{}
	now := time.Unix(1000, 0)
	c := NewDirectionController(line, 5*time.Millisecond)
	c.now = func() time.Time { return now }

	require.Equal(t, Receive, c.Direction())
	require.False(t, c.Ready())

	d, err := c.Transmit()
	require.NoError(t, err)
	require.Equal(t, 5*time.Millisecond, d)
	require.Equal(t, Transmit, c.Direction())
	require.False(t, c.Ready())

	now = now.Add(2 * time.Millisecond)
	d, err = c.Transmit()
	require.NoError(t, err)
	require.Equal(t, 3*time.Millisecond, d)

	now = now.Add(3 * time.Millisecond)
	require.True(t, c.Ready())
	require.Equal(t, time.Duration(0), c.Remaining())

	require.NoError(t, c.Receive())
	require.NoError(t, c.Receive())
	require.Equal(t, []Direction{Transmit, Receive}, line.dirs)
}

func TestDirectionControllerLineError(t *testing.T) {
	line := &recordingLine{err: errors.New("gpio")}
	c := NewDirectionController(line, time.Millisecond)
	_, err := c.Transmit()
	require.Error(t, err)
	require.Equal(t, Receive, c.Direction())
}

func TestDirectionControllerNilLine(t *testing.T) {
	c := NewDirectionController(nil, 0)
	d, err := c.Transmit()
	require.NoError(t, err)
	require.Zero(t, d)
	require.True(t, c.Ready())
}
