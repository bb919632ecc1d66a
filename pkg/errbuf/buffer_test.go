package errbuf

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferLIFO(t *testing.T) {
	b := New()
	_, ok := b.Pop()
	require.False(t, ok)
	_, ok = b.Peek()
	require.False(t, ok)

	for code := byte(1); code <= Depth; code++ {
		require.True(t, b.Push(code))
	}
	require.False(t, b.Overflow())
	require.False(t, b.Push(9))
	require.True(t, b.Overflow())
	require.Equal(t, Depth, b.Len())

	code, ok := b.Peek()
	require.True(t, ok)
	require.Equal(t, byte(8), code)

	for want := byte(Depth); want >= 1; want-- {
		code, ok := b.Pop()
		require.True(t, ok)
		require.Equal(t, want, code)
	}
	_, ok = b.Pop()
	require.False(t, ok)
	// popping does not clear overflow
	require.True(t, b.Overflow())

	b.Flush()
	require.False(t, b.Overflow())
	require.Zero(t, b.Len())
}

func TestBufferDrain(t *testing.T) {
	b := New()
	b.Push(3)
	b.Push(10)
	codes, overflow := b.Drain()
	require.Equal(t, []byte{10, 3}, codes)
	require.False(t, overflow)
	require.Zero(t, b.Len())

	for i := 0; i < Depth+2; i++ {
		b.Push(byte(i))
	}
	codes, overflow = b.Drain()
	require.Len(t, codes, Depth)
	require.True(t, overflow)
	require.False(t, b.Overflow())
}

func TestBufferConcurrentPush(t *testing.T) {
	b := New()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(code byte) {
			defer wg.Done()
			b.Push(code)
		}(byte(i))
	}
	wg.Wait()
	require.Equal(t, Depth, b.Len())
	require.True(t, b.Overflow())
}
