// Package errbuf implements the asynchronous error queue of a bus node.
//
// Errors raised from receive paths can't be returned to anyone, so they are
// pushed into a small fixed-depth LIFO and popped by the application later.
// The most recent error is popped first. When the queue is full further
// pushes are discarded and the overflow flag is raised until Flush.
package errbuf

import "sync"

// Depth is the number of codes a Buffer holds.
const Depth = 8

// Buffer is a fixed-depth LIFO of error codes, safe for concurrent use.
type Buffer struct {
	lock     sync.Mutex
	codes    [Depth]byte
	n        int
	overflow bool
}

// New creates an empty Buffer.
func New() *Buffer {
	return &Buffer{}
}

// Push stores code on top of the queue. It returns false and raises the
// overflow flag if the queue is full.
func (b *Buffer) Push(code byte) bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.n >= Depth {
		b.overflow = true
		return false
	}
	b.codes[b.n] = code
	b.n++
	return true
}

// Pop removes and returns the most recently pushed code.
func (b *Buffer) Pop() (byte, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.n == 0 {
		return 0, false
	}
	b.n--
	return b.codes[b.n], true
}

// Peek returns the most recently pushed code without removing it.
func (b *Buffer) Peek() (byte, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.n == 0 {
		return 0, false
	}
	return b.codes[b.n-1], true
}

// Len returns the number of queued codes.
func (b *Buffer) Len() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.n
}

// Overflow indicates codes were discarded since the last Flush.
func (b *Buffer) Overflow() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.overflow
}

// Flush empties the queue and clears the overflow flag.
func (b *Buffer) Flush() {
	b.lock.Lock()
	b.n, b.overflow = 0, false
	b.lock.Unlock()
}

// Drain pops all codes, most recent first, and clears the overflow flag.
// It also reports whether the queue had overflowed.
func (b *Buffer) Drain() (codes []byte, overflow bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	for i := b.n - 1; i >= 0; i-- {
		codes = append(codes, b.codes[i])
	}
	overflow = b.overflow
	b.n, b.overflow = 0, false
	return
}
