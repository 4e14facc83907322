package iqstream

import (
	"io"
	"sync/atomic"
)

// owner states of a Buffer
const (
	ownerIdle uint32 = iota
	ownerHeld
	ownerQueued
)

// Buffer is a fixed-capacity byte container with position and limit cursors.
// Invariant: 0 <= position <= limit <= capacity.
type Buffer struct {
	data     []byte
	position int
	limit    int
	pool     *Pool
	owner    atomic.Uint32
}

// newBuffer allocates a buffer in cleared write mode
func newBuffer(size int, pool *Pool) *Buffer {
	return &Buffer{
		data:  make([]byte, size),
		limit: size,
		pool:  pool,
	}
}

// Capacity returns the fixed size of the underlying storage
func (b *Buffer) Capacity() int { return len(b.data) }

// Position returns the next read or write offset
func (b *Buffer) Position() int { return b.position }

// Limit returns the end of valid data
func (b *Buffer) Limit() int { return b.limit }

// Remaining returns limit - position
func (b *Buffer) Remaining() int { return b.limit - b.position }

// HasRemaining reports whether Remaining is positive
func (b *Buffer) HasRemaining() bool { return b.position < b.limit }

// SetPosition moves the cursor within [0, limit]
func (b *Buffer) SetPosition(position int) error {
	if position < 0 || position > b.limit {
		return ErrInvalidCursor
	}
	b.position = position
	return nil
}

// SetLimit moves the limit within [0, capacity]; position is pulled back if needed
func (b *Buffer) SetLimit(limit int) error {
	if limit < 0 || limit > len(b.data) {
		return ErrInvalidCursor
	}
	b.limit = limit
	b.position = min(b.position, limit)
	return nil
}

// Flip prepares for reading what was just written
func (b *Buffer) Flip() {
	b.limit = b.position
	b.position = 0
}

// Clear prepares for writing
func (b *Buffer) Clear() {
	b.position = 0
	b.limit = len(b.data)
}

// Write appends p at position. Nothing is written if p does not fit before limit.
func (b *Buffer) Write(p []byte) (int, error) {
	if len(p) > b.Remaining() {
		return 0, ErrCapacityExceeded
	}
	n := copy(b.data[b.position:b.limit], p)
	b.position += n
	return n, nil
}

// Read copies up to len(p) bytes from position and advances it
func (b *Buffer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if !b.HasRemaining() {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.position:b.limit])
	b.position += n
	return n, nil
}

// Bytes returns the readable window data[position:limit] without advancing.
// The slice aliases the buffer and is valid only while the caller owns or reads it.
func (b *Buffer) Bytes() []byte {
	return b.data[b.position:b.limit]
}

// Reuse returns the buffer to the pool it was acquired from
func (b *Buffer) Reuse() {
	if b.pool != nil {
		b.pool.Release(b)
		return
	}
	b.reset()
}

// reset clears cursors and contents
func (b *Buffer) reset() {
	clear(b.data)
	b.Clear()
}

var (
	_ io.Reader = (*Buffer)(nil)
	_ io.Writer = (*Buffer)(nil)
)
