package iqstream

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tphakala/hackrf-stream/internal/logger"
)

// DefaultCapacity is the buffer count used when a stream is created with capacity <= 0
const DefaultCapacity = 64

// StreamOption configures a Stream
type StreamOption func(*Stream)

// WithObserver attaches an activity observer
func WithObserver(o Observer) StreamOption {
	return func(s *Stream) {
		if o != nil {
			s.observer = o
		}
	}
}

// Stream is a bounded FIFO of buffers consumed byte by byte from the head.
type Stream struct {
	name     string
	capacity int
	pool     *Pool
	observer Observer

	mu       sync.Mutex
	queue    []*Buffer
	closed   bool
	notFull  chan struct{} // closed and replaced when a slot frees
	notEmpty chan struct{} // closed and replaced on every append

	dropped atomic.Uint64
}

// NewStream creates a stream holding at most capacity buffers. A nil pool selects Shared().
func NewStream(name string, capacity int, pool *Pool, opts ...StreamOption) *Stream {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if pool == nil {
		pool = Shared()
	}
	s := &Stream{
		name:     name,
		capacity: capacity,
		pool:     pool,
		observer: nopObserver{},
		queue:    make([]*Buffer, 0, capacity),
		notFull:  make(chan struct{}),
		notEmpty: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the stream name
func (s *Stream) Name() string { return s.name }

// Cap returns the maximum number of queued buffers
func (s *Stream) Cap() int { return s.capacity }

// Pool returns the pool buffers are released to
func (s *Stream) Pool() *Pool { return s.pool }

// Dropped returns how many buffers TryAppend rejected
func (s *Stream) Dropped() uint64 { return s.dropped.Load() }

// Len returns the number of queued buffers
func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Buffered returns the unread bytes across all queued buffers
func (s *Stream) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bufferedLocked()
}

func (s *Stream) bufferedLocked() int {
	total := 0
	for _, b := range s.queue {
		total += b.Remaining()
	}
	return total
}

// Append inserts b at the tail, waiting while the stream is full. Ownership of b
// passes to the stream on success and stays with the caller on error.
func (s *Stream) Append(ctx context.Context, b *Buffer) error {
	if b == nil {
		return nil
	}
	if !b.owner.CompareAndSwap(ownerHeld, ownerQueued) {
		return streamError(ErrBufferNotOwned, s.name, "append")
	}

	s.mu.Lock()
	for {
		if s.closed {
			s.mu.Unlock()
			b.owner.Store(ownerHeld)
			return streamError(ErrStreamClosed, s.name, "append")
		}
		if len(s.queue) < s.capacity {
			s.pushLocked(b)
			return nil
		}

		wait := s.notFull
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			b.owner.Store(ownerHeld)
			return waitError(ctx.Err(), s.name, "append")
		case <-wait:
		}
		s.mu.Lock()
	}
}

// TryAppend inserts b without waiting. When the stream is full or closed it
// returns false, counts a drop and leaves b with the caller.
func (s *Stream) TryAppend(b *Buffer) bool {
	if b == nil {
		return true
	}
	if !b.owner.CompareAndSwap(ownerHeld, ownerQueued) {
		GetLogger().Warn("append of buffer not held by caller",
			logger.String("stream", s.name))
		return false
	}

	s.mu.Lock()
	if s.closed || len(s.queue) >= s.capacity {
		s.mu.Unlock()
		b.owner.Store(ownerHeld)
		s.dropped.Add(1)
		s.observer.BufferDropped(s.name, b.Remaining())
		return false
	}
	s.pushLocked(b)
	return true
}

// pushLocked appends b, wakes waiters and unlocks
func (s *Stream) pushLocked(b *Buffer) {
	s.queue = append(s.queue, b)
	close(s.notEmpty)
	s.notEmpty = make(chan struct{})
	depth, bytes := len(s.queue), s.bufferedLocked()
	size := b.Remaining()
	s.mu.Unlock()

	s.observer.BufferAppended(s.name, size)
	s.observer.QueueDepth(s.name, depth, bytes)
}

// HasData reports whether any queued buffer has unread bytes
func (s *Stream) HasData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.queue {
		if b.HasRemaining() {
			return true
		}
	}
	return false
}

// Get copies unread bytes from the head forward into dst, up to dst.Remaining(),
// without consuming them. It returns the number of bytes copied.
func (s *Stream) Get(dst *Buffer) int {
	if dst == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := 0
	for _, b := range s.queue {
		if !dst.HasRemaining() {
			break
		}
		n := copy(dst.data[dst.position:dst.limit], b.Bytes())
		dst.position += n
		copied += n
	}
	return copied
}

// Discard consumes n bytes from the head. Fully consumed buffers are released to
// the pool. It stops when the queue empties and returns the bytes consumed.
func (s *Stream) Discard(n int) int {
	s.mu.Lock()
	consumed, popped := 0, 0
	for len(s.queue) > 0 {
		head := s.queue[0]
		rem := head.Remaining()
		if n < rem {
			head.position += max(n, 0)
			consumed += max(n, 0)
			break
		}
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.release(head)
		popped++
		consumed += rem
		n -= rem
	}
	if popped > 0 {
		s.signalNotFullLocked()
	}
	depth, bytes := len(s.queue), s.bufferedLocked()
	s.mu.Unlock()

	if consumed > 0 {
		s.observer.BytesDiscarded(s.name, consumed)
	}
	s.observer.QueueDepth(s.name, depth, bytes)
	return consumed
}

// First waits until a buffer is queued and returns the head without removing it.
// The buffer stays owned by the stream.
func (s *Stream) First(ctx context.Context) (*Buffer, error) {
	return s.peekWait(ctx, "first", func(q []*Buffer) *Buffer { return q[0] })
}

// Last waits until a buffer is queued and returns the tail without removing it.
func (s *Stream) Last(ctx context.Context) (*Buffer, error) {
	return s.peekWait(ctx, "last", func(q []*Buffer) *Buffer { return q[len(q)-1] })
}

func (s *Stream) peekWait(ctx context.Context, operation string, pick func([]*Buffer) *Buffer) (*Buffer, error) {
	s.mu.Lock()
	for {
		if len(s.queue) > 0 {
			b := pick(s.queue)
			s.mu.Unlock()
			return b, nil
		}
		if s.closed {
			s.mu.Unlock()
			return nil, streamError(ErrStreamClosed, s.name, operation)
		}

		wait := s.notEmpty
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, waitError(ctx.Err(), s.name, operation)
		case <-wait:
		}
		s.mu.Lock()
	}
}

// Appended returns a channel closed on the next append or on Close
func (s *Stream) Appended() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notEmpty
}

// NextBufferSize returns the unread bytes of the head buffer, or 0 when empty
func (s *Stream) NextBufferSize() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return 0
	}
	return uint32(s.queue[0].Remaining()) //nolint:gosec // bounded by buffer capacity
}

// Clean releases every queued buffer and empties the stream
func (s *Stream) Clean() {
	s.mu.Lock()
	released := len(s.queue)
	for i, b := range s.queue {
		s.release(b)
		s.queue[i] = nil
	}
	s.queue = s.queue[:0]
	if released > 0 {
		s.signalNotFullLocked()
	}
	s.mu.Unlock()

	if released > 0 {
		GetLogger().Debug("stream cleaned",
			logger.String("stream", s.name),
			logger.Int("buffers", released))
	}
	s.observer.QueueDepth(s.name, 0, 0)
}

// Close wakes every waiter with ErrStreamClosed. Queued buffers stay readable
// until Clean; further appends fail.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	// both channels stay closed so late waiters return immediately
	close(s.notFull)
	close(s.notEmpty)
}

// Closed reports whether Close was called
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Stream) signalNotFullLocked() {
	if s.closed {
		return
	}
	close(s.notFull)
	s.notFull = make(chan struct{})
}

func (s *Stream) release(b *Buffer) {
	if b.pool != nil {
		b.pool.Release(b)
		return
	}
	s.pool.Release(b)
}
