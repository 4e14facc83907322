package iqstream

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/hackrf-stream/internal/errors"
	"github.com/tphakala/hackrf-stream/internal/testutil"
)

// filled acquires a buffer holding data in read mode
func filled(t *testing.T, pool *Pool, data []byte) *Buffer {
	t.Helper()
	b := pool.Acquire(len(data))
	_, err := b.Write(data)
	require.NoError(t, err)
	b.Flip()
	return b
}

func pattern(n int, seed byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = seed + byte(i)
	}
	return out
}

func TestStream_DiscardAcrossBuffers(t *testing.T) {
	t.Parallel()

	pool := NewPool()
	s := NewStream("rx", 8, pool)
	ctx := t.Context()

	require.NoError(t, s.Append(ctx, filled(t, pool, pattern(100, 0))))
	second := pattern(50, 100)
	require.NoError(t, s.Append(ctx, filled(t, pool, second)))
	require.NoError(t, s.Append(ctx, filled(t, pool, pattern(200, 150))))

	assert.Equal(t, 120, s.Discard(120))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 230, s.Buffered())
	assert.Equal(t, uint32(30), s.NextBufferSize())

	head, err := s.First(ctx)
	require.NoError(t, err)
	assert.Equal(t, second[20:], head.Bytes())

	assert.Equal(t, 1, pool.Stats().Idle, "fully consumed buffer went back to the pool")
}

func TestStream_RoundTrip(t *testing.T) {
	t.Parallel()

	pool := NewPool()
	s := NewStream("tx", 16, pool)
	ctx := t.Context()

	var want []byte
	for i, size := range []int{7, 1, 300, 64, 33} {
		chunk := pattern(size, byte(i*17))
		want = append(want, chunk...)
		require.NoError(t, s.Append(ctx, filled(t, pool, chunk)))
	}

	var got []byte
	for s.HasData() {
		dst := pool.Acquire(50)
		s.Get(dst)
		dst.Flip()
		n := s.Discard(dst.Remaining())
		assert.Equal(t, dst.Remaining(), n)
		got = append(got, dst.Bytes()...)
		pool.Release(dst)
	}

	assert.Equal(t, want, got)
	assert.Zero(t, s.Len())
}

func TestStream_GetIsPeek(t *testing.T) {
	t.Parallel()

	pool := NewPool()
	s := NewStream("rx", 4, pool)
	require.NoError(t, s.Append(t.Context(), filled(t, pool, []byte("abc"))))
	require.NoError(t, s.Append(t.Context(), filled(t, pool, []byte("def"))))

	dst := pool.Acquire(4)
	assert.Equal(t, 4, s.Get(dst))
	dst.Flip()
	assert.Equal(t, []byte("abcd"), dst.Bytes())
	assert.Equal(t, 6, s.Buffered(), "get does not consume")

	big := pool.Acquire(10)
	assert.Equal(t, 6, s.Get(big), "stops when the queue is exhausted")
}

func TestStream_DiscardMoreThanQueued(t *testing.T) {
	t.Parallel()

	pool := NewPool()
	s := NewStream("rx", 4, pool)
	require.NoError(t, s.Append(t.Context(), filled(t, pool, pattern(10, 0))))
	require.NoError(t, s.Append(t.Context(), filled(t, pool, pattern(5, 0))))

	assert.Equal(t, 15, s.Discard(1000))
	assert.Zero(t, s.Len())
	assert.False(t, s.HasData())
	assert.Zero(t, s.Discard(10))
	assert.Zero(t, s.NextBufferSize())
}

func TestStream_HasData(t *testing.T) {
	t.Parallel()

	pool := NewPool()
	s := NewStream("rx", 4, pool)
	assert.False(t, s.HasData())

	b := filled(t, pool, pattern(4, 0))
	require.NoError(t, s.Append(t.Context(), b))
	assert.True(t, s.HasData())

	// exhaust the head in place, the buffer stays queued
	require.NoError(t, b.SetPosition(b.Limit()))
	assert.Equal(t, 1, s.Len())
	assert.False(t, s.HasData())

	// discard(0) pops an exhausted head
	assert.Zero(t, s.Discard(0))
	assert.Zero(t, s.Len())
}

func TestStream_NilAppendIsNoop(t *testing.T) {
	t.Parallel()

	s := NewStream("rx", 1, NewPool())
	require.NoError(t, s.Append(t.Context(), nil))
	assert.True(t, s.TryAppend(nil))
	assert.Zero(t, s.Len())
}

func TestStream_DefaultCapacity(t *testing.T) {
	t.Parallel()

	s := NewStream("rx", 0, nil)
	assert.Equal(t, DefaultCapacity, s.Cap())
	assert.Same(t, Shared(), s.Pool())
}

func TestStream_AppendBlocksWhenFull(t *testing.T) {
	t.Parallel()

	pool := NewPool()
	s := NewStream("tx", 2, pool)
	ctx := t.Context()
	require.NoError(t, s.Append(ctx, filled(t, pool, pattern(4, 0))))
	require.NoError(t, s.Append(ctx, filled(t, pool, pattern(4, 4))))

	third := filled(t, pool, pattern(4, 8))
	var appended atomic.Bool
	done := make(chan error, 1)
	go func() {
		err := s.Append(ctx, third)
		appended.Store(true)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	assert.False(t, appended.Load(), "append beyond capacity must wait")
	assert.Equal(t, 2, s.Len())

	s.Discard(4)
	require.NoError(t, testutil.ReceiveWithin(t, done, testutil.DefaultTestTimeout, "append not released by discard"))
	assert.Equal(t, 2, s.Len())
}

func TestStream_AppendHonoursContext(t *testing.T) {
	t.Parallel()

	pool := NewPool()
	s := NewStream("tx", 1, pool)
	require.NoError(t, s.Append(t.Context(), filled(t, pool, pattern(4, 0))))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	b := filled(t, pool, pattern(4, 0))
	err := s.Append(ctx, b)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, errors.IsCategory(err, errors.CategoryTimeout))

	// caller still owns the buffer and may queue it elsewhere
	other := NewStream("other", 1, pool)
	require.NoError(t, other.Append(t.Context(), b))
}

func TestStream_TryAppendDropsWhenFull(t *testing.T) {
	t.Parallel()

	pool := NewPool()
	s := NewStream("rx", 1, pool)
	assert.True(t, s.TryAppend(filled(t, pool, pattern(8, 0))))

	extra := filled(t, pool, pattern(8, 0))
	assert.False(t, s.TryAppend(extra))
	assert.Equal(t, uint64(1), s.Dropped())
	assert.Equal(t, 1, s.Len())

	pool.Release(extra)
	assert.Zero(t, pool.Stats().DoubleReleases)
}

func TestStream_OwnershipViolations(t *testing.T) {
	t.Parallel()

	pool := NewPool()
	s := NewStream("rx", 4, pool)
	b := filled(t, pool, pattern(8, 0))
	require.NoError(t, s.Append(t.Context(), b))

	err := s.Append(t.Context(), b)
	require.ErrorIs(t, err, ErrBufferNotOwned)
	assert.True(t, errors.IsCategory(err, errors.CategoryStream))
	assert.False(t, s.TryAppend(b))
	assert.Equal(t, 1, s.Len())

	idle := pool.Acquire(8)
	pool.Release(idle)
	require.ErrorIs(t, s.Append(t.Context(), idle), ErrBufferNotOwned)
}

func TestStream_FirstAndLastWait(t *testing.T) {
	t.Parallel()

	pool := NewPool()
	s := NewStream("rx", 4, pool)

	got := make(chan *Buffer, 1)
	go func() {
		b, err := s.First(t.Context())
		if err == nil {
			got <- b
		}
		close(got)
	}()

	a := filled(t, pool, []byte("a"))
	require.NoError(t, s.Append(t.Context(), a))
	select {
	case b := <-got:
		assert.Same(t, a, b)
	case <-time.After(2 * time.Second):
		t.Fatal("First did not wake on append")
	}

	z := filled(t, pool, []byte("z"))
	require.NoError(t, s.Append(t.Context(), z))
	last, err := s.Last(t.Context())
	require.NoError(t, err)
	assert.Same(t, z, last)
	first, err := s.First(t.Context())
	require.NoError(t, err)
	assert.Same(t, a, first)
}

func TestStream_FirstHonoursContext(t *testing.T) {
	t.Parallel()

	s := NewStream("rx", 4, NewPool())
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := s.First(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
}

func TestStream_CloseWakesWaiters(t *testing.T) {
	t.Parallel()

	pool := NewPool()
	s := NewStream("rx", 1, pool)
	require.NoError(t, s.Append(t.Context(), filled(t, pool, pattern(1, 0))))

	empty := NewStream("empty", 1, pool)

	blocked := filled(t, pool, pattern(1, 0))
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Go(func() { errs <- s.Append(context.Background(), blocked) })
	wg.Go(func() {
		_, err := empty.First(context.Background())
		errs <- err
	})

	time.Sleep(20 * time.Millisecond)
	s.Close()
	empty.Close()
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.ErrorIs(t, err, ErrStreamClosed)
	}
	assert.False(t, s.TryAppend(filled(t, pool, pattern(1, 0))))

	select {
	case <-empty.Appended():
	default:
		t.Fatal("Appended must be closed after Close")
	}
}

func TestStream_Clean(t *testing.T) {
	t.Parallel()

	pool := NewPool()
	s := NewStream("rx", 4, pool)
	for range 3 {
		require.NoError(t, s.Append(t.Context(), filled(t, pool, pattern(16, 0))))
	}

	s.Clean()
	assert.Zero(t, s.Len())
	assert.False(t, s.HasData())
	assert.Equal(t, 3, pool.Stats().Idle)
}

func TestStream_AppendedSignals(t *testing.T) {
	t.Parallel()

	pool := NewPool()
	s := NewStream("rx", 4, pool)
	ch := s.Appended()

	select {
	case <-ch:
		t.Fatal("no append yet")
	default:
	}

	require.NoError(t, s.Append(t.Context(), filled(t, pool, pattern(2, 0))))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("Appended not signalled")
	}
}

func TestStream_ConcurrentProducerConsumer(t *testing.T) {
	t.Parallel()

	pool := NewPool()
	s := NewStream("rx", 4, pool)
	ctx := t.Context()

	var want bytes.Buffer
	chunks := make([][]byte, 200)
	for i := range chunks {
		chunks[i] = pattern(1+i%37, byte(i))
		want.Write(chunks[i])
	}

	var wg sync.WaitGroup
	wg.Go(func() {
		for _, c := range chunks {
			b := pool.Acquire(len(c))
			_, _ = b.Write(c)
			b.Flip()
			if err := s.Append(ctx, b); err != nil {
				return
			}
		}
	})

	var got bytes.Buffer
	deadline := time.After(5 * time.Second)
	for got.Len() < want.Len() {
		select {
		case <-deadline:
			t.Fatal("consumer starved")
		default:
		}
		if !s.HasData() {
			time.Sleep(time.Millisecond)
			continue
		}
		dst := pool.Acquire(64)
		s.Get(dst)
		dst.Flip()
		s.Discard(dst.Remaining())
		got.Write(dst.Bytes())
		pool.Release(dst)
	}
	wg.Wait()

	assert.Equal(t, want.Bytes(), got.Bytes())
}

type recordingObserver struct {
	mu        sync.Mutex
	appended  int
	dropped   int
	discarded int
	depth     int
}

func (o *recordingObserver) BufferAppended(_ string, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.appended += n
}

func (o *recordingObserver) BufferDropped(_ string, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dropped += n
}

func (o *recordingObserver) BytesDiscarded(_ string, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.discarded += n
}

func (o *recordingObserver) QueueDepth(_ string, buffers, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.depth = buffers
}

func TestStream_Observer(t *testing.T) {
	t.Parallel()

	pool := NewPool()
	obs := &recordingObserver{}
	s := NewStream("rx", 1, pool, WithObserver(obs))

	assert.True(t, s.TryAppend(filled(t, pool, pattern(10, 0))))
	assert.False(t, s.TryAppend(filled(t, pool, pattern(7, 0))))
	s.Discard(4)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, 10, obs.appended)
	assert.Equal(t, 7, obs.dropped)
	assert.Equal(t, 4, obs.discarded)
	assert.Equal(t, 1, obs.depth)
}
