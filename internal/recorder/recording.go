package recorder

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/hackrf-stream/internal/errors"
	"github.com/tphakala/hackrf-stream/internal/iqstream"
	"github.com/tphakala/hackrf-stream/internal/logger"
)

// Recording is a handle to one running or finished recording
type Recording struct {
	id        string
	path      string
	startedAt time.Time

	rec    *Recorder
	stream *iqstream.Stream
	out    sink
	log    logger.Logger

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	err      error // set before done is closed

	written atomic.Uint64
	running atomic.Bool
}

func newRecording(r *Recorder, stream *iqstream.Stream, out sink, path string) *Recording {
	id := uuid.NewString()
	rec := &Recording{
		id:        id,
		path:      path,
		startedAt: time.Now(),
		rec:       r,
		stream:    stream,
		out:       out,
		log:       r.log.With(logger.String("recording", id)),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	rec.running.Store(true)
	return rec
}

// ID returns the recording identifier
func (rec *Recording) ID() string { return rec.id }

// Path returns the sink path
func (rec *Recording) Path() string { return rec.path }

// StartedAt returns when the recording was started
func (rec *Recording) StartedAt() time.Time { return rec.startedAt }

// BytesWritten returns the bytes accepted by the sink so far
func (rec *Recording) BytesWritten() uint64 { return rec.written.Load() }

// Running reports whether the consumer goroutine is still active
func (rec *Recording) Running() bool { return rec.running.Load() }

// Done returns a channel closed when the recording has ended and the sink is closed
func (rec *Recording) Done() <-chan struct{} { return rec.done }

// Stop asks the consumer goroutine to exit. It does not wait.
func (rec *Recording) Stop() {
	rec.stopOnce.Do(func() { close(rec.stop) })
}

// Wait blocks until the recording has ended and returns its error, nil after Stop
// or context cancellation.
func (rec *Recording) Wait() error {
	<-rec.done
	return rec.err
}

func (rec *Recording) stopped() bool {
	select {
	case <-rec.stop:
		return true
	default:
		return false
	}
}

func (rec *Recording) run(ctx context.Context) {
	defer close(rec.done)
	defer rec.running.Store(false)

	err := rec.loop(ctx)
	if closeErr := rec.out.Close(); closeErr != nil {
		err = errors.Join(err, recordingError(closeErr, errors.CategoryFileIO, rec.path, "close"))
	}
	rec.err = err

	if err != nil {
		rec.rec.observer.RecordingFailed("write")
		rec.log.Error("recording failed",
			logger.Uint64("bytes_written", rec.written.Load()),
			logger.Error(err))
	} else {
		rec.log.Info("recording stopped",
			logger.Uint64("bytes_written", rec.written.Load()),
			logger.Duration("duration", time.Since(rec.startedAt)))
	}
	rec.rec.observer.RecordingStopped()
}

func (rec *Recording) loop(ctx context.Context) error {
	ticker := time.NewTicker(rec.rec.drainInterval)
	defer ticker.Stop()

	backoff := time.NewTimer(0)
	<-backoff.C
	defer backoff.Stop()

	for {
		if rec.stopped() || ctx.Err() != nil {
			return nil
		}

		appended := rec.stream.Appended()
		if !rec.stream.HasData() {
			select {
			case <-rec.stop:
				return nil
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			case <-appended:
				if rec.stream.HasData() {
					continue
				}
			}

			backoff.Reset(rec.rec.backoff)
			select {
			case <-rec.stop:
				return nil
			case <-ctx.Done():
				return nil
			case <-backoff.C:
			}
			continue
		}

		if err := rec.drain(ctx); err != nil {
			return err
		}
	}
}

// drain writes every readable buffer, committing only what the sink accepted
func (rec *Recording) drain(ctx context.Context) error {
	for rec.stream.HasData() {
		if rec.stopped() {
			return nil
		}

		head, err := rec.stream.First(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		data := head.Bytes()
		n, err := rec.out.Write(data)
		if n > 0 || len(data) == 0 {
			rec.stream.Discard(n)
			rec.written.Add(uint64(n)) //nolint:gosec // n is non-negative
			rec.rec.observer.BytesWritten(n)
		}
		if errors.Is(err, ErrSizeLimit) {
			return recordingError(err, errors.CategoryLimit, rec.path, "write")
		}
		if err != nil {
			return recordingError(err, errors.CategoryRecording, rec.path, "write")
		}
		if n < len(data) {
			return recordingError(io.ErrShortWrite, errors.CategoryRecording, rec.path, "write")
		}
	}
	return nil
}
