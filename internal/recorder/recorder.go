// Package recorder drains the RX stream of an open session to a file.
//
// Each Recording runs one consumer goroutine. It peeks the head buffer of the stream,
// writes the readable bytes to the sink and discards only what the sink accepted. When
// the stream is empty the goroutine waits for the next append or the periodic drain
// tick, then pauses for a short backoff so bursts are written in batches.
package recorder

import (
	"context"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/tphakala/hackrf-stream/internal/errors"
	"github.com/tphakala/hackrf-stream/internal/iqstream"
	"github.com/tphakala/hackrf-stream/internal/logger"
)

// Defaults for the drain loop
const (
	DefaultDrainInterval = time.Second
	DefaultBackoff       = 5 * time.Millisecond
)

// Source is what a recording consumes: an open session's RX stream
type Source interface {
	IsOpen() bool
	RxStream() *iqstream.Stream
}

// SampleRater is implemented by sources that know their sample rate; the WAV sink uses it
type SampleRater interface {
	SampleRate() uint32
}

// Observer receives recording activity
type Observer interface {
	RecordingStarted(format string)
	BytesWritten(n int)
	RecordingFailed(operation string)
	RecordingStopped()
}

type nopObserver struct{}

func (nopObserver) RecordingStarted(string) {}
func (nopObserver) BytesWritten(int)        {}
func (nopObserver) RecordingFailed(string)  {}
func (nopObserver) RecordingStopped()       {}

// Option configures a Recorder
type Option func(*Recorder)

// WithDrainInterval sets the periodic wake-up of an idle recording
func WithDrainInterval(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.drainInterval = d
		}
	}
}

// WithBackoff sets the pause after a wake-up before draining
func WithBackoff(d time.Duration) Option {
	return func(r *Recorder) {
		if d >= 0 {
			r.backoff = d
		}
	}
}

// WithFormat selects the sink format
func WithFormat(f Format) Option {
	return func(r *Recorder) { r.format = f }
}

// WithObserver attaches a recording observer
func WithObserver(o Observer) Option {
	return func(r *Recorder) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithLogger replaces the module logger
func WithLogger(l logger.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.log = l
		}
	}
}

// Recorder starts recordings on a filesystem, at most one at a time
type Recorder struct {
	fs            afero.Fs
	drainInterval time.Duration
	backoff       time.Duration
	format        Format
	observer      Observer
	log           logger.Logger

	mu      sync.Mutex
	current *Recording
}

// New creates a recorder writing to fs
func New(fs afero.Fs, opts ...Option) *Recorder {
	r := &Recorder{
		fs:            fs,
		drainInterval: DefaultDrainInterval,
		backoff:       DefaultBackoff,
		format:        FormatRaw,
		observer:      nopObserver{},
		log:           GetLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start opens the sink at path and spawns the consumer goroutine. Sink failures are
// returned here; later write failures end the recording and are reported by Wait.
func (r *Recorder) Start(ctx context.Context, src Source, path string) (*Recording, error) {
	if src == nil || !src.IsOpen() {
		return nil, recordingError(ErrNoDevice, errors.CategoryNotFound, path, "start")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil && r.current.Running() {
		return nil, errors.New(ErrAlreadyRecording).
			Component(componentRecorder).
			Category(errors.CategoryConflict).
			Context("path", path).
			Context("active_path", r.current.Path()).
			Build()
	}

	var sampleRate func() uint32
	if sr, ok := src.(SampleRater); ok {
		sampleRate = sr.SampleRate
	}

	out, err := openSink(r.fs, path, r.format, sampleRate)
	if err != nil {
		r.observer.RecordingFailed("open")
		return nil, recordingError(err, errors.CategoryFileIO, path, "open")
	}

	rec := newRecording(r, src.RxStream(), out, path)
	r.current = rec
	r.observer.RecordingStarted(string(r.format))
	r.log.Info("recording started",
		logger.String("recording", rec.ID()),
		logger.String("path", path),
		logger.String("format", string(r.format)))

	go rec.run(ctx)
	return rec, nil
}

// Stop stops the current recording and waits for it. It returns the recording's error.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	rec := r.current
	r.mu.Unlock()

	if rec == nil {
		return nil
	}
	rec.Stop()
	return rec.Wait()
}

// Current returns the most recent recording, running or not
func (r *Recorder) Current() *Recording {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// IsRecording reports whether a recording is running
func (r *Recorder) IsRecording() bool {
	rec := r.Current()
	return rec != nil && rec.Running()
}
