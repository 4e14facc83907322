package api

import (
	"context"
	"sync"

	"github.com/tphakala/hackrf-stream/internal/errors"
	"github.com/tphakala/hackrf-stream/internal/hackrf"
	"github.com/tphakala/hackrf-stream/internal/logger"
	"github.com/tphakala/hackrf-stream/internal/recorder"
	"github.com/tphakala/hackrf-stream/internal/securefs"
	"github.com/tphakala/hackrf-stream/internal/transfer"
)

// Bridge exposes a Session and a Recorder through driver status codes, the
// contract host applications were written against. Every failure is logged
// with its full error before being flattened to a code.
type Bridge struct {
	session  *transfer.Session
	recorder *recorder.Recorder
	sandbox  *securefs.Sandbox

	// base context for recordings, cancelled on shutdown
	ctx context.Context

	mu            sync.Mutex
	recordingPath string
	lastError     error
}

// BridgeOption configures a Bridge
type BridgeOption func(*Bridge)

// WithRecordingSandbox confines recording paths to the sandbox base directory.
// Relative paths are resolved against it.
func WithRecordingSandbox(sb *securefs.Sandbox) BridgeOption {
	return func(b *Bridge) { b.sandbox = sb }
}

// NewBridge creates a Bridge. Recordings started through it end when ctx is cancelled.
func NewBridge(ctx context.Context, session *transfer.Session, rec *recorder.Recorder, opts ...BridgeOption) *Bridge {
	b := &Bridge{session: session, recorder: rec, ctx: ctx}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Session returns the underlying session
func (b *Bridge) Session() *transfer.Session { return b.session }

// StatusCode maps any error produced by the session or the recorder to a driver status code
func StatusCode(err error) hackrf.Error {
	switch {
	case err == nil:
		return hackrf.Success
	case errors.Is(err, recorder.ErrNoDevice):
		return hackrf.ErrorNotFound
	case errors.Is(err, recorder.ErrAlreadyRecording):
		return hackrf.ErrorBusy
	case errors.Is(err, recorder.ErrUnknownFormat),
		errors.Is(err, securefs.ErrPathTraversal),
		errors.Is(err, securefs.ErrInvalidPath):
		return hackrf.ErrorInvalidParam
	default:
		return transfer.StatusCode(err)
	}
}

func (b *Bridge) status(operation string, err error) hackrf.Error {
	code := StatusCode(err)
	if err != nil {
		b.mu.Lock()
		b.lastError = err
		b.mu.Unlock()
		GetLogger().Warn("bridge call failed",
			logger.String("operation", operation),
			logger.String("status", code.Name()),
			logger.Error(err))
	}
	return code
}

// LastError returns the full error behind the most recent non-success code
func (b *Bridge) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastError
}

// Open opens the device behind fd
func (b *Bridge) Open(fd int) hackrf.Error { return b.status("open", b.session.Open(fd)) }

// Close stops any recording and closes the device
func (b *Bridge) Close() hackrf.Error {
	if err := b.recorder.Stop(); err != nil {
		GetLogger().Warn("recording ended with error", logger.Error(err))
	}
	return b.status("close", b.session.Close())
}

// IsOpen reports whether a device is open
func (b *Bridge) IsOpen() bool { return b.session.IsOpen() }

func (b *Bridge) StartRx() hackrf.Error { return b.status("start_rx", b.session.StartRx()) }
func (b *Bridge) StopRx() hackrf.Error  { return b.status("stop_rx", b.session.StopRx()) }
func (b *Bridge) StartTx() hackrf.Error { return b.status("start_tx", b.session.StartTx()) }
func (b *Bridge) StopTx() hackrf.Error  { return b.status("stop_tx", b.session.StopTx()) }

// StartRecording records the rx stream to path
func (b *Bridge) StartRecording(path string) hackrf.Error {
	if b.sandbox != nil {
		resolved, err := b.sandbox.Resolve(path)
		if err != nil {
			return b.status("start_recording", err)
		}
		path = resolved
	}
	_, err := b.recorder.Start(b.ctx, b.session, path)
	if err == nil {
		b.mu.Lock()
		b.recordingPath = path
		b.mu.Unlock()
	}
	return b.status("start_recording", err)
}

// StopRecording stops the current recording; a write failure that ended it is reported
func (b *Bridge) StopRecording() hackrf.Error {
	err := b.recorder.Stop()
	if err != nil {
		return b.status("stop_recording", err)
	}
	return hackrf.Success
}

// IsRecording reports whether a recording is running
func (b *Bridge) IsRecording() bool { return b.recorder.IsRecording() }

// RecordingStatus describes the most recent recording
type RecordingStatus struct {
	Recording    bool   `json:"recording"`
	ID           string `json:"id,omitempty"`
	Path         string `json:"path,omitempty"`
	BytesWritten uint64 `json:"bytes_written"`
	Error        string `json:"error,omitempty"`
}

// Recording returns the state of the most recent recording
func (b *Bridge) Recording() RecordingStatus {
	rec := b.recorder.Current()
	if rec == nil {
		return RecordingStatus{}
	}
	st := RecordingStatus{
		Recording:    rec.Running(),
		ID:           rec.ID(),
		Path:         rec.Path(),
		BytesWritten: rec.BytesWritten(),
	}
	if !st.Recording {
		if err := rec.Wait(); err != nil {
			st.Error = err.Error()
		}
	}
	return st
}

func (b *Bridge) SetFrequency(hz uint64) hackrf.Error {
	return b.status("set_frequency", b.session.SetFrequency(hz))
}

func (b *Bridge) SetSampleRate(hz uint32) hackrf.Error {
	return b.status("set_sample_rate", b.session.SetSampleRate(hz))
}

func (b *Bridge) SetLNAGain(gain uint32) hackrf.Error {
	return b.status("set_lna_gain", b.session.SetLNAGain(gain))
}

func (b *Bridge) SetVGAGain(gain uint32) hackrf.Error {
	return b.status("set_vga_gain", b.session.SetVGAGain(gain))
}

func (b *Bridge) SetTxVGAGain(gain uint32) hackrf.Error {
	return b.status("set_tx_vga_gain", b.session.SetTxVGAGain(gain))
}

func (b *Bridge) SetAmpEnable(enable bool) hackrf.Error {
	return b.status("set_amp_enable", b.session.SetAmpEnable(enable))
}

func (b *Bridge) SetAntennaEnable(enable bool) hackrf.Error {
	return b.status("set_antenna_enable", b.session.SetAntennaEnable(enable))
}

// Parameters returns the cached device parameters
func (b *Bridge) Parameters() transfer.Parameters { return b.session.Parameters() }

// Stats returns the session counters
func (b *Bridge) Stats() transfer.Stats { return b.session.Stats() }

// Append queues a copy of p on the stream for dir, waiting while it is full
func (b *Bridge) Append(ctx context.Context, dir transfer.Direction, p []byte) hackrf.Error {
	if err := b.session.Write(ctx, dir, p); err != nil {
		GetLogger().Warn("stream append failed",
			logger.String("stream", dir.String()),
			logger.Error(err))
		return hackrf.ErrorOther
	}
	return hackrf.Success
}

// HasData reports whether the stream for dir holds unread bytes
func (b *Bridge) HasData(dir transfer.Direction) bool {
	return b.session.Stream(dir).HasData()
}

// Next returns the unread bytes of the head buffer for dir without consuming them
func (b *Bridge) Next(dir transfer.Direction) []byte {
	return b.session.NextChunk(dir)
}

// Discard consumes up to n bytes from the stream for dir and returns the count consumed
func (b *Bridge) Discard(dir transfer.Direction, n int) int {
	return b.session.Stream(dir).Discard(n)
}

// Clear releases every queued buffer of the stream for dir
func (b *Bridge) Clear(dir transfer.Direction) {
	b.session.Stream(dir).Clean()
}

// StreamStatus describes one stream
type StreamStatus struct {
	Name     string `json:"name"`
	HasData  bool   `json:"has_data"`
	Buffers  int    `json:"buffers"`
	Capacity int    `json:"capacity"`
	Bytes    int    `json:"bytes"`
	NextSize uint32 `json:"next_size"`
	Dropped  uint64 `json:"dropped"`
}

// StreamStatus returns the state of the stream for dir
func (b *Bridge) StreamStatus(dir transfer.Direction) StreamStatus {
	s := b.session.Stream(dir)
	return StreamStatus{
		Name:     s.Name(),
		HasData:  s.HasData(),
		Buffers:  s.Len(),
		Capacity: s.Cap(),
		Bytes:    s.Buffered(),
		NextSize: s.NextBufferSize(),
		Dropped:  s.Dropped(),
	}
}

// Shutdown stops any recording and closes the device if open
func (b *Bridge) Shutdown() {
	if err := b.recorder.Stop(); err != nil {
		GetLogger().Warn("recording ended with error", logger.Error(err))
	}
	if b.session.IsOpen() {
		if err := b.session.Close(); err != nil {
			GetLogger().Error("failed to close device", logger.Error(err))
		}
	}
}
