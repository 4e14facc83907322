package diagnostics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"github.com/tphakala/hackrf-stream/internal/logger"
)

// DefaultReportInterval bounds how often overflow snapshots are taken
const DefaultReportInterval = time.Minute

// OverflowReporter captures a snapshot when the RX stream starts dropping
// transfers. The hook it provides returns immediately; capture happens on a
// background goroutine.
type OverflowReporter struct {
	fs       afero.Fs
	dir      string
	diskPath string

	limiter *rate.Limiter
	log     logger.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	last   *Snapshot
}

// ReporterOption configures an OverflowReporter
type ReporterOption func(*OverflowReporter)

// WithDebugDir writes each snapshot to dir on fs in addition to logging it
func WithDebugDir(fs afero.Fs, dir string) ReporterOption {
	return func(r *OverflowReporter) {
		r.fs = fs
		r.dir = dir
	}
}

// WithDiskPath reports usage of the filesystem holding path
func WithDiskPath(path string) ReporterOption {
	return func(r *OverflowReporter) { r.diskPath = path }
}

// WithInterval sets the minimum time between snapshots
func WithInterval(interval time.Duration) ReporterOption {
	return func(r *OverflowReporter) { r.limiter = rate.NewLimiter(rate.Every(interval), 1) }
}

// NewOverflowReporter creates a reporter. Close must be called to stop pending captures.
func NewOverflowReporter(opts ...ReporterOption) *OverflowReporter {
	ctx, cancel := context.WithCancel(context.Background())
	r := &OverflowReporter{
		limiter: rate.NewLimiter(rate.Every(DefaultReportInterval), 1),
		log:     GetLogger(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Hook is suitable for transfer.WithOverflowHook
func (r *OverflowReporter) Hook(dropped uint64) {
	if !r.limiter.Allow() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx.Err() != nil {
		return
	}
	r.wg.Go(func() {
		r.capture(fmt.Sprintf("rx stream overflow, %d transfers dropped", dropped))
	})
}

func (r *OverflowReporter) capture(reason string) {
	snap := Capture(r.ctx, reason, r.diskPath)
	if r.ctx.Err() != nil {
		return
	}

	r.log.Warn("overflow diagnostics", snap.Fields()...)

	if r.fs != nil {
		path, err := WriteDebugFile(r.fs, r.dir, snap)
		if err != nil {
			r.log.Error("failed to write debug file", logger.Error(err))
		} else {
			r.log.Info("debug information written", logger.String("path", path))
		}
	}

	r.mu.Lock()
	r.last = snap
	r.mu.Unlock()
}

// Last returns the most recent snapshot, or nil
func (r *OverflowReporter) Last() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Wait blocks until in-flight captures finish
func (r *OverflowReporter) Wait() {
	r.wg.Wait()
}

// Close cancels in-flight captures and waits for them
func (r *OverflowReporter) Close() {
	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()
	r.wg.Wait()
}
