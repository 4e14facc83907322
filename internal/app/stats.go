package app

import (
	"context"
	"time"

	"github.com/tphakala/hackrf-stream/internal/logger"
	"github.com/tphakala/hackrf-stream/internal/observability"
)

// DefaultStatsInterval is how often LogStats reports
const DefaultStatsInterval = 5 * time.Second

// LogStats logs session and pool counters every interval until ctx ends.
// It always returns nil so it can run inside an errgroup.
func (s *Stack) LogStats(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultStatsInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := GetLogger()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		st := s.Session.Stats()
		pool := s.Pool.Stats()
		log.Info("stream stats",
			logger.String("mode", s.Session.Mode().String()),
			logger.Uint64("rx_transfers", st.RxTransfers),
			logger.Uint64("rx_bytes", st.RxBytes),
			logger.Uint64("rx_dropped", st.RxDropped),
			logger.Uint64("tx_transfers", st.TxTransfers),
			logger.Uint64("tx_bytes", st.TxBytes),
			logger.Int("rx_queued_bytes", st.RxQueued),
			logger.Int("tx_queued_bytes", st.TxQueued),
			logger.Uint64("pool_hits", pool.Hits),
			logger.Uint64("pool_misses", pool.Misses),
			logger.Int("pool_idle", pool.Idle))

		if rec := s.Recorder.Current(); rec != nil && rec.Running() {
			log.Info("recording progress",
				logger.String("path", rec.Path()),
				logger.Uint64("bytes_written", rec.BytesWritten()),
				logger.Duration("elapsed", time.Since(rec.StartedAt())))
		}
	}
}

// ServeMetrics runs the standalone metrics endpoint until ctx ends.
// It returns nil immediately when metrics are disabled.
func (s *Stack) ServeMetrics(ctx context.Context) error {
	if !s.Settings.Metrics.Enabled {
		return nil
	}
	endpoint, err := observability.NewEndpoint(&s.Settings.Metrics, s.Metrics)
	if err != nil {
		return err
	}
	return endpoint.Run(ctx)
}
