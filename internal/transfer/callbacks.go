package transfer

import (
	"context"
	"time"

	"github.com/tphakala/hackrf-stream/internal/hackrf"
	"github.com/tphakala/hackrf-stream/internal/logger"
)

// rateLogInterval is how often the RX callback logs its call rate
const rateLogInterval = time.Second

type rateWindow struct {
	start time.Time
	calls uint64
	bytes uint64
}

func (w *rateWindow) reset() {
	*w = rateWindow{start: time.Now()}
}

// rxCallback runs on the driver goroutine for every received transfer. It never
// blocks longer than the append timeout.
func (s *Session) rxCallback(t *hackrf.Transfer) int {
	n := min(max(t.ValidLength, 0), len(t.Buffer))

	buf := s.pool.Acquire(n)
	_, _ = buf.Write(t.Buffer[:n]) // sized to fit
	buf.Flip()

	s.rxTransfers.Add(1)
	s.rxBytes.Add(uint64(n)) //nolint:gosec // n is non-negative

	var queued bool
	if s.policy == OverflowBlock {
		ctx, cancel := context.WithTimeout(context.Background(), s.appendTimeout)
		queued = s.rx.Append(ctx, buf) == nil
		cancel()
	} else {
		queued = s.rx.TryAppend(buf)
	}

	if queued {
		s.overflowing.Store(false)
		s.observer.TransferCompleted("rx", n)
	} else {
		s.pool.Release(buf)
		s.rxOverflow(n)
	}

	s.logRxRate(n)
	return 0
}

func (s *Session) rxOverflow(n int) {
	dropped := s.rxDropped.Add(1)
	s.observer.Overflow("rx", n)

	if s.overflowing.CompareAndSwap(false, true) {
		s.log.Warn("rx stream full, dropping transfers",
			logger.Int("stream_capacity", s.rx.Cap()),
			logger.Uint64("dropped_total", dropped),
			logger.String("overflow_policy", string(s.policy)))
		if s.overflowHook != nil {
			s.overflowHook(dropped)
		}
	}
}

func (s *Session) logRxRate(n int) {
	s.window.calls++
	s.window.bytes += uint64(n) //nolint:gosec // n is non-negative

	elapsed := time.Since(s.window.start)
	if elapsed < rateLogInterval {
		return
	}
	secs := elapsed.Seconds()
	s.log.Debug("rx callback rate",
		logger.Float64("calls_per_second", float64(s.window.calls)/secs),
		logger.Float64("bytes_per_second", float64(s.window.bytes)/secs),
		logger.Int("queued_buffers", s.rx.Len()))
	s.window.reset()
}

// txCallback runs on the driver goroutine whenever the hardware wants samples. An
// empty tx stream ends the transmission; the callback never waits for data.
func (s *Session) txCallback(t *hackrf.Transfer) int {
	if !s.tx.HasData() {
		return 1
	}

	buf := s.pool.Acquire(min(t.BufferLength, len(t.Buffer)))
	defer s.pool.Release(buf)

	s.tx.Get(buf)
	buf.Flip()
	supplied := buf.Remaining()
	s.tx.Discard(supplied)

	t.ValidLength = copy(t.Buffer, buf.Bytes())

	s.txTransfers.Add(1)
	s.txBytes.Add(uint64(supplied)) //nolint:gosec // non-negative
	s.observer.TransferCompleted("tx", supplied)
	return 0
}

func (s *Session) blockCompleteCallback(_ *hackrf.Transfer, success int) {
	s.txBlocks.Add(1)
	if success == 0 {
		s.log.Warn("tx block not completed")
	}
}
