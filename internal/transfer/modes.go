package transfer

import (
	"sync"

	"github.com/tphakala/hackrf-stream/internal/errors"
	"github.com/tphakala/hackrf-stream/internal/logger"
)

// TxOption configures a transmission
type TxOption func(*txConfig)

type txConfig struct {
	onComplete func(ok bool)
}

// WithTxComplete registers fn to run once the transmission ends; ok is true when the
// driver flushed the last transfer and false when it was stopped.
func WithTxComplete(fn func(ok bool)) TxOption {
	return func(c *txConfig) { c.onComplete = fn }
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// StartRx starts receiving into the rx stream. Unset or out of range sample rate and
// frequency are replaced with the hardware defaults first.
func (s *Session) StartRx() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIdleLocked("start_rx"); err != nil {
		return err
	}
	if err := s.applyStreamDefaultsLocked(); err != nil {
		return err
	}

	s.overflowing.Store(false)
	s.window.reset()
	if err := s.device.StartRx(s.rxCallback); err != nil {
		s.reportHardware("start_rx", err)
		return hardwareError(err, "start_rx")
	}

	s.mode = ModeRx
	s.log.Info("rx started",
		logger.Uint64("frequency_hz", s.params.Frequency),
		logger.Int64("sample_rate_hz", int64(s.params.SampleRate)),
		logger.String("overflow_policy", string(s.policy)))
	return nil
}

// StopRx stops receiving. Queued samples stay in the rx stream.
func (s *Session) StopRx() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return stateError(ErrNoDevice, "stop_rx")
	}
	if s.mode != ModeRx {
		return nil
	}
	if err := s.device.StopRx(); err != nil {
		s.reportHardware("stop_rx", err)
		return hardwareError(err, "stop_rx")
	}

	s.mode = ModeOff
	s.log.Info("rx stopped",
		logger.Uint64("rx_bytes", s.rxBytes.Load()),
		logger.Uint64("rx_dropped", s.rxDropped.Load()))
	return nil
}

// StartTx registers the flush, block-complete and fill callbacks and starts
// transmitting from the tx stream. If any registration fails the ones already made are
// undone and the mode is unchanged.
func (s *Session) StartTx(opts ...TxOption) error {
	var cfg txConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIdleLocked("start_tx"); err != nil {
		return err
	}
	if err := s.applyStreamDefaultsLocked(); err != nil {
		return err
	}

	done := make(chan struct{})
	finish := newTxFinisher(done, cfg.onComplete)

	if err := s.device.EnableTxFlush(func(success int) { finish(success != 0) }); err != nil {
		s.reportHardware("enable_tx_flush", err)
		return hardwareError(err, "enable_tx_flush")
	}
	if err := s.device.SetTxBlockCompleteCallback(s.blockCompleteCallback); err != nil {
		s.reportHardware("set_tx_block_complete", err)
		return errors.Join(hardwareError(err, "set_tx_block_complete"), s.unregisterTxLocked(1))
	}
	if err := s.device.StartTx(s.txCallback); err != nil {
		s.reportHardware("start_tx", err)
		return errors.Join(hardwareError(err, "start_tx"), s.unregisterTxLocked(2))
	}

	s.txDone, s.txFinish = done, finish
	s.mode = ModeTx
	s.log.Info("tx started",
		logger.Uint64("frequency_hz", s.params.Frequency),
		logger.Int64("sample_rate_hz", int64(s.params.SampleRate)),
		logger.Int("queued_bytes", s.tx.Buffered()))
	return nil
}

// StopTx stops transmitting and completes the transmission as not flushed
func (s *Session) StopTx() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return stateError(ErrNoDevice, "stop_tx")
	}
	if s.mode != ModeTx {
		return nil
	}
	if err := s.device.StopTx(); err != nil {
		s.reportHardware("stop_tx", err)
		return hardwareError(err, "stop_tx")
	}
	if err := s.unregisterTxLocked(2); err != nil {
		s.log.Warn("unregister tx callbacks failed", logger.Error(err))
	}

	s.finishTxLocked(false)
	s.mode = ModeOff
	s.log.Info("tx stopped", logger.Uint64("tx_bytes", s.txBytes.Load()))
	return nil
}

// TxDone returns a channel closed when the current or last transmission ends.
// It is closed already when no transmission was started.
func (s *Session) TxDone() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txDone == nil {
		return closedChan
	}
	return s.txDone
}

func (s *Session) checkIdleLocked(operation string) error {
	if s.device == nil {
		return stateError(ErrNoDevice, operation)
	}
	if s.mode != ModeOff {
		return errors.New(ErrBusy).
			Component(componentTransfer).
			Category(errors.CategoryState).
			Context("operation", operation).
			Context("mode", s.mode.String()).
			Build()
	}
	return nil
}

// applyStreamDefaultsLocked replaces an unusable sample rate or frequency with defaults
func (s *Session) applyStreamDefaultsLocked() error {
	if !sampleRateValid(s.params.SampleRate) {
		s.log.Debug("using default sample rate", logger.Int64("was_hz", int64(s.params.SampleRate)))
		if err := s.setSampleRateLocked(defaultSampleRate); err != nil {
			return err
		}
	}
	if !frequencyValid(s.params.Frequency) {
		s.log.Debug("using default frequency", logger.Uint64("was_hz", s.params.Frequency))
		if err := s.setFrequencyLocked(defaultFrequency); err != nil {
			return err
		}
	}
	return nil
}

// unregisterTxLocked removes the first n TX registrations in reverse order
func (s *Session) unregisterTxLocked(n int) error {
	var errs []error
	if n >= 2 {
		if err := s.device.SetTxBlockCompleteCallback(nil); err != nil {
			errs = append(errs, hardwareError(err, "unregister_tx_block_complete"))
		}
	}
	if n >= 1 {
		if err := s.device.EnableTxFlush(nil); err != nil {
			errs = append(errs, hardwareError(err, "unregister_tx_flush"))
		}
	}
	return errors.Join(errs...)
}

func (s *Session) finishTxLocked(ok bool) {
	if s.txFinish != nil {
		s.txFinish(ok)
	}
}

// newTxFinisher returns a function that closes done and notifies onComplete once
func newTxFinisher(done chan struct{}, onComplete func(ok bool)) func(ok bool) {
	var once sync.Once
	return func(ok bool) {
		once.Do(func() {
			close(done)
			if onComplete != nil {
				onComplete(ok)
			}
		})
	}
}
