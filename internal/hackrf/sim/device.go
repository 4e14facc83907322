package sim

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smallnest/ringbuffer"
	"golang.org/x/time/rate"

	"github.com/tphakala/hackrf-stream/internal/hackrf"
	"github.com/tphakala/hackrf-stream/internal/logger"
)

// loopbackPoll is how long the receiver idles when no transmitted bytes are pending
const loopbackPoll = time.Millisecond

// State is a snapshot of the simulated hardware registers
type State struct {
	Frequency     uint64
	SampleRate    uint32
	LNAGain       uint32
	VGAGain       uint32
	TxVGAGain     uint32
	AmpEnable     bool
	AntennaEnable bool
	Mode          hackrf.TransceiverMode
}

// Counters reports transfer activity since open
type Counters struct {
	RxTransfers uint64
	RxBytes     uint64
	TxTransfers uint64
	TxBytes     uint64
}

// Device is a simulated open HackRF
type Device struct {
	driver *Driver
	fd     int
	cfg    Config

	mu      sync.Mutex
	closed  bool
	state   State
	flushCb hackrf.FlushFunc
	blockCb hackrf.BlockCompleteFunc
	cancel  context.CancelFunc
	done    chan struct{}

	streaming atomic.Bool
	loopback  *ringbuffer.RingBuffer
	gen       *generator

	rxTransfers atomic.Uint64
	rxBytes     atomic.Uint64
	txTransfers atomic.Uint64
	txBytes     atomic.Uint64
}

var _ hackrf.Device = (*Device)(nil)

func newDevice(d *Driver, fd int) *Device {
	return &Device{
		driver: d,
		fd:     fd,
		cfg:    d.cfg,
		state: State{
			Frequency:  hackrf.DefaultFrequencyHz,
			SampleRate: hackrf.DefaultSampleRateHz,
		},
		loopback: ringbuffer.New(d.cfg.LoopbackSize),
		gen:      newGenerator(d.cfg),
	}
}

// State returns the current register snapshot
func (dev *Device) State() State {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.state
}

// Counters returns transfer counters
func (dev *Device) Counters() Counters {
	return Counters{
		RxTransfers: dev.rxTransfers.Load(),
		RxBytes:     dev.rxBytes.Load(),
		TxTransfers: dev.txTransfers.Load(),
		TxBytes:     dev.txBytes.Load(),
	}
}

// Close stops streaming and releases the device
func (dev *Device) Close() error {
	if err := dev.driver.fault(OpClose); err != nil {
		return err
	}
	dev.stopStreaming()

	dev.mu.Lock()
	dev.closed = true
	dev.flushCb, dev.blockCb = nil, nil
	dev.mu.Unlock()

	dev.loopback.Reset()
	dev.driver.detach(dev)
	GetLogger().Info("simulated device closed", logger.Int("fd", dev.fd))
	return nil
}

// IsStreaming reports whether a transfer goroutine is running
func (dev *Device) IsStreaming() bool {
	return dev.streaming.Load()
}

// StartRx starts delivering transfers to cb
func (dev *Device) StartRx(cb hackrf.SampleBlockFunc) error {
	if err := dev.driver.fault(OpStartRx); err != nil {
		return err
	}
	return dev.startStreaming(hackrf.ModeReceive, func(ctx context.Context, limiter *rate.Limiter) {
		dev.runRx(ctx, limiter, cb)
	}, cb)
}

// StopRx stops the receive goroutine and waits for it
func (dev *Device) StopRx() error {
	if err := dev.driver.fault(OpStopRx); err != nil {
		return err
	}
	dev.stopStreaming()
	return nil
}

// EnableTxFlush registers the flush callback, nil unregisters
func (dev *Device) EnableTxFlush(cb hackrf.FlushFunc) error {
	if err := dev.driver.fault(OpEnableTxFlush); err != nil {
		return err
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.closed {
		return hackrf.ErrorNotFound
	}
	dev.flushCb = cb
	return nil
}

// SetTxBlockCompleteCallback registers the per-transfer completion callback, nil unregisters
func (dev *Device) SetTxBlockCompleteCallback(cb hackrf.BlockCompleteFunc) error {
	if err := dev.driver.fault(OpSetTxBlockComplete); err != nil {
		return err
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.closed {
		return hackrf.ErrorNotFound
	}
	dev.blockCb = cb
	return nil
}

// StartTx starts requesting transfers from cb
func (dev *Device) StartTx(cb hackrf.SampleBlockFunc) error {
	if err := dev.driver.fault(OpStartTx); err != nil {
		return err
	}
	return dev.startStreaming(hackrf.ModeTransmit, func(ctx context.Context, limiter *rate.Limiter) {
		dev.runTx(ctx, limiter, cb)
	}, cb)
}

// StopTx stops the transmit goroutine and waits for it
func (dev *Device) StopTx() error {
	if err := dev.driver.fault(OpStopTx); err != nil {
		return err
	}
	dev.stopStreaming()
	return nil
}

func (dev *Device) startStreaming(mode hackrf.TransceiverMode, run func(context.Context, *rate.Limiter), cb hackrf.SampleBlockFunc) error {
	if cb == nil {
		return hackrf.ErrorInvalidParam
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	switch {
	case dev.closed:
		return hackrf.ErrorNotFound
	case dev.done != nil:
		select {
		case <-dev.done:
			// previous goroutine ended on its own
		default:
			return hackrf.ErrorBusy
		}
	}

	limit := rate.Inf
	if dev.cfg.Paced {
		limit = rate.Limit(2 * float64(dev.state.SampleRate))
	}
	limiter := rate.NewLimiter(limit, dev.cfg.TransferSize)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	dev.cancel, dev.done = cancel, done
	dev.state.Mode = mode
	dev.streaming.Store(true)

	go func() {
		defer close(done)
		defer dev.streaming.Store(false)
		run(ctx, limiter)
	}()

	GetLogger().Debug("transfer goroutine started",
		logger.String("mode", mode.String()),
		logger.Int("transfer_size", dev.cfg.TransferSize))
	return nil
}

// stopStreaming cancels the transfer goroutine and waits for it to exit.
// It must not be called from a transfer callback.
func (dev *Device) stopStreaming() {
	dev.mu.Lock()
	cancel, done := dev.cancel, dev.done
	dev.cancel, dev.done = nil, nil
	dev.state.Mode = hackrf.ModeOff
	dev.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (dev *Device) runRx(ctx context.Context, limiter *rate.Limiter, cb hackrf.SampleBlockFunc) {
	size := dev.cfg.TransferSize
	buf := make([]byte, size)

	for {
		if err := limiter.WaitN(ctx, size); err != nil {
			return
		}

		var n int
		if dev.cfg.Signal == SignalLoopback {
			n, _ = dev.loopback.Read(buf)
			if n == 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(loopbackPoll):
				}
				continue
			}
		} else {
			n = dev.gen.fill(buf, dev.State().SampleRate)
		}

		dev.rxTransfers.Add(1)
		dev.rxBytes.Add(uint64(n)) //nolint:gosec // n <= transfer size
		if cb(&hackrf.Transfer{Buffer: buf, BufferLength: size, ValidLength: n}) != 0 {
			GetLogger().Debug("rx callback requested stop")
			return
		}
	}
}

func (dev *Device) runTx(ctx context.Context, limiter *rate.Limiter, cb hackrf.SampleBlockFunc) {
	size := dev.cfg.TransferSize
	buf := make([]byte, size)

	for {
		if err := limiter.WaitN(ctx, size); err != nil {
			return
		}

		clear(buf)
		t := &hackrf.Transfer{Buffer: buf, BufferLength: size}
		if cb(t) != 0 {
			dev.mu.Lock()
			flush := dev.flushCb
			dev.mu.Unlock()
			if flush != nil {
				flush(1)
			}
			GetLogger().Debug("tx flushed",
				logger.Uint64("tx_bytes", dev.txBytes.Load()))
			return
		}

		valid := min(max(t.ValidLength, 0), size)
		dev.txTransfers.Add(1)
		dev.txBytes.Add(uint64(valid)) //nolint:gosec // bounded by transfer size
		dev.feedLoopback(buf[:valid])

		dev.mu.Lock()
		block := dev.blockCb
		dev.mu.Unlock()
		if block != nil {
			block(t, 1)
		}
	}
}

// feedLoopback keeps transmitted bytes for SignalLoopback; bytes beyond the free space are lost
func (dev *Device) feedLoopback(p []byte) {
	if len(p) == 0 {
		return
	}
	free := dev.loopback.Free()
	if free < len(p) {
		GetLogger().Warn("loopback ring full, transmitted bytes lost",
			logger.Int("lost", len(p)-free))
		p = p[:free]
	}
	if len(p) > 0 {
		_, _ = dev.loopback.Write(p)
	}
}

// SetFreq tunes the simulated front end
func (dev *Device) SetFreq(hz uint64) error {
	if err := dev.driver.fault(OpSetFreq); err != nil {
		return err
	}
	if !hackrf.FrequencyInRange(hz) {
		return hackrf.ErrorInvalidParam
	}
	return dev.update(func(s *State) { s.Frequency = hz })
}

// SetSampleRate sets the sample rate used for pacing and tone synthesis
func (dev *Device) SetSampleRate(hz uint32) error {
	if err := dev.driver.fault(OpSetSampleRate); err != nil {
		return err
	}
	if !hackrf.SampleRateInRange(hz) {
		return hackrf.ErrorInvalidParam
	}
	return dev.update(func(s *State) { s.SampleRate = hz })
}

// SetLNAGain sets the RX LNA gain; the firmware rounds down to the step
func (dev *Device) SetLNAGain(gain uint32) error {
	if err := dev.driver.fault(OpSetLNAGain); err != nil {
		return err
	}
	if gain > hackrf.LNAGainMax {
		return hackrf.ErrorInvalidParam
	}
	return dev.update(func(s *State) { s.LNAGain = gain - gain%hackrf.LNAGainStep })
}

// SetVGAGain sets the RX baseband gain
func (dev *Device) SetVGAGain(gain uint32) error {
	if err := dev.driver.fault(OpSetVGAGain); err != nil {
		return err
	}
	if gain > hackrf.VGAGainMax {
		return hackrf.ErrorInvalidParam
	}
	return dev.update(func(s *State) { s.VGAGain = gain - gain%hackrf.VGAGainStep })
}

// SetTxVGAGain sets the TX IF gain
func (dev *Device) SetTxVGAGain(gain uint32) error {
	if err := dev.driver.fault(OpSetTxVGAGain); err != nil {
		return err
	}
	if gain > hackrf.TxVGAGainMax {
		return hackrf.ErrorInvalidParam
	}
	return dev.update(func(s *State) { s.TxVGAGain = gain })
}

// SetAmpEnable switches the RF amplifier
func (dev *Device) SetAmpEnable(enable bool) error {
	if err := dev.driver.fault(OpSetAmpEnable); err != nil {
		return err
	}
	return dev.update(func(s *State) { s.AmpEnable = enable })
}

// SetAntennaEnable switches antenna port power
func (dev *Device) SetAntennaEnable(enable bool) error {
	if err := dev.driver.fault(OpSetAntennaEnable); err != nil {
		return err
	}
	return dev.update(func(s *State) { s.AntennaEnable = enable })
}

func (dev *Device) update(apply func(*State)) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.closed {
		return hackrf.ErrorNotFound
	}
	apply(&dev.state)
	return nil
}
