// Package transfer binds an open HackRF to the RX and TX sample streams.
//
// A Session owns the device handle, the active mode and the cached operating
// parameters. The driver's transfer goroutine calls into the session: the RX callback
// copies every transfer into the rx stream without blocking (or with a bounded wait
// under OverflowBlock), and the TX callback pulls from the tx stream and ends the
// transmission when the stream runs dry.
package transfer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/hackrf-stream/internal/errors"
	"github.com/tphakala/hackrf-stream/internal/hackrf"
	"github.com/tphakala/hackrf-stream/internal/iqstream"
	"github.com/tphakala/hackrf-stream/internal/logger"
)

// State is the connection state of a session
type State int

const (
	StateClosed State = iota
	StateOpen
)

func (s State) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// Mode is the streaming mode of an open session
type Mode int

const (
	ModeOff Mode = iota
	ModeRx
	ModeTx
)

func (m Mode) String() string {
	switch m {
	case ModeRx:
		return "rx"
	case ModeTx:
		return "tx"
	default:
		return "off"
	}
}

// Direction selects one of the session streams
type Direction int

const (
	DirectionRx Direction = iota
	DirectionTx
)

func (d Direction) String() string {
	if d == DirectionTx {
		return "tx"
	}
	return "rx"
}

// ParseDirection accepts "rx" or "tx"
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "rx":
		return DirectionRx, true
	case "tx":
		return DirectionTx, true
	default:
		return DirectionRx, false
	}
}

// OverflowPolicy decides what the RX callback does when the rx stream is full
type OverflowPolicy string

const (
	// OverflowDrop discards the transfer and counts it
	OverflowDrop OverflowPolicy = "drop"
	// OverflowBlock waits up to the append timeout, then drops
	OverflowBlock OverflowPolicy = "block"
)

// DefaultAppendTimeout bounds the RX wait under OverflowBlock
const DefaultAppendTimeout = 500 * time.Millisecond

// Observer receives transfer activity from the callback goroutine. Implementations must not block.
type Observer interface {
	TransferCompleted(direction string, bytes int)
	Overflow(direction string, bytes int)
	HardwareError(operation, status string)
}

type nopObserver struct{}

func (nopObserver) TransferCompleted(string, int) {}
func (nopObserver) Overflow(string, int)          {}
func (nopObserver) HardwareError(string, string)  {}

// Option configures a Session
type Option func(*Session)

// WithPool sets the buffer pool shared by both streams
func WithPool(p *iqstream.Pool) Option {
	return func(s *Session) {
		if p != nil {
			s.pool = p
		}
	}
}

// WithStreamCapacity sets the buffer count of both streams
func WithStreamCapacity(n int) Option {
	return func(s *Session) { s.capacity = n }
}

// WithOverflowPolicy selects the RX backpressure policy
func WithOverflowPolicy(p OverflowPolicy) Option {
	return func(s *Session) {
		if p == OverflowBlock || p == OverflowDrop {
			s.policy = p
		}
	}
}

// WithAppendTimeout bounds the RX wait under OverflowBlock
func WithAppendTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.appendTimeout = d
		}
	}
}

// WithStreamObserver attaches an observer to both streams
func WithStreamObserver(o iqstream.Observer) Option {
	return func(s *Session) { s.streamObserver = o }
}

// WithObserver attaches a transfer observer
func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithOverflowHook registers fn, called from the RX callback when the rx stream
// starts overflowing. It is not called again until an append succeeds.
func WithOverflowHook(fn func(dropped uint64)) Option {
	return func(s *Session) { s.overflowHook = fn }
}

// Parameters is a snapshot of the cached operating parameters
type Parameters struct {
	Frequency     uint64 `json:"frequency_hz"`
	SampleRate    uint32 `json:"sample_rate_hz"`
	LNAGain       uint32 `json:"lna_gain_db"`
	VGAGain       uint32 `json:"vga_gain_db"`
	TxVGAGain     uint32 `json:"txvga_gain_db"`
	AmpEnable     bool   `json:"amp_enable"`
	AntennaEnable bool   `json:"antenna_enable"`
}

// Stats reports callback activity since the session was created
type Stats struct {
	RxTransfers uint64 `json:"rx_transfers"`
	RxBytes     uint64 `json:"rx_bytes"`
	RxDropped   uint64 `json:"rx_dropped"`
	TxTransfers uint64 `json:"tx_transfers"`
	TxBytes     uint64 `json:"tx_bytes"`
	TxBlocks    uint64 `json:"tx_blocks"`
	RxQueued    int    `json:"rx_queued_bytes"`
	TxQueued    int    `json:"tx_queued_bytes"`
}

// Session is one device connection with its streams and parameters
type Session struct {
	id     string
	driver hackrf.Driver
	log    logger.Logger

	pool           *iqstream.Pool
	capacity       int
	policy         OverflowPolicy
	appendTimeout  time.Duration
	streamObserver iqstream.Observer
	observer       Observer
	overflowHook   func(dropped uint64)

	rx *iqstream.Stream
	tx *iqstream.Stream

	mu       sync.Mutex
	device   hackrf.Device
	mode     Mode
	params   Parameters
	txDone   chan struct{}
	txFinish func(ok bool)

	rxTransfers atomic.Uint64
	rxBytes     atomic.Uint64
	rxDropped   atomic.Uint64
	txTransfers atomic.Uint64
	txBytes     atomic.Uint64
	txBlocks    atomic.Uint64
	overflowing atomic.Bool

	// touched only by the RX callback goroutine
	window rateWindow
}

// NewSession creates a closed session over driver
func NewSession(driver hackrf.Driver, opts ...Option) *Session {
	s := &Session{
		id:            uuid.NewString(),
		driver:        driver,
		pool:          iqstream.Shared(),
		capacity:      iqstream.DefaultCapacity,
		policy:        OverflowDrop,
		appendTimeout: DefaultAppendTimeout,
		observer:      nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}

	var streamOpts []iqstream.StreamOption
	if s.streamObserver != nil {
		streamOpts = append(streamOpts, iqstream.WithObserver(s.streamObserver))
	}
	s.rx = iqstream.NewStream(DirectionRx.String(), s.capacity, s.pool, streamOpts...)
	s.tx = iqstream.NewStream(DirectionTx.String(), s.capacity, s.pool, streamOpts...)
	s.log = GetLogger().With(logger.String("session", s.id))
	return s
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// Pool returns the buffer pool behind both streams
func (s *Session) Pool() *iqstream.Pool { return s.pool }

// RxStream returns the stream fed by the RX callback
func (s *Session) RxStream() *iqstream.Stream { return s.rx }

// TxStream returns the stream drained by the TX callback
func (s *Session) TxStream() *iqstream.Stream { return s.tx }

// Stream returns the stream for dir
func (s *Session) Stream(dir Direction) *iqstream.Stream {
	if dir == DirectionTx {
		return s.tx
	}
	return s.rx
}

// OverflowPolicy returns the configured RX backpressure policy
func (s *Session) OverflowPolicy() OverflowPolicy { return s.policy }

// IsOpen reports whether a device is open
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device != nil
}

// State returns the connection state
func (s *Session) State() State {
	if s.IsOpen() {
		return StateOpen
	}
	return StateClosed
}

// Mode returns the active streaming mode
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Open initialises the driver and opens the device behind fd
func (s *Session) Open(fd int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device != nil {
		return stateError(ErrAlreadyOpen, "open")
	}

	if err := s.driver.Init(); err != nil {
		s.reportHardware("init", err)
		return hardwareError(err, "init")
	}

	dev, err := s.driver.Open(fd)
	if err != nil {
		s.reportHardware("open", err)
		if exitErr := s.driver.Exit(); exitErr != nil {
			s.log.Warn("driver exit after failed open", logger.Error(exitErr))
		}
		return hardwareError(err, "open")
	}

	s.device = dev
	s.mode = ModeOff
	s.params = Parameters{}
	s.log.Info("device opened", logger.Int("fd", fd))
	return nil
}

// Close stops any active mode, discards queued samples and closes the device.
// When the device refuses to close the session keeps it and Close may be retried.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return stateError(ErrNoDevice, "close")
	}

	switch s.mode {
	case ModeRx:
		if err := s.device.StopRx(); err != nil {
			s.log.Warn("stop rx during close failed", logger.Error(err))
		}
	case ModeTx:
		if err := s.device.StopTx(); err != nil {
			s.log.Warn("stop tx during close failed", logger.Error(err))
		}
		s.finishTxLocked(false)
	}
	s.mode = ModeOff

	s.rx.Clean()
	s.tx.Clean()

	// the device stays attached on failure so Close can be retried
	if err := s.device.Close(); err != nil {
		s.reportHardware("close", err)
		s.log.Warn("device close failed, device kept open", logger.Error(err))
		return hardwareError(err, "close")
	}
	s.device = nil

	if exitErr := s.driver.Exit(); exitErr != nil {
		s.log.Warn("driver exit failed", logger.Error(exitErr))
	}

	s.log.Info("device closed", logger.Uint64("rx_dropped", s.rxDropped.Load()))
	return nil
}

// Stats returns callback counters and queued byte counts
func (s *Session) Stats() Stats {
	return Stats{
		RxTransfers: s.rxTransfers.Load(),
		RxBytes:     s.rxBytes.Load(),
		RxDropped:   s.rxDropped.Load(),
		TxTransfers: s.txTransfers.Load(),
		TxBytes:     s.txBytes.Load(),
		TxBlocks:    s.txBlocks.Load(),
		RxQueued:    s.rx.Buffered(),
		TxQueued:    s.tx.Buffered(),
	}
}

func (s *Session) reportHardware(operation string, err error) {
	var code hackrf.Error
	status := hackrf.ErrorOther.Name()
	if errors.As(err, &code) {
		status = code.Name()
	}
	s.observer.HardwareError(operation, status)
	s.log.Error("hardware call failed",
		logger.String("operation", operation),
		logger.String("status", status),
		logger.Error(err))
}
