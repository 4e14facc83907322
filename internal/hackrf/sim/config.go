// Package sim is a software HackRF. It implements hackrf.Driver with transfer goroutines
// paced at the configured sample rate, a synthetic RX signal and a TX to RX loopback.
package sim

import "github.com/tphakala/hackrf-stream/internal/hackrf"

// Signal selects what the simulated receiver produces
type Signal string

const (
	SignalTone     Signal = "tone"     // complex exponential at ToneOffsetHz
	SignalNoise    Signal = "noise"    // gaussian IQ noise
	SignalLoopback Signal = "loopback" // bytes previously transmitted
)

// ParseSignal validates a signal name
func ParseSignal(name string) (Signal, bool) {
	switch s := Signal(name); s {
	case SignalTone, SignalNoise, SignalLoopback:
		return s, true
	default:
		return "", false
	}
}

// Config configures a simulated device
type Config struct {
	Signal       Signal
	ToneOffsetHz float64
	Amplitude    float64 // 0..1 of full scale
	TransferSize int     // bytes per transfer
	Paced        bool    // limit throughput to 2 bytes per sample at the sample rate
	LoopbackSize int     // bytes kept for SignalLoopback
}

// DefaultConfig returns a paced tone source with hardware sized transfers
func DefaultConfig() Config {
	return Config{
		Signal:       SignalTone,
		ToneOffsetHz: 250_000,
		Amplitude:    0.5,
		TransferSize: hackrf.TransferBufferSize,
		Paced:        true,
		LoopbackSize: 4 * hackrf.TransferBufferSize,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Signal == "" {
		c.Signal = def.Signal
	}
	if c.TransferSize <= 0 {
		c.TransferSize = def.TransferSize
	}
	if c.LoopbackSize <= 0 {
		c.LoopbackSize = max(def.LoopbackSize, c.TransferSize)
	}
	c.Amplitude = min(max(c.Amplitude, 0), 1)
	return c
}
