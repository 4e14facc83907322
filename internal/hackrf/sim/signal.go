package sim

import (
	"math"
	"math/rand/v2"
)

const fullScale = 127.0

// generator produces interleaved signed 8-bit IQ samples
type generator struct {
	signal    Signal
	amplitude float64
	offsetHz  float64
	phase     float64
	rng       *rand.Rand
}

func newGenerator(cfg Config) *generator {
	return &generator{
		signal:    cfg.Signal,
		amplitude: cfg.Amplitude,
		offsetHz:  cfg.ToneOffsetHz,
		rng:       rand.New(rand.NewPCG(0x6861636b, 0x7266)), //nolint:gosec // synthetic signal
	}
}

// fill writes whole IQ pairs into buf at sampleRate and returns the bytes written
func (g *generator) fill(buf []byte, sampleRate uint32) int {
	n := len(buf) &^ 1
	scale := g.amplitude * fullScale

	switch g.signal {
	case SignalNoise:
		for i := 0; i < n; i++ {
			buf[i] = clampInt8(g.rng.NormFloat64() * scale / 3)
		}
	default:
		step := 2 * math.Pi * g.offsetHz / float64(max(sampleRate, 1))
		for i := 0; i < n; i += 2 {
			buf[i] = clampInt8(scale * math.Cos(g.phase))
			buf[i+1] = clampInt8(scale * math.Sin(g.phase))
			g.phase = math.Mod(g.phase+step, 2*math.Pi)
		}
	}
	return n
}

func clampInt8(v float64) byte {
	v = math.Round(min(max(v, -128), 127))
	return byte(int8(v))
}
