package transfer

import (
	"fmt"

	"github.com/tphakala/hackrf-stream/internal/hackrf"
	"github.com/tphakala/hackrf-stream/internal/logger"
)

const (
	defaultFrequency  = hackrf.DefaultFrequencyHz
	defaultSampleRate = hackrf.DefaultSampleRateHz
)

func frequencyValid(hz uint64) bool  { return hackrf.FrequencyInRange(hz) }
func sampleRateValid(hz uint32) bool { return hackrf.SampleRateInRange(hz) }

// SetFrequency tunes the device. The cached value changes only when the hardware accepts it.
func (s *Session) SetFrequency(hz uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return stateError(ErrNoDevice, "set_frequency")
	}
	return s.setFrequencyLocked(hz)
}

func (s *Session) setFrequencyLocked(hz uint64) error {
	if !frequencyValid(hz) {
		return invalidParameter("frequency", hz,
			fmt.Sprintf("[%d, %d] Hz", hackrf.FrequencyMinHz, hackrf.FrequencyMaxHz))
	}
	if err := s.device.SetFreq(hz); err != nil {
		s.reportHardware("set_freq", err)
		return hardwareError(err, "set_freq")
	}
	s.params.Frequency = hz
	return nil
}

// SetSampleRate sets the sample rate in Hz
func (s *Session) SetSampleRate(hz uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return stateError(ErrNoDevice, "set_sample_rate")
	}
	return s.setSampleRateLocked(hz)
}

func (s *Session) setSampleRateLocked(hz uint32) error {
	if !sampleRateValid(hz) {
		return invalidParameter("sample_rate", hz,
			fmt.Sprintf("[%d, %d] Hz", hackrf.SampleRateMinHz, hackrf.SampleRateMaxHz))
	}
	if err := s.device.SetSampleRate(hz); err != nil {
		s.reportHardware("set_sample_rate", err)
		return hardwareError(err, "set_sample_rate")
	}
	s.params.SampleRate = hz
	return nil
}

type gainSpec struct {
	name      string
	operation string
	max       uint32
	step      uint32
	apply     func(hackrf.Device, uint32) error
	commit    func(*Parameters, uint32)
}

var (
	lnaGain = gainSpec{
		name: "lna_gain", operation: "set_lna_gain",
		max: hackrf.LNAGainMax, step: hackrf.LNAGainStep,
		apply:  hackrf.Device.SetLNAGain,
		commit: func(p *Parameters, v uint32) { p.LNAGain = v },
	}
	vgaGain = gainSpec{
		name: "vga_gain", operation: "set_vga_gain",
		max: hackrf.VGAGainMax, step: hackrf.VGAGainStep,
		apply:  hackrf.Device.SetVGAGain,
		commit: func(p *Parameters, v uint32) { p.VGAGain = v },
	}
	txVGAGain = gainSpec{
		name: "txvga_gain", operation: "set_txvga_gain",
		max: hackrf.TxVGAGainMax, step: hackrf.TxVGAGainStep,
		apply:  hackrf.Device.SetTxVGAGain,
		commit: func(p *Parameters, v uint32) { p.TxVGAGain = v },
	}
)

// setGain rejects values above the maximum, warns on values off the step grid and
// proceeds, and commits the cached value only when the hardware succeeds.
func (s *Session) setGain(spec gainSpec, value uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return stateError(ErrNoDevice, spec.operation)
	}
	if value > spec.max {
		return invalidParameter(spec.name, value, fmt.Sprintf("[0, %d] dB", spec.max))
	}
	if spec.step > 1 && value%spec.step != 0 {
		s.log.Warn("gain is not a multiple of the hardware step",
			logger.String("parameter", spec.name),
			logger.Int64("value", int64(value)),
			logger.Int64("step", int64(spec.step)))
	}
	if err := spec.apply(s.device, value); err != nil {
		s.reportHardware(spec.operation, err)
		return hardwareError(err, spec.operation)
	}
	spec.commit(&s.params, value)
	return nil
}

// SetLNAGain sets the RX LNA gain, 0-40 dB in 8 dB steps
func (s *Session) SetLNAGain(gain uint32) error { return s.setGain(lnaGain, gain) }

// SetVGAGain sets the RX baseband gain, 0-62 dB in 2 dB steps
func (s *Session) SetVGAGain(gain uint32) error { return s.setGain(vgaGain, gain) }

// SetTxVGAGain sets the TX IF gain, 0-47 dB
func (s *Session) SetTxVGAGain(gain uint32) error { return s.setGain(txVGAGain, gain) }

// SetAmpEnable switches the RF amplifier
func (s *Session) SetAmpEnable(enable bool) error {
	return s.setSwitch("set_amp_enable", enable, hackrf.Device.SetAmpEnable,
		func(p *Parameters) { p.AmpEnable = enable })
}

// SetAntennaEnable switches antenna port power
func (s *Session) SetAntennaEnable(enable bool) error {
	return s.setSwitch("set_antenna_enable", enable, hackrf.Device.SetAntennaEnable,
		func(p *Parameters) { p.AntennaEnable = enable })
}

func (s *Session) setSwitch(operation string, enable bool, apply func(hackrf.Device, bool) error, commit func(*Parameters)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return stateError(ErrNoDevice, operation)
	}
	if err := apply(s.device, enable); err != nil {
		s.reportHardware(operation, err)
		return hardwareError(err, operation)
	}
	commit(&s.params)
	return nil
}

// Parameters returns a snapshot of the cached parameters
func (s *Session) Parameters() Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Frequency returns the cached frequency in Hz, 0 when unset
func (s *Session) Frequency() uint64 { return s.Parameters().Frequency }

// SampleRate returns the cached sample rate in Hz, 0 when unset
func (s *Session) SampleRate() uint32 { return s.Parameters().SampleRate }

func (s *Session) LNAGain() uint32     { return s.Parameters().LNAGain }
func (s *Session) VGAGain() uint32     { return s.Parameters().VGAGain }
func (s *Session) TxVGAGain() uint32   { return s.Parameters().TxVGAGain }
func (s *Session) AmpEnable() bool     { return s.Parameters().AmpEnable }
func (s *Session) AntennaEnable() bool { return s.Parameters().AntennaEnable }
