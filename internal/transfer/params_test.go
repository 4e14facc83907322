package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/hackrf-stream/internal/errors"
	"github.com/tphakala/hackrf-stream/internal/hackrf"
	"github.com/tphakala/hackrf-stream/internal/hackrf/sim"
)

func TestSession_SetFrequencyBelowRange(t *testing.T) {
	t.Parallel()

	s, _ := openSession(t, sim.SignalTone)
	require.NoError(t, s.SetFrequency(100_000_000))

	err := s.SetFrequency(500_000)
	require.ErrorIs(t, err, ErrInvalidParameter)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Equal(t, hackrf.ErrorInvalidParam, StatusCode(err))
	assert.Equal(t, uint64(100_000_000), s.Frequency(), "cached frequency unchanged")
}

func TestSession_ParameterBounds(t *testing.T) {
	t.Parallel()

	s, _ := openSession(t, sim.SignalTone)

	tests := []struct {
		name    string
		set     func() error
		wantErr bool
	}{
		{"frequency min", func() error { return s.SetFrequency(hackrf.FrequencyMinHz) }, false},
		{"frequency max", func() error { return s.SetFrequency(hackrf.FrequencyMaxHz) }, false},
		{"frequency above", func() error { return s.SetFrequency(hackrf.FrequencyMaxHz + 1) }, true},
		{"sample rate min", func() error { return s.SetSampleRate(hackrf.SampleRateMinHz) }, false},
		{"sample rate below", func() error { return s.SetSampleRate(hackrf.SampleRateMinHz - 1) }, true},
		{"sample rate above", func() error { return s.SetSampleRate(hackrf.SampleRateMaxHz + 1) }, true},
		{"lna max", func() error { return s.SetLNAGain(40) }, false},
		{"lna above", func() error { return s.SetLNAGain(41) }, true},
		{"vga max", func() error { return s.SetVGAGain(62) }, false},
		{"vga above", func() error { return s.SetVGAGain(64) }, true},
		{"txvga max", func() error { return s.SetTxVGAGain(47) }, false},
		{"txvga above", func() error { return s.SetTxVGAGain(48) }, true},
	}

	// subtests share one session, so they run sequentially
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.set()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSession_GainOffStepProceeds(t *testing.T) {
	t.Parallel()

	s, drv := openSession(t, sim.SignalTone)

	require.NoError(t, s.SetLNAGain(20))
	assert.Equal(t, uint32(20), s.LNAGain())
	assert.Equal(t, uint32(16), drv.Device().State().LNAGain, "hardware rounds down")

	require.NoError(t, s.SetVGAGain(21))
	assert.Equal(t, uint32(21), s.VGAGain())
}

func TestSession_HardwareFailureKeepsCache(t *testing.T) {
	t.Parallel()

	s, drv := openSession(t, sim.SignalTone)
	require.NoError(t, s.SetVGAGain(20))
	require.NoError(t, s.SetSampleRate(4_000_000))
	require.NoError(t, s.SetAmpEnable(false))

	drv.FailNext(sim.OpSetVGAGain, hackrf.ErrorOther)
	err := s.SetVGAGain(30)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryHardware))
	assert.Equal(t, uint32(20), s.VGAGain())

	drv.FailNext(sim.OpSetSampleRate, hackrf.ErrorLibUSB)
	require.ErrorIs(t, s.SetSampleRate(8_000_000), hackrf.ErrorLibUSB)
	assert.Equal(t, uint32(4_000_000), s.SampleRate())

	drv.FailNext(sim.OpSetAmpEnable, hackrf.ErrorLibUSB)
	require.Error(t, s.SetAmpEnable(true))
	assert.False(t, s.AmpEnable())
}

func TestSession_StartRxDefaultFailurePropagates(t *testing.T) {
	t.Parallel()

	s, drv := openSession(t, sim.SignalTone)
	drv.FailNext(sim.OpSetSampleRate, hackrf.ErrorLibUSB)

	err := s.StartRx()
	require.ErrorIs(t, err, hackrf.ErrorLibUSB)
	assert.Equal(t, ModeOff, s.Mode())
	assert.Zero(t, s.SampleRate())
}

func TestSession_ParametersSnapshot(t *testing.T) {
	t.Parallel()

	s, _ := openSession(t, sim.SignalTone)
	require.NoError(t, s.SetFrequency(2_400_000_000))
	require.NoError(t, s.SetSampleRate(20_000_000))
	require.NoError(t, s.SetTxVGAGain(12))
	require.NoError(t, s.SetAntennaEnable(true))

	assert.Equal(t, Parameters{
		Frequency:     2_400_000_000,
		SampleRate:    20_000_000,
		TxVGAGain:     12,
		AntennaEnable: true,
	}, s.Parameters())
}
