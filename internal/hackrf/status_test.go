package hackrf

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code    Error
		name    string
		message string
	}{
		{ErrorInvalidParam, "HACKRF_ERROR_INVALID_PARAM", "invalid parameter(s)"},
		{ErrorNotFound, "HACKRF_ERROR_NOT_FOUND", "HackRF not found"},
		{ErrorBusy, "HACKRF_ERROR_BUSY", "HackRF busy"},
		{ErrorStreamingExitCalled, "HACKRF_ERROR_STREAMING_EXIT_CALLED", "streaming terminated"},
		{ErrorOther, "HACKRF_ERROR_OTHER", "unspecified error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.name, tt.code.Name())
			assert.Equal(t, tt.message, tt.code.Error())
		})
	}

	assert.Equal(t, "HACKRF_ERROR_OTHER", Error(-42).Name())
	assert.Contains(t, Error(-42).Error(), "-42")
}

func TestStatusConversion(t *testing.T) {
	t.Parallel()

	require.NoError(t, Status(0))
	require.NoError(t, Status(1))

	err := Status(-6)
	require.Error(t, err)

	var code Error
	require.ErrorAs(t, fmt.Errorf("open: %w", err), &code)
	assert.Equal(t, ErrorBusy, code)
	assert.True(t, errors.Is(err, ErrorBusy))
	assert.Equal(t, -6, code.Code())
}

func TestBounds(t *testing.T) {
	t.Parallel()

	assert.False(t, FrequencyInRange(500_000))
	assert.True(t, FrequencyInRange(DefaultFrequencyHz))
	assert.False(t, FrequencyInRange(FrequencyMaxHz+1))
	assert.False(t, SampleRateInRange(0))
	assert.True(t, SampleRateInRange(DefaultSampleRateHz))
	assert.Equal(t, "rx_sweep", ModeRxSweep.String())
}
