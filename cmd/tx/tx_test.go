package tx

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/hackrf-stream/internal/conf"
	"github.com/tphakala/hackrf-stream/internal/hackrf"
)

func testSettings() *conf.Settings {
	return &conf.Settings{
		Device: conf.DeviceSettings{
			Driver:     "sim",
			Frequency:  433_920_000,
			SampleRate: 2_000_000,
			TxVGAGain:  10,
		},
		Stream: conf.StreamSettings{
			Capacity:      8,
			Overflow:      "drop",
			AppendTimeout: 100 * time.Millisecond,
		},
		Recording: conf.RecordingSettings{Format: "raw"},
		Simulator: conf.SimulatorSettings{
			Signal:       "loopback",
			TransferSize: 16384,
			Paced:        false,
		},
	}
}

func writeInput(t *testing.T, fs afero.Fs, size int) string {
	t.Helper()
	data := bytes.Repeat([]byte{0x7f, 0x81}, size/2)
	require.NoError(t, afero.WriteFile(fs, "/input.iq", data, 0o644))
	return "/input.iq"
}

func TestRun_TransmitsWholeFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	size := 2*hackrf.TransferBufferSize + 1000
	input := writeInput(t, fs, size)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	stats, err := Run(ctx, testSettings(), fs, Options{Input: input})
	require.NoError(t, err)
	assert.Equal(t, uint64(size), stats.TxBytes)
	assert.Positive(t, stats.TxTransfers)
	assert.Zero(t, stats.TxQueued)
}

func TestRun_RepeatRunsUntilCancelled(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	input := writeInput(t, fs, 4096)

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()

	stats, err := Run(ctx, testSettings(), fs, Options{Input: input, Repeat: true})
	require.NoError(t, err)
	assert.Greater(t, stats.TxBytes, uint64(4096))
}

func TestRun_EmptyInput(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/empty.iq", nil, 0o644))

	_, err := Run(t.Context(), testSettings(), fs, Options{Input: "/empty.iq"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestRun_MissingInput(t *testing.T) {
	t.Parallel()

	_, err := Run(t.Context(), testSettings(), afero.NewMemMapFs(), Options{Input: "/nope.iq"})
	require.Error(t, err)
}
