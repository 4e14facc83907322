package app

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/hackrf-stream/internal/conf"
	"github.com/tphakala/hackrf-stream/internal/errors"
	"github.com/tphakala/hackrf-stream/internal/hackrf"
	"github.com/tphakala/hackrf-stream/internal/transfer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testSettings() *conf.Settings {
	return &conf.Settings{
		Device: conf.DeviceSettings{
			Driver:         "sim",
			FileDescriptor: 3,
			Frequency:      433_920_000,
			SampleRate:     2_000_000,
			LNAGain:        16,
			VGAGain:        20,
			AmpEnable:      true,
		},
		Stream: conf.StreamSettings{
			Capacity:      8,
			Overflow:      "drop",
			AppendTimeout: 100 * time.Millisecond,
		},
		Recording: conf.RecordingSettings{
			Path:          "/captures/out.iq",
			Format:        "raw",
			DrainInterval: 10 * time.Millisecond,
			Backoff:       time.Millisecond,
		},
		Simulator: conf.SimulatorSettings{
			Signal:       "noise",
			Amplitude:    0.5,
			TransferSize: 1024,
			Paced:        false,
		},
	}
}

func TestNew_OpenAppliesSettings(t *testing.T) {
	t.Parallel()

	st, err := New(t.Context(), testSettings(), afero.NewMemMapFs())
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.OpenDevice())
	p := st.Session.Parameters()
	assert.Equal(t, uint64(433_920_000), p.Frequency)
	assert.Equal(t, uint32(2_000_000), p.SampleRate)
	assert.Equal(t, uint32(16), p.LNAGain)
	assert.True(t, p.AmpEnable)
	assert.Equal(t, 8, st.Session.RxStream().Cap())
}

func TestOpenDevice_InvalidSettingClosesDevice(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	settings.Device.VGAGain = 100

	st, err := New(t.Context(), settings, afero.NewMemMapFs())
	require.NoError(t, err)
	defer st.Close()

	err = st.OpenDevice()
	require.Error(t, err)
	assert.Equal(t, hackrf.ErrorInvalidParam, transfer.StatusCode(err))
	assert.False(t, st.Session.IsOpen())
}

func TestNew_RejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	settings.Device.Driver = "usb"
	_, err := New(t.Context(), settings, afero.NewMemMapFs())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	settings = testSettings()
	settings.Simulator.Signal = "chirp"
	_, err = New(t.Context(), settings, afero.NewMemMapFs())
	require.Error(t, err)
}

func TestStack_RecordsRx(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	st, err := New(t.Context(), testSettings(), fs)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.OpenDevice())
	require.NoError(t, st.Session.StartRx())
	rec, err := st.Recorder.Start(t.Context(), st.Session, st.Settings.Recording.Path)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rec.BytesWritten() >= 4096 },
		5*time.Second, 5*time.Millisecond)

	require.NoError(t, st.Recorder.Stop())
	require.NoError(t, st.Session.StopRx())

	info, err := fs.Stat("/captures/out.iq")
	require.NoError(t, err)
	assert.Equal(t, int64(rec.BytesWritten()), info.Size())
}

func TestLogStats_StopsOnCancel(t *testing.T) {
	t.Parallel()

	st, err := New(t.Context(), testSettings(), afero.NewMemMapFs())
	require.NoError(t, err)
	defer st.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, st.LogStats(ctx, 10*time.Millisecond))
}

func TestServeMetrics_DisabledReturnsImmediately(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	settings.Metrics.Enabled = false
	st, err := New(t.Context(), settings, afero.NewMemMapFs())
	require.NoError(t, err)
	defer st.Close()

	assert.NoError(t, st.ServeMetrics(t.Context()))
}

func TestNew_RecordingDirConfinesBridge(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	settings := testSettings()
	settings.API.RecordingDir = "/srv/api-captures"

	st, err := New(t.Context(), settings, fs)
	require.NoError(t, err)
	defer st.Close()

	exists, err := afero.DirExists(fs, "/srv/api-captures")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, st.OpenDevice())
	require.Equal(t, hackrf.Success, st.Bridge.StartRx())
	assert.Equal(t, hackrf.ErrorInvalidParam, st.Bridge.StartRecording("/captures/out.iq"))
	require.Equal(t, hackrf.Success, st.Bridge.StartRecording("out.iq"))
	assert.Equal(t, "/srv/api-captures/out.iq", st.Bridge.Recording().Path)
}
