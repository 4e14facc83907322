// Package app assembles the streaming subsystem from settings: the driver,
// the session with its streams, the recorder, metrics and diagnostics.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/tphakala/hackrf-stream/internal/api"
	"github.com/tphakala/hackrf-stream/internal/conf"
	"github.com/tphakala/hackrf-stream/internal/diagnostics"
	"github.com/tphakala/hackrf-stream/internal/errors"
	"github.com/tphakala/hackrf-stream/internal/hackrf"
	"github.com/tphakala/hackrf-stream/internal/hackrf/sim"
	"github.com/tphakala/hackrf-stream/internal/iqstream"
	"github.com/tphakala/hackrf-stream/internal/logger"
	"github.com/tphakala/hackrf-stream/internal/observability"
	"github.com/tphakala/hackrf-stream/internal/recorder"
	"github.com/tphakala/hackrf-stream/internal/securefs"
	"github.com/tphakala/hackrf-stream/internal/transfer"
)

// GetLogger returns the app module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("app")
}

// Stack holds every long-lived component of one process.
type Stack struct {
	Settings    *conf.Settings
	Driver      hackrf.Driver
	Pool        *iqstream.Pool
	Metrics     *observability.Metrics
	Session     *transfer.Session
	Recorder    *recorder.Recorder
	Diagnostics *diagnostics.OverflowReporter
	Bridge      *api.Bridge
}

// New builds a Stack. Recordings are written to fs and end when ctx is cancelled.
func New(ctx context.Context, settings *conf.Settings, fs afero.Fs) (*Stack, error) {
	driver, err := newDriver(settings)
	if err != nil {
		return nil, err
	}

	pool := iqstream.NewPool(iqstream.WithMaxIdlePerSize(settings.Stream.MaxIdlePerSize))

	m, err := observability.NewMetrics(pool)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	format, err := recorder.ParseFormat(settings.Recording.Format)
	if err != nil {
		return nil, err
	}

	reporter := diagnostics.NewOverflowReporter(
		diagnostics.WithDiskPath(recordingDir(settings.Recording.Path)))

	session := transfer.NewSession(driver,
		transfer.WithPool(pool),
		transfer.WithStreamCapacity(settings.Stream.Capacity),
		transfer.WithOverflowPolicy(transfer.OverflowPolicy(settings.Stream.Overflow)),
		transfer.WithAppendTimeout(settings.Stream.AppendTimeout),
		transfer.WithStreamObserver(m.Stream),
		transfer.WithObserver(m.Transfer),
		transfer.WithOverflowHook(reporter.Hook),
	)

	rec := recorder.New(fs,
		recorder.WithFormat(format),
		recorder.WithDrainInterval(settings.Recording.DrainInterval),
		recorder.WithBackoff(settings.Recording.Backoff),
		recorder.WithObserver(m.Recorder),
	)

	var bridgeOpts []api.BridgeOption
	if dir := settings.API.RecordingDir; dir != "" {
		sandbox, err := securefs.New(fs, dir)
		if err != nil {
			return nil, err
		}
		bridgeOpts = append(bridgeOpts, api.WithRecordingSandbox(sandbox))
	}

	return &Stack{
		Settings:    settings,
		Driver:      driver,
		Pool:        pool,
		Metrics:     m,
		Session:     session,
		Recorder:    rec,
		Diagnostics: reporter,
		Bridge:      api.NewBridge(ctx, session, rec, bridgeOpts...),
	}, nil
}

func newDriver(settings *conf.Settings) (hackrf.Driver, error) {
	switch settings.Device.Driver {
	case "", "sim":
		signal, ok := sim.ParseSignal(settings.Simulator.Signal)
		if !ok {
			return nil, errors.Newf("unknown simulator signal %q", settings.Simulator.Signal).
				Component("app").
				Category(errors.CategoryConfiguration).
				Build()
		}
		return sim.NewDriver(sim.Config{
			Signal:       signal,
			ToneOffsetHz: settings.Simulator.ToneOffset,
			Amplitude:    settings.Simulator.Amplitude,
			TransferSize: settings.Simulator.TransferSize,
			Paced:        settings.Simulator.Paced,
		}), nil
	default:
		return nil, errors.Newf("unsupported driver %q", settings.Device.Driver).
			Component("app").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

func recordingDir(path string) string {
	if path == "" {
		return "."
	}
	return filepath.Dir(path)
}

// OpenDevice opens the configured device and applies the device settings.
// The device is closed again if any setting fails.
func (s *Stack) OpenDevice() error {
	if err := s.Session.Open(s.Settings.Device.FileDescriptor); err != nil {
		return err
	}
	if err := s.ApplyDeviceSettings(); err != nil {
		if closeErr := s.Session.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return err
	}
	return nil
}

// ApplyDeviceSettings pushes the configured parameters to the open device.
// Zero frequency or sample rate leaves the start-time defaults in effect.
func (s *Stack) ApplyDeviceSettings() error {
	d := s.Settings.Device

	steps := []func() error{
		func() error { return s.Session.SetLNAGain(d.LNAGain) },
		func() error { return s.Session.SetVGAGain(d.VGAGain) },
		func() error { return s.Session.SetTxVGAGain(d.TxVGAGain) },
		func() error { return s.Session.SetAmpEnable(d.AmpEnable) },
		func() error { return s.Session.SetAntennaEnable(d.AntennaEnable) },
	}
	if d.Frequency != 0 {
		steps = append(steps, func() error { return s.Session.SetFrequency(d.Frequency) })
	}
	if d.SampleRate != 0 {
		steps = append(steps, func() error { return s.Session.SetSampleRate(d.SampleRate) })
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	p := s.Session.Parameters()
	GetLogger().Info("device configured",
		logger.Uint64("frequency_hz", p.Frequency),
		logger.Uint64("sample_rate_hz", uint64(p.SampleRate)),
		logger.Int("lna_gain", int(p.LNAGain)),
		logger.Int("vga_gain", int(p.VGAGain)),
		logger.Int("txvga_gain", int(p.TxVGAGain)),
		logger.Bool("amp", p.AmpEnable),
		logger.Bool("antenna", p.AntennaEnable))
	return nil
}

// Close stops any recording, closes the device and waits for diagnostics.
func (s *Stack) Close() {
	s.Bridge.Shutdown()
	s.Diagnostics.Close()
}
