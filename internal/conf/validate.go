// conf/validate.go

package conf

import (
	"errors"
	"fmt"
	"net"
	"slices"

	"github.com/tphakala/hackrf-stream/internal/hackrf"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		func(s *Settings) error { return validateDeviceSettings(&s.Device) },
		func(s *Settings) error { return validateStreamSettings(&s.Stream) },
		func(s *Settings) error { return validateRecordingSettings(&s.Recording) },
		func(s *Settings) error { return validateSimulatorSettings(&s.Simulator) },
		func(s *Settings) error { return validateListener("metrics", s.Metrics.Enabled, s.Metrics.Listen) },
		func(s *Settings) error { return validateListener("api", s.API.Enabled, s.API.Listen) },
		func(s *Settings) error {
			if s.Sentry.Enabled && s.Sentry.DSN == "" {
				return errors.New("sentry is enabled but no DSN is set")
			}
			return nil
		},
	}

	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateDeviceSettings accepts zero frequency and sample rate; the session applies
// defaults for those at start.
func validateDeviceSettings(settings *DeviceSettings) error {
	var errs []error

	if settings.Driver != "sim" {
		errs = append(errs, fmt.Errorf("device.driver %q is not supported", settings.Driver))
	}
	if settings.Frequency != 0 && !hackrf.FrequencyInRange(settings.Frequency) {
		errs = append(errs, fmt.Errorf("device.frequency must be between %d and %d Hz",
			hackrf.FrequencyMinHz, hackrf.FrequencyMaxHz))
	}
	if settings.SampleRate != 0 && !hackrf.SampleRateInRange(settings.SampleRate) {
		errs = append(errs, fmt.Errorf("device.samplerate must be between %d and %d Hz",
			hackrf.SampleRateMinHz, hackrf.SampleRateMaxHz))
	}
	if settings.LNAGain > hackrf.LNAGainMax {
		errs = append(errs, fmt.Errorf("device.lnagain must be at most %d", hackrf.LNAGainMax))
	}
	if settings.VGAGain > hackrf.VGAGainMax {
		errs = append(errs, fmt.Errorf("device.vgagain must be at most %d", hackrf.VGAGainMax))
	}
	if settings.TxVGAGain > hackrf.TxVGAGainMax {
		errs = append(errs, fmt.Errorf("device.txvgagain must be at most %d", hackrf.TxVGAGainMax))
	}

	return errors.Join(errs...)
}

func validateStreamSettings(settings *StreamSettings) error {
	var errs []error

	if settings.Capacity < 1 {
		errs = append(errs, errors.New("stream.capacity must be at least 1"))
	}
	if !slices.Contains([]string{"drop", "block"}, settings.Overflow) {
		errs = append(errs, fmt.Errorf("stream.overflow must be drop or block, got %q", settings.Overflow))
	}
	if settings.Overflow == "block" && settings.AppendTimeout <= 0 {
		errs = append(errs, errors.New("stream.appendtimeout must be positive with the block policy"))
	}
	if settings.MaxIdlePerSize < 0 {
		errs = append(errs, errors.New("stream.maxidlepersize must not be negative"))
	}

	return errors.Join(errs...)
}

func validateRecordingSettings(settings *RecordingSettings) error {
	var errs []error

	if !slices.Contains([]string{"raw", "wav"}, settings.Format) {
		errs = append(errs, fmt.Errorf("recording.format must be raw or wav, got %q", settings.Format))
	}
	if settings.DrainInterval <= 0 {
		errs = append(errs, errors.New("recording.draininterval must be positive"))
	}
	if settings.Backoff < 0 {
		errs = append(errs, errors.New("recording.backoff must not be negative"))
	}

	return errors.Join(errs...)
}

func validateSimulatorSettings(settings *SimulatorSettings) error {
	var errs []error

	if !slices.Contains([]string{"tone", "noise", "loopback"}, settings.Signal) {
		errs = append(errs, fmt.Errorf("simulator.signal must be tone, noise or loopback, got %q", settings.Signal))
	}
	if settings.Amplitude < 0 || settings.Amplitude > 1 {
		errs = append(errs, errors.New("simulator.amplitude must be between 0 and 1"))
	}
	if settings.TransferSize <= 0 || settings.TransferSize%2 != 0 {
		errs = append(errs, errors.New("simulator.transfersize must be a positive even number of bytes"))
	}

	return errors.Join(errs...)
}

func validateListener(section string, enabled bool, listen string) error {
	if !enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(listen); err != nil {
		return fmt.Errorf("%s.listen %q is not a host:port address: %w", section, listen, err)
	}
	return nil
}
