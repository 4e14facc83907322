// env.go - environment variable configuration and validation
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/hackrf-stream/internal/hackrf"
)

// envBinding holds metadata for environment variable bindings
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "HACKRF_DEBUG", validateEnvBool},

		{"device.driver", "HACKRF_DRIVER", nil},
		{"device.filedescriptor", "HACKRF_FD", validateEnvInt},
		{"device.frequency", "HACKRF_FREQUENCY", validateEnvFrequency},
		{"device.samplerate", "HACKRF_SAMPLE_RATE", validateEnvSampleRate},
		{"device.lnagain", "HACKRF_LNA_GAIN", validateEnvGain(hackrf.LNAGainMax)},
		{"device.vgagain", "HACKRF_VGA_GAIN", validateEnvGain(hackrf.VGAGainMax)},
		{"device.txvgagain", "HACKRF_TX_VGA_GAIN", validateEnvGain(hackrf.TxVGAGainMax)},
		{"device.ampenable", "HACKRF_AMP_ENABLE", validateEnvBool},
		{"device.antennaenable", "HACKRF_ANTENNA_ENABLE", validateEnvBool},

		{"stream.capacity", "HACKRF_STREAM_CAPACITY", validateEnvInt},
		{"stream.overflow", "HACKRF_STREAM_OVERFLOW", nil},
		{"stream.appendtimeout", "HACKRF_STREAM_APPEND_TIMEOUT", validateEnvDuration},

		{"recording.path", "HACKRF_RECORDING_PATH", nil},
		{"recording.format", "HACKRF_RECORDING_FORMAT", nil},

		{"metrics.enabled", "HACKRF_METRICS_ENABLED", validateEnvBool},
		{"metrics.listen", "HACKRF_METRICS_LISTEN", nil},
		{"api.enabled", "HACKRF_API_ENABLED", validateEnvBool},
		{"api.listen", "HACKRF_API_LISTEN", nil},
		{"api.recordingdir", "HACKRF_API_RECORDING_DIR", nil},

		{"sentry.enabled", "HACKRF_SENTRY_ENABLED", validateEnvBool},
		{"sentry.dsn", "HACKRF_SENTRY_DSN", nil},
		{"sentry.dsnfile", "HACKRF_SENTRY_DSN_FILE", nil},
	}
}

// bindEnvVars binds every variable and validates the ones that are set
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvInt(value string) error {
	if _, err := strconv.Atoi(value); err != nil {
		return fmt.Errorf("must be an integer")
	}
	return nil
}

func validateEnvDuration(value string) error {
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("must be a duration such as 500ms")
	}
	return nil
}

func validateEnvFrequency(value string) error {
	hz, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return fmt.Errorf("must be an integer frequency in Hz")
	}
	if !hackrf.FrequencyInRange(hz) {
		return fmt.Errorf("must be between %d and %d Hz", hackrf.FrequencyMinHz, hackrf.FrequencyMaxHz)
	}
	return nil
}

func validateEnvSampleRate(value string) error {
	hz, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return fmt.Errorf("must be an integer sample rate in Hz")
	}
	if !hackrf.SampleRateInRange(uint32(hz)) {
		return fmt.Errorf("must be between %d and %d Hz", hackrf.SampleRateMinHz, hackrf.SampleRateMaxHz)
	}
	return nil
}

func validateEnvGain(maxGain uint32) func(string) error {
	return func(value string) error {
		gain, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("must be an integer gain in dB")
		}
		if uint32(gain) > maxGain {
			return fmt.Errorf("must be at most %d dB", maxGain)
		}
		return nil
	}
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables() error {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars()
}
