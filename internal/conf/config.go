// config.go: settings struct and functions to load and save it.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/hackrf-stream/internal/logger"
	"github.com/tphakala/hackrf-stream/internal/secrets"
)

// Settings is the root of the configuration tree
type Settings struct {
	Debug bool `yaml:"debug"` // true to enable debug logging

	Device    DeviceSettings       `yaml:"device"`
	Stream    StreamSettings       `yaml:"stream"`
	Recording RecordingSettings    `yaml:"recording"`
	Simulator SimulatorSettings    `yaml:"simulator"`
	Logging   logger.LoggingConfig `yaml:"logging"`
	Metrics   MetricsSettings      `yaml:"metrics"`
	API       APISettings          `yaml:"api"`
	Sentry    SentrySettings       `yaml:"sentry"`
}

// DeviceSettings holds the radio parameters applied after open
type DeviceSettings struct {
	Driver         string `yaml:"driver"`         // driver backend, "sim"
	FileDescriptor int    `yaml:"filedescriptor"` // USB file descriptor handed over by the host
	Frequency      uint64 `yaml:"frequency"`      // center frequency in Hz, 0 selects the default
	SampleRate     uint32 `yaml:"samplerate"`     // sample rate in Hz, 0 selects the default
	LNAGain        uint32 `yaml:"lnagain"`        // RX LNA gain in dB, 0-40 step 8
	VGAGain        uint32 `yaml:"vgagain"`        // RX VGA gain in dB, 0-62 step 2
	TxVGAGain      uint32 `yaml:"txvgagain"`      // TX VGA gain in dB, 0-47
	AmpEnable      bool   `yaml:"ampenable"`      // RF amplifier
	AntennaEnable  bool   `yaml:"antennaenable"`  // antenna port power
}

// StreamSettings sizes the sample streams
type StreamSettings struct {
	Capacity       int           `yaml:"capacity"`       // max queued transfers per stream
	Overflow       string        `yaml:"overflow"`       // RX policy when full: "drop" or "block"
	AppendTimeout  time.Duration `yaml:"appendtimeout"`  // bound on a blocking RX append
	MaxIdlePerSize int           `yaml:"maxidlepersize"` // idle pooled buffers kept per size, 0 = unbounded
}

// RecordingSettings controls the recording pipeline
type RecordingSettings struct {
	Path          string        `yaml:"path"`          // default output file
	Format        string        `yaml:"format"`        // "raw" or "wav"
	DrainInterval time.Duration `yaml:"draininterval"` // periodic wake of the drain loop
	Backoff       time.Duration `yaml:"backoff"`       // pause after an idle wake
}

// SimulatorSettings configures the software device
type SimulatorSettings struct {
	Signal       string  `yaml:"signal"`       // "tone", "noise" or "loopback"
	ToneOffset   float64 `yaml:"toneoffset"`   // tone offset from center in Hz
	Amplitude    float64 `yaml:"amplitude"`    // 0..1 of full scale
	TransferSize int     `yaml:"transfersize"` // bytes per simulated transfer
	Paced        bool    `yaml:"paced"`        // pace transfers at the sample rate
}

// MetricsSettings controls the standalone Prometheus endpoint
type MetricsSettings struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// APISettings controls the HTTP control API
type APISettings struct {
	Enabled      bool   `yaml:"enabled"`
	Listen       string `yaml:"listen"`
	RecordingDir string `yaml:"recordingdir"` // recordings requested over HTTP stay below this directory
}

// SentrySettings enables error telemetry
type SentrySettings struct {
	Enabled     bool   `yaml:"enabled"`
	DSN         string `yaml:"dsn"`     // may reference ${VAR}
	DSNFile     string `yaml:"dsnfile"` // secret file holding the DSN, overrides dsn
	Environment string `yaml:"environment"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads defaults, the config file and environment variables into Settings.
// configFile may be empty to search the default locations.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := configureEnvironmentVariables(); err != nil {
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := resolveSecrets(afero.NewOsFs(), settings); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settings, nil
}

// resolveSecrets replaces credential settings with their resolved values
func resolveSecrets(fs afero.Fs, settings *Settings) error {
	dsn, err := secrets.Resolve(fs, settings.Sentry.DSNFile, settings.Sentry.DSN)
	if err != nil {
		return fmt.Errorf("error resolving sentry.dsn: %w", err)
	}
	settings.Sentry.DSN = dsn
	return nil
}

// initViper sets defaults and reads the config file if one exists
func initViper(configFile string) error {
	setDefaultConfig()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		configPaths, err := GetDefaultConfigPaths()
		if err != nil {
			return fmt.Errorf("error getting default config paths: %w", err)
		}
		for _, path := range configPaths {
			viper.AddConfigPath(path)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			GetLogger().Info("no config file found, using defaults")
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	GetLogger().Debug("config file loaded", logger.String("path", viper.ConfigFileUsed()))
	return nil
}

// GetSettings returns the last loaded settings
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath through a temp file and rename.
// Comments in an existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
