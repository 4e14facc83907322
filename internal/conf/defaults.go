// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/hackrf-stream/internal/hackrf"
	"github.com/tphakala/hackrf-stream/internal/logger"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("device.driver", "sim")
	viper.SetDefault("device.filedescriptor", 0)
	viper.SetDefault("device.frequency", hackrf.DefaultFrequencyHz)
	viper.SetDefault("device.samplerate", hackrf.DefaultSampleRateHz)
	viper.SetDefault("device.lnagain", hackrf.DefaultLNAGain)
	viper.SetDefault("device.vgagain", hackrf.DefaultVGAGain)
	viper.SetDefault("device.txvgagain", hackrf.DefaultTxVGAGain)
	viper.SetDefault("device.ampenable", false)
	viper.SetDefault("device.antennaenable", false)

	viper.SetDefault("stream.capacity", 64)
	viper.SetDefault("stream.overflow", "drop")
	viper.SetDefault("stream.appendtimeout", 500*time.Millisecond)
	viper.SetDefault("stream.maxidlepersize", 128)

	viper.SetDefault("recording.path", "capture.iq")
	viper.SetDefault("recording.format", "raw")
	viper.SetDefault("recording.draininterval", time.Second)
	viper.SetDefault("recording.backoff", 5*time.Millisecond)

	viper.SetDefault("simulator.signal", "tone")
	viper.SetDefault("simulator.toneoffset", 250_000.0)
	viper.SetDefault("simulator.amplitude", 0.5)
	viper.SetDefault("simulator.transfersize", hackrf.TransferBufferSize)
	viper.SetDefault("simulator.paced", true)

	viper.SetDefault("logging.default_level", logger.DefaultLogLevel)
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	viper.SetDefault("logging.console.level", logger.DefaultLogLevel)
	viper.SetDefault("logging.file_output.enabled", logger.DefaultFileEnabled)
	viper.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	viper.SetDefault("logging.file_output.level", logger.DefaultLogLevel)

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.listen", "127.0.0.1:9090")

	viper.SetDefault("api.enabled", true)
	viper.SetDefault("api.listen", "127.0.0.1:8080")
	viper.SetDefault("api.recordingdir", "recordings")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.environment", "production")
}
