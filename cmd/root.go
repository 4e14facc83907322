package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tphakala/hackrf-stream/cmd/limits"
	"github.com/tphakala/hackrf-stream/cmd/rx"
	"github.com/tphakala/hackrf-stream/cmd/serve"
	"github.com/tphakala/hackrf-stream/cmd/tx"
	"github.com/tphakala/hackrf-stream/cmd/version"
	"github.com/tphakala/hackrf-stream/internal/buildinfo"
	"github.com/tphakala/hackrf-stream/internal/conf"
	"github.com/tphakala/hackrf-stream/internal/cpuspec"
	"github.com/tphakala/hackrf-stream/internal/logger"
	"github.com/tphakala/hackrf-stream/internal/telemetry"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "hackrf-stream",
		Short:         "HackRF IQ streaming CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Fprintf(os.Stderr, "error setting up flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(
		rx.Command(settings),
		tx.Command(settings),
		serve.Command(settings),
		limits.Command(),
		version.Command(),
	)

	return rootCmd
}

// Execute runs the root command with ctx and returns the process exit code.
// Logging and telemetry are set up before any subcommand except version and
// limits, and torn down in reverse order when the command returns.
func Execute(ctx context.Context, settings *conf.Settings) int {
	rootCmd := RootCommand(settings)

	var closers []func()
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		switch cmd.Name() {
		case "version", "limits":
			return nil
		}
		var err error
		closers, err = initialize(settings)
		return err
	}

	err := rootCmd.ExecuteContext(ctx)

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// initialize validates the flag-adjusted settings and starts logging and telemetry.
// The returned closers are valid even when err is not nil.
func initialize(settings *conf.Settings) ([]func(), error) {
	var closers []func()

	if err := conf.ValidateSettings(settings); err != nil {
		return closers, err
	}

	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return closers, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)
	closers = append(closers, func() { _ = central.Close() })

	info := buildinfo.Current()
	central.Module("main").Info("starting hackrf-stream",
		logger.String("version", info.Version()),
		logger.String("build_date", info.BuildDate()),
		logger.String("cpu", cpuspec.GetCPUSpec().String()))

	shutdown, err := telemetry.Init(&settings.Sentry, info)
	if err != nil {
		return closers, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	closers = append(closers, shutdown)

	return closers, nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	flags := rootCmd.PersistentFlags()

	flags.BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	flags.StringVar(&settings.Device.Driver, "driver", viper.GetString("device.driver"), "Device driver backend (\"sim\")")
	flags.IntVar(&settings.Device.FileDescriptor, "fd", viper.GetInt("device.filedescriptor"), "USB file descriptor of the device")
	flags.Uint64VarP(&settings.Device.Frequency, "frequency", "f", viper.GetUint64("device.frequency"), "Center frequency in Hz")
	flags.Uint32VarP(&settings.Device.SampleRate, "samplerate", "s", viper.GetUint32("device.samplerate"), "Sample rate in Hz")
	flags.Uint32Var(&settings.Device.LNAGain, "lna", viper.GetUint32("device.lnagain"), "RX LNA gain in dB (0-40, step 8)")
	flags.Uint32Var(&settings.Device.VGAGain, "vga", viper.GetUint32("device.vgagain"), "RX VGA gain in dB (0-62, step 2)")
	flags.Uint32Var(&settings.Device.TxVGAGain, "txvga", viper.GetUint32("device.txvgagain"), "TX VGA gain in dB (0-47)")
	flags.BoolVar(&settings.Device.AmpEnable, "amp", viper.GetBool("device.ampenable"), "Enable the RF amplifier")
	flags.BoolVar(&settings.Device.AntennaEnable, "antenna", viper.GetBool("device.antennaenable"), "Enable antenna port power")
	flags.StringVar(&settings.Simulator.Signal, "signal", viper.GetString("simulator.signal"), "Simulated signal: tone, noise or loopback")
	flags.StringVar(&settings.Stream.Overflow, "overflow", viper.GetString("stream.overflow"), "RX overflow policy: drop or block")
	flags.IntVar(&settings.Stream.Capacity, "capacity", viper.GetInt("stream.capacity"), "Maximum queued transfers per stream")
	flags.BoolVar(&settings.Metrics.Enabled, "metrics", viper.GetBool("metrics.enabled"), "Enable the Prometheus metrics endpoint")
	flags.StringVar(&settings.Metrics.Listen, "metrics-listen", viper.GetString("metrics.listen"), "Listen address of the metrics endpoint")

	return bindFlags(flags, map[string]string{
		"debug":          "debug",
		"driver":         "device.driver",
		"fd":             "device.filedescriptor",
		"frequency":      "device.frequency",
		"samplerate":     "device.samplerate",
		"lna":            "device.lnagain",
		"vga":            "device.vgagain",
		"txvga":          "device.txvgagain",
		"amp":            "device.ampenable",
		"antenna":        "device.antennaenable",
		"signal":         "simulator.signal",
		"overflow":       "stream.overflow",
		"capacity":       "stream.capacity",
		"metrics":        "metrics.enabled",
		"metrics-listen": "metrics.listen",
	})
}

// bindFlags binds each flag to its configuration key so viper reflects the command line
func bindFlags(flags *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}
