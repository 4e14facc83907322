package rx

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/hackrf-stream/internal/app"
	"github.com/tphakala/hackrf-stream/internal/conf"
	"github.com/tphakala/hackrf-stream/internal/logger"
)

// Command creates a new command that records received IQ samples to a file.
func Command(settings *conf.Settings) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "rx",
		Short: "Receive IQ samples to a file",
		Long:  "Open the device, start receiving and record the RX stream until interrupted or the duration elapses.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), settings, afero.NewOsFs(), duration)
		},
	}

	if err := setupFlags(cmd, settings, &duration); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the rx command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings, duration *time.Duration) error {
	cmd.Flags().StringVarP(&settings.Recording.Path, "output", "o", viper.GetString("recording.path"), "Output file")
	cmd.Flags().StringVar(&settings.Recording.Format, "format", viper.GetString("recording.format"), "Output format: raw or wav")
	cmd.Flags().DurationVar(duration, "duration", 0, "Stop after this long, 0 records until interrupted")

	if err := viper.BindPFlag("recording.path", cmd.Flags().Lookup("output")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	if err := viper.BindPFlag("recording.format", cmd.Flags().Lookup("format")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

// Run receives into settings.Recording.Path on fs until ctx ends, the duration
// elapses or the recording fails.
func Run(ctx context.Context, settings *conf.Settings, fs afero.Fs, duration time.Duration) error {
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := app.New(ctx, settings, fs)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.OpenDevice(); err != nil {
		return err
	}
	if err := st.Session.StartRx(); err != nil {
		return err
	}

	rec, err := st.Recorder.Start(ctx, st.Session, settings.Recording.Path)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return st.ServeMetrics(gctx) })
	g.Go(func() error { return st.LogStats(gctx, app.DefaultStatsInterval) })
	g.Go(func() error {
		defer cancel()
		return rec.Wait()
	})

	err = g.Wait()

	stats := st.Session.Stats()
	app.GetLogger().Info("receive finished",
		logger.String("path", rec.Path()),
		logger.Uint64("bytes_written", rec.BytesWritten()),
		logger.Uint64("rx_bytes", stats.RxBytes),
		logger.Uint64("rx_dropped", stats.RxDropped))
	return err
}
