package serve

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/hackrf-stream/internal/api"
	"github.com/tphakala/hackrf-stream/internal/app"
	"github.com/tphakala/hackrf-stream/internal/conf"
	"github.com/tphakala/hackrf-stream/internal/errors"
)

// Command creates a new command that exposes the session over the HTTP control API.
func Command(settings *conf.Settings) *cobra.Command {
	var open bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP control API",
		Long:  "Run the HTTP control API. Clients open the device, start RX or TX and move samples over HTTP.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), settings, afero.NewOsFs(), open, nil)
		},
	}

	cmd.Flags().StringVar(&settings.API.Listen, "listen", viper.GetString("api.listen"), "Listen address of the control API")
	cmd.Flags().BoolVar(&open, "open", false, "Open the device and apply settings before serving")
	if err := viper.BindPFlag("api.listen", cmd.Flags().Lookup("listen")); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// Run serves the control API until ctx ends. A nil ln listens on settings.API.Listen.
func Run(ctx context.Context, settings *conf.Settings, fs afero.Fs, open bool, ln net.Listener) error {
	if !settings.API.Enabled {
		return errors.Newf("control API is disabled in configuration").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}

	st, err := app.New(ctx, settings, fs)
	if err != nil {
		return err
	}
	defer st.Close()

	if open {
		if err := st.OpenDevice(); err != nil {
			return err
		}
	}

	srv, err := api.New(api.ConfigFromSettings(settings), st.Bridge, api.WithMetrics(st.Metrics))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if ln != nil {
			return srv.Serve(gctx, ln)
		}
		return srv.Run(gctx)
	})
	g.Go(func() error { return st.ServeMetrics(gctx) })
	g.Go(func() error { return st.LogStats(gctx, app.DefaultStatsInterval) })
	return g.Wait()
}
