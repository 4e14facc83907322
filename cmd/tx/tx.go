package tx

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/hackrf-stream/internal/app"
	"github.com/tphakala/hackrf-stream/internal/conf"
	"github.com/tphakala/hackrf-stream/internal/hackrf"
	"github.com/tphakala/hackrf-stream/internal/logger"
	"github.com/tphakala/hackrf-stream/internal/transfer"
)

// Options controls one transmission
type Options struct {
	Input  string // file of interleaved signed 8-bit IQ samples
	Repeat bool   // rewind the input at EOF until interrupted
}

// Command creates a new command that transmits IQ samples from a file.
func Command(settings *conf.Settings) *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Transmit IQ samples from a file",
		Long:  "Open the device, queue samples from the input file and transmit until the file is exhausted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := Run(cmd.Context(), settings, afero.NewOsFs(), opts)
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Input file of signed 8-bit IQ samples")
	cmd.Flags().BoolVar(&opts.Repeat, "repeat", false, "Repeat the input until interrupted")
	if err := cmd.MarkFlagRequired("input"); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// Run transmits opts.Input read from fs. It returns once the transmission ends,
// either because the tx stream ran dry or because ctx was cancelled, and reports
// the session counters at that point.
func Run(ctx context.Context, settings *conf.Settings, fs afero.Fs, opts Options) (transfer.Stats, error) {
	input, err := fs.Open(opts.Input)
	if err != nil {
		return transfer.Stats{}, fmt.Errorf("failed to open input: %w", err)
	}
	defer func() { _ = input.Close() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := app.New(ctx, settings, fs)
	if err != nil {
		return transfer.Stats{}, err
	}
	defer st.Close()

	if err := st.OpenDevice(); err != nil {
		return transfer.Stats{}, err
	}

	log := app.GetLogger()
	feed := newFeeder(input, opts.Repeat)

	// Queue half the stream before starting so the first callbacks find data
	prefill := max(settings.Stream.Capacity/2, 1)
	for range prefill {
		more, err := feed.next(ctx, st.Session)
		if err != nil {
			return transfer.Stats{}, err
		}
		if !more {
			break
		}
	}
	if !st.Session.TxStream().HasData() {
		return transfer.Stats{}, fmt.Errorf("input %s is empty", opts.Input)
	}

	err = st.Session.StartTx(transfer.WithTxComplete(func(ok bool) {
		log.Info("transmission complete", logger.Bool("flushed", ok))
	}))
	if err != nil {
		return transfer.Stats{}, err
	}
	txDone := st.Session.TxDone()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return st.ServeMetrics(gctx) })
	g.Go(func() error { return st.LogStats(gctx, app.DefaultStatsInterval) })
	g.Go(func() error {
		for {
			more, err := feed.next(gctx, st.Session)
			if err != nil || !more {
				return err
			}
		}
	})
	g.Go(func() error {
		select {
		case <-txDone:
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if stopErr := st.Session.StopTx(); stopErr != nil {
		err = errors.Join(err, stopErr)
	}

	stats := st.Session.Stats()
	log.Info("transmit finished",
		logger.String("input", opts.Input),
		logger.Uint64("tx_bytes", stats.TxBytes),
		logger.Uint64("tx_transfers", stats.TxTransfers),
		logger.Uint64("tx_blocks", stats.TxBlocks))
	return stats, err
}

// feeder reads the input in transfer-sized chunks
type feeder struct {
	src    io.ReadSeeker
	r      *bufio.Reader
	buf    []byte
	repeat bool
}

func newFeeder(src io.ReadSeeker, repeat bool) *feeder {
	return &feeder{
		src:    src,
		r:      bufio.NewReaderSize(src, hackrf.TransferBufferSize),
		buf:    make([]byte, hackrf.TransferBufferSize),
		repeat: repeat,
	}
}

// next queues one chunk on the tx stream. It reports false at the end of a
// non-repeating input.
func (f *feeder) next(ctx context.Context, session *transfer.Session) (bool, error) {
	n, err := io.ReadFull(f.r, f.buf)
	switch {
	case err == nil, errors.Is(err, io.ErrUnexpectedEOF):
	case errors.Is(err, io.EOF):
		if !f.repeat {
			return false, nil
		}
		if _, err := f.src.Seek(0, io.SeekStart); err != nil {
			return false, fmt.Errorf("failed to rewind input: %w", err)
		}
		f.r.Reset(f.src)
		return true, nil
	default:
		return false, fmt.Errorf("failed to read input: %w", err)
	}

	if err := session.WriteTx(ctx, f.buf[:n]); err != nil {
		return false, err
	}
	return true, nil
}
