package limits

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/hackrf-stream/internal/hackrf"
)

// Command creates a new command that prints the hardware parameter ranges.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "limits",
		Short: "Print the supported parameter ranges",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Print(cmd.OutOrStdout())
		},
	}
}

// Print writes the parameter table to w
func Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][4]string{
		{"PARAMETER", "MIN", "MAX", "DEFAULT"},
		{"frequency (Hz)", fmt.Sprint(hackrf.FrequencyMinHz), fmt.Sprint(hackrf.FrequencyMaxHz), fmt.Sprint(hackrf.DefaultFrequencyHz)},
		{"sample rate (Hz)", fmt.Sprint(hackrf.SampleRateMinHz), fmt.Sprint(hackrf.SampleRateMaxHz), fmt.Sprint(hackrf.DefaultSampleRateHz)},
		{fmt.Sprintf("lna gain (dB, step %d)", hackrf.LNAGainStep), "0", fmt.Sprint(hackrf.LNAGainMax), fmt.Sprint(hackrf.DefaultLNAGain)},
		{fmt.Sprintf("vga gain (dB, step %d)", hackrf.VGAGainStep), "0", fmt.Sprint(hackrf.VGAGainMax), fmt.Sprint(hackrf.DefaultVGAGain)},
		{fmt.Sprintf("txvga gain (dB, step %d)", hackrf.TxVGAGainStep), "0", fmt.Sprint(hackrf.TxVGAGainMax), fmt.Sprint(hackrf.DefaultTxVGAGain)},
		{"transfer size (bytes)", fmt.Sprint(hackrf.TransferBufferSize), fmt.Sprint(hackrf.TransferBufferSize), fmt.Sprint(hackrf.TransferBufferSize)},
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row[0], row[1], row[2], row[3]); err != nil {
			return err
		}
	}
	return tw.Flush()
}
