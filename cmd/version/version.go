package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/hackrf-stream/internal/buildinfo"
)

// Command creates a new command that prints build metadata.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := buildinfo.Current()
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "hackrf-stream %s (built %s)\n", info.Version(), info.BuildDate())
			return err
		},
	}
}
