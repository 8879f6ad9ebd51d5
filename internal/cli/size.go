package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rescale/interlink-transfers/internal/transfer"
)

// newSizeCmd creates the 'size' command.
func newSizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "size <current> <total>",
		Short: "Format a byte pair the way the tracker displays it",
		Long: `Format a current/total byte pair with a shared unit.

Both values accept plain byte counts or human sizes ("1.5MB", "2 GiB").
The unit is chosen from the total; the current value is scaled by the
same unit and printed without a suffix.

Example:
  interlink-transfers size 1500 2000000
  0.00 / 2 MB`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := humanize.ParseBytes(args[0])
			if err != nil {
				return fmt.Errorf("invalid current size %q: %w", args[0], err)
			}
			total, err := humanize.ParseBytes(args[1])
			if err != nil {
				return fmt.Errorf("invalid total size %q: %w", args[1], err)
			}

			c, t := transfer.FormatSizePair(current, total)
			fmt.Fprintf(cmd.OutOrStdout(), "%s / %s\n", c, t)
			return nil
		},
	}
}
