package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/set-night/loyaltyledger/internal/sweep"
)

// SweepOptions holds flags for the sweep command.
type SweepOptions struct {
	*RootOptions
	Batch int
}

func newSweepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SweepOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:       "sweep points|redemptions",
		Short:     "Run one expiry sweep now",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"points", "redemptions"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd, func(b *backend) error {
				sweeper := sweep.New(b.engine.Expiry, b.engine.Redemptions, opts.Batch)
				var (
					n   int
					err error
				)
				switch args[0] {
				case "points":
					n, err = sweeper.ExpirePoints(cmd.Context())
				case "redemptions":
					n, err = sweeper.ExpireRedemptions(cmd.Context())
				}
				if opts.Format == "json" {
					if perr := opts.printJSON(cmd.OutOrStdout(), map[string]any{"job": args[0], "processed": n}); perr != nil {
						return perr
					}
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d processed\n", args[0], n)
				}
				return err
			})
		},
	}

	cmd.Flags().IntVar(&opts.Batch, "batch", 500, "entries per batch")
	return cmd
}
