package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/set-night/loyaltyledger/internal/seed"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	File string
}

func newSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert a tenant loyalty program from a YAML file",
		Long: `Upsert a tenant's settings, tiers, promotions, challenges and rewards.

Entities without an id are keyed by tenant and name, so running the same
file again updates them in place.

Examples:
  loyaltyctl seed --file program.yaml
  loyaltyctl seed --file program.yaml --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			program, err := seed.LoadFile(opts.File)
			if err != nil {
				return err
			}
			return opts.withBackend(cmd, func(b *backend) error {
				sum, err := seed.Apply(cmd.Context(), b.seeder, program)
				if err != nil {
					return err
				}
				if opts.Format == "json" {
					return opts.printJSON(cmd.OutOrStdout(), map[string]any{
						"tenant":     program.Tenant,
						"settings":   sum.Settings,
						"tiers":      sum.Tiers,
						"promotions": sum.Promotions,
						"challenges": sum.Challenges,
						"rewards":    sum.Rewards,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %s: %d tiers, %d promotions, %d challenges, %d rewards\n",
					program.Tenant, sum.Tiers, sum.Promotions, sum.Challenges, sum.Rewards)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "program YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
