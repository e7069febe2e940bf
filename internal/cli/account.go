package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// AccountOptions holds flags for the account command.
type AccountOptions struct {
	*RootOptions
	Tenant string
	User   string
}

func newAccountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AccountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "account",
		Short: "Show a user's loyalty account at a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd, func(b *backend) error {
				acc, err := b.engine.Accounts.GetByUser(cmd.Context(), opts.User, opts.Tenant)
				if err != nil {
					return err
				}
				check, err := b.engine.Ledger.VerifyBalance(cmd.Context(), acc.ID)
				if err != nil {
					return err
				}
				if opts.Format == "json" {
					return opts.printJSON(cmd.OutOrStdout(), map[string]any{
						"id":             acc.ID,
						"loyaltyNumber":  acc.LoyaltyNumber,
						"currentPoints":  acc.CurrentPoints,
						"lifetimePoints": acc.LifetimePoints,
						"pointsRedeemed": acc.PointsRedeemed,
						"totalSpent":     acc.TotalSpent,
						"totalOrders":    acc.TotalOrders,
						"tierLevel":      acc.TierLevel,
						"active":         acc.Active,
						"ledgerBalance":  check.Ledger,
						"consistent":     check.Consistent,
					})
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(w, "id\t%s\n", acc.ID)
				fmt.Fprintf(w, "loyalty number\t%s\n", acc.LoyaltyNumber)
				fmt.Fprintf(w, "points\t%d (lifetime %d, redeemed %d)\n", acc.CurrentPoints, acc.LifetimePoints, acc.PointsRedeemed)
				fmt.Fprintf(w, "spend\t%s over %d orders\n", acc.TotalSpent.StringFixed(2), acc.TotalOrders)
				fmt.Fprintf(w, "tier level\t%d\n", acc.TierLevel)
				fmt.Fprintf(w, "active\t%t\n", acc.Active)
				fmt.Fprintf(w, "ledger\t%d (consistent: %t)\n", check.Ledger, check.Consistent)
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&opts.Tenant, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&opts.User, "user", "", "user id")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Account string
	Limit   int
	Offset  int
}

func newHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List an account's ledger entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(opts.Account)
			if err != nil {
				return fmt.Errorf("invalid account id %q: %w", opts.Account, err)
			}
			return opts.withBackend(cmd, func(b *backend) error {
				txns, err := b.engine.Ledger.History(cmd.Context(), id, opts.Limit, opts.Offset)
				if err != nil {
					return err
				}
				if opts.Format == "json" {
					return opts.printJSON(cmd.OutOrStdout(), txns)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "SEQ\tKIND\tDELTA\tBALANCE\tREFERENCE\tCREATED")
				for _, t := range txns {
					ref := ""
					switch {
					case t.OrderID != nil:
						ref = "order " + *t.OrderID
					case t.ReferenceID != nil:
						ref = *t.ReferenceID
					}
					fmt.Fprintf(w, "%d\t%s\t%+d\t%d\t%s\t%s\n", t.Seq, t.Kind, t.Delta, t.BalanceAfter, ref, t.CreatedAt.Format("2006-01-02 15:04"))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&opts.Account, "account", "", "account id")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum entries")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "entries to skip")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}
