// Package cli implements loyaltyctl, the operator tool for migrations, program
// seeding, manual sweeps and account inspection.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"slices"

	"github.com/spf13/cobra"

	loyaltyledger "github.com/set-night/loyaltyledger"
	"github.com/set-night/loyaltyledger/internal/config"
	"github.com/set-night/loyaltyledger/internal/repository"
	"github.com/set-night/loyaltyledger/internal/service"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"

	connect func(ctx context.Context) (*backend, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// backend is what a command runs against.
type backend struct {
	store   repository.Store
	seeder  repository.Seeder
	engine  *service.Engine
	migrate func() error
	close   func()
}

// NewRootCommand creates the root command backed by the configured database.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{connect: connectPostgres})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loyaltyctl",
		Short: "Operate the loyalty ledger",
		Long:  "Administrative commands for the loyalty ledger: migrations, program seeding, sweeps and account inspection.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newSeedCommand(opts))
	cmd.AddCommand(newSweepCommand(opts))
	cmd.AddCommand(newAccountCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))

	return cmd
}

func connectPostgres(ctx context.Context) (*backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	defaults, err := cfg.ProgramDefaults()
	if err != nil {
		return nil, err
	}
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, repository.PoolOptions{MaxConns: 4, MinConns: 1})
	if err != nil {
		return nil, err
	}
	store := repository.NewPostgres(pool)
	return &backend{
		store:  store,
		seeder: store,
		engine: service.NewEngine(store, service.EngineOptions{Defaults: defaults}),
		migrate: func() error {
			migrationsFS, err := fs.Sub(loyaltyledger.MigrationsFS, "migrations")
			if err != nil {
				return fmt.Errorf("load embedded migrations: %w", err)
			}
			return repository.RunMigrations(cfg.DatabaseURL, migrationsFS)
		},
		close: pool.Close,
	}, nil
}

// withBackend connects, runs fn and releases the connection.
func (o *RootOptions) withBackend(cmd *cobra.Command, fn func(b *backend) error) error {
	b, err := o.connect(cmd.Context())
	if err != nil {
		return err
	}
	if b.close != nil {
		defer b.close()
	}
	return fn(b)
}

func (o *RootOptions) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
