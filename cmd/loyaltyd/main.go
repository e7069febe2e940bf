package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	loyaltyledger "github.com/set-night/loyaltyledger"
	"github.com/set-night/loyaltyledger/internal/config"
	"github.com/set-night/loyaltyledger/internal/handler"
	"github.com/set-night/loyaltyledger/internal/metrics"
	"github.com/set-night/loyaltyledger/internal/repository"
	"github.com/set-night/loyaltyledger/internal/service"
	"github.com/set-night/loyaltyledger/internal/sweep"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	defaults, err := cfg.ProgramDefaults()
	if err != nil {
		slog.Error("invalid program defaults", "error", err)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, repository.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Run migrations
	migrationsFS, err := fs.Sub(loyaltyledger.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Metrics
	var (
		m        *metrics.Metrics
		gatherer prometheus.Gatherer
	)
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
		gatherer = reg
	}

	// Initialize services
	store := repository.NewPostgres(pool)
	engine := service.NewEngine(store, service.EngineOptions{
		Defaults:     defaults,
		TierCacheTTL: cfg.TierCacheTTL,
		Metrics:      m,
	})

	// Start sweeps
	if cfg.SweepEnabled {
		sweeper := sweep.New(engine.Expiry, engine.Redemptions, cfg.SweepBatchSize)
		stopSweeps, err := sweeper.Start(ctx, cfg.SweepInterval)
		if err != nil {
			slog.Error("failed to start sweeps", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := stopSweeps(); err != nil {
				slog.Error("failed to stop sweeps", "error", err)
			}
		}()
	}

	// Initialize handler
	h := handler.New(handler.Deps{
		Loyalty:        engine.Loyalty,
		Accounts:       engine.Accounts,
		Redemptions:    engine.Redemptions,
		Ledger:         engine.Ledger,
		Metrics:        m,
		Gatherer:       gatherer,
		RequestTimeout: cfg.RequestTimeout,
		Ping:           func(r *http.Request) error { return pool.Ping(r.Context()) },
	})

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: h.Routes(),
	}

	go func() {
		slog.Info("starting server", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	slog.Info("server stopped gracefully")
}
