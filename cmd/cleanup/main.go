// Package main is the entrypoint for the weathervane cleanup process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/climatelab/weathervane/internal/cleanup"
	"github.com/climatelab/weathervane/internal/config"
	"github.com/climatelab/weathervane/internal/store"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("cleanup failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"interval", cfg.Cleanup.Interval,
		"retention", cfg.Cleanup.Retention,
		"stale_after", cfg.Cleanup.StaleAfter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.ConnectWithRetry(ctx, cfg.Database,
		cfg.Worker.StartupRetries, cfg.Worker.StartupBackoff)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	janitor := cleanup.NewJanitor(store.NewPostgresStore(pool), cfg.Cleanup)
	if err := janitor.Start(); err != nil {
		return fmt.Errorf("start janitor: %w", err)
	}
	slog.Info("cleanup scheduler started")

	<-ctx.Done()
	slog.Info("shutdown signal received")
	janitor.Stop()

	slog.Info("cleanup stopped gracefully")
	return nil
}
