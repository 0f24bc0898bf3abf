// Package main is the entrypoint for the weathervane analysis worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/climatelab/weathervane/internal/config"
	"github.com/climatelab/weathervane/internal/meteo"
	"github.com/climatelab/weathervane/internal/metrics"
	"github.com/climatelab/weathervane/internal/store"
	"github.com/climatelab/weathervane/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments pass environment variables directly.
	_ = godotenv.Load()

	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"idle_interval", cfg.Worker.IdleInterval,
		"climate_years", cfg.Analysis.ClimateYears)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database, tolerating a slow Postgres startup
	pool, err := store.ConnectWithRetry(ctx, cfg.Database,
		cfg.Worker.StartupRetries, cfg.Worker.StartupBackoff)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Build the processing pipeline
	pgStore := store.NewPostgresStore(pool)
	client := meteo.NewHTTPClient(cfg.Meteo)
	pipeline := worker.NewPipeline(client, cfg.Analysis)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector("weathervane", registry)

	poller := worker.NewPoller(pgStore, pipeline, cfg.Worker, collector)

	// 5. Serve health and metrics in the background
	srv := healthServer(cfg.Worker.HealthPort, pgStore, registry)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("health server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// 6. Poll until shutdown
	pollerDone := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(pollerDone)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("health server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, finishing current job...")
	}

	// The poller stops between iterations; an in-flight job finishes first.
	<-pollerDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("health server shutdown: %w", err)
	}

	slog.Info("worker stopped gracefully")
	return nil
}

func healthServer(port int, s store.Store, registry *prometheus.Registry) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := s.Ping(req.Context()); err != nil {
			http.Error(w, `{"status":"degraded","database":"unreachable"}`,
				http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
