package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/climatelab/weathervane/internal/analysis"
	"github.com/climatelab/weathervane/internal/config"
	"github.com/climatelab/weathervane/internal/meteo"
	"github.com/climatelab/weathervane/internal/metrics"
	"github.com/climatelab/weathervane/internal/store"
)

// Poller runs the claim → process → finalize loop. Each iteration handles at
// most one job; coordination between worker processes happens entirely inside
// the store's atomic claim, so the poller holds no locks of its own.
type Poller struct {
	store     store.Store
	processor Processor
	metrics   *metrics.Collector

	idleInterval time.Duration
	errorBackoff time.Duration

	// sleep is injectable so tests can observe delays without waiting.
	sleep func(ctx context.Context, d time.Duration)
}

func NewPoller(s store.Store, proc Processor, cfg config.WorkerConfig, m *metrics.Collector) *Poller {
	return &Poller{
		store:        s,
		processor:    proc,
		metrics:      m,
		idleInterval: cfg.IdleInterval,
		errorBackoff: cfg.ErrorBackoff,
		sleep:        sleepWithContext,
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	slog.Info("worker started, waiting for jobs")
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopping")
			return
		default:
		}

		if delay := p.runOnce(ctx); delay > 0 {
			p.sleep(ctx, delay)
		}
	}
}

// runOnce executes one iteration of the state machine and returns how long to
// sleep before the next claim attempt. Zero means claim again immediately.
func (p *Poller) runOnce(ctx context.Context) time.Duration {
	// Idle: try to claim.
	claimed, err := p.store.ClaimNextJob(ctx)
	if errors.Is(err, store.ErrNoJob) {
		p.metrics.ClaimMissesTotal.Inc()
		return p.idleInterval
	}
	if err != nil {
		// Store unavailable at the claim step. Nothing was claimed, so no job
		// state is at risk; back off and retry.
		slog.Error("claim attempt failed", "error", err)
		return p.errorBackoff
	}

	p.metrics.JobsClaimedTotal.Inc()
	slog.Info("job claimed", "job_id", claimed.ID, "city", claimed.City)

	// Processing.
	start := time.Now()
	payload, procErr := p.processor.Process(ctx, claimed.City)
	p.metrics.ProcessDuration.Observe(time.Since(start).Seconds())

	// Finalizing.
	if procErr != nil {
		slog.Error("job processing failed", "job_id", claimed.ID, "city", claimed.City, "error", procErr)
		p.metrics.JobsFailedTotal.WithLabelValues(failReason(procErr)).Inc()

		if err := p.store.FailJob(ctx, claimed.ID, procErr.Error()); err != nil {
			p.metrics.StuckJobsTotal.Inc()
			slog.Error("CRITICAL: could not mark job FAILED, job is stuck IN_PROGRESS",
				"job_id", claimed.ID, "error", err)
			return p.errorBackoff
		}
		return p.errorBackoff
	}

	if err := p.store.CompleteJob(ctx, claimed.ID, payload); err != nil {
		p.metrics.StuckJobsTotal.Inc()
		slog.Error("CRITICAL: could not mark job COMPLETED, job is stuck IN_PROGRESS",
			"job_id", claimed.ID, "error", err)
		return p.errorBackoff
	}

	p.metrics.JobsCompletedTotal.Inc()
	slog.Info("job completed", "job_id", claimed.ID, "city", claimed.City,
		"duration", time.Since(start).Round(time.Millisecond))
	return 0
}

// failReason buckets a processing error into a metric label.
func failReason(err error) string {
	switch {
	case errors.Is(err, meteo.ErrLocationNotFound):
		return "location_not_found"
	case errors.Is(err, meteo.ErrMeteoTimeout):
		return "upstream_timeout"
	case errors.Is(err, meteo.ErrMeteoUnreachable):
		return "upstream_unreachable"
	case errors.Is(err, meteo.ErrMeteoQueryError):
		return "upstream_error"
	case errors.Is(err, analysis.ErrInsufficientData):
		return "insufficient_data"
	default:
		return "processing_error"
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
