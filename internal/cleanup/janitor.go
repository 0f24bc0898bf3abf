// Package cleanup houses the periodic maintenance jobs for the jobs table:
// purging terminal rows past their retention window and failing claims from
// crashed workers.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/climatelab/weathervane/internal/config"
	"github.com/climatelab/weathervane/internal/store"
	"github.com/go-co-op/gocron"
)

const sweepTimeout = 2 * time.Minute

// Janitor runs the retention and stale-claim sweeps on a fixed schedule.
type Janitor struct {
	scheduler *gocron.Scheduler
	store     store.Store
	cfg       config.CleanupConfig

	// now is injectable for tests.
	now func() time.Time
}

func NewJanitor(s store.Store, cfg config.CleanupConfig) *Janitor {
	return &Janitor{
		scheduler: gocron.NewScheduler(time.UTC),
		store:     s,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Start runs one sweep immediately, then schedules repeats every interval.
func (j *Janitor) Start() error {
	_, err := j.scheduler.Every(j.cfg.Interval).StartImmediately().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		j.Sweep(ctx)
	})
	if err != nil {
		return err
	}
	j.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler; a sweep already in flight finishes.
func (j *Janitor) Stop() {
	j.scheduler.Stop()
}

// Sweep executes both maintenance passes once. Each pass logs its own outcome;
// a failure in one does not stop the other.
func (j *Janitor) Sweep(ctx context.Context) {
	cutoff := j.now().UTC().Add(-j.cfg.Retention)
	deleted, err := j.store.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		slog.Error("retention sweep failed", "error", err)
	} else if deleted > 0 {
		slog.Info("purged old jobs", "count", deleted, "cutoff", cutoff)
	}

	expired, err := j.store.FailStaleClaims(ctx, j.cfg.StaleAfter)
	if err != nil {
		slog.Error("stale claim sweep failed", "error", err)
	} else if expired > 0 {
		slog.Warn("failed stale claims", "count", expired, "older_than", j.cfg.StaleAfter)
	}
}
