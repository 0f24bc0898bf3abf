package store

import (
	"context"
	"errors"
	"time"

	"github.com/climatelab/weathervane/pkg/models"
	"github.com/google/uuid"
)

var (
	// ErrNoJob means no claimable PENDING row exists right now. Callers sleep
	// and retry; they never block inside the store waiting for one.
	ErrNoJob = errors.New("no job available")

	// ErrNotFound means the target row does not exist, or a terminal update
	// addressed a job that is not IN_PROGRESS anymore. Terminal states are
	// never overwritten.
	ErrNotFound = errors.New("job not found or not in progress")
)

// ClaimedJob is the slice of a job a worker needs to process it.
type ClaimedJob struct {
	ID   uuid.UUID
	City string
}

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)

	// ClaimNextJob atomically selects the oldest PENDING job, skipping rows
	// locked by concurrent claimers, and transitions it to IN_PROGRESS in the
	// same transaction. Returns ErrNoJob immediately when nothing is claimable.
	ClaimNextJob(ctx context.Context) (*ClaimedJob, error)

	// CompleteJob and FailJob are the only exits from IN_PROGRESS. Both set
	// completed_at; CompleteJob stores the result payload, FailJob the reason.
	CompleteJob(ctx context.Context, id uuid.UUID, result []byte) error
	FailJob(ctx context.Context, id uuid.UUID, reason string) error

	// DeleteTerminalBefore removes COMPLETED/FAILED rows whose completed_at is
	// older than cutoff. FailStaleClaims fails IN_PROGRESS rows started longer
	// than olderThan ago; it is how claims orphaned by a crashed worker are
	// resolved without ever moving a row backwards.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
	FailStaleClaims(ctx context.Context, olderThan time.Duration) (int64, error)
}
