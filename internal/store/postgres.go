package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/climatelab/weathervane/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, city, status, created_at) VALUES ($1, $2, $3, $4)`,
		job.ID, job.City, job.Status, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var j models.Job
	err := s.pool.QueryRow(ctx,
		`SELECT id, city, status, error_message, result_data, created_at, started_at, completed_at
		 FROM jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.City, &j.Status, &j.ErrorMessage, &j.ResultData,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

// ClaimNextJob selects the oldest PENDING row with FOR UPDATE SKIP LOCKED and
// flips it to IN_PROGRESS inside the same transaction, so no other claimer can
// ever observe the row as PENDING after the select. SKIP LOCKED makes
// concurrent claimers pass over each other's candidate rather than block.
func (s *PostgresStore) ClaimNextJob(ctx context.Context) (*ClaimedJob, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback(ctx)

	var claimed ClaimedJob
	err = tx.QueryRow(ctx,
		`SELECT id, city FROM jobs
		 WHERE status = 'PENDING'
		 ORDER BY created_at
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`,
	).Scan(&claimed.ID, &claimed.City)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoJob
	}
	if err != nil {
		return nil, fmt.Errorf("select claimable job: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE jobs SET status = 'IN_PROGRESS', started_at = NOW() WHERE id = $1`,
		claimed.ID)
	if err != nil {
		return nil, fmt.Errorf("mark job in progress: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return &claimed, nil
}

// CompleteJob moves an IN_PROGRESS job to COMPLETED and stores the result.
// The status guard keeps terminal rows immutable.
func (s *PostgresStore) CompleteJob(ctx context.Context, id uuid.UUID, result []byte) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'COMPLETED', completed_at = NOW(), result_data = $2
		 WHERE id = $1 AND status = 'IN_PROGRESS'`,
		id, result)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FailJob moves an IN_PROGRESS job to FAILED with a reason and no result.
func (s *PostgresStore) FailJob(ctx context.Context, id uuid.UUID, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'FAILED', completed_at = NOW(), error_message = $2
		 WHERE id = $1 AND status = 'IN_PROGRESS'`,
		id, reason)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM jobs
		 WHERE status IN ('COMPLETED', 'FAILED') AND completed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete terminal jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// FailStaleClaims fails IN_PROGRESS rows whose claim is older than olderThan.
// A worker that crashed mid-job leaves its row IN_PROGRESS forever; failing it
// is a forward transition, so status monotonicity still holds.
func (s *PostgresStore) FailStaleClaims(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs
		 SET status = 'FAILED', completed_at = NOW(),
		     error_message = 'claim expired: worker did not finish within the visibility timeout'
		 WHERE status = 'IN_PROGRESS' AND started_at < NOW() - make_interval(secs => $1)`,
		olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("fail stale claims: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
