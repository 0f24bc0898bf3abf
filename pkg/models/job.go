package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "PENDING"
	JobStatusInProgress = "IN_PROGRESS"
	JobStatusCompleted  = "COMPLETED"
	JobStatusFailed     = "FAILED"
)

// Job is one queued analysis request. Rows are created PENDING by the upstream
// API; a worker claims the oldest PENDING row, moves it to IN_PROGRESS, and
// finishes it as COMPLETED (with result_data) or FAILED (with error_message).
// Transitions are forward-only; a terminal row never changes again.
type Job struct {
	ID           uuid.UUID       `db:"id"            json:"id"`
	City         string          `db:"city"          json:"city"`
	Status       string          `db:"status"        json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	ResultData   json.RawMessage `db:"result_data"   json:"result_data,omitempty"`
	CreatedAt    time.Time       `db:"created_at"    json:"created_at"`
	StartedAt    *time.Time      `db:"started_at"    json:"started_at,omitempty"`
	CompletedAt  *time.Time      `db:"completed_at"  json:"completed_at,omitempty"`
}
