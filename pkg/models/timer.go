package models

import (
	"time"

	"github.com/google/uuid"
)

// ActiveTimer is a live measurement of one worker on one job. At most one
// exists per worker. It is consumed, never updated, when the timer stops.
type ActiveTimer struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	WorkerID  uuid.UUID `db:"worker_id"  json:"worker_id"`
	JobID     uuid.UUID `db:"job_id"     json:"job_id"`
	StartedAt time.Time `db:"started_at" json:"started_at"`
}
