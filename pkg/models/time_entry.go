package models

import (
	"time"

	"github.com/google/uuid"
)

// TimeEntry is the immutable record written when a timer stops.
type TimeEntry struct {
	ID              uuid.UUID `db:"id"               json:"id"`
	JobID           uuid.UUID `db:"job_id"           json:"job_id"`
	WorkerID        uuid.UUID `db:"worker_id"        json:"worker_id"`
	Date            string    `db:"entry_date"       json:"date"`
	StartTime       time.Time `db:"start_time"       json:"start_time"`
	EndTime         time.Time `db:"end_time"         json:"end_time"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	PageCountDone   *int      `db:"page_count_done"  json:"page_count_done,omitempty"`
	Remarks         *string   `db:"remarks"          json:"remarks,omitempty"`
	CreatedAt       time.Time `db:"created_at"       json:"created_at"`
}
