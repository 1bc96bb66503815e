package models

import (
	"time"

	"github.com/google/uuid"
)

// ReviewAction is the kind of review event recorded against a job.
type ReviewAction string

const (
	ReviewActionSubmitted        ReviewAction = "SUBMITTED"
	ReviewActionChangesRequested ReviewAction = "CHANGES_REQUESTED"
	ReviewActionApproved         ReviewAction = "APPROVED"
)

// ReviewRecord is one append-only entry in a job's review trail.
// ByAdminID is nil for worker-initiated submissions.
type ReviewRecord struct {
	ID        uuid.UUID    `db:"id"          json:"id"`
	JobID     uuid.UUID    `db:"job_id"      json:"job_id"`
	Action    ReviewAction `db:"action"      json:"action"`
	Message   *string      `db:"message"     json:"message,omitempty"`
	ByAdminID *uuid.UUID   `db:"by_admin_id" json:"by_admin_id,omitempty"`
	At        time.Time    `db:"at"          json:"at"`
}
