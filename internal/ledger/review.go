package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobtracker/pkg/models"
)

// Submitted records a worker handing a job in for review. There is no
// acting admin.
func Submitted(jobID uuid.UUID, at time.Time) *models.ReviewRecord {
	return &models.ReviewRecord{
		ID:     uuid.New(),
		JobID:  jobID,
		Action: models.ReviewActionSubmitted,
		At:     at.UTC(),
	}
}

func Approved(jobID, adminID uuid.UUID, at time.Time) *models.ReviewRecord {
	return &models.ReviewRecord{
		ID:        uuid.New(),
		JobID:     jobID,
		Action:    models.ReviewActionApproved,
		ByAdminID: &adminID,
		At:        at.UTC(),
	}
}

// ChangesRequested records an admin sending a job back. message is trimmed
// and must not be empty.
func ChangesRequested(jobID, adminID uuid.UUID, message string, at time.Time) (*models.ReviewRecord, error) {
	msg := trimmed(&message)
	if msg == nil {
		return nil, ErrMessageRequired
	}
	return &models.ReviewRecord{
		ID:        uuid.New(),
		JobID:     jobID,
		Action:    models.ReviewActionChangesRequested,
		Message:   msg,
		ByAdminID: &adminID,
		At:        at.UTC(),
	}, nil
}
