// Package ledger builds the append-only records of the system: time entries
// derived from closed timer sessions, and review records for the
// submit/approve/request-changes protocol. Records are constructed and
// validated here and appended by the caller inside its unit of work.
package ledger

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobtracker/internal/timer"
	"github.com/kiranshivaraju/jobtracker/pkg/models"
)

var (
	ErrNegativePageCount = errors.New("page count cannot be negative")
	ErrMessageRequired   = errors.New("message is required")
)

// WorkLog is the optional input a worker supplies when stopping a timer.
type WorkLog struct {
	PageCountDone *int    `json:"page_count_done,omitempty"`
	Remarks       *string `json:"remarks,omitempty"`
}

func (l WorkLog) validate() error {
	if l.PageCountDone != nil && *l.PageCountDone < 0 {
		return ErrNegativePageCount
	}
	return nil
}

// NewTimeEntry closes session at end and returns the entry to append. The
// entry date is the UTC calendar date the session started on.
func NewTimeEntry(session *models.ActiveTimer, end time.Time, log WorkLog) (*models.TimeEntry, error) {
	if err := log.validate(); err != nil {
		return nil, err
	}

	start := session.StartedAt.UTC()
	end = end.UTC()
	if end.Before(start) {
		end = start
	}

	entry := &models.TimeEntry{
		ID:              uuid.New(),
		JobID:           session.JobID,
		WorkerID:        session.WorkerID,
		Date:            start.Format(time.DateOnly),
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: timer.DurationMinutes(start, end),
		CreatedAt:       end,
	}
	if log.PageCountDone != nil {
		pages := *log.PageCountDone
		entry.PageCountDone = &pages
	}
	entry.Remarks = trimmed(log.Remarks)
	return entry, nil
}

// trimmed returns nil for a nil or blank string, otherwise a trimmed copy.
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
