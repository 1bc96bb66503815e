// Package report computes read-only projections over jobs and the time
// entry ledger. Totals are always summed from entries; nothing here is
// cached or written back.
package report

import (
	"sort"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobtracker/pkg/models"
)

// TotalMinutes sums the duration of every entry.
func TotalMinutes(entries []*models.TimeEntry) int {
	total := 0
	for _, e := range entries {
		total += e.DurationMinutes
	}
	return total
}

// TotalsByJob sums entry durations per job.
func TotalsByJob(entries []*models.TimeEntry) map[uuid.UUID]int {
	totals := make(map[uuid.UUID]int)
	for _, e := range entries {
		totals[e.JobID] += e.DurationMinutes
	}
	return totals
}

// TotalsByWorker sums entry durations per worker.
func TotalsByWorker(entries []*models.TimeEntry) map[uuid.UUID]int {
	totals := make(map[uuid.UUID]int)
	for _, e := range entries {
		totals[e.WorkerID] += e.DurationMinutes
	}
	return totals
}

// JobsByStatus counts jobs per status. Every status is present, zero or not.
func JobsByStatus(jobs []*models.Job) map[models.JobStatus]int {
	counts := make(map[models.JobStatus]int, len(models.JobStatuses))
	for _, s := range models.JobStatuses {
		counts[s] = 0
	}
	for _, j := range jobs {
		counts[j.Status]++
	}
	return counts
}

func JobsByClient(jobs []*models.Job) map[string]int {
	counts := make(map[string]int)
	for _, j := range jobs {
		counts[j.ClientName]++
	}
	return counts
}

// WorkerMinutes is one row of the hours-by-worker breakdown.
type WorkerMinutes struct {
	WorkerID     uuid.UUID `json:"worker_id"`
	EmployeeCode string    `json:"employee_code"`
	FullName     string    `json:"full_name"`
	Minutes      int       `json:"minutes"`
}

// HoursByWorker returns one row per worker, including workers with no
// entries, ordered by minutes descending then name.
func HoursByWorker(workers []*models.Worker, entries []*models.TimeEntry) []WorkerMinutes {
	totals := TotalsByWorker(entries)
	rows := make([]WorkerMinutes, 0, len(workers))
	for _, w := range workers {
		rows = append(rows, WorkerMinutes{
			WorkerID:     w.ID,
			EmployeeCode: w.EmployeeCode,
			FullName:     w.FullName,
			Minutes:      totals[w.ID],
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Minutes != rows[j].Minutes {
			return rows[i].Minutes > rows[j].Minutes
		}
		return rows[i].FullName < rows[j].FullName
	})
	return rows
}

// StatusCounts is the per-status breakdown of one worker's jobs.
type StatusCounts struct {
	Completed        int `json:"jobs_completed"`
	Active           int `json:"jobs_active"`
	UnderReview      int `json:"under_review"`
	ChangesRequested int `json:"changes_requested"`
}

// CountStatuses buckets jobs for a worker report. ASSIGNED and IN_PROGRESS
// both count as active.
func CountStatuses(jobs []*models.Job) StatusCounts {
	var c StatusCounts
	for _, j := range jobs {
		switch j.Status {
		case models.JobStatusCompleted:
			c.Completed++
		case models.JobStatusAssigned, models.JobStatusInProgress:
			c.Active++
		case models.JobStatusUnderReview:
			c.UnderReview++
		case models.JobStatusChangesRequested:
			c.ChangesRequested++
		}
	}
	return c
}

// WithTotals pairs each job with its summed minutes from entries.
func WithTotals(jobs []*models.Job, entries []*models.TimeEntry) []models.JobWithTotals {
	totals := TotalsByJob(entries)
	out := make([]models.JobWithTotals, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, models.JobWithTotals{Job: *j, TotalMinutes: totals[j.ID]})
	}
	return out
}
