package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobtracker/internal/api/response"
	"github.com/kiranshivaraju/jobtracker/internal/report"
	"github.com/kiranshivaraju/jobtracker/pkg/models"
)

// Reporter produces the read-side reports.
type Reporter interface {
	TimeEntries(ctx context.Context, workspaceID uuid.UUID) ([]*models.TimeEntry, error)
	WorkerReport(ctx context.Context, workspaceID, workerID uuid.UUID) (*report.WorkerReport, error)
	Summary(ctx context.Context, workspaceID uuid.UUID) (*report.Summary, error)
}

// NewTimeEntriesHandler returns an http.HandlerFunc for GET /api/v1/reports/time-entries.
func NewTimeEntriesHandler(svc Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		p, err := parsePage(r)
		if err != nil {
			response.Fail(w, response.CodeInvalidRequest, err.Error(), nil)
			return
		}

		entries, err := svc.TimeEntries(r.Context(), a.WorkspaceID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		items, meta := paginate(entries, p)
		response.Collection(w, items, meta)
	}
}

// NewWorkerReportHandler returns an http.HandlerFunc for
// GET /api/v1/reports/workers/{workerID}.
func NewWorkerReportHandler(svc Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		workerID, ok := pathID(w, r, "workerID")
		if !ok {
			return
		}

		rep, err := svc.WorkerReport(r.Context(), a.WorkspaceID, workerID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, rep)
	}
}

// NewMyReportHandler returns an http.HandlerFunc for GET /api/v1/me/report,
// the caller's own worker report.
func NewMyReportHandler(svc Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}

		rep, err := svc.WorkerReport(r.Context(), a.WorkspaceID, a.WorkerID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, rep)
	}
}

// NewSummaryHandler returns an http.HandlerFunc for GET /api/v1/reports/summary.
func NewSummaryHandler(svc Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}

		sum, err := svc.Summary(r.Context(), a.WorkspaceID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, sum)
	}
}
