package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobtracker/internal/api/response"
	"github.com/kiranshivaraju/jobtracker/internal/ledger"
	"github.com/kiranshivaraju/jobtracker/internal/workflow"
	"github.com/kiranshivaraju/jobtracker/pkg/models"
)

// TimerService starts and stops a worker's timing session.
type TimerService interface {
	StartWork(ctx context.Context, actor workflow.Actor, jobID uuid.UUID) (*models.ActiveTimer, error)
	StopWork(ctx context.Context, actor workflow.Actor, jobID uuid.UUID, work ledger.WorkLog) (*models.TimeEntry, error)
	ActiveTimer(ctx context.Context, actor workflow.Actor) (*models.ActiveTimer, error)
}

// NewStartWorkHandler returns an http.HandlerFunc for POST /api/v1/jobs/{jobID}/start.
func NewStartWorkHandler(svc TimerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		jobID, ok := pathID(w, r, "jobID")
		if !ok {
			return
		}

		session, err := svc.StartWork(r.Context(), a, jobID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.Created(w, session)
	}
}

// NewStopWorkHandler returns an http.HandlerFunc for POST /api/v1/jobs/{jobID}/stop.
// The body is optional: {"page_count_done": 3, "remarks": "..."}.
func NewStopWorkHandler(svc TimerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		jobID, ok := pathID(w, r, "jobID")
		if !ok {
			return
		}

		var work ledger.WorkLog
		if !decodeBody(w, r, &work, true) {
			return
		}

		entry, err := svc.StopWork(r.Context(), a, jobID, work)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.Created(w, entry)
	}
}

// NewActiveTimerHandler returns an http.HandlerFunc for GET /api/v1/me/timer.
// data is null when the caller has nothing running.
func NewActiveTimerHandler(svc TimerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}

		session, err := svc.ActiveTimer(r.Context(), a)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, session)
	}
}
