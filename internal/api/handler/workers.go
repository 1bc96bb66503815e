package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobtracker/internal/api/response"
	"github.com/kiranshivaraju/jobtracker/internal/store"
	"github.com/kiranshivaraju/jobtracker/internal/workflow"
	"github.com/kiranshivaraju/jobtracker/pkg/models"
)

// WorkerStore manages workspace roster entries.
type WorkerStore interface {
	CreateWorker(ctx context.Context, w *models.Worker) error
	ListWorkers(ctx context.Context, workspaceID uuid.UUID) ([]*models.Worker, error)
}

// LastSeenReader reports the most recent heartbeat of a worker.
type LastSeenReader interface {
	LastSeen(ctx context.Context, workspaceID, workerID uuid.UUID) (time.Time, bool, error)
}

type workerRow struct {
	*models.Worker
	LastSeenAt *time.Time `json:"last_seen_at"`
}

// NewListWorkersHandler returns an http.HandlerFunc for GET /api/v1/workers.
// Each row carries last_seen_at, null when the worker never sent a heartbeat
// or presence is unavailable.
func NewListWorkersHandler(s WorkerStore, seen LastSeenReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}

		workers, err := s.ListWorkers(r.Context(), a.WorkspaceID)
		if err != nil {
			writeError(w, r, workflow.Classify(err))
			return
		}

		rows := make([]workerRow, len(workers))
		lookup := seen != nil
		for i, worker := range workers {
			rows[i] = workerRow{Worker: worker}
			if !lookup {
				continue
			}
			at, found, err := seen.LastSeen(r.Context(), a.WorkspaceID, worker.ID)
			if err != nil {
				slog.Warn("last seen unavailable", "error", err, "workspace_id", a.WorkspaceID)
				lookup = false
				continue
			}
			if found {
				rows[i].LastSeenAt = &at
			}
		}
		response.JSON(w, rows)
	}
}

// NewCreateWorkerHandler returns an http.HandlerFunc for POST /api/v1/workers.
// The new worker joins the caller's workspace.
func NewCreateWorkerHandler(s WorkerStore, now func() time.Time) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}

		var req struct {
			EmployeeCode string      `json:"employee_code"`
			FullName     string      `json:"full_name"`
			Role         models.Role `json:"role"`
		}
		if !decodeBody(w, r, &req, false) {
			return
		}
		req.EmployeeCode = strings.TrimSpace(req.EmployeeCode)
		req.FullName = strings.TrimSpace(req.FullName)
		if req.EmployeeCode == "" || req.FullName == "" {
			response.Fail(w, response.CodeInvalidRequest, "employee_code and full_name are required", nil)
			return
		}
		if req.Role == "" {
			req.Role = models.RoleEmployee
		}
		if !req.Role.Valid() {
			response.Fail(w, response.CodeInvalidRequest, "role must be ADMIN or EMPLOYEE", nil)
			return
		}

		ts := now().UTC()
		worker := &models.Worker{
			ID:           uuid.New(),
			WorkspaceID:  a.WorkspaceID,
			EmployeeCode: req.EmployeeCode,
			FullName:     req.FullName,
			Role:         req.Role,
			CreatedAt:    ts,
			UpdatedAt:    ts,
		}
		if err := s.CreateWorker(r.Context(), worker); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				response.Fail(w, response.CodeConflict, "employee_code already exists", nil)
				return
			}
			writeError(w, r, workflow.Classify(err))
			return
		}
		response.Created(w, worker)
	}
}
