package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobtracker/internal/api/response"
	"github.com/kiranshivaraju/jobtracker/internal/workflow"
)

// writeError maps a workflow error kind onto the response envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var timerConflict *workflow.TimerConflictError
	switch {
	case errors.As(err, &timerConflict):
		var details map[string]string
		if timerConflict.ExistingJobID != uuid.Nil {
			details = map[string]string{"existing_job_id": timerConflict.ExistingJobID.String()}
		}
		response.Fail(w, response.CodeConflict, "Another timer is already running", details)
	case errors.Is(err, workflow.ErrNotFound):
		response.Fail(w, response.CodeNotFound, err.Error(), nil)
	case errors.Is(err, workflow.ErrForbidden):
		response.Fail(w, response.CodeForbidden, err.Error(), nil)
	case errors.Is(err, workflow.ErrInvalidState):
		response.Fail(w, response.CodeInvalidState, err.Error(), nil)
	case errors.Is(err, workflow.ErrConflict):
		response.Fail(w, response.CodeConflict, err.Error(), nil)
	case errors.Is(err, workflow.ErrValidation):
		response.Fail(w, response.CodeInvalidRequest, err.Error(), nil)
	case errors.Is(err, workflow.ErrInvalidAssignment):
		response.Fail(w, response.CodeInvalidAssignment, err.Error(), nil)
	case errors.Is(err, workflow.ErrUnavailable):
		slog.Error("store unavailable", "error", err, "method", r.Method, "path", r.URL.Path)
		response.Fail(w, response.CodeUnavailable, "The service is temporarily unavailable", nil)
	default:
		slog.Error("unhandled error", "error", err, "method", r.Method, "path", r.URL.Path)
		response.Fail(w, response.CodeInternal, "An unexpected error occurred", nil)
	}
}
