package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobtracker/pkg/models"
)

type contextKey string

const (
	workspaceIDKey contextKey = "workspace_id"
	workerKey      contextKey = "worker"
	callerNoteKey  contextKey = "caller_note"
)

// callerNote is filled by SetWorker so middleware further out (Logger,
// Recovery) can see who made the request after the handler returns.
type callerNote struct {
	worker *models.Worker
}

func withCallerNote(ctx context.Context) (context.Context, *callerNote) {
	if n, ok := ctx.Value(callerNoteKey).(*callerNote); ok {
		return ctx, n
	}
	n := &callerNote{}
	return context.WithValue(ctx, callerNoteKey, n), n
}

// callerAttrs returns slog attributes for the resolved caller, if any.
func (n *callerNote) callerAttrs() []any {
	if n == nil || n.worker == nil {
		return nil
	}
	return []any{
		"workspace_id", n.worker.WorkspaceID,
		"worker_id", n.worker.ID,
		"role", n.worker.Role,
	}
}

func SetWorkspaceID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, workspaceIDKey, id)
}

func GetWorkspaceID(r *http.Request) (uuid.UUID, bool) {
	id, ok := r.Context().Value(workspaceIDKey).(uuid.UUID)
	return id, ok
}

func SetWorker(ctx context.Context, w *models.Worker) context.Context {
	if n, ok := ctx.Value(callerNoteKey).(*callerNote); ok {
		n.worker = w
	}
	return context.WithValue(ctx, workerKey, w)
}

func GetWorker(r *http.Request) (*models.Worker, bool) {
	w, ok := r.Context().Value(workerKey).(*models.Worker)
	return w, ok && w != nil
}
