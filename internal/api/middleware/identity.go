package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobtracker/internal/api/response"
	"github.com/kiranshivaraju/jobtracker/internal/store"
	"github.com/kiranshivaraju/jobtracker/pkg/models"
)

const (
	WorkspaceHeader = "X-Workspace-ID"
	WorkerHeader    = "X-Worker-ID"
)

// WorkerGetter looks up the worker behind a request.
type WorkerGetter interface {
	GetWorker(ctx context.Context, id uuid.UUID) (*models.Worker, error)
}

// Identity resolves the calling worker from headers set by the upstream
// session layer. It does not authenticate; it only binds the request to a
// known worker of the named workspace.
type Identity struct {
	workers WorkerGetter
}

func NewIdentity(workers WorkerGetter) *Identity {
	return &Identity{workers: workers}
}

// Resolve sets workspace_id and worker in the request context.
func (i *Identity) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workspaceID, err := uuid.Parse(strings.TrimSpace(r.Header.Get(WorkspaceHeader)))
		if err != nil {
			response.Fail(w, response.CodeUnauthenticated, "Missing or invalid "+WorkspaceHeader+" header", nil)
			return
		}
		workerID, err := uuid.Parse(strings.TrimSpace(r.Header.Get(WorkerHeader)))
		if err != nil {
			response.Fail(w, response.CodeUnauthenticated, "Missing or invalid "+WorkerHeader+" header", nil)
			return
		}

		worker, err := i.workers.GetWorker(r.Context(), workerID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && worker.WorkspaceID != workspaceID) {
			response.Fail(w, response.CodeUnauthenticated, "Unknown worker for this workspace", nil)
			return
		}
		if err != nil {
			slog.Error("resolve worker", "error", err, "worker_id", workerID)
			response.Fail(w, response.CodeInternal, "Failed to resolve caller", nil)
			return
		}

		ctx := SetWorkspaceID(r.Context(), workspaceID)
		ctx = SetWorker(ctx, worker)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole returns middleware that admits only callers with one of roles.
func (i *Identity) RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			worker, ok := GetWorker(r)
			if ok {
				for _, role := range roles {
					if worker.Role == role {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			response.Fail(w, response.CodeForbidden, "Insufficient permissions", nil)
		})
	}
}
