package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobtracker/internal/api/response"
	"github.com/kiranshivaraju/jobtracker/internal/presence"
)

// PresenceTracker records and reports who is online.
type PresenceTracker interface {
	Heartbeat(ctx context.Context, workspaceID, workerID uuid.UUID) (time.Time, error)
	Leave(ctx context.Context, workspaceID, workerID uuid.UUID) error
	Online(ctx context.Context, workspaceID uuid.UUID) ([]presence.Status, error)
}

func presenceUnavailable(w http.ResponseWriter) {
	response.Fail(w, response.CodeUnavailable, "Presence is temporarily unavailable", nil)
}

// NewHeartbeatHandler returns an http.HandlerFunc for POST /api/v1/presence/heartbeat.
// The body carries the recorded last_seen_at.
func NewHeartbeatHandler(t PresenceTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}

		at, err := t.Heartbeat(r.Context(), a.WorkspaceID, a.WorkerID)
		if err != nil {
			presenceUnavailable(w)
			return
		}
		response.JSON(w, map[string]time.Time{"last_seen_at": at})
	}
}

// NewLeaveHandler returns an http.HandlerFunc for DELETE /api/v1/presence.
func NewLeaveHandler(t PresenceTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}

		if err := t.Leave(r.Context(), a.WorkspaceID, a.WorkerID); err != nil {
			presenceUnavailable(w)
			return
		}
		response.NoContent(w)
	}
}

// NewOnlineHandler returns an http.HandlerFunc for GET /api/v1/presence.
func NewOnlineHandler(t PresenceTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}

		online, err := t.Online(r.Context(), a.WorkspaceID)
		if err != nil {
			presenceUnavailable(w)
			return
		}
		response.JSON(w, online)
	}
}
