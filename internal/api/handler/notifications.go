package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/jobtracker/internal/api/middleware"
	"github.com/kiranshivaraju/jobtracker/internal/api/response"
	"github.com/kiranshivaraju/jobtracker/internal/store"
	"github.com/kiranshivaraju/jobtracker/internal/workflow"
	"github.com/kiranshivaraju/jobtracker/pkg/models"
)

// NotificationStore reads and acknowledges notifications.
type NotificationStore interface {
	ListNotifications(ctx context.Context, filter store.NotificationFilter) ([]*models.Notification, error)
	GetNotification(ctx context.Context, id uuid.UUID, workspaceID uuid.UUID) (*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id uuid.UUID, workspaceID uuid.UUID) (*models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, filter store.NotificationFilter) (int, error)
}

func inboxFilter(w *models.Worker) store.NotificationFilter {
	return store.NotificationFilter{
		WorkspaceID: w.WorkspaceID,
		WorkerID:    w.ID,
		Role:        w.Role,
	}
}

func caller(w http.ResponseWriter, r *http.Request) (*models.Worker, bool) {
	worker, ok := mw.GetWorker(r)
	if !ok {
		response.Fail(w, response.CodeUnauthenticated, "Missing caller identity", nil)
	}
	return worker, ok
}

// NewListNotificationsHandler returns an http.HandlerFunc for
// GET /api/v1/notifications. ?unread_only=true limits to unread ones.
func NewListNotificationsHandler(s NotificationStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		worker, ok := caller(w, r)
		if !ok {
			return
		}

		filter := inboxFilter(worker)
		if v := r.URL.Query().Get("unread_only"); v != "" {
			unread, err := strconv.ParseBool(v)
			if err != nil {
				response.Fail(w, response.CodeInvalidRequest, "unread_only must be a boolean", nil)
				return
			}
			filter.UnreadOnly = unread
		}
		p, err := parsePage(r)
		if err != nil {
			response.Fail(w, response.CodeInvalidRequest, err.Error(), nil)
			return
		}

		list, err := s.ListNotifications(r.Context(), filter)
		if err != nil {
			writeError(w, r, workflow.Classify(err))
			return
		}
		items, meta := paginate(list, p)
		response.Collection(w, items, meta)
	}
}

// NewMarkNotificationReadHandler returns an http.HandlerFunc for
// POST /api/v1/notifications/{notificationID}/read. Notifications addressed
// to someone else are reported as not found.
func NewMarkNotificationReadHandler(s NotificationStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		worker, ok := caller(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "notificationID")
		if !ok {
			return
		}

		n, err := s.GetNotification(r.Context(), id, worker.WorkspaceID)
		if err == nil && !n.VisibleTo(worker) {
			err = store.ErrNotFound
		}
		if err == nil {
			n, err = s.MarkNotificationRead(r.Context(), id, worker.WorkspaceID)
		}
		if errors.Is(err, store.ErrNotFound) {
			response.Fail(w, response.CodeNotFound, "notification not found", nil)
			return
		}
		if err != nil {
			writeError(w, r, workflow.Classify(err))
			return
		}
		response.JSON(w, n)
	}
}

// NewMarkAllNotificationsReadHandler returns an http.HandlerFunc for
// POST /api/v1/notifications/read-all.
func NewMarkAllNotificationsReadHandler(s NotificationStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		worker, ok := caller(w, r)
		if !ok {
			return
		}

		n, err := s.MarkAllNotificationsRead(r.Context(), inboxFilter(worker))
		if err != nil {
			writeError(w, r, workflow.Classify(err))
			return
		}
		response.JSON(w, map[string]int{"marked_read": n})
	}
}
