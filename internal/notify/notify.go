// Package notify records notification facts. Delivery belongs to whoever
// reads them back; this package only writes them inside the caller's unit
// of work so a notification commits together with the event it describes.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobtracker/pkg/models"
)

var ErrInvalidTarget = errors.New("notification target must name exactly one of worker or role")

// Recorder persists a notification. store.Tx satisfies it.
type Recorder interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// Emit builds a notification for target and records it.
func Emit(ctx context.Context, rec Recorder, workspaceID uuid.UUID, target models.NotificationTarget, payload models.NotificationPayload, now time.Time) (*models.Notification, error) {
	if !target.Valid() {
		return nil, ErrInvalidTarget
	}
	if payload == nil {
		return nil, errors.New("notification payload is required")
	}

	n := &models.Notification{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		ToWorkerID:  target.WorkerID,
		ToRole:      target.Role,
		Type:        payload.NotificationType(),
		Payload:     payload,
		CreatedAt:   now.UTC(),
	}
	if err := rec.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("record %s notification: %w", n.Type, err)
	}
	return n, nil
}
