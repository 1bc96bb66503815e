package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationType tags a notification and fixes the shape of its payload.
type NotificationType string

const (
	NotificationJobAssigned      NotificationType = "JOB_ASSIGNED"
	NotificationJobSubmitted     NotificationType = "JOB_SUBMITTED"
	NotificationJobApproved      NotificationType = "JOB_APPROVED"
	NotificationChangesRequested NotificationType = "CHANGES_REQUESTED"
)

// NotificationPayload is implemented by each payload variant.
type NotificationPayload interface {
	NotificationType() NotificationType
}

type JobAssignedPayload struct {
	JobID        uuid.UUID `json:"job_id"`
	ClientName   string    `json:"client_name"`
	ProjectID    string    `json:"project_id"`
	TaskTypeCode string    `json:"task_type_code"`
}

func (JobAssignedPayload) NotificationType() NotificationType { return NotificationJobAssigned }

type JobSubmittedPayload struct {
	JobID      uuid.UUID `json:"job_id"`
	ClientName string    `json:"client_name"`
	ProjectID  string    `json:"project_id"`
}

func (JobSubmittedPayload) NotificationType() NotificationType { return NotificationJobSubmitted }

type JobApprovedPayload struct {
	JobID      uuid.UUID `json:"job_id"`
	ClientName string    `json:"client_name"`
}

func (JobApprovedPayload) NotificationType() NotificationType { return NotificationJobApproved }

type ChangesRequestedPayload struct {
	JobID   uuid.UUID `json:"job_id"`
	Message string    `json:"message"`
}

func (ChangesRequestedPayload) NotificationType() NotificationType {
	return NotificationChangesRequested
}

// DecodePayload decodes raw JSON into the payload variant for t.
func DecodePayload(t NotificationType, raw []byte) (NotificationPayload, error) {
	var p NotificationPayload
	switch t {
	case NotificationJobAssigned:
		var v JobAssignedPayload
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case NotificationJobSubmitted:
		var v JobSubmittedPayload
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case NotificationJobApproved:
		var v JobApprovedPayload
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case NotificationChangesRequested:
		var v ChangesRequestedPayload
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	default:
		return nil, fmt.Errorf("unknown notification type %q", t)
	}
	return p, nil
}

// NotificationTarget addresses either a single worker or a whole role.
type NotificationTarget struct {
	WorkerID *uuid.UUID
	Role     *Role
}

func ToWorker(id uuid.UUID) NotificationTarget { return NotificationTarget{WorkerID: &id} }

func ToRole(r Role) NotificationTarget { return NotificationTarget{Role: &r} }

// Valid reports whether exactly one of WorkerID and Role is set.
func (t NotificationTarget) Valid() bool {
	return (t.WorkerID != nil) != (t.Role != nil)
}

// Notification is a recorded fact for a delivery collaborator to surface.
type Notification struct {
	ID          uuid.UUID           `db:"id"           json:"id"`
	WorkspaceID uuid.UUID           `db:"workspace_id" json:"workspace_id"`
	ToWorkerID  *uuid.UUID          `db:"to_worker_id" json:"to_worker_id,omitempty"`
	ToRole      *Role               `db:"to_role"      json:"to_role,omitempty"`
	Type        NotificationType    `db:"type"         json:"type"`
	Payload     NotificationPayload `db:"payload"      json:"payload"`
	IsRead      bool                `db:"is_read"      json:"is_read"`
	CreatedAt   time.Time           `db:"created_at"   json:"created_at"`
}

// VisibleTo reports whether the notification is addressed to the worker,
// either directly or through the worker's role.
func (n *Notification) VisibleTo(w *Worker) bool {
	if n.WorkspaceID != w.WorkspaceID {
		return false
	}
	if n.ToWorkerID != nil {
		return *n.ToWorkerID == w.ID
	}
	return n.ToRole != nil && *n.ToRole == w.Role
}

func (n *Notification) UnmarshalJSON(data []byte) error {
	type alias Notification
	aux := struct {
		*alias
		Payload json.RawMessage `json:"payload"`
	}{alias: (*alias)(n)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Payload) == 0 || string(aux.Payload) == "null" {
		n.Payload = nil
		return nil
	}
	p, err := DecodePayload(n.Type, aux.Payload)
	if err != nil {
		return err
	}
	n.Payload = p
	return nil
}
