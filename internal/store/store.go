package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobtracker/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. Reads go straight through; every
// state-changing workflow operation runs inside InTx.
type Store interface {
	Ping(ctx context.Context) error

	// InTx runs fn as a single atomic unit. If fn returns an error, nothing
	// fn wrote is committed.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	CreateWorker(ctx context.Context, w *models.Worker) error
	GetWorker(ctx context.Context, id uuid.UUID) (*models.Worker, error)
	ListWorkers(ctx context.Context, workspaceID uuid.UUID) ([]*models.Worker, error)

	GetJob(ctx context.Context, id uuid.UUID, workspaceID uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, error)

	GetActiveTimer(ctx context.Context, workerID uuid.UUID) (*models.ActiveTimer, error)

	ListTimeEntries(ctx context.Context, filter TimeEntryFilter) ([]*models.TimeEntry, error)
	ListReviewRecords(ctx context.Context, jobID uuid.UUID) ([]*models.ReviewRecord, error)

	ListNotifications(ctx context.Context, filter NotificationFilter) ([]*models.Notification, error)
	GetNotification(ctx context.Context, id uuid.UUID, workspaceID uuid.UUID) (*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id uuid.UUID, workspaceID uuid.UUID) (*models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, filter NotificationFilter) (int, error)
}

// Tx is the write side of the store, valid only inside InTx.
type Tx interface {
	// LockWorker blocks until the caller holds the exclusive timer slot lock
	// for workerID. The lock is released when the unit ends.
	LockWorker(ctx context.Context, workerID uuid.UUID) error

	GetWorker(ctx context.Context, id uuid.UUID) (*models.Worker, error)

	CreateJob(ctx context.Context, job *models.Job) error
	// GetJobForUpdate reads the job and holds it for the rest of the unit.
	GetJobForUpdate(ctx context.Context, id uuid.UUID, workspaceID uuid.UUID) (*models.Job, error)
	UpdateJob(ctx context.Context, job *models.Job) error

	GetActiveTimer(ctx context.Context, workerID uuid.UUID) (*models.ActiveTimer, error)
	// CreateActiveTimer returns ErrDuplicateKey if the worker already has one.
	CreateActiveTimer(ctx context.Context, timer *models.ActiveTimer) error
	DeleteActiveTimer(ctx context.Context, id uuid.UUID) error

	CreateTimeEntry(ctx context.Context, entry *models.TimeEntry) error
	CreateReviewRecord(ctx context.Context, rec *models.ReviewRecord) error
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// JobFilter narrows ListJobs. WorkspaceID is required; text fields match
// case-insensitively as substrings.
type JobFilter struct {
	WorkspaceID  uuid.UUID
	Status       models.JobStatus
	AssigneeID   *uuid.UUID
	ClientName   string
	ProjectID    string
	TaskTypeCode string
	// Keyword matches any of client name, project id, project name,
	// task type code or label.
	Keyword       string
	CreatedAfter  time.Time
	CreatedBefore time.Time
}

// TimeEntryFilter narrows ListTimeEntries. Entries are scoped to the
// workspace through their job.
type TimeEntryFilter struct {
	WorkspaceID uuid.UUID
	JobID       *uuid.UUID
	WorkerID    *uuid.UUID
}

// NotificationFilter selects notifications addressed to a worker directly
// or to the worker's role.
type NotificationFilter struct {
	WorkspaceID uuid.UUID
	WorkerID    uuid.UUID
	Role        models.Role
	UnreadOnly  bool
}
