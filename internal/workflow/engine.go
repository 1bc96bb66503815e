// Package workflow drives the job lifecycle. It is the only code that
// changes a job's status, and every operation runs as one unit of work so
// the job, its timer, and its ledgers never disagree.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobtracker/internal/ledger"
	"github.com/kiranshivaraju/jobtracker/internal/notify"
	"github.com/kiranshivaraju/jobtracker/internal/store"
	"github.com/kiranshivaraju/jobtracker/internal/timer"
	"github.com/kiranshivaraju/jobtracker/pkg/models"
)

// Actor is the caller on whose behalf an operation runs. The request layer
// resolves it; the engine never looks it up.
type Actor struct {
	WorkspaceID uuid.UUID
	WorkerID    uuid.UUID
	Role        models.Role
}

// AssigneeResolver looks up the worker a job is assigned to. store.Tx
// satisfies it.
type AssigneeResolver interface {
	GetWorker(ctx context.Context, id uuid.UUID) (*models.Worker, error)
}

// Engine runs the job lifecycle operations.
type Engine struct {
	store        store.Store
	now          func() time.Time
	logger       *slog.Logger
	strictStatus bool
}

type Option func(*Engine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithStrictStatusEdits makes UpdateJob reject status changes.
func WithStrictStatusEdits(strict bool) Option {
	return func(e *Engine) { e.strictStatus = strict }
}

func NewEngine(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) clock() time.Time { return e.now().UTC() }

// run executes fn as one unit and classifies whatever it returns.
func (e *Engine) run(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return Classify(e.store.InTx(ctx, fn))
}

func (e *Engine) logTransition(op string, job *models.Job, from models.JobStatus) {
	e.logger.Info("job transition",
		"op", op,
		"job_id", job.ID,
		"workspace_id", job.WorkspaceID,
		"from", from,
		"to", job.Status,
	)
}

func loadJob(ctx context.Context, tx store.Tx, actor Actor, jobID uuid.UUID) (*models.Job, error) {
	job, err := tx.GetJobForUpdate(ctx, jobID, actor.WorkspaceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fail(ErrNotFound, "job not found")
	}
	return job, err
}

func requireAssignee(job *models.Job, actor Actor) error {
	if job.AssignedToWorkerID != actor.WorkerID {
		return fail(ErrForbidden, "job is not assigned to you")
	}
	return nil
}

func validateDescriptor(d models.JobDescriptor) error {
	var missing []string
	if strings.TrimSpace(d.ClientName) == "" {
		missing = append(missing, "client_name")
	}
	if strings.TrimSpace(d.ProjectID) == "" {
		missing = append(missing, "project_id")
	}
	if strings.TrimSpace(d.TaskTypeCode) == "" {
		missing = append(missing, "task_type_code")
	}
	if len(missing) > 0 {
		return fail(ErrValidation, strings.Join(missing, ", ")+" required")
	}
	return nil
}

func descriptorOf(j *models.Job) models.JobDescriptor {
	return models.JobDescriptor{
		ClientName:    j.ClientName,
		ProjectID:     j.ProjectID,
		ProjectName:   j.ProjectName,
		ChapterScope:  j.ChapterScope,
		TaskTypeCode:  j.TaskTypeCode,
		TaskTypeLabel: j.TaskTypeLabel,
		AdminNote:     j.AdminNote,
	}
}

// CreateJob creates a job in ASSIGNED for assigneeID and notifies the
// assignee. The actor is recorded as the creating admin.
func (e *Engine) CreateJob(ctx context.Context, actor Actor, desc models.JobDescriptor, assigneeID uuid.UUID) (*models.Job, error) {
	if err := validateDescriptor(desc); err != nil {
		return nil, err
	}

	var job *models.Job
	err := e.run(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := checkAssignee(ctx, tx, actor.WorkspaceID, assigneeID); err != nil {
			return err
		}

		now := e.clock()
		job = &models.Job{
			ID:                 uuid.New(),
			WorkspaceID:        actor.WorkspaceID,
			ClientName:         strings.TrimSpace(desc.ClientName),
			ProjectID:          strings.TrimSpace(desc.ProjectID),
			ProjectName:        strings.TrimSpace(desc.ProjectName),
			ChapterScope:       strings.TrimSpace(desc.ChapterScope),
			TaskTypeCode:       strings.TrimSpace(desc.TaskTypeCode),
			TaskTypeLabel:      strings.TrimSpace(desc.TaskTypeLabel),
			AdminNote:          desc.AdminNote,
			AssignedToWorkerID: assigneeID,
			CreatedByAdminID:   actor.WorkerID,
			Status:             models.JobStatusAssigned,
			LastActivityAt:     &now,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := tx.CreateJob(ctx, job); err != nil {
			return err
		}

		_, err := notify.Emit(ctx, tx, job.WorkspaceID, models.ToWorker(assigneeID), models.JobAssignedPayload{
			JobID:        job.ID,
			ClientName:   job.ClientName,
			ProjectID:    job.ProjectID,
			TaskTypeCode: job.TaskTypeCode,
		}, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("job created",
		"job_id", job.ID,
		"workspace_id", job.WorkspaceID,
		"assignee_id", assigneeID,
	)
	return job, nil
}

func checkAssignee(ctx context.Context, resolver AssigneeResolver, workspaceID, assigneeID uuid.UUID) error {
	w, err := resolver.GetWorker(ctx, assigneeID)
	if errors.Is(err, store.ErrNotFound) {
		return fail(ErrNotFound, "assignee not found")
	}
	if err != nil {
		return err
	}
	if w.WorkspaceID != workspaceID {
		return fail(ErrInvalidAssignment, "assignee belongs to a different workspace")
	}
	return nil
}

// UpdateJob applies patch to a job that is not completed. A status in the
// patch is applied directly, without review records or notifications,
// unless the engine runs with strict status edits.
func (e *Engine) UpdateJob(ctx context.Context, actor Actor, jobID uuid.UUID, patch models.JobPatch) (*models.Job, error) {
	if patch.Status != nil {
		if e.strictStatus {
			return nil, fail(ErrValidation, "status can only change through workflow operations")
		}
		if !patch.Status.Valid() {
			return nil, fail(ErrValidation, "unknown status "+string(*patch.Status))
		}
	}

	var (
		job  *models.Job
		from models.JobStatus
	)
	err := e.run(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		job, err = loadJob(ctx, tx, actor, jobID)
		if err != nil {
			return err
		}
		if job.Status == models.JobStatusCompleted {
			return fail(ErrConflict, "completed jobs are immutable")
		}

		from = job.Status
		patch.Apply(job)
		if err := validateDescriptor(descriptorOf(job)); err != nil {
			return err
		}

		now := e.clock()
		job.LastActivityAt = &now
		job.UpdatedAt = now
		return tx.UpdateJob(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	if job.Status != from {
		e.logger.Warn("job status edited out of band",
			"job_id", job.ID,
			"workspace_id", job.WorkspaceID,
			"from", from,
			"to", job.Status,
		)
	}
	return job, nil
}

// StartWork opens a timer for the actor on a job assigned to them. Jobs in
// ASSIGNED or CHANGES_REQUESTED move to IN_PROGRESS.
func (e *Engine) StartWork(ctx context.Context, actor Actor, jobID uuid.UUID) (*models.ActiveTimer, error) {
	var (
		session *models.ActiveTimer
		job     *models.Job
		from    models.JobStatus
	)
	err := e.run(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		job, err = loadJob(ctx, tx, actor, jobID)
		if err != nil {
			return err
		}
		if err := requireAssignee(job, actor); err != nil {
			return err
		}
		if !job.Status.Timeable() {
			return fail(ErrInvalidState, "cannot start a timer on a job that is "+string(job.Status))
		}

		now := e.clock()
		session, err = timer.Open(tx).TryStart(ctx, actor.WorkerID, job.ID, now)
		var conflict *timer.ConflictError
		if errors.As(err, &conflict) {
			return &TimerConflictError{ExistingJobID: conflict.ExistingJobID}
		}
		if err != nil {
			return err
		}

		from = job.Status
		job.Status = models.JobStatusInProgress
		job.LastActivityAt = &now
		job.UpdatedAt = now
		return tx.UpdateJob(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	if from != job.Status {
		e.logTransition("start", job, from)
	}
	return session, nil
}

// StopWork closes the actor's timer on jobID and appends the resulting time
// entry. The job's status never changes here.
func (e *Engine) StopWork(ctx context.Context, actor Actor, jobID uuid.UUID, work ledger.WorkLog) (*models.TimeEntry, error) {
	var entry *models.TimeEntry
	err := e.run(ctx, func(ctx context.Context, tx store.Tx) error {
		job, err := loadJob(ctx, tx, actor, jobID)
		if err != nil {
			return err
		}

		session, err := timer.Open(tx).Consume(ctx, actor.WorkerID, job.ID)
		if errors.Is(err, timer.ErrNoActiveTimer) {
			return fail(ErrInvalidState, "no active timer")
		}
		if err != nil {
			return err
		}

		now := e.clock()
		entry, err = ledger.NewTimeEntry(session, now, work)
		if err != nil {
			return fail(ErrValidation, err.Error())
		}
		if err := tx.CreateTimeEntry(ctx, entry); err != nil {
			return err
		}

		// A completed job keeps its fields; the entry is still recorded.
		if job.Status == models.JobStatusCompleted {
			return nil
		}
		job.LastActivityAt = &now
		job.UpdatedAt = now
		return tx.UpdateJob(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("timer stopped",
		"job_id", entry.JobID,
		"worker_id", entry.WorkerID,
		"duration_minutes", entry.DurationMinutes,
	)
	return entry, nil
}

// transition is the shared body of the review protocol operations.
type transition struct {
	op       string
	to       models.JobStatus
	check    func(ctx context.Context, tx store.Tx, job *models.Job) error
	record   func(job *models.Job, now time.Time) (*models.ReviewRecord, error)
	target   func(job *models.Job) models.NotificationTarget
	payload  func(job *models.Job, rec *models.ReviewRecord) models.NotificationPayload
	assignee bool
}

func (e *Engine) apply(ctx context.Context, actor Actor, jobID uuid.UUID, t transition) (*models.Job, error) {
	var (
		job  *models.Job
		from models.JobStatus
	)
	err := e.run(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		job, err = loadJob(ctx, tx, actor, jobID)
		if err != nil {
			return err
		}
		if t.assignee {
			if err := requireAssignee(job, actor); err != nil {
				return err
			}
		}
		if job.Status == models.JobStatusCompleted {
			return fail(ErrInvalidState, "job is already completed")
		}
		if t.check != nil {
			if err := t.check(ctx, tx, job); err != nil {
				return err
			}
		}

		now := e.clock()
		rec, err := t.record(job, now)
		if err != nil {
			return err
		}

		from = job.Status
		job.Status = t.to
		job.LastActivityAt = &now
		job.UpdatedAt = now
		if err := tx.UpdateJob(ctx, job); err != nil {
			return err
		}
		if err := tx.CreateReviewRecord(ctx, rec); err != nil {
			return err
		}
		_, err = notify.Emit(ctx, tx, job.WorkspaceID, t.target(job), t.payload(job, rec), now)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logTransition(t.op, job, from)
	return job, nil
}

func toAssignee(job *models.Job) models.NotificationTarget {
	return models.ToWorker(job.AssignedToWorkerID)
}

// SubmitJob hands a job in for review. The actor must be the assignee and
// must not have a timer running on it.
func (e *Engine) SubmitJob(ctx context.Context, actor Actor, jobID uuid.UUID) (*models.Job, error) {
	return e.apply(ctx, actor, jobID, transition{
		op:       "submit",
		to:       models.JobStatusUnderReview,
		assignee: true,
		check: func(ctx context.Context, tx store.Tx, job *models.Job) error {
			if job.Status == models.JobStatusUnderReview {
				return fail(ErrInvalidState, "job is already under review")
			}
			running, err := timer.Open(tx).Running(ctx, actor.WorkerID, job.ID)
			if err != nil {
				return err
			}
			if running {
				return fail(ErrConflict, "stop the timer before submitting")
			}
			return nil
		},
		record: func(job *models.Job, now time.Time) (*models.ReviewRecord, error) {
			return ledger.Submitted(job.ID, now), nil
		},
		target: func(*models.Job) models.NotificationTarget {
			return models.ToRole(models.RoleAdmin)
		},
		payload: func(job *models.Job, _ *models.ReviewRecord) models.NotificationPayload {
			return models.JobSubmittedPayload{JobID: job.ID, ClientName: job.ClientName, ProjectID: job.ProjectID}
		},
	})
}

// ApproveJob completes a job. Approving a completed job is rejected.
func (e *Engine) ApproveJob(ctx context.Context, actor Actor, jobID uuid.UUID) (*models.Job, error) {
	return e.apply(ctx, actor, jobID, transition{
		op: "approve",
		to: models.JobStatusCompleted,
		record: func(job *models.Job, now time.Time) (*models.ReviewRecord, error) {
			return ledger.Approved(job.ID, actor.WorkerID, now), nil
		},
		target: toAssignee,
		payload: func(job *models.Job, _ *models.ReviewRecord) models.NotificationPayload {
			return models.JobApprovedPayload{JobID: job.ID, ClientName: job.ClientName}
		},
	})
}

// RequestChanges sends a job back to its assignee with a required message.
func (e *Engine) RequestChanges(ctx context.Context, actor Actor, jobID uuid.UUID, message string) (*models.Job, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fail(ErrValidation, "message is required")
	}
	return e.apply(ctx, actor, jobID, transition{
		op: "request_changes",
		to: models.JobStatusChangesRequested,
		record: func(job *models.Job, now time.Time) (*models.ReviewRecord, error) {
			rec, err := ledger.ChangesRequested(job.ID, actor.WorkerID, message, now)
			if err != nil {
				return nil, fail(ErrValidation, err.Error())
			}
			return rec, nil
		},
		target: toAssignee,
		payload: func(job *models.Job, rec *models.ReviewRecord) models.NotificationPayload {
			return models.ChangesRequestedPayload{JobID: job.ID, Message: *rec.Message}
		},
	})
}

// ActiveTimer returns the actor's live timer, or nil if none is running.
func (e *Engine) ActiveTimer(ctx context.Context, actor Actor) (*models.ActiveTimer, error) {
	session, err := e.store.GetActiveTimer(ctx, actor.WorkerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, Classify(err)
	}
	return session, nil
}
