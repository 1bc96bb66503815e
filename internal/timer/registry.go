// Package timer tracks the live timer session of each worker. A worker owns
// at most one session at a time, across all jobs.
package timer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobtracker/internal/store"
	"github.com/kiranshivaraju/jobtracker/pkg/models"
)

// ErrNoActiveTimer is returned by Consume when the worker has no live
// session on the given job.
var ErrNoActiveTimer = errors.New("no active timer")

// ConflictError is returned by TryStart when the worker already has a live
// session. ExistingJobID names the job that session belongs to.
type ConflictError struct {
	ExistingJobID uuid.UUID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("another timer is already running on job %s", e.ExistingJobID)
}

// Slots is the transactional store surface the registry works on.
type Slots interface {
	LockWorker(ctx context.Context, workerID uuid.UUID) error
	GetActiveTimer(ctx context.Context, workerID uuid.UUID) (*models.ActiveTimer, error)
	CreateActiveTimer(ctx context.Context, timer *models.ActiveTimer) error
	DeleteActiveTimer(ctx context.Context, id uuid.UUID) error
}

// Registry enforces one live session per worker on top of Slots. It is
// bound to a single unit of work; use Open inside store.Store.InTx.
type Registry struct {
	slots Slots
}

// Open binds a registry to the slots of the current unit of work.
func Open(slots Slots) *Registry {
	return &Registry{slots: slots}
}

// TryStart creates a session for workerID on jobID starting at now. The
// per-worker lock is taken first so the existence check and the insert are
// a single step for that worker; the unique slot constraint backs it up.
func (r *Registry) TryStart(ctx context.Context, workerID, jobID uuid.UUID, now time.Time) (*models.ActiveTimer, error) {
	if err := r.slots.LockWorker(ctx, workerID); err != nil {
		return nil, err
	}

	existing, err := r.slots.GetActiveTimer(ctx, workerID)
	switch {
	case err == nil:
		return nil, &ConflictError{ExistingJobID: existing.JobID}
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	session := &models.ActiveTimer{
		ID:        uuid.New(),
		WorkerID:  workerID,
		JobID:     jobID,
		StartedAt: now.UTC(),
	}
	if err := r.slots.CreateActiveTimer(ctx, session); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			// The slot was taken between check and insert; the transaction is
			// no longer usable, so the owning job cannot be read back here.
			return nil, &ConflictError{}
		}
		return nil, err
	}
	return session, nil
}

// Consume removes and returns the session of workerID, provided it belongs
// to jobID.
func (r *Registry) Consume(ctx context.Context, workerID, jobID uuid.UUID) (*models.ActiveTimer, error) {
	if err := r.slots.LockWorker(ctx, workerID); err != nil {
		return nil, err
	}

	session, err := r.slots.GetActiveTimer(ctx, workerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoActiveTimer
	}
	if err != nil {
		return nil, err
	}
	if session.JobID != jobID {
		return nil, ErrNoActiveTimer
	}

	if err := r.slots.DeleteActiveTimer(ctx, session.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoActiveTimer
		}
		return nil, err
	}
	return session, nil
}

// Running reports whether workerID has a live session on jobID.
func (r *Registry) Running(ctx context.Context, workerID, jobID uuid.UUID) (bool, error) {
	session, err := r.slots.GetActiveTimer(ctx, workerID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return session.JobID == jobID, nil
}
