package workflow

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobtracker/internal/store"
)

var (
	// Caller errors.
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidAssignment = errors.New("invalid assignment")

	// State errors.
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")

	// Persistence errors.
	ErrUnavailable = errors.New("store unavailable")
)

// TimerConflictError reports that the worker already has a live timer.
// It matches ErrConflict.
type TimerConflictError struct {
	ExistingJobID uuid.UUID
}

func (e *TimerConflictError) Error() string {
	if e.ExistingJobID == uuid.Nil {
		return "conflict: another timer is already running"
	}
	return fmt.Sprintf("conflict: another timer is already running on job %s", e.ExistingJobID)
}

func (e *TimerConflictError) Is(target error) bool { return target == ErrConflict }

func fail(kind error, msg string) error {
	return fmt.Errorf("%w: %s", kind, msg)
}

var kinds = []error{
	ErrNotFound, ErrForbidden, ErrValidation, ErrInvalidAssignment,
	ErrInvalidState, ErrConflict, ErrUnavailable,
}

// Classify returns err unchanged if it already carries a kind, otherwise
// wraps it with the kind matching the store failure.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return err
		}
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, store.ErrDuplicateKey):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}
