package timer_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobtracker/internal/store"
	"github.com/kiranshivaraju/jobtracker/internal/timer"
	"github.com/kiranshivaraju/jobtracker/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func tryStart(ctx context.Context, s store.Store, workerID, jobID uuid.UUID) (*models.ActiveTimer, error) {
	var session *models.ActiveTimer
	err := s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		session, err = timer.Open(tx).TryStart(ctx, workerID, jobID, t0)
		return err
	})
	return session, err
}

func consume(ctx context.Context, s store.Store, workerID, jobID uuid.UUID) (*models.ActiveTimer, error) {
	var session *models.ActiveTimer
	err := s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		session, err = timer.Open(tx).Consume(ctx, workerID, jobID)
		return err
	})
	return session, err
}

func TestTryStart_CreatesSession(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	workerID, jobID := uuid.New(), uuid.New()

	session, err := tryStart(ctx, s, workerID, jobID)
	require.NoError(t, err)
	assert.Equal(t, workerID, session.WorkerID)
	assert.Equal(t, jobID, session.JobID)
	assert.Equal(t, t0, session.StartedAt)

	live, err := s.GetActiveTimer(ctx, workerID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, live.ID)
}

func TestTryStart_ConflictReportsExistingJob(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	workerID, job1, job2 := uuid.New(), uuid.New(), uuid.New()

	_, err := tryStart(ctx, s, workerID, job1)
	require.NoError(t, err)

	_, err = tryStart(ctx, s, workerID, job2)
	var conflict *timer.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, job1, conflict.ExistingJobID)
}

func TestTryStart_SameJobTwiceConflicts(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	workerID, jobID := uuid.New(), uuid.New()

	_, err := tryStart(ctx, s, workerID, jobID)
	require.NoError(t, err)

	_, err = tryStart(ctx, s, workerID, jobID)
	var conflict *timer.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, jobID, conflict.ExistingJobID)
}

func TestTryStart_DifferentWorkersIndependent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	jobID := uuid.New()

	_, err := tryStart(ctx, s, uuid.New(), jobID)
	require.NoError(t, err)
	_, err = tryStart(ctx, s, uuid.New(), jobID)
	require.NoError(t, err)
}

func TestTryStart_ConcurrentCallsYieldOneSession(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	workerID := uuid.New()

	const callers = 50
	var wg sync.WaitGroup
	var started, conflicts atomic.Int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tryStart(ctx, s, workerID, uuid.New())
			var conflict *timer.ConflictError
			switch {
			case err == nil:
				started.Add(1)
			case errors.As(err, &conflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), started.Load())
	assert.Equal(t, int32(callers-1), conflicts.Load())
}

func TestConsume_RemovesSession(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	workerID, jobID := uuid.New(), uuid.New()

	started, err := tryStart(ctx, s, workerID, jobID)
	require.NoError(t, err)

	consumed, err := consume(ctx, s, workerID, jobID)
	require.NoError(t, err)
	assert.Equal(t, started.ID, consumed.ID)

	_, err = s.GetActiveTimer(ctx, workerID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConsume_NoSession(t *testing.T) {
	_, err := consume(context.Background(), store.NewMemoryStore(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, timer.ErrNoActiveTimer)
}

func TestConsume_WrongJobLeavesSession(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	workerID, jobID := uuid.New(), uuid.New()

	_, err := tryStart(ctx, s, workerID, jobID)
	require.NoError(t, err)

	_, err = consume(ctx, s, workerID, uuid.New())
	assert.ErrorIs(t, err, timer.ErrNoActiveTimer)

	_, err = s.GetActiveTimer(ctx, workerID)
	assert.NoError(t, err)
}

func TestConsume_Twice(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	workerID, jobID := uuid.New(), uuid.New()

	_, err := tryStart(ctx, s, workerID, jobID)
	require.NoError(t, err)
	_, err = consume(ctx, s, workerID, jobID)
	require.NoError(t, err)

	_, err = consume(ctx, s, workerID, jobID)
	assert.ErrorIs(t, err, timer.ErrNoActiveTimer)
}

func TestConcurrentStartStop_NeverMoreThanOneSession(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	workerID := uuid.New()
	jobs := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(2)
		jobID := jobs[i%len(jobs)]
		go func() {
			defer wg.Done()
			_, _ = tryStart(ctx, s, workerID, jobID)
		}()
		go func() {
			defer wg.Done()
			_, _ = consume(ctx, s, workerID, jobID)
		}()
	}
	wg.Wait()

	// The slot is keyed by worker, so at most one session can remain.
	session, err := s.GetActiveTimer(ctx, workerID)
	if err == nil {
		assert.Contains(t, jobs, session.JobID)
	} else {
		assert.ErrorIs(t, err, store.ErrNotFound)
	}
}

func TestRunning(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	workerID, jobID := uuid.New(), uuid.New()

	_, err := tryStart(ctx, s, workerID, jobID)
	require.NoError(t, err)

	err = s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		reg := timer.Open(tx)
		running, err := reg.Running(ctx, workerID, jobID)
		require.NoError(t, err)
		assert.True(t, running)

		running, err = reg.Running(ctx, workerID, uuid.New())
		require.NoError(t, err)
		assert.False(t, running)

		running, err = reg.Running(ctx, uuid.New(), jobID)
		require.NoError(t, err)
		assert.False(t, running)
		return nil
	})
	require.NoError(t, err)
}

// --- fake slots ---

type lockFailSlots struct{ store.Tx }

func (lockFailSlots) LockWorker(_ context.Context, _ uuid.UUID) error {
	return errors.New("lock timeout")
}

func TestTryStart_LockErrorPropagates(t *testing.T) {
	_, err := timer.Open(lockFailSlots{}).TryStart(context.Background(), uuid.New(), uuid.New(), t0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock timeout")
}

type racingSlots struct{}

func (racingSlots) LockWorker(_ context.Context, _ uuid.UUID) error { return nil }
func (racingSlots) GetActiveTimer(_ context.Context, _ uuid.UUID) (*models.ActiveTimer, error) {
	return nil, store.ErrNotFound
}
func (racingSlots) CreateActiveTimer(_ context.Context, _ *models.ActiveTimer) error {
	return store.ErrDuplicateKey
}
func (racingSlots) DeleteActiveTimer(_ context.Context, _ uuid.UUID) error { return nil }

func TestTryStart_DuplicateKeyIsConflict(t *testing.T) {
	_, err := timer.Open(racingSlots{}).TryStart(context.Background(), uuid.New(), uuid.New(), t0)
	var conflict *timer.ConflictError
	assert.True(t, errors.As(err, &conflict))
}
