package presence_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobtracker/internal/presence"
	"github.com/kiranshivaraju/jobtracker/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockCache struct {
	mu      sync.Mutex
	values  map[string][]byte
	sets    map[string]map[string]time.Time
	markErr error
}

func newMockCache() *mockCache {
	return &mockCache{values: map[string][]byte{}, sets: map[string]map[string]time.Time{}}
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mockCache) MarkPresent(_ context.Context, setKey, member string, at time.Time, _ time.Duration) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sets[setKey] == nil {
		m.sets[setKey] = map[string]time.Time{}
	}
	m.sets[setKey][member] = at
	return nil
}

func (m *mockCache) PresentSince(_ context.Context, setKey string, since time.Time) (map[string]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]time.Time{}
	for member, at := range m.sets[setKey] {
		if !at.Before(since) {
			out[member] = at
		}
	}
	return out, nil
}

func (m *mockCache) RemovePresent(_ context.Context, setKey, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sets[setKey], member)
	return nil
}

type mockWorkers struct {
	workers []*models.Worker
}

func (m *mockWorkers) ListWorkers(_ context.Context, workspaceID uuid.UUID) ([]*models.Worker, error) {
	var out []*models.Worker
	for _, w := range m.workers {
		if w.WorkspaceID == workspaceID {
			out = append(out, w)
		}
	}
	return out, nil
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func setup() (*presence.Tracker, *mockCache, *clock, uuid.UUID, []*models.Worker) {
	ws := uuid.New()
	workers := []*models.Worker{
		{ID: uuid.New(), WorkspaceID: ws, EmployeeCode: "E-1", FullName: "Ana", Role: models.RoleEmployee},
		{ID: uuid.New(), WorkspaceID: ws, EmployeeCode: "E-2", FullName: "Ben", Role: models.RoleEmployee},
	}
	c := newMockCache()
	clk := &clock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	tr := presence.NewTracker(c, &mockWorkers{workers: workers}, 2*time.Minute).WithClock(clk.Now)
	return tr, c, clk, ws, workers
}

func TestHeartbeat_MarksOnline(t *testing.T) {
	tr, _, clk, ws, workers := setup()
	ctx := context.Background()

	at, err := tr.Heartbeat(ctx, ws, workers[0].ID)
	require.NoError(t, err)
	assert.Equal(t, clk.t, at)

	online, err := tr.Online(ctx, ws)
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, workers[0].ID, online[0].WorkerID)
	assert.Equal(t, "Ana", online[0].FullName)
	assert.Equal(t, clk.t, online[0].LastSeenAt)
}

func TestOnline_ExpiresAfterTTL(t *testing.T) {
	tr, _, clk, ws, workers := setup()
	ctx := context.Background()

	_, err := tr.Heartbeat(ctx, ws, workers[0].ID)
	require.NoError(t, err)
	clk.t = clk.t.Add(time.Minute)
	_, err = tr.Heartbeat(ctx, ws, workers[1].ID)
	require.NoError(t, err)

	online, err := tr.Online(ctx, ws)
	require.NoError(t, err)
	require.Len(t, online, 2)
	assert.Equal(t, "Ben", online[0].FullName, "most recent first")

	clk.t = clk.t.Add(90 * time.Second)
	online, err = tr.Online(ctx, ws)
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, "Ben", online[0].FullName)
}

func TestOnline_Empty(t *testing.T) {
	tr, _, _, ws, _ := setup()

	online, err := tr.Online(context.Background(), ws)
	require.NoError(t, err)
	assert.NotNil(t, online)
	assert.Empty(t, online)
}

func TestOnline_IgnoresUnknownWorkers(t *testing.T) {
	tr, _, _, ws, _ := setup()
	ctx := context.Background()

	_, err := tr.Heartbeat(ctx, ws, uuid.New())
	require.NoError(t, err)

	online, err := tr.Online(ctx, ws)
	require.NoError(t, err)
	assert.Empty(t, online)
}

func TestLeave(t *testing.T) {
	tr, _, _, ws, workers := setup()
	ctx := context.Background()

	at, err := tr.Heartbeat(ctx, ws, workers[0].ID)
	require.NoError(t, err)
	require.NoError(t, tr.Leave(ctx, ws, workers[0].ID))

	online, err := tr.Online(ctx, ws)
	require.NoError(t, err)
	assert.Empty(t, online)

	last, ok, err := tr.LastSeen(ctx, ws, workers[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, at.Equal(last))
}

func TestLastSeen_Never(t *testing.T) {
	tr, _, _, ws, _ := setup()

	_, ok, err := tr.LastSeen(context.Background(), ws, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHeartbeat_CacheError(t *testing.T) {
	tr, c, _, ws, workers := setup()
	c.markErr = errors.New("redis down")

	_, err := tr.Heartbeat(context.Background(), ws, workers[0].ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
}
