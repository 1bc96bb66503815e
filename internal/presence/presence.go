// Package presence tracks which workers are online from their heartbeats.
// A worker counts as online while its last heartbeat is within the TTL.
package presence

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobtracker/internal/cache"
	"github.com/kiranshivaraju/jobtracker/pkg/models"
)

// lastSeenRetention bounds how long a worker's last heartbeat is kept after
// it drops out of the online set.
const lastSeenRetention = 30 * 24 * time.Hour

// PresenceCache is the subset of cache.Cache presence needs.
type PresenceCache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	MarkPresent(ctx context.Context, setKey, member string, at time.Time, window time.Duration) error
	PresentSince(ctx context.Context, setKey string, since time.Time) (map[string]time.Time, error)
	RemovePresent(ctx context.Context, setKey, member string) error
}

// WorkerLister resolves the workers of a workspace.
type WorkerLister interface {
	ListWorkers(ctx context.Context, workspaceID uuid.UUID) ([]*models.Worker, error)
}

// Status is an online worker and when it was last seen.
type Status struct {
	WorkerID     uuid.UUID   `json:"worker_id"`
	EmployeeCode string      `json:"employee_code"`
	FullName     string      `json:"full_name"`
	Role         models.Role `json:"role"`
	LastSeenAt   time.Time   `json:"last_seen_at"`
}

type Tracker struct {
	cache   PresenceCache
	workers WorkerLister
	ttl     time.Duration
	now     func() time.Time
}

func NewTracker(c PresenceCache, workers WorkerLister, ttl time.Duration) *Tracker {
	return &Tracker{cache: c, workers: workers, ttl: ttl, now: time.Now}
}

// WithClock overrides time.Now. Intended for tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Heartbeat marks the worker online and returns the recorded time.
func (t *Tracker) Heartbeat(ctx context.Context, workspaceID, workerID uuid.UUID) (time.Time, error) {
	now := t.now().UTC()
	if err := t.cache.MarkPresent(ctx, cache.PresenceSetKey(workspaceID), workerID.String(), now, t.ttl); err != nil {
		return time.Time{}, fmt.Errorf("mark present: %w", err)
	}
	if err := t.cache.Set(ctx, cache.LastSeenKey(workspaceID, workerID), []byte(now.Format(time.RFC3339Nano)), lastSeenRetention); err != nil {
		return time.Time{}, fmt.Errorf("store last seen: %w", err)
	}
	return now, nil
}

// Leave takes the worker offline immediately. Its last-seen time is kept.
func (t *Tracker) Leave(ctx context.Context, workspaceID, workerID uuid.UUID) error {
	if err := t.cache.RemovePresent(ctx, cache.PresenceSetKey(workspaceID), workerID.String()); err != nil {
		return fmt.Errorf("remove presence: %w", err)
	}
	return nil
}

// LastSeen returns the worker's most recent heartbeat, if one is retained.
func (t *Tracker) LastSeen(ctx context.Context, workspaceID, workerID uuid.UUID) (time.Time, bool, error) {
	raw, ok, err := t.cache.Get(ctx, cache.LastSeenKey(workspaceID, workerID))
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	at, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last seen: %w", err)
	}
	return at, true, nil
}

// Online lists workers of the workspace seen within the TTL, most recent
// first. Heartbeats from ids that are no longer workers are ignored.
func (t *Tracker) Online(ctx context.Context, workspaceID uuid.UUID) ([]Status, error) {
	since := t.now().UTC().Add(-t.ttl)
	present, err := t.cache.PresentSince(ctx, cache.PresenceSetKey(workspaceID), since)
	if err != nil {
		return nil, fmt.Errorf("list presence: %w", err)
	}
	if len(present) == 0 {
		return []Status{}, nil
	}

	workers, err := t.workers.ListWorkers(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}

	out := make([]Status, 0, len(present))
	for _, w := range workers {
		at, ok := present[w.ID.String()]
		if !ok {
			continue
		}
		out = append(out, Status{
			WorkerID:     w.ID,
			EmployeeCode: w.EmployeeCode,
			FullName:     w.FullName,
			Role:         w.Role,
			LastSeenAt:   at,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastSeenAt.After(out[j].LastSeenAt) })
	return out, nil
}
