package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobtracker/pkg/models"
)

// Ensure both implementations satisfy Store at compile time.
var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// MemoryStore is an in-memory Store. Safe for concurrent use. Transactions
// are serialized on a single lock and restored from a snapshot when fn
// fails. Intended for tests and local development.
type MemoryStore struct {
	mu sync.Mutex

	workers       map[uuid.UUID]models.Worker
	jobs          map[uuid.UUID]models.Job
	timers        map[uuid.UUID]models.ActiveTimer // key: worker id
	entries       []models.TimeEntry
	reviews       []models.ReviewRecord
	notifications []models.Notification
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workers: make(map[uuid.UUID]models.Worker),
		jobs:    make(map[uuid.UUID]models.Job),
		timers:  make(map[uuid.UUID]models.ActiveTimer),
	}
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

type memSnapshot struct {
	workers       map[uuid.UUID]models.Worker
	jobs          map[uuid.UUID]models.Job
	timers        map[uuid.UUID]models.ActiveTimer
	entries       int
	reviews       int
	notifications []models.Notification
}

func (m *MemoryStore) snapshot() memSnapshot {
	s := memSnapshot{
		workers:       make(map[uuid.UUID]models.Worker, len(m.workers)),
		jobs:          make(map[uuid.UUID]models.Job, len(m.jobs)),
		timers:        make(map[uuid.UUID]models.ActiveTimer, len(m.timers)),
		entries:       len(m.entries),
		reviews:       len(m.reviews),
		notifications: append([]models.Notification(nil), m.notifications...),
	}
	for k, v := range m.workers {
		s.workers[k] = v
	}
	for k, v := range m.jobs {
		s.jobs[k] = v
	}
	for k, v := range m.timers {
		s.timers[k] = v
	}
	return s
}

func (m *MemoryStore) restore(s memSnapshot) {
	m.workers = s.workers
	m.jobs = s.jobs
	m.timers = s.timers
	// Ledgers are append-only inside a unit, so truncating is enough.
	m.entries = m.entries[:s.entries]
	m.reviews = m.reviews[:s.reviews]
	m.notifications = s.notifications
}

// InTx holds the store lock for the duration of fn.
func (m *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(ctx, &memTx{m: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// memTx operates on the store while InTx holds its lock.
type memTx struct {
	m *MemoryStore
}

// LockWorker is satisfied by the store-wide lock InTx already holds.
func (t *memTx) LockWorker(_ context.Context, _ uuid.UUID) error { return nil }

func (t *memTx) GetWorker(_ context.Context, id uuid.UUID) (*models.Worker, error) {
	return t.m.getWorker(id)
}

func (t *memTx) CreateJob(_ context.Context, job *models.Job) error {
	if _, ok := t.m.jobs[job.ID]; ok {
		return ErrDuplicateKey
	}
	t.m.jobs[job.ID] = cloneJob(*job)
	return nil
}

func (t *memTx) GetJobForUpdate(_ context.Context, id uuid.UUID, workspaceID uuid.UUID) (*models.Job, error) {
	return t.m.getJob(id, workspaceID)
}

func (t *memTx) UpdateJob(_ context.Context, job *models.Job) error {
	cur, ok := t.m.jobs[job.ID]
	if !ok || cur.WorkspaceID != job.WorkspaceID {
		return ErrNotFound
	}
	t.m.jobs[job.ID] = cloneJob(*job)
	return nil
}

func (t *memTx) GetActiveTimer(_ context.Context, workerID uuid.UUID) (*models.ActiveTimer, error) {
	return t.m.getActiveTimer(workerID)
}

func (t *memTx) CreateActiveTimer(_ context.Context, timer *models.ActiveTimer) error {
	if _, ok := t.m.timers[timer.WorkerID]; ok {
		return ErrDuplicateKey
	}
	t.m.timers[timer.WorkerID] = *timer
	return nil
}

func (t *memTx) DeleteActiveTimer(_ context.Context, id uuid.UUID) error {
	for workerID, timer := range t.m.timers {
		if timer.ID == id {
			delete(t.m.timers, workerID)
			return nil
		}
	}
	return ErrNotFound
}

func (t *memTx) CreateTimeEntry(_ context.Context, e *models.TimeEntry) error {
	t.m.entries = append(t.m.entries, *e)
	return nil
}

func (t *memTx) CreateReviewRecord(_ context.Context, r *models.ReviewRecord) error {
	t.m.reviews = append(t.m.reviews, *r)
	return nil
}

func (t *memTx) CreateNotification(_ context.Context, n *models.Notification) error {
	t.m.notifications = append(t.m.notifications, *n)
	return nil
}

// --- Workers ---

func (m *MemoryStore) getWorker(id uuid.UUID) (*models.Worker, error) {
	w, ok := m.workers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &w, nil
}

func (m *MemoryStore) CreateWorker(_ context.Context, w *models.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workers[w.ID]; ok {
		return ErrDuplicateKey
	}
	for _, existing := range m.workers {
		if existing.EmployeeCode == w.EmployeeCode {
			return ErrDuplicateKey
		}
	}
	m.workers[w.ID] = *w
	return nil
}

func (m *MemoryStore) GetWorker(_ context.Context, id uuid.UUID) (*models.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getWorker(id)
}

func (m *MemoryStore) ListWorkers(_ context.Context, workspaceID uuid.UUID) ([]*models.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Worker
	for _, w := range m.workers {
		if w.WorkspaceID == workspaceID {
			w := w
			out = append(out, &w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

// --- Jobs ---

func cloneJob(j models.Job) models.Job {
	if j.AdminNote != nil {
		note := *j.AdminNote
		j.AdminNote = &note
	}
	if j.LastActivityAt != nil {
		at := *j.LastActivityAt
		j.LastActivityAt = &at
	}
	return j
}

func (m *MemoryStore) getJob(id, workspaceID uuid.UUID) (*models.Job, error) {
	j, ok := m.jobs[id]
	if !ok || j.WorkspaceID != workspaceID {
		return nil, ErrNotFound
	}
	c := cloneJob(j)
	return &c, nil
}

func (m *MemoryStore) GetJob(_ context.Context, id uuid.UUID, workspaceID uuid.UUID) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getJob(id, workspaceID)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func (f JobFilter) matches(j *models.Job) bool {
	if j.WorkspaceID != f.WorkspaceID {
		return false
	}
	if f.Status != "" && j.Status != f.Status {
		return false
	}
	if f.AssigneeID != nil && j.AssignedToWorkerID != *f.AssigneeID {
		return false
	}
	if f.ClientName != "" && !containsFold(j.ClientName, f.ClientName) {
		return false
	}
	if f.ProjectID != "" && !containsFold(j.ProjectID, f.ProjectID) {
		return false
	}
	if f.TaskTypeCode != "" && !containsFold(j.TaskTypeCode, f.TaskTypeCode) {
		return false
	}
	if f.Keyword != "" &&
		!containsFold(j.ClientName, f.Keyword) &&
		!containsFold(j.ProjectID, f.Keyword) &&
		!containsFold(j.ProjectName, f.Keyword) &&
		!containsFold(j.TaskTypeCode, f.Keyword) &&
		!containsFold(j.TaskTypeLabel, f.Keyword) {
		return false
	}
	if !f.CreatedAfter.IsZero() && j.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && j.CreatedAt.After(f.CreatedBefore) {
		return false
	}
	return true
}

func (m *MemoryStore) ListJobs(_ context.Context, filter JobFilter) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Job
	for _, j := range m.jobs {
		if filter.matches(&j) {
			c := cloneJob(j)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// --- Active Timers ---

func (m *MemoryStore) getActiveTimer(workerID uuid.UUID) (*models.ActiveTimer, error) {
	t, ok := m.timers[workerID]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *MemoryStore) GetActiveTimer(_ context.Context, workerID uuid.UUID) (*models.ActiveTimer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getActiveTimer(workerID)
}

// --- Time Entries ---

func (m *MemoryStore) ListTimeEntries(_ context.Context, filter TimeEntryFilter) ([]*models.TimeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.TimeEntry
	// Newest first; insertion order breaks CreatedAt ties.
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		j, ok := m.jobs[e.JobID]
		if !ok || j.WorkspaceID != filter.WorkspaceID {
			continue
		}
		if filter.JobID != nil && e.JobID != *filter.JobID {
			continue
		}
		if filter.WorkerID != nil && e.WorkerID != *filter.WorkerID {
			continue
		}
		out = append(out, &e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- Review Records ---

func (m *MemoryStore) ListReviewRecords(_ context.Context, jobID uuid.UUID) ([]*models.ReviewRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ReviewRecord
	for i := len(m.reviews) - 1; i >= 0; i-- {
		r := m.reviews[i]
		if r.JobID == jobID {
			out = append(out, &r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	return out, nil
}

// --- Notifications ---

func (f NotificationFilter) matches(n *models.Notification) bool {
	if n.WorkspaceID != f.WorkspaceID {
		return false
	}
	if f.UnreadOnly && n.IsRead {
		return false
	}
	if n.ToWorkerID != nil && *n.ToWorkerID == f.WorkerID {
		return true
	}
	return n.ToRole != nil && *n.ToRole == f.Role
}

func (m *MemoryStore) ListNotifications(_ context.Context, filter NotificationFilter) ([]*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Notification
	for i := len(m.notifications) - 1; i >= 0; i-- {
		n := m.notifications[i]
		if filter.matches(&n) {
			out = append(out, &n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) GetNotification(_ context.Context, id uuid.UUID, workspaceID uuid.UUID) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.ID == id && n.WorkspaceID == workspaceID {
			return &n, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) MarkNotificationRead(_ context.Context, id uuid.UUID, workspaceID uuid.UUID) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.notifications {
		n := &m.notifications[i]
		if n.ID == id && n.WorkspaceID == workspaceID {
			n.IsRead = true
			c := *n
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) MarkAllNotificationsRead(_ context.Context, filter NotificationFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	filter.UnreadOnly = true
	count := 0
	for i := range m.notifications {
		if filter.matches(&m.notifications[i]) {
			m.notifications[i].IsRead = true
			count++
		}
	}
	return count, nil
}
