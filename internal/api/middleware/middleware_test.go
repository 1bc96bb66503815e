package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/jobtracker/internal/api/middleware"
	"github.com/kiranshivaraju/jobtracker/internal/cache"
	"github.com/kiranshivaraju/jobtracker/internal/store"
	"github.com/kiranshivaraju/jobtracker/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock Workers ---

type mockWorkers struct {
	workers map[uuid.UUID]*models.Worker
	err     error
}

func (m *mockWorkers) GetWorker(_ context.Context, id uuid.UUID) (*models.Worker, error) {
	if m.err != nil {
		return nil, m.err
	}
	w, ok := m.workers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return w, nil
}

// --- Mock Cache ---

type mockCache struct {
	counter int64
	err     error
	lastKey string
}

func (m *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (m *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (m *mockCache) Delete(_ context.Context, _ string) error                          { return nil }
func (m *mockCache) Ping(_ context.Context) error                                      { return nil }
func (m *mockCache) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.lastKey = key
	m.counter++
	return m.counter, m.err
}
func (m *mockCache) MarkPresent(_ context.Context, _, _ string, _ time.Time, _ time.Duration) error {
	return nil
}
func (m *mockCache) PresentSince(_ context.Context, _ string, _ time.Time) (map[string]time.Time, error) {
	return nil, nil
}
func (m *mockCache) RemovePresent(_ context.Context, _, _ string) error { return nil }

// --- helpers ---

func okHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

func errBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"].(map[string]any)
}

func newWorker(role models.Role) *models.Worker {
	return &models.Worker{ID: uuid.New(), WorkspaceID: uuid.New(), EmployeeCode: "E-1", FullName: "Ana", Role: role}
}

func identityReq(ws, worker string) *http.Request {
	req := httptest.NewRequest("GET", "/test", nil)
	if ws != "" {
		req.Header.Set(mw.WorkspaceHeader, ws)
	}
	if worker != "" {
		req.Header.Set(mw.WorkerHeader, worker)
	}
	return req
}

func withWorker(req *http.Request, w *models.Worker) *http.Request {
	ctx := mw.SetWorkspaceID(req.Context(), w.WorkspaceID)
	return req.WithContext(mw.SetWorker(ctx, w))
}

// ========================================
// Identity Middleware Tests
// ========================================

func TestIdentity_MissingHeaders(t *testing.T) {
	id := mw.NewIdentity(&mockWorkers{})
	handler := id.Resolve(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, identityReq("", ""))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHENTICATED", errBody(t, w)["code"])
}

func TestIdentity_InvalidWorkerHeader(t *testing.T) {
	id := mw.NewIdentity(&mockWorkers{})
	handler := id.Resolve(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, identityReq(uuid.NewString(), "not-a-uuid"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIdentity_UnknownWorker(t *testing.T) {
	id := mw.NewIdentity(&mockWorkers{workers: map[uuid.UUID]*models.Worker{}})
	handler := id.Resolve(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, identityReq(uuid.NewString(), uuid.NewString()))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIdentity_WorkspaceMismatch(t *testing.T) {
	worker := newWorker(models.RoleEmployee)
	id := mw.NewIdentity(&mockWorkers{workers: map[uuid.UUID]*models.Worker{worker.ID: worker}})
	handler := id.Resolve(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, identityReq(uuid.NewString(), worker.ID.String()))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIdentity_StoreError(t *testing.T) {
	id := mw.NewIdentity(&mockWorkers{err: errors.New("db down")})
	handler := id.Resolve(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, identityReq(uuid.NewString(), uuid.NewString()))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errBody(t, w)["code"])
}

func TestIdentity_ValidWorker(t *testing.T) {
	worker := newWorker(models.RoleEmployee)
	id := mw.NewIdentity(&mockWorkers{workers: map[uuid.UUID]*models.Worker{worker.ID: worker}})

	var (
		gotWS     uuid.UUID
		gotWorker *models.Worker
		gotOK     bool
	)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotWS, _ = mw.GetWorkspaceID(r)
		gotWorker, gotOK = mw.GetWorker(r)
		w.WriteHeader(http.StatusOK)
	})
	handler := id.Resolve(inner)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, identityReq(worker.WorkspaceID.String(), " "+worker.ID.String()+" "))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gotOK)
	assert.Equal(t, worker.WorkspaceID, gotWS)
	assert.Equal(t, worker.ID, gotWorker.ID)
}

func TestIdentity_RequireRole_Allowed(t *testing.T) {
	admin := newWorker(models.RoleAdmin)
	id := mw.NewIdentity(&mockWorkers{workers: map[uuid.UUID]*models.Worker{admin.ID: admin}})

	handler := id.Resolve(id.RequireRole(models.RoleAdmin)(okHandler()))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, identityReq(admin.WorkspaceID.String(), admin.ID.String()))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIdentity_RequireRole_Denied(t *testing.T) {
	emp := newWorker(models.RoleEmployee)
	id := mw.NewIdentity(&mockWorkers{workers: map[uuid.UUID]*models.Worker{emp.ID: emp}})

	handler := id.Resolve(id.RequireRole(models.RoleAdmin)(okHandler()))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, identityReq(emp.WorkspaceID.String(), emp.ID.String()))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", errBody(t, w)["code"])
}

func TestIdentity_RequireRole_NoWorker(t *testing.T) {
	id := mw.NewIdentity(&mockWorkers{})
	handler := id.RequireRole(models.RoleAdmin, models.RoleEmployee)(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

// ========================================
// Rate Limit Middleware Tests
// ========================================

var rateNow = time.Date(2024, 3, 1, 9, 0, 15, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestRateLimit_AllowsUnderLimit(t *testing.T) {
	mc := &mockCache{counter: 0}
	rl := mw.NewRateLimit(mc, 60).WithClock(fixedClock(rateNow))
	worker := newWorker(models.RoleEmployee)

	handler := rl.Limit(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, withWorker(httptest.NewRequest("GET", "/test", nil), worker))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "60", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "59", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1709283660", w.Header().Get("X-RateLimit-Reset"))
	assert.Equal(t, cache.RateLimitKey(worker.ID, rateNow.Truncate(time.Minute)), mc.lastKey)
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	mc := &mockCache{counter: 60} // next IncrWithExpiry will return 61
	rl := mw.NewRateLimit(mc, 60).WithClock(fixedClock(rateNow))

	handler := rl.Limit(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, withWorker(httptest.NewRequest("GET", "/test", nil), newWorker(models.RoleEmployee)))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "45", w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errBody(t, w)["code"])
}

func TestRateLimit_NewWindowUsesNewKey(t *testing.T) {
	mc := &mockCache{}
	now := rateNow
	rl := mw.NewRateLimit(mc, 60).WithClock(func() time.Time { return now })
	worker := newWorker(models.RoleEmployee)
	handler := rl.Limit(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), withWorker(httptest.NewRequest("GET", "/test", nil), worker))
	first := mc.lastKey

	now = now.Add(time.Minute)
	handler.ServeHTTP(httptest.NewRecorder(), withWorker(httptest.NewRequest("GET", "/test", nil), worker))
	assert.NotEqual(t, first, mc.lastKey)
}

func TestRateLimit_RetryAfterAtLeastOneSecond(t *testing.T) {
	mc := &mockCache{counter: 5}
	rl := mw.NewRateLimit(mc, 1).WithClock(fixedClock(time.Date(2024, 3, 1, 9, 0, 59, 900_000_000, time.UTC)))

	w := httptest.NewRecorder()
	rl.Limit(okHandler()).ServeHTTP(w, withWorker(httptest.NewRequest("GET", "/test", nil), newWorker(models.RoleEmployee)))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRateLimit_CacheErrorFailsOpen(t *testing.T) {
	mc := &mockCache{counter: 1000, err: errors.New("redis down")}
	rl := mw.NewRateLimit(mc, 60)

	handler := rl.Limit(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, withWorker(httptest.NewRequest("GET", "/test", nil), newWorker(models.RoleEmployee)))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_NoWorker_PassThrough(t *testing.T) {
	mc := &mockCache{}
	rl := mw.NewRateLimit(mc, 60)

	handler := rl.Limit(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, mc.lastKey)
}

// ========================================
// Recovery Middleware Tests
// ========================================

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestRecovery_CatchesPanic(t *testing.T) {
	captureLogs(t)
	panicking := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("something went wrong")
	})

	handler := mw.Recovery(panicking)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errBody(t, w)["code"])
}

func TestRecovery_LogsResolvedCaller(t *testing.T) {
	buf := captureLogs(t)
	worker := newWorker(models.RoleEmployee)
	id := mw.NewIdentity(&mockWorkers{workers: map[uuid.UUID]*models.Worker{worker.ID: worker}})

	handler := mw.Recovery(id.Resolve(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("stop failed")
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, identityReq(worker.WorkspaceID.String(), worker.ID.String()))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	lines := logLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "panic recovered", lines[0]["msg"])
	assert.Equal(t, "stop failed", lines[0]["error"])
	assert.Equal(t, worker.ID.String(), lines[0]["worker_id"])
}

func TestRecovery_RepanicsAbortHandler(t *testing.T) {
	handler := mw.Recovery(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/test", nil))
	})
}

func TestRecovery_NoPanic(t *testing.T) {
	handler := mw.Recovery(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

// ========================================
// Logging Middleware Tests
// ========================================

func TestLogger_SetsStatus(t *testing.T) {
	buf := captureLogs(t)
	handler := mw.Logger(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	lines := logLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "/test", lines[0]["route"])
	assert.Equal(t, float64(http.StatusOK), lines[0]["status"])
	_, hasWorker := lines[0]["worker_id"]
	assert.False(t, hasWorker)
}

func TestLogger_RoutePatternAndCaller(t *testing.T) {
	buf := captureLogs(t)
	worker := newWorker(models.RoleEmployee)
	id := mw.NewIdentity(&mockWorkers{workers: map[uuid.UUID]*models.Worker{worker.ID: worker}})

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.With(id.Resolve).Post("/api/v1/jobs/{jobID}/stop", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	req := identityReq(worker.WorkspaceID.String(), worker.ID.String())
	req.Method = http.MethodPost
	req.URL.Path = "/api/v1/jobs/" + uuid.NewString() + "/stop"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	lines := logLines(t, buf)
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "/api/v1/jobs/{jobID}/stop", line["route"])
	assert.Equal(t, worker.ID.String(), line["worker_id"])
	assert.Equal(t, worker.WorkspaceID.String(), line["workspace_id"])
	assert.Equal(t, string(models.RoleEmployee), line["role"])
	assert.NotEmpty(t, line["request_id"])
}

func TestLogger_ServerErrorLogsAtError(t *testing.T) {
	buf := captureLogs(t)
	handler := mw.Logger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/presence", nil))

	lines := logLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "ERROR", lines[0]["level"])
}
