package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/jobtracker/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// querier is the subset shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// InTx runs fn inside a single database transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// pgTx implements Tx on top of a pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockWorker(ctx context.Context, workerID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, workerID.String())
	if err != nil {
		return fmt.Errorf("lock worker: %w", err)
	}
	return nil
}

func (t *pgTx) GetWorker(ctx context.Context, id uuid.UUID) (*models.Worker, error) {
	return getWorker(ctx, t.tx, id)
}

func (t *pgTx) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO jobs (id, workspace_id, client_name, project_id, project_name, chapter_scope,
		   task_type_code, task_type_label, admin_note, assigned_to_worker_id, created_by_admin_id,
		   status, last_activity_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		job.ID, job.WorkspaceID, job.ClientName, job.ProjectID, job.ProjectName, job.ChapterScope,
		job.TaskTypeCode, job.TaskTypeLabel, job.AdminNote, job.AssignedToWorkerID, job.CreatedByAdminID,
		string(job.Status), job.LastActivityAt, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (t *pgTx) GetJobForUpdate(ctx context.Context, id uuid.UUID, workspaceID uuid.UUID) (*models.Job, error) {
	return getJob(ctx, t.tx, id, workspaceID, true)
}

func (t *pgTx) UpdateJob(ctx context.Context, job *models.Job) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE jobs SET client_name = $3, project_id = $4, project_name = $5, chapter_scope = $6,
		   task_type_code = $7, task_type_label = $8, admin_note = $9, status = $10,
		   last_activity_at = $11, updated_at = $12
		 WHERE id = $1 AND workspace_id = $2`,
		job.ID, job.WorkspaceID, job.ClientName, job.ProjectID, job.ProjectName, job.ChapterScope,
		job.TaskTypeCode, job.TaskTypeLabel, job.AdminNote, string(job.Status),
		job.LastActivityAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) GetActiveTimer(ctx context.Context, workerID uuid.UUID) (*models.ActiveTimer, error) {
	return getActiveTimer(ctx, t.tx, workerID)
}

func (t *pgTx) CreateActiveTimer(ctx context.Context, timer *models.ActiveTimer) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO active_timers (id, worker_id, job_id, started_at) VALUES ($1, $2, $3, $4)`,
		timer.ID, timer.WorkerID, timer.JobID, timer.StartedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create active timer: %w", err)
	}
	return nil
}

func (t *pgTx) DeleteActiveTimer(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM active_timers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete active timer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) CreateTimeEntry(ctx context.Context, e *models.TimeEntry) error {
	date, err := time.Parse(time.DateOnly, e.Date)
	if err != nil {
		return fmt.Errorf("create time entry: invalid date %q: %w", e.Date, err)
	}
	_, err = t.tx.Exec(ctx,
		`INSERT INTO time_entries (id, job_id, worker_id, entry_date, start_time, end_time,
		   duration_minutes, page_count_done, remarks, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.JobID, e.WorkerID, date, e.StartTime, e.EndTime,
		e.DurationMinutes, e.PageCountDone, e.Remarks, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("create time entry: %w", err)
	}
	return nil
}

func (t *pgTx) CreateReviewRecord(ctx context.Context, r *models.ReviewRecord) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO review_records (id, job_id, action, message, by_admin_id, at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.JobID, string(r.Action), r.Message, r.ByAdminID, r.At)
	if err != nil {
		return fmt.Errorf("create review record: %w", err)
	}
	return nil
}

func (t *pgTx) CreateNotification(ctx context.Context, n *models.Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("encode notification payload: %w", err)
	}
	var role *string
	if n.ToRole != nil {
		r := string(*n.ToRole)
		role = &r
	}
	_, err = t.tx.Exec(ctx,
		`INSERT INTO notifications (id, workspace_id, to_worker_id, to_role, type, payload, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.WorkspaceID, n.ToWorkerID, role, string(n.Type), payload, n.IsRead, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// --- Workers ---

const workerColumns = `id, workspace_id, employee_code, full_name, role, created_at, updated_at`

func scanWorker(row pgx.Row) (*models.Worker, error) {
	var w models.Worker
	var role string
	if err := row.Scan(&w.ID, &w.WorkspaceID, &w.EmployeeCode, &w.FullName, &role,
		&w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.Role = models.Role(role)
	return &w, nil
}

func getWorker(ctx context.Context, q querier, id uuid.UUID) (*models.Worker, error) {
	w, err := scanWorker(q.QueryRow(ctx, `SELECT `+workerColumns+` FROM workers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get worker: %w", err)
	}
	return w, nil
}

func (s *PostgresStore) CreateWorker(ctx context.Context, w *models.Worker) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO workers (`+workerColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		w.ID, w.WorkspaceID, w.EmployeeCode, w.FullName, string(w.Role), w.CreatedAt, w.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create worker: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetWorker(ctx context.Context, id uuid.UUID) (*models.Worker, error) {
	return getWorker(ctx, s.pool, id)
}

func (s *PostgresStore) ListWorkers(ctx context.Context, workspaceID uuid.UUID) ([]*models.Worker, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE workspace_id = $1 ORDER BY full_name`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	defer rows.Close()

	var workers []*models.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, fmt.Errorf("scan worker: %w", err)
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

// --- Jobs ---

const jobColumns = `id, workspace_id, client_name, project_id, project_name, chapter_scope,
	task_type_code, task_type_label, admin_note, assigned_to_worker_id, created_by_admin_id,
	status, last_activity_at, created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	var status string
	if err := row.Scan(&j.ID, &j.WorkspaceID, &j.ClientName, &j.ProjectID, &j.ProjectName,
		&j.ChapterScope, &j.TaskTypeCode, &j.TaskTypeLabel, &j.AdminNote, &j.AssignedToWorkerID,
		&j.CreatedByAdminID, &status, &j.LastActivityAt, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.Status = models.JobStatus(status)
	return &j, nil
}

func getJob(ctx context.Context, q querier, id, workspaceID uuid.UUID, forUpdate bool) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1 AND workspace_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	j, err := scanJob(q.QueryRow(ctx, query, id, workspaceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID, workspaceID uuid.UUID) (*models.Job, error) {
	return getJob(ctx, s.pool, id, workspaceID, false)
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, error) {
	// Build WHERE clause dynamically
	conditions := []string{"workspace_id = $1"}
	args := []any{filter.WorkspaceID}
	argIdx := 2

	addLike := func(column, value string) {
		conditions = append(conditions, fmt.Sprintf("%s ILIKE '%%' || $%d || '%%'", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.AssigneeID != nil {
		conditions = append(conditions, fmt.Sprintf("assigned_to_worker_id = $%d", argIdx))
		args = append(args, *filter.AssigneeID)
		argIdx++
	}
	if filter.ClientName != "" {
		addLike("client_name", filter.ClientName)
	}
	if filter.ProjectID != "" {
		addLike("project_id", filter.ProjectID)
	}
	if filter.TaskTypeCode != "" {
		addLike("task_type_code", filter.TaskTypeCode)
	}
	if filter.Keyword != "" {
		p := fmt.Sprintf("'%%' || $%d || '%%'", argIdx)
		conditions = append(conditions, fmt.Sprintf(
			"(client_name ILIKE %[1]s OR project_id ILIKE %[1]s OR project_name ILIKE %[1]s OR task_type_code ILIKE %[1]s OR task_type_label ILIKE %[1]s)", p))
		args = append(args, filter.Keyword)
		argIdx++
	}
	if !filter.CreatedAfter.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, filter.CreatedAfter)
		argIdx++
	}
	if !filter.CreatedBefore.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, filter.CreatedBefore)
		argIdx++
	}

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY updated_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// --- Active Timers ---

func getActiveTimer(ctx context.Context, q querier, workerID uuid.UUID) (*models.ActiveTimer, error) {
	var t models.ActiveTimer
	err := q.QueryRow(ctx,
		`SELECT id, worker_id, job_id, started_at FROM active_timers WHERE worker_id = $1`, workerID,
	).Scan(&t.ID, &t.WorkerID, &t.JobID, &t.StartedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active timer: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) GetActiveTimer(ctx context.Context, workerID uuid.UUID) (*models.ActiveTimer, error) {
	return getActiveTimer(ctx, s.pool, workerID)
}

// --- Time Entries ---

func (s *PostgresStore) ListTimeEntries(ctx context.Context, filter TimeEntryFilter) ([]*models.TimeEntry, error) {
	conditions := []string{"j.workspace_id = $1"}
	args := []any{filter.WorkspaceID}
	argIdx := 2

	if filter.JobID != nil {
		conditions = append(conditions, fmt.Sprintf("te.job_id = $%d", argIdx))
		args = append(args, *filter.JobID)
		argIdx++
	}
	if filter.WorkerID != nil {
		conditions = append(conditions, fmt.Sprintf("te.worker_id = $%d", argIdx))
		args = append(args, *filter.WorkerID)
		argIdx++
	}

	query := `SELECT te.id, te.job_id, te.worker_id, to_char(te.entry_date, 'YYYY-MM-DD'), te.start_time,
		   te.end_time, te.duration_minutes, te.page_count_done, te.remarks, te.created_at
		 FROM time_entries te JOIN jobs j ON j.id = te.job_id
		 WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY te.created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.TimeEntry
	for rows.Next() {
		var e models.TimeEntry
		if err := rows.Scan(&e.ID, &e.JobID, &e.WorkerID, &e.Date, &e.StartTime, &e.EndTime,
			&e.DurationMinutes, &e.PageCountDone, &e.Remarks, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan time entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// --- Review Records ---

func (s *PostgresStore) ListReviewRecords(ctx context.Context, jobID uuid.UUID) ([]*models.ReviewRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, action, message, by_admin_id, at
		 FROM review_records WHERE job_id = $1 ORDER BY at DESC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list review records: %w", err)
	}
	defer rows.Close()

	var records []*models.ReviewRecord
	for rows.Next() {
		var r models.ReviewRecord
		var action string
		if err := rows.Scan(&r.ID, &r.JobID, &action, &r.Message, &r.ByAdminID, &r.At); err != nil {
			return nil, fmt.Errorf("scan review record: %w", err)
		}
		r.Action = models.ReviewAction(action)
		records = append(records, &r)
	}
	return records, rows.Err()
}

// --- Notifications ---

const notificationColumns = `id, workspace_id, to_worker_id, to_role, type, payload, is_read, created_at`

func scanNotification(row pgx.Row) (*models.Notification, error) {
	var n models.Notification
	var role *string
	var typ string
	var payload []byte
	if err := row.Scan(&n.ID, &n.WorkspaceID, &n.ToWorkerID, &role, &typ, &payload,
		&n.IsRead, &n.CreatedAt); err != nil {
		return nil, err
	}
	if role != nil {
		r := models.Role(*role)
		n.ToRole = &r
	}
	n.Type = models.NotificationType(typ)
	p, err := models.DecodePayload(n.Type, payload)
	if err != nil {
		return nil, fmt.Errorf("decode notification payload: %w", err)
	}
	n.Payload = p
	return &n, nil
}

// visibleTo returns the WHERE clause selecting notifications addressed to
// the filter's worker or role.
func visibleTo(filter NotificationFilter) (string, []any) {
	where := `workspace_id = $1 AND (to_worker_id = $2 OR to_role = $3)`
	if filter.UnreadOnly {
		where += ` AND is_read = FALSE`
	}
	return where, []any{filter.WorkspaceID, filter.WorkerID, string(filter.Role)}
}

func (s *PostgresStore) ListNotifications(ctx context.Context, filter NotificationFilter) ([]*models.Notification, error) {
	where, args := visibleTo(filter)
	rows, err := s.pool.Query(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetNotification(ctx context.Context, id uuid.UUID, workspaceID uuid.UUID) (*models.Notification, error) {
	n, err := scanNotification(s.pool.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1 AND workspace_id = $2`, id, workspaceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, id uuid.UUID, workspaceID uuid.UUID) (*models.Notification, error) {
	n, err := scanNotification(s.pool.QueryRow(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND workspace_id = $2
		 RETURNING `+notificationColumns, id, workspaceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, filter NotificationFilter) (int, error) {
	filter.UnreadOnly = true
	where, args := visibleTo(filter)
	tag, err := s.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
