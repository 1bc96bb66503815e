package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobtracker/internal/api/response"
	"github.com/kiranshivaraju/jobtracker/internal/report"
	"github.com/kiranshivaraju/jobtracker/internal/store"
	"github.com/kiranshivaraju/jobtracker/internal/workflow"
	"github.com/kiranshivaraju/jobtracker/pkg/models"
)

// JobCreator creates jobs.
type JobCreator interface {
	CreateJob(ctx context.Context, actor workflow.Actor, desc models.JobDescriptor, assigneeID uuid.UUID) (*models.Job, error)
}

// JobUpdater applies administrative edits.
type JobUpdater interface {
	UpdateJob(ctx context.Context, actor workflow.Actor, jobID uuid.UUID, patch models.JobPatch) (*models.Job, error)
}

// JobReviewer runs the submit/approve/request-changes protocol.
type JobReviewer interface {
	SubmitJob(ctx context.Context, actor workflow.Actor, jobID uuid.UUID) (*models.Job, error)
	ApproveJob(ctx context.Context, actor workflow.Actor, jobID uuid.UUID) (*models.Job, error)
	RequestChanges(ctx context.Context, actor workflow.Actor, jobID uuid.UUID, message string) (*models.Job, error)
}

// JobQuerier reads jobs with their tracked totals.
type JobQuerier interface {
	ListJobs(ctx context.Context, filter store.JobFilter) ([]models.JobWithTotals, error)
	JobDetail(ctx context.Context, viewer workflow.Actor, jobID uuid.UUID) (*report.JobDetail, error)
}

// NewCreateJobHandler returns an http.HandlerFunc for POST /api/v1/jobs.
func NewCreateJobHandler(svc JobCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}

		var req struct {
			models.JobDescriptor
			AssigneeID string `json:"assigned_to_worker_id"`
		}
		if !decodeBody(w, r, &req, false) {
			return
		}
		assigneeID, err := uuid.Parse(req.AssigneeID)
		if err != nil {
			response.Fail(w, response.CodeInvalidRequest, "assigned_to_worker_id must be a valid UUID", nil)
			return
		}

		job, err := svc.CreateJob(r.Context(), a, req.JobDescriptor, assigneeID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.Created(w, job)
	}
}

// NewUpdateJobHandler returns an http.HandlerFunc for PATCH /api/v1/jobs/{jobID}.
func NewUpdateJobHandler(svc JobUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		jobID, ok := pathID(w, r, "jobID")
		if !ok {
			return
		}

		var patch models.JobPatch
		if !decodeBody(w, r, &patch, false) {
			return
		}

		job, err := svc.UpdateJob(r.Context(), a, jobID, patch)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, job)
	}
}

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs.
// Supported filters: status, assignee_id, client, project_id, task_type,
// q, created_from and created_to (YYYY-MM-DD or RFC3339).
func NewListJobsHandler(svc JobQuerier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}

		filter, msg := jobFilter(r, a.WorkspaceID)
		if msg != "" {
			response.Fail(w, response.CodeInvalidRequest, msg, nil)
			return
		}
		listJobs(w, r, svc, filter)
	}
}

// NewMyJobsHandler returns an http.HandlerFunc for GET /api/v1/me/jobs, the
// caller's own queue. Supports status and q.
func NewMyJobsHandler(svc JobQuerier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}

		filter := store.JobFilter{
			WorkspaceID: a.WorkspaceID,
			AssigneeID:  &a.WorkerID,
			Keyword:     strings.TrimSpace(r.URL.Query().Get("q")),
		}
		if v := r.URL.Query().Get("status"); v != "" {
			filter.Status = models.JobStatus(strings.ToUpper(v))
			if !filter.Status.Valid() {
				response.Fail(w, response.CodeInvalidRequest, "unknown status "+v, nil)
				return
			}
		}
		listJobs(w, r, svc, filter)
	}
}

func listJobs(w http.ResponseWriter, r *http.Request, svc JobQuerier, filter store.JobFilter) {
	p, err := parsePage(r)
	if err != nil {
		response.Fail(w, response.CodeInvalidRequest, err.Error(), nil)
		return
	}

	jobs, err := svc.ListJobs(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, meta := paginate(jobs, p)
	response.Collection(w, items, meta)
}

// jobFilter parses the admin list filters. A non-empty message reports the
// first invalid parameter.
func jobFilter(r *http.Request, workspaceID uuid.UUID) (store.JobFilter, string) {
	q := r.URL.Query()
	f := store.JobFilter{
		WorkspaceID:  workspaceID,
		ClientName:   strings.TrimSpace(q.Get("client")),
		ProjectID:    strings.TrimSpace(q.Get("project_id")),
		TaskTypeCode: strings.TrimSpace(q.Get("task_type")),
		Keyword:      strings.TrimSpace(q.Get("q")),
	}

	if v := q.Get("status"); v != "" {
		f.Status = models.JobStatus(strings.ToUpper(v))
		if !f.Status.Valid() {
			return f, "unknown status " + v
		}
	}
	if v := q.Get("assignee_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, "assignee_id must be a valid UUID"
		}
		f.AssigneeID = &id
	}
	if v := q.Get("created_from"); v != "" {
		t, _, err := parseInstant(v)
		if err != nil {
			return f, "created_from must be YYYY-MM-DD or RFC3339"
		}
		f.CreatedAfter = t
	}
	if v := q.Get("created_to"); v != "" {
		t, dateOnly, err := parseInstant(v)
		if err != nil {
			return f, "created_to must be YYYY-MM-DD or RFC3339"
		}
		if dateOnly {
			// Inclusive of the whole day.
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.CreatedBefore = t
	}
	return f, ""
}

func parseInstant(v string) (time.Time, bool, error) {
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	return t, false, err
}

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
func NewGetJobHandler(svc JobQuerier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		jobID, ok := pathID(w, r, "jobID")
		if !ok {
			return
		}

		detail, err := svc.JobDetail(r.Context(), a, jobID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, detail)
	}
}

// NewSubmitJobHandler returns an http.HandlerFunc for POST /api/v1/jobs/{jobID}/submit.
func NewSubmitJobHandler(svc JobReviewer) http.HandlerFunc {
	return reviewHandler(func(r *http.Request, a workflow.Actor, jobID uuid.UUID) (*models.Job, error) {
		return svc.SubmitJob(r.Context(), a, jobID)
	})
}

// NewApproveJobHandler returns an http.HandlerFunc for POST /api/v1/jobs/{jobID}/approve.
func NewApproveJobHandler(svc JobReviewer) http.HandlerFunc {
	return reviewHandler(func(r *http.Request, a workflow.Actor, jobID uuid.UUID) (*models.Job, error) {
		return svc.ApproveJob(r.Context(), a, jobID)
	})
}

// NewRequestChangesHandler returns an http.HandlerFunc for
// POST /api/v1/jobs/{jobID}/request-changes.
func NewRequestChangesHandler(svc JobReviewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		jobID, ok := pathID(w, r, "jobID")
		if !ok {
			return
		}

		var req struct {
			Message string `json:"message"`
		}
		if !decodeBody(w, r, &req, false) {
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			response.Fail(w, response.CodeInvalidRequest, "message is required", nil)
			return
		}

		job, err := svc.RequestChanges(r.Context(), a, jobID, req.Message)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, job)
	}
}

func reviewHandler(fn func(r *http.Request, a workflow.Actor, jobID uuid.UUID) (*models.Job, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		jobID, ok := pathID(w, r, "jobID")
		if !ok {
			return
		}

		job, err := fn(r, a, jobID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, job)
	}
}
