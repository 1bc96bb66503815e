package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobtracker/internal/store"
	"github.com/kiranshivaraju/jobtracker/internal/workflow"
	"github.com/kiranshivaraju/jobtracker/pkg/models"
	"golang.org/x/sync/errgroup"
)

// Reader is the read side of the store the reports are built from.
type Reader interface {
	GetWorker(ctx context.Context, id uuid.UUID) (*models.Worker, error)
	ListWorkers(ctx context.Context, workspaceID uuid.UUID) ([]*models.Worker, error)
	GetJob(ctx context.Context, id uuid.UUID, workspaceID uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, filter store.JobFilter) ([]*models.Job, error)
	ListTimeEntries(ctx context.Context, filter store.TimeEntryFilter) ([]*models.TimeEntry, error)
	ListReviewRecords(ctx context.Context, jobID uuid.UUID) ([]*models.ReviewRecord, error)
}

type Service struct {
	reader Reader
}

func NewService(r Reader) *Service {
	return &Service{reader: r}
}

type JobDetail struct {
	Job          *models.Job            `json:"job"`
	TotalMinutes int                    `json:"total_minutes"`
	TimeEntries  []*models.TimeEntry    `json:"time_entries"`
	Reviews      []*models.ReviewRecord `json:"review_history"`
}

type WorkerReport struct {
	Worker       *models.Worker `json:"worker"`
	TotalMinutes int            `json:"total_minutes"`
	StatusCounts
	Jobs    []models.JobWithTotals `json:"jobs"`
	Entries []*models.TimeEntry    `json:"entries"`
}

type Summary struct {
	TotalMinutes  int                      `json:"total_minutes"`
	JobsByStatus  map[models.JobStatus]int `json:"jobs_by_status"`
	JobsByClient  map[string]int           `json:"jobs_by_client"`
	HoursByWorker []WorkerMinutes          `json:"hours_by_worker"`
}

// JobTotalMinutes sums every entry recorded against jobID.
func (s *Service) JobTotalMinutes(ctx context.Context, workspaceID, jobID uuid.UUID) (int, error) {
	entries, err := s.reader.ListTimeEntries(ctx, store.TimeEntryFilter{WorkspaceID: workspaceID, JobID: &jobID})
	if err != nil {
		return 0, workflow.Classify(err)
	}
	return TotalMinutes(entries), nil
}

// WorkerTotalMinutes sums every entry recorded by workerID.
func (s *Service) WorkerTotalMinutes(ctx context.Context, workspaceID, workerID uuid.UUID) (int, error) {
	entries, err := s.reader.ListTimeEntries(ctx, store.TimeEntryFilter{WorkspaceID: workspaceID, WorkerID: &workerID})
	if err != nil {
		return 0, workflow.Classify(err)
	}
	return TotalMinutes(entries), nil
}

// ListJobs returns the jobs matching filter, each with its total minutes.
func (s *Service) ListJobs(ctx context.Context, filter store.JobFilter) ([]models.JobWithTotals, error) {
	var (
		jobs    []*models.Job
		entries []*models.TimeEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		jobs, err = s.reader.ListJobs(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		entries, err = s.reader.ListTimeEntries(gctx, store.TimeEntryFilter{WorkspaceID: filter.WorkspaceID})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, workflow.Classify(err)
	}
	return WithTotals(jobs, entries), nil
}

// JobDetail returns a job with its entries and review history, newest
// first. Employees may only view jobs assigned to them.
func (s *Service) JobDetail(ctx context.Context, viewer workflow.Actor, jobID uuid.UUID) (*JobDetail, error) {
	job, err := s.reader.GetJob(ctx, jobID, viewer.WorkspaceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: job not found", workflow.ErrNotFound)
	}
	if err != nil {
		return nil, workflow.Classify(err)
	}
	if viewer.Role != models.RoleAdmin && job.AssignedToWorkerID != viewer.WorkerID {
		return nil, fmt.Errorf("%w: job is not assigned to you", workflow.ErrForbidden)
	}

	detail := &JobDetail{Job: job}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		detail.TimeEntries, err = s.reader.ListTimeEntries(gctx, store.TimeEntryFilter{WorkspaceID: viewer.WorkspaceID, JobID: &job.ID})
		return err
	})
	g.Go(func() error {
		var err error
		detail.Reviews, err = s.reader.ListReviewRecords(gctx, job.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, workflow.Classify(err)
	}
	detail.TotalMinutes = TotalMinutes(detail.TimeEntries)
	return detail, nil
}

// TimeEntries lists every entry in the workspace, newest first.
func (s *Service) TimeEntries(ctx context.Context, workspaceID uuid.UUID) ([]*models.TimeEntry, error) {
	entries, err := s.reader.ListTimeEntries(ctx, store.TimeEntryFilter{WorkspaceID: workspaceID})
	if err != nil {
		return nil, workflow.Classify(err)
	}
	return entries, nil
}

// WorkerReport summarizes one worker's tracked time and job statuses, with
// the worker's jobs and their totals. Only the assignee can time a job, so
// the worker's own entries give each job's full total.
func (s *Service) WorkerReport(ctx context.Context, workspaceID, workerID uuid.UUID) (*WorkerReport, error) {
	w, err := s.reader.GetWorker(ctx, workerID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && w.WorkspaceID != workspaceID) {
		return nil, fmt.Errorf("%w: worker not found", workflow.ErrNotFound)
	}
	if err != nil {
		return nil, workflow.Classify(err)
	}

	var (
		jobs    []*models.Job
		entries []*models.TimeEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		jobs, err = s.reader.ListJobs(gctx, store.JobFilter{WorkspaceID: workspaceID, AssigneeID: &workerID})
		return err
	})
	g.Go(func() error {
		var err error
		entries, err = s.reader.ListTimeEntries(gctx, store.TimeEntryFilter{WorkspaceID: workspaceID, WorkerID: &workerID})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, workflow.Classify(err)
	}

	return &WorkerReport{
		Worker:       w,
		TotalMinutes: TotalMinutes(entries),
		StatusCounts: CountStatuses(jobs),
		Jobs:         WithTotals(jobs, entries),
		Entries:      entries,
	}, nil
}

// Summary is the workspace-wide roll-up.
func (s *Service) Summary(ctx context.Context, workspaceID uuid.UUID) (*Summary, error) {
	var (
		workers []*models.Worker
		jobs    []*models.Job
		entries []*models.TimeEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		workers, err = s.reader.ListWorkers(gctx, workspaceID)
		return err
	})
	g.Go(func() error {
		var err error
		jobs, err = s.reader.ListJobs(gctx, store.JobFilter{WorkspaceID: workspaceID})
		return err
	})
	g.Go(func() error {
		var err error
		entries, err = s.reader.ListTimeEntries(gctx, store.TimeEntryFilter{WorkspaceID: workspaceID})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, workflow.Classify(err)
	}

	return &Summary{
		TotalMinutes:  TotalMinutes(entries),
		JobsByStatus:  JobsByStatus(jobs),
		JobsByClient:  JobsByClient(jobs),
		HoursByWorker: HoursByWorker(workers, entries),
	}, nil
}
