package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusAssigned         JobStatus = "ASSIGNED"
	JobStatusInProgress       JobStatus = "IN_PROGRESS"
	JobStatusUnderReview      JobStatus = "UNDER_REVIEW"
	JobStatusChangesRequested JobStatus = "CHANGES_REQUESTED"
	JobStatusCompleted        JobStatus = "COMPLETED"
)

// JobStatuses lists every status in lifecycle order.
var JobStatuses = []JobStatus{
	JobStatusAssigned,
	JobStatusInProgress,
	JobStatusUnderReview,
	JobStatusChangesRequested,
	JobStatusCompleted,
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	for _, v := range JobStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Timeable reports whether a timer may be started on a job in this status.
func (s JobStatus) Timeable() bool {
	return s == JobStatusAssigned || s == JobStatusInProgress || s == JobStatusChangesRequested
}

// Job is a unit of assigned production work. Every job belongs to a workspace.
type Job struct {
	ID                 uuid.UUID  `db:"id"                    json:"id"`
	WorkspaceID        uuid.UUID  `db:"workspace_id"          json:"workspace_id"`
	ClientName         string     `db:"client_name"           json:"client_name"`
	ProjectID          string     `db:"project_id"            json:"project_id"`
	ProjectName        string     `db:"project_name"          json:"project_name"`
	ChapterScope       string     `db:"chapter_scope"         json:"chapter_scope"`
	TaskTypeCode       string     `db:"task_type_code"        json:"task_type_code"`
	TaskTypeLabel      string     `db:"task_type_label"       json:"task_type_label"`
	AdminNote          *string    `db:"admin_note"            json:"admin_note,omitempty"`
	AssignedToWorkerID uuid.UUID  `db:"assigned_to_worker_id" json:"assigned_to_worker_id"`
	CreatedByAdminID   uuid.UUID  `db:"created_by_admin_id"   json:"created_by_admin_id"`
	Status             JobStatus  `db:"status"                json:"status"`
	LastActivityAt     *time.Time `db:"last_activity_at"      json:"last_activity_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at"            json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"            json:"updated_at"`
}

// JobDescriptor holds the descriptive attributes supplied when a job is created.
type JobDescriptor struct {
	ClientName    string  `json:"client_name"`
	ProjectID     string  `json:"project_id"`
	ProjectName   string  `json:"project_name"`
	ChapterScope  string  `json:"chapter_scope"`
	TaskTypeCode  string  `json:"task_type_code"`
	TaskTypeLabel string  `json:"task_type_label"`
	AdminNote     *string `json:"admin_note,omitempty"`
}

// JobPatch is a partial update. Nil fields are left untouched.
type JobPatch struct {
	ClientName    *string    `json:"client_name,omitempty"`
	ProjectID     *string    `json:"project_id,omitempty"`
	ProjectName   *string    `json:"project_name,omitempty"`
	ChapterScope  *string    `json:"chapter_scope,omitempty"`
	TaskTypeCode  *string    `json:"task_type_code,omitempty"`
	TaskTypeLabel *string    `json:"task_type_label,omitempty"`
	AdminNote     *string    `json:"admin_note,omitempty"`
	Status        *JobStatus `json:"status,omitempty"`
}

// Apply copies every non-nil field of p onto j.
func (p JobPatch) Apply(j *Job) {
	if p.ClientName != nil {
		j.ClientName = *p.ClientName
	}
	if p.ProjectID != nil {
		j.ProjectID = *p.ProjectID
	}
	if p.ProjectName != nil {
		j.ProjectName = *p.ProjectName
	}
	if p.ChapterScope != nil {
		j.ChapterScope = *p.ChapterScope
	}
	if p.TaskTypeCode != nil {
		j.TaskTypeCode = *p.TaskTypeCode
	}
	if p.TaskTypeLabel != nil {
		j.TaskTypeLabel = *p.TaskTypeLabel
	}
	if p.AdminNote != nil {
		note := *p.AdminNote
		j.AdminNote = &note
	}
	if p.Status != nil {
		j.Status = *p.Status
	}
}

// JobWithTotals is a job together with its summed tracked time.
type JobWithTotals struct {
	Job
	TotalMinutes int `json:"total_minutes"`
}
