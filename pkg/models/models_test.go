package models_test

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobtracker/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus_ValidAndTimeable(t *testing.T) {
	tests := []struct {
		status   models.JobStatus
		valid    bool
		timeable bool
	}{
		{models.JobStatusAssigned, true, true},
		{models.JobStatusInProgress, true, true},
		{models.JobStatusChangesRequested, true, true},
		{models.JobStatusUnderReview, true, false},
		{models.JobStatusCompleted, true, false},
		{"DONE", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.status.Valid())
			assert.Equal(t, tt.timeable, tt.status.Timeable())
		})
	}
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, models.RoleAdmin.Valid())
	assert.True(t, models.RoleEmployee.Valid())
	assert.False(t, models.Role("OWNER").Valid())
}

func TestJobPatch_ApplyOnlySetFields(t *testing.T) {
	job := &models.Job{ClientName: "Acme", ProjectID: "P-1", Status: models.JobStatusAssigned}
	name := "Second Edition"
	note := "rush"
	models.JobPatch{ProjectName: &name, AdminNote: &note}.Apply(job)

	assert.Equal(t, "Acme", job.ClientName)
	assert.Equal(t, "Second Edition", job.ProjectName)
	require.NotNil(t, job.AdminNote)
	assert.Equal(t, "rush", *job.AdminNote)
	assert.Equal(t, models.JobStatusAssigned, job.Status)

	// The job owns its note.
	note = "changed"
	assert.Equal(t, "rush", *job.AdminNote)
}

func TestNotificationTarget_Valid(t *testing.T) {
	id := uuid.New()
	role := models.RoleAdmin

	assert.True(t, models.ToWorker(id).Valid())
	assert.True(t, models.ToRole(models.RoleAdmin).Valid())
	assert.False(t, models.NotificationTarget{}.Valid())
	assert.False(t, models.NotificationTarget{WorkerID: &id, Role: &role}.Valid())
}

func TestNotification_VisibleTo(t *testing.T) {
	ws := uuid.New()
	ana := &models.Worker{ID: uuid.New(), WorkspaceID: ws, Role: models.RoleEmployee}
	admin := &models.Worker{ID: uuid.New(), WorkspaceID: ws, Role: models.RoleAdmin}
	stranger := &models.Worker{ID: ana.ID, WorkspaceID: uuid.New(), Role: models.RoleEmployee}

	direct := &models.Notification{WorkspaceID: ws, ToWorkerID: &ana.ID}
	assert.True(t, direct.VisibleTo(ana))
	assert.False(t, direct.VisibleTo(admin))
	assert.False(t, direct.VisibleTo(stranger))

	role := models.RoleAdmin
	broadcast := &models.Notification{WorkspaceID: ws, ToRole: &role}
	assert.True(t, broadcast.VisibleTo(admin))
	assert.False(t, broadcast.VisibleTo(ana))
}

func TestDecodePayload(t *testing.T) {
	jobID := uuid.New()

	tests := []struct {
		typ  models.NotificationType
		raw  string
		want models.NotificationPayload
	}{
		{models.NotificationJobAssigned, `{"job_id":"` + jobID.String() + `","client_name":"Acme","project_id":"P-1","task_type_code":"TS"}`,
			models.JobAssignedPayload{JobID: jobID, ClientName: "Acme", ProjectID: "P-1", TaskTypeCode: "TS"}},
		{models.NotificationJobSubmitted, `{"job_id":"` + jobID.String() + `","client_name":"Acme","project_id":"P-1"}`,
			models.JobSubmittedPayload{JobID: jobID, ClientName: "Acme", ProjectID: "P-1"}},
		{models.NotificationJobApproved, `{"job_id":"` + jobID.String() + `","client_name":"Acme"}`,
			models.JobApprovedPayload{JobID: jobID, ClientName: "Acme"}},
		{models.NotificationChangesRequested, `{"job_id":"` + jobID.String() + `","message":"fix heads"}`,
			models.ChangesRequestedPayload{JobID: jobID, Message: "fix heads"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			got, err := models.DecodePayload(tt.typ, []byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.typ, got.NotificationType())
		})
	}
}

func TestDecodePayload_Errors(t *testing.T) {
	_, err := models.DecodePayload("JOB_EXPLODED", []byte(`{}`))
	assert.ErrorContains(t, err, "unknown notification type")

	_, err = models.DecodePayload(models.NotificationJobApproved, []byte(`{"job_id":`))
	assert.Error(t, err)
}

func TestNotification_UnmarshalJSONDecodesPayloadVariant(t *testing.T) {
	jobID := uuid.New()
	raw := `{"id":"` + uuid.NewString() + `","workspace_id":"` + uuid.NewString() + `",
		"to_role":"ADMIN","type":"JOB_SUBMITTED","is_read":false,"created_at":"2024-03-01T09:00:00Z",
		"payload":{"job_id":"` + jobID.String() + `","client_name":"Acme","project_id":"P-1"}}`

	var n models.Notification
	require.NoError(t, json.Unmarshal([]byte(raw), &n))

	require.NotNil(t, n.ToRole)
	assert.Equal(t, models.RoleAdmin, *n.ToRole)
	p, ok := n.Payload.(models.JobSubmittedPayload)
	require.True(t, ok)
	assert.Equal(t, jobID, p.JobID)
}

func TestNotification_UnmarshalJSONNullPayload(t *testing.T) {
	var n models.Notification
	require.NoError(t, json.Unmarshal([]byte(`{"type":"JOB_APPROVED","payload":null}`), &n))
	assert.Nil(t, n.Payload)
}
