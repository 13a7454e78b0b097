package scheduler

import (
	"time"

	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/google/uuid"
)

// SyncJobStatus represents the status of a sync job
type SyncJobStatus string

const (
	SyncJobStatusPending SyncJobStatus = "PENDING"
	SyncJobStatusRunning SyncJobStatus = "RUNNING"
	SyncJobStatusSuccess SyncJobStatus = "SUCCESS"
	SyncJobStatusPartial SyncJobStatus = "PARTIAL"
	SyncJobStatusFailed  SyncJobStatus = "FAILED"
)

// SyncTrigger tells what submitted a job
type SyncTrigger string

const (
	SyncTriggerSchedule SyncTrigger = "schedule"
	SyncTriggerManual   SyncTrigger = "manual"
)

// SyncJob is one sync run of one entity
type SyncJob struct {
	ID          uuid.UUID             `json:"id"`
	Entity      masterdata.SyncEntity `json:"entity"`
	Trigger     SyncTrigger           `json:"trigger"`
	Status      SyncJobStatus         `json:"status"`
	Error       string                `json:"error,omitempty"`
	SubmittedAt time.Time             `json:"submitted_at"`
	StartedAt   *time.Time            `json:"started_at,omitempty"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`

	Mode     string   `json:"mode,omitempty"`
	Fetched  int      `json:"fetched"`
	Created  int      `json:"created"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Degraded []string `json:"degraded,omitempty"`
}

// NewSyncJob creates a pending job for entity
func NewSyncJob(entity masterdata.SyncEntity, trigger SyncTrigger) *SyncJob {
	return &SyncJob{
		ID:          uuid.New(),
		Entity:      entity,
		Trigger:     trigger,
		Status:      SyncJobStatusPending,
		SubmittedAt: time.Now(),
	}
}

// Start marks the job as running
func (j *SyncJob) Start() {
	now := time.Now()
	j.Status = SyncJobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as finished. A run that fell back on an empty
// source is partial rather than successful.
func (j *SyncJob) Complete() {
	now := time.Now()
	j.CompletedAt = &now
	if len(j.Degraded) > 0 {
		j.Status = SyncJobStatusPartial
		return
	}
	j.Status = SyncJobStatusSuccess
}

// Fail marks the job as failed
func (j *SyncJob) Fail(err string) {
	now := time.Now()
	j.Status = SyncJobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// Duration returns how long the job ran
func (j *SyncJob) Duration() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}
