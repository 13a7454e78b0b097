package scheduler

import (
	"context"

	syncapp "github.com/erp/portal/internal/application/sync"
	"github.com/erp/portal/internal/domain/masterdata"
)

// SyncActor is recorded as the updater of scheduled sync runs
const SyncActor = "scheduler"

// SyncRunner runs the sync of one entity
type SyncRunner interface {
	Sync(ctx context.Context, entity masterdata.SyncEntity, actor string) (*syncapp.Result, error)
}

// SyncServiceExecutor runs jobs through the sync service
type SyncServiceExecutor struct {
	runner SyncRunner
}

// NewSyncServiceExecutor creates a new SyncServiceExecutor
func NewSyncServiceExecutor(runner SyncRunner) *SyncServiceExecutor {
	return &SyncServiceExecutor{runner: runner}
}

// Execute runs the sync and copies its counters onto the job
func (e *SyncServiceExecutor) Execute(ctx context.Context, job *SyncJob) error {
	result, err := e.runner.Sync(ctx, job.Entity, SyncActor)
	if err != nil {
		return err
	}
	job.Mode = string(result.Mode)
	job.Fetched = result.Fetched
	job.Created = result.Created
	job.Updated = result.Updated
	job.Skipped = result.Skipped
	job.Degraded = result.Degraded
	return nil
}
