package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrUnknownSyncEntity is returned for an entity the scheduler does not sync
	ErrUnknownSyncEntity = errors.New("unknown sync entity")

	// ErrSyncAlreadyInProgress is returned when a sync of the same entity is queued or running
	ErrSyncAlreadyInProgress = errors.New("sync already in progress for this entity")
)
