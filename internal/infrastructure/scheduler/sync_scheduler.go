package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SyncExecutor executes sync jobs
type SyncExecutor interface {
	Execute(ctx context.Context, job *SyncJob) error
}

// SyncSchedulerConfig holds configuration for the sync scheduler
type SyncSchedulerConfig struct {
	// Interval between scheduled rounds. Zero disables the ticker; manual
	// triggers still run.
	Interval time.Duration
	// JobTimeout is the maximum time a job can run
	JobTimeout time.Duration
	// MaxConcurrentJobs is the number of workers
	MaxConcurrentJobs int
	// Entities are synced on every scheduled round, in order
	Entities []masterdata.SyncEntity
	// QueueSize bounds the number of submitted jobs waiting for a worker
	QueueSize int
	// MaxHistory bounds the in-memory job history
	MaxHistory int
}

// DefaultSyncSchedulerConfig returns default configuration
func DefaultSyncSchedulerConfig() SyncSchedulerConfig {
	return SyncSchedulerConfig{
		Interval:          30 * time.Minute,
		JobTimeout:        10 * time.Minute,
		MaxConcurrentJobs: 3,
		Entities:          masterdata.AllSyncEntities,
		QueueSize:         16,
		MaxHistory:        100,
	}
}

// Validate validates the configuration
func (c *SyncSchedulerConfig) Validate() error {
	if c.Interval < 0 || c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.MaxConcurrentJobs <= 0 || c.QueueSize <= 0 || c.MaxHistory <= 0 {
		return ErrInvalidConfig
	}
	for _, e := range c.Entities {
		if !e.IsValid() {
			return fmt.Errorf("%w: %w %q", ErrInvalidConfig, ErrUnknownSyncEntity, e)
		}
	}
	return nil
}

// SyncScheduler runs master-data syncs on a ticker and on demand. At most one
// job per entity is queued or running at any time; it never retries a failed
// job, the next round does.
type SyncScheduler struct {
	config   SyncSchedulerConfig
	executor SyncExecutor
	logger   *zap.Logger

	jobs      chan *SyncJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	active    map[masterdata.SyncEntity]uuid.UUID

	historyMu sync.RWMutex
	history   []*SyncJob
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(config SyncSchedulerConfig, executor SyncExecutor, logger *zap.Logger) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SyncScheduler{
		config:   config,
		executor: executor,
		logger:   logger.Named("sync-scheduler"),
		active:   make(map[masterdata.SyncEntity]uuid.UUID),
		history:  make([]*SyncJob, 0, config.MaxHistory),
	}, nil
}

// Start starts the workers and the ticker. A stopped scheduler can be
// started again; jobs left queued by the previous run are dropped.
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	jobs := make(chan *SyncJob, s.config.QueueSize)
	s.jobs = jobs
	clear(s.active)
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i, jobs)
	}
	if s.config.Interval > 0 {
		s.wg.Add(1)
		go s.runLoop(ctx)
	}

	s.logger.Info("Sync scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("interval", s.config.Interval),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for the workers until ctx is done
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	close(s.jobs)
	cancel := s.cancel
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the scheduler accepts jobs
func (s *SyncScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// TriggerNow submits a manual job for entity and returns a snapshot of it
func (s *SyncScheduler) TriggerNow(entity masterdata.SyncEntity) (SyncJob, error) {
	if !slices.Contains(masterdata.AllSyncEntities, entity) {
		return SyncJob{}, fmt.Errorf("%w: %q", ErrUnknownSyncEntity, entity)
	}
	job := NewSyncJob(entity, SyncTriggerManual)
	snapshot := *job
	if err := s.submit(job); err != nil {
		return SyncJob{}, err
	}
	return snapshot, nil
}

// Active returns the entities with a queued or running job
func (s *SyncScheduler) Active() []masterdata.SyncEntity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]masterdata.SyncEntity, 0, len(s.active))
	for _, e := range masterdata.AllSyncEntities {
		if _, ok := s.active[e]; ok {
			out = append(out, e)
		}
	}
	return out
}

// submit queues job unless its entity already has one queued or running
func (s *SyncScheduler) submit(job *SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}
	if _, busy := s.active[job.Entity]; busy {
		return ErrSyncAlreadyInProgress
	}

	select {
	case s.jobs <- job:
		s.active[job.Entity] = job.ID
		s.logger.Debug("Sync job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("entity", string(job.Entity)),
			zap.String("trigger", string(job.Trigger)),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

func (s *SyncScheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scheduleRound()
		}
	}
}

// scheduleRound submits one job per configured entity
func (s *SyncScheduler) scheduleRound() {
	for _, entity := range s.config.Entities {
		err := s.submit(NewSyncJob(entity, SyncTriggerSchedule))
		switch {
		case err == nil:
		case errors.Is(err, ErrSyncAlreadyInProgress):
			s.logger.Info("Skipping scheduled sync, previous run still active", zap.String("entity", string(entity)))
		default:
			s.logger.Warn("Failed to schedule sync", zap.String("entity", string(entity)), zap.Error(err))
		}
	}
}

func (s *SyncScheduler) worker(ctx context.Context, workerID int, jobs <-chan *SyncJob) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			s.processJob(ctx, job, workerID)
		}
	}
}

func (s *SyncScheduler) processJob(ctx context.Context, job *SyncJob, workerID int) {
	defer s.release(job)

	job.Start()
	s.logger.Info("Processing sync job",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("entity", string(job.Entity)),
		zap.String("trigger", string(job.Trigger)),
	)

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	if err := s.executor.Execute(jobCtx, job); err != nil {
		if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("sync timed out after %s: %w", s.config.JobTimeout, err)
		}
		job.Fail(err.Error())
		s.logger.Error("Sync job failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.String("entity", string(job.Entity)),
			zap.Error(err),
		)
		return
	}

	job.Complete()
	s.logger.Info("Sync job completed",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("entity", string(job.Entity)),
		zap.String("status", string(job.Status)),
		zap.String("mode", job.Mode),
		zap.Int("fetched", job.Fetched),
		zap.Int("created", job.Created),
		zap.Int("updated", job.Updated),
		zap.Strings("degraded", job.Degraded),
		zap.Duration("duration", job.Duration()),
	)
}

// release records the finished job and frees its entity
func (s *SyncScheduler) release(job *SyncJob) {
	s.addToHistory(job)

	s.mu.Lock()
	if s.active[job.Entity] == job.ID {
		delete(s.active, job.Entity)
	}
	s.mu.Unlock()
}

func (s *SyncScheduler) addToHistory(job *SyncJob) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append([]*SyncJob{job}, s.history...)
	if len(s.history) > s.config.MaxHistory {
		s.history = s.history[:s.config.MaxHistory]
	}
}

// History returns up to limit finished jobs, newest first
func (s *SyncScheduler) History(limit int) []SyncJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]SyncJob, limit)
	for i := range out {
		out[i] = *s.history[i]
	}
	return out
}
