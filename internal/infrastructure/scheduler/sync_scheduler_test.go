package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	syncapp "github.com/erp/portal/internal/application/sync"
	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func testConfig() SyncSchedulerConfig {
	cfg := DefaultSyncSchedulerConfig()
	cfg.Interval = 0
	cfg.JobTimeout = time.Second
	return cfg
}

// blockingExecutor holds each job until released
type blockingExecutor struct {
	started chan masterdata.SyncEntity
	release chan struct{}
	calls   atomic.Int32
}

func newBlockingExecutor() *blockingExecutor {
	return &blockingExecutor{started: make(chan masterdata.SyncEntity, 16), release: make(chan struct{})}
}

func (e *blockingExecutor) Execute(ctx context.Context, job *SyncJob) error {
	e.calls.Add(1)
	e.started <- job.Entity
	select {
	case <-e.release:
		job.Created = 3
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type funcExecutor func(ctx context.Context, job *SyncJob) error

func (f funcExecutor) Execute(ctx context.Context, job *SyncJob) error {
	return f(ctx, job)
}

func startScheduler(t *testing.T, cfg SyncSchedulerConfig, exec SyncExecutor) *SyncScheduler {
	t.Helper()
	s, err := NewSyncScheduler(cfg, exec, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func waitForHistory(t *testing.T, s *SyncScheduler, n int) []SyncJob {
	t.Helper()
	require.Eventually(t, func() bool { return len(s.History(0)) >= n }, 2*time.Second, 5*time.Millisecond)
	return s.History(0)
}

func TestSyncSchedulerConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*SyncSchedulerConfig)
		valid  bool
	}{
		{"default", func(*SyncSchedulerConfig) {}, true},
		{"ticker disabled", func(c *SyncSchedulerConfig) { c.Interval = 0 }, true},
		{"negative interval", func(c *SyncSchedulerConfig) { c.Interval = -time.Second }, false},
		{"no timeout", func(c *SyncSchedulerConfig) { c.JobTimeout = 0 }, false},
		{"no workers", func(c *SyncSchedulerConfig) { c.MaxConcurrentJobs = 0 }, false},
		{"no history", func(c *SyncSchedulerConfig) { c.MaxHistory = 0 }, false},
		{"unknown entity", func(c *SyncSchedulerConfig) { c.Entities = []masterdata.SyncEntity{"orders"} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSyncSchedulerConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestSyncScheduler_TriggerNotRunning(t *testing.T) {
	s, err := NewSyncScheduler(testConfig(), newBlockingExecutor(), nil)
	require.NoError(t, err)

	_, err = s.TriggerNow(masterdata.SyncEntityItem)
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
}

func TestSyncScheduler_TriggerUnknownEntity(t *testing.T) {
	s := startScheduler(t, testConfig(), newBlockingExecutor())

	_, err := s.TriggerNow("orders")
	assert.ErrorIs(t, err, ErrUnknownSyncEntity)
}

func TestSyncScheduler_SkipsEntityAlreadyRunning(t *testing.T) {
	exec := newBlockingExecutor()
	s := startScheduler(t, testConfig(), exec)

	job, err := s.TriggerNow(masterdata.SyncEntityItem)
	require.NoError(t, err)
	assert.Equal(t, SyncJobStatusPending, job.Status)
	assert.Equal(t, SyncTriggerManual, job.Trigger)
	assert.Equal(t, masterdata.SyncEntityItem, <-exec.started)

	_, err = s.TriggerNow(masterdata.SyncEntityItem)
	assert.ErrorIs(t, err, ErrSyncAlreadyInProgress)
	assert.Equal(t, []masterdata.SyncEntity{masterdata.SyncEntityItem}, s.Active())

	// other entities are independent
	_, err = s.TriggerNow(masterdata.SyncEntityCustomer)
	require.NoError(t, err)
	assert.Equal(t, masterdata.SyncEntityCustomer, <-exec.started)

	close(exec.release)
	history := waitForHistory(t, s, 2)
	for _, j := range history {
		assert.Equal(t, SyncJobStatusSuccess, j.Status)
		assert.Equal(t, 3, j.Created)
	}
	assert.Equal(t, int32(2), exec.calls.Load())
	assert.Empty(t, s.Active())

	// the entity is free again once its job finished
	_, err = s.TriggerNow(masterdata.SyncEntityItem)
	assert.NoError(t, err)
}

func TestSyncScheduler_JobTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.JobTimeout = 20 * time.Millisecond
	exec := newBlockingExecutor()
	s := startScheduler(t, cfg, exec)

	_, err := s.TriggerNow(masterdata.SyncEntitySupplier)
	require.NoError(t, err)

	history := waitForHistory(t, s, 1)
	assert.Equal(t, SyncJobStatusFailed, history[0].Status)
	assert.Contains(t, history[0].Error, "sync timed out")
	assert.Equal(t, int32(1), exec.calls.Load(), "failed jobs are not retried")
}

func TestSyncScheduler_DegradedRunIsPartial(t *testing.T) {
	s := startScheduler(t, testConfig(), funcExecutor(func(ctx context.Context, job *SyncJob) error {
		job.Degraded = []string{"remote"}
		return nil
	}))

	_, err := s.TriggerNow(masterdata.SyncEntityItem)
	require.NoError(t, err)

	history := waitForHistory(t, s, 1)
	assert.Equal(t, SyncJobStatusPartial, history[0].Status)
}

func TestSyncScheduler_TickerSubmitsEveryEntity(t *testing.T) {
	cfg := testConfig()
	cfg.Interval = 10 * time.Millisecond

	var mu sync.Mutex
	seen := map[masterdata.SyncEntity]int{}
	s := startScheduler(t, cfg, funcExecutor(func(ctx context.Context, job *SyncJob) error {
		mu.Lock()
		seen[job.Entity]++
		mu.Unlock()
		assert.Equal(t, SyncTriggerSchedule, job.Trigger)
		return nil
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == len(masterdata.AllSyncEntities)
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, s.IsRunning())
}

func TestSyncScheduler_HistoryIsBounded(t *testing.T) {
	cfg := testConfig()
	cfg.MaxHistory = 2
	cfg.MaxConcurrentJobs = 1
	s := startScheduler(t, cfg, funcExecutor(func(ctx context.Context, job *SyncJob) error {
		return errors.New("boom")
	}))

	for i := 0; i < 3; i++ {
		_, err := s.TriggerNow(masterdata.SyncEntityItem)
		require.NoError(t, err)
		require.Eventually(t, func() bool { return len(s.Active()) == 0 }, 2*time.Second, 5*time.Millisecond)
	}

	history := s.History(10)
	assert.Len(t, history, 2)
	assert.Equal(t, "boom", history[0].Error)
	assert.Len(t, s.History(1), 1)
}

func TestSyncScheduler_StartStop(t *testing.T) {
	s, err := NewSyncScheduler(testConfig(), newBlockingExecutor(), newTestLogger())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()), "start is idempotent")
	assert.True(t, s.IsRunning())

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()), "stop is idempotent")
	assert.False(t, s.IsRunning())

	_, err = s.TriggerNow(masterdata.SyncEntityItem)
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
}

func TestSyncScheduler_RestartAfterStop(t *testing.T) {
	exec := newBlockingExecutor()
	close(exec.release)
	s, err := NewSyncScheduler(testConfig(), exec, newTestLogger())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	_, err = s.TriggerNow(masterdata.SyncEntityItem)
	require.NoError(t, err)
	waitForHistory(t, s, 1)
	require.NoError(t, s.Stop(context.Background()))

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()
	assert.True(t, s.IsRunning())

	require.NotPanics(t, func() {
		_, err = s.TriggerNow(masterdata.SyncEntityItem)
	})
	require.NoError(t, err)
	history := waitForHistory(t, s, 2)
	assert.Equal(t, SyncJobStatusSuccess, history[0].Status)
	assert.Equal(t, int32(2), exec.calls.Load())
}

func TestSyncScheduler_StopCancelsRunningJob(t *testing.T) {
	cfg := testConfig()
	cfg.JobTimeout = time.Minute
	exec := newBlockingExecutor()
	s, err := NewSyncScheduler(cfg, exec, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	_, err = s.TriggerNow(masterdata.SyncEntityItem)
	require.NoError(t, err)
	<-exec.started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	history := s.History(0)
	require.Len(t, history, 1)
	assert.Equal(t, SyncJobStatusFailed, history[0].Status)
}

type mockSyncRunner struct {
	mock.Mock
}

func (m *mockSyncRunner) Sync(ctx context.Context, entity masterdata.SyncEntity, actor string) (*syncapp.Result, error) {
	args := m.Called(ctx, entity, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncapp.Result), args.Error(1)
}

func TestSyncServiceExecutor_Execute(t *testing.T) {
	runner := new(mockSyncRunner)
	runner.On("Sync", mock.Anything, masterdata.SyncEntityCustomer, SyncActor).Return(&syncapp.Result{
		Entity:   masterdata.SyncEntityCustomer,
		Mode:     syncapp.ModeIncremental,
		Fetched:  10,
		Created:  2,
		Updated:  3,
		Skipped:  5,
		Degraded: []string{syncapp.SourceLocal},
	}, nil).Once()
	runner.On("Sync", mock.Anything, masterdata.SyncEntitySupplier, SyncActor).Return(nil, errors.New("write failed")).Once()

	exec := NewSyncServiceExecutor(runner)

	job := NewSyncJob(masterdata.SyncEntityCustomer, SyncTriggerSchedule)
	require.NoError(t, exec.Execute(context.Background(), job))
	assert.Equal(t, "incremental", job.Mode)
	assert.Equal(t, 10, job.Fetched)
	assert.Equal(t, 2, job.Created)
	assert.Equal(t, 3, job.Updated)
	assert.Equal(t, 5, job.Skipped)
	assert.Equal(t, []string{"local"}, job.Degraded)

	err := exec.Execute(context.Background(), NewSyncJob(masterdata.SyncEntitySupplier, SyncTriggerManual))
	assert.EqualError(t, err, "write failed")
	runner.AssertExpectations(t)
}
