package syncapp_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	syncapp "github.com/erp/portal/internal/application/sync"
	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/infrastructure/cache"
	"github.com/erp/portal/internal/infrastructure/persistence"
	"github.com/erp/portal/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	t1 = t0.Add(24 * time.Hour)
	t2 = t1.Add(24 * time.Hour)
)

type fakeRemote struct {
	items    []masterdata.ItemSnapshot
	partners map[masterdata.PartnerType][]masterdata.PartnerSnapshot
	err      error
}

func (f *fakeRemote) ItemSnapshots(context.Context) ([]masterdata.ItemSnapshot, error) {
	return f.items, f.err
}

func (f *fakeRemote) PartnerSnapshots(_ context.Context, cardType masterdata.PartnerType) ([]masterdata.PartnerSnapshot, error) {
	return f.partners[cardType], f.err
}

type recordingInvalidator struct {
	mu   sync.Mutex
	tags []string
}

func (r *recordingInvalidator) InvalidateTags(_ context.Context, tags ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags = append(r.tags, tags...)
	return nil
}

type recordedRun struct {
	entity, mode string
	err          error
	written      int
}

type fakeMetrics struct {
	runs []recordedRun
}

func (m *fakeMetrics) RecordSync(_ context.Context, entity, mode string, err error, written int, _ time.Duration) {
	m.runs = append(m.runs, recordedRun{entity: entity, mode: mode, err: err, written: written})
}

type failingScope struct{}

func (failingScope) Execute(context.Context, func(syncapp.TransactionalRepositories) error) error {
	return errors.New("connection reset")
}

type unreadableItems struct {
	masterdata.ItemRepository
}

func (unreadableItems) FindAll(context.Context) ([]*masterdata.Item, error) {
	return nil, errors.New("relation \"items\" is locked")
}

type unreadableMetas struct {
	masterdata.SyncMetaRepository
}

func (unreadableMetas) FindByCode(context.Context, masterdata.SyncEntity) (*masterdata.SyncMeta, error) {
	return nil, errors.New("too many connections")
}

type fixture struct {
	db          *gorm.DB
	remote      *fakeRemote
	invalidator *recordingInvalidator
	metrics     *fakeMetrics
	clock       time.Time
	svc         *syncapp.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:          logger.Default.LogMode(logger.Silent),
		CreateBatchSize: persistence.CreateBatchSize,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	f := &fixture{
		db:          db,
		remote:      &fakeRemote{partners: map[masterdata.PartnerType][]masterdata.PartnerSnapshot{}},
		invalidator: &recordingInvalidator{},
		metrics:     &fakeMetrics{},
		clock:       t0,
	}
	f.svc = f.service(persistence.NewGormTransactionScope(db))
	return f
}

func (f *fixture) service(scope syncapp.TransactionScope) *syncapp.Service {
	return f.serviceWith(scope, persistence.NewGormItemRepository(f.db), persistence.NewGormSyncMetaRepository(f.db))
}

// serviceWith reads items and watermarks through the given repositories;
// writes still go through scope.
func (f *fixture) serviceWith(scope syncapp.TransactionScope, items masterdata.ItemRepository, metas masterdata.SyncMetaRepository) *syncapp.Service {
	return syncapp.NewService(
		f.remote,
		items,
		persistence.NewGormBusinessPartnerRepository(f.db),
		metas,
		scope,
		f.invalidator,
		syncapp.WithMetrics(f.metrics),
		syncapp.WithClock(func() time.Time { return f.clock }),
	)
}

func itemSnap(code, name string, created, updated time.Time) masterdata.ItemSnapshot {
	return masterdata.ItemSnapshot{
		Code:      code,
		Details:   masterdata.ItemDetails{Name: name, ManufacturerCode: masterdata.NoManufacturer},
		CreatedAt: &created,
		UpdatedAt: &updated,
	}
}

func (f *fixture) items(t *testing.T) map[string]*masterdata.Item {
	t.Helper()
	all, err := persistence.NewGormItemRepository(f.db).FindAll(context.Background())
	require.NoError(t, err)
	out := make(map[string]*masterdata.Item, len(all))
	for _, it := range all {
		out[it.Code] = it
	}
	return out
}

func (f *fixture) watermark(t *testing.T, entity masterdata.SyncEntity) (*masterdata.SyncMeta, error) {
	t.Helper()
	return persistence.NewGormSyncMetaRepository(f.db).FindByCode(context.Background(), entity)
}

func TestSyncItems_ColdStartInsertsEverything(t *testing.T) {
	f := newFixture(t)
	old := t0.Add(-48 * time.Hour)
	f.remote.items = []masterdata.ItemSnapshot{
		itemSnap("A-1", "Resistor", old, old),
		itemSnap("A-2", "Capacitor", old, old),
		itemSnap("A-3", "Diode", old, old),
	}

	result, err := f.svc.SyncItems(context.Background(), "jdoe")
	require.NoError(t, err)
	assert.Equal(t, syncapp.ModeInitial, result.Mode)
	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 3, result.Created)
	assert.Zero(t, result.Skipped)
	assert.Empty(t, result.Degraded)
	assert.True(t, t0.Equal(result.LastSyncAt))

	items := f.items(t)
	require.Len(t, items, 3)
	for _, it := range items {
		assert.Equal(t, masterdata.SourceSAP, it.Source)
		assert.Equal(t, masterdata.SyncStatusSynced, it.SyncStatus)
	}

	meta, err := f.watermark(t, masterdata.SyncEntityItem)
	require.NoError(t, err)
	assert.True(t, t0.Equal(meta.LastSyncAt))
	assert.Equal(t, "jdoe", meta.UpdatedBy)

	assert.ElementsMatch(t, []string{cache.TagItems, cache.TagSyncMeta}, f.invalidator.tags)
	require.Len(t, f.metrics.runs, 1)
	assert.Equal(t, recordedRun{entity: "item", mode: "initial", written: 3}, f.metrics.runs[0])
}

func TestSyncItems_IncrementalOnlyTouchesChangedRecords(t *testing.T) {
	f := newFixture(t)
	old := t0.Add(-48 * time.Hour)
	f.remote.items = []masterdata.ItemSnapshot{
		itemSnap("A-1", "Resistor", old, old),
		itemSnap("A-2", "Capacitor", old, old),
	}
	_, err := f.svc.SyncItems(context.Background(), "jdoe")
	require.NoError(t, err)

	changed := t0.Add(time.Hour)
	f.clock = t1
	f.remote.items = []masterdata.ItemSnapshot{
		itemSnap("A-1", "Resistor 10k", old, changed),
		itemSnap("A-2", "Capacitor renamed but stale", old, old),
		itemSnap("A-3", "Diode", changed, changed),
	}

	result, err := f.svc.SyncItems(context.Background(), "scheduler")
	require.NoError(t, err)
	assert.Equal(t, syncapp.ModeIncremental, result.Mode)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Skipped)
	assert.True(t, t1.Equal(result.LastSyncAt))

	items := f.items(t)
	assert.Equal(t, "Resistor 10k", items["A-1"].Name)
	assert.Equal(t, "scheduler", items["A-1"].UpdatedBy)
	assert.Equal(t, "Capacitor", items["A-2"].Name, "records unchanged since the watermark are left alone")
	assert.Contains(t, items, "A-3")
}

func TestSyncItems_RerunIsIdempotent(t *testing.T) {
	f := newFixture(t)
	old := t0.Add(-48 * time.Hour)
	f.remote.items = []masterdata.ItemSnapshot{itemSnap("A-1", "Resistor", old, old)}
	_, err := f.svc.SyncItems(context.Background(), "jdoe")
	require.NoError(t, err)

	f.clock = t1
	result, err := f.svc.SyncItems(context.Background(), "jdoe")
	require.NoError(t, err)
	assert.Zero(t, result.Written())
	assert.Equal(t, 1, result.Skipped)
	assert.Len(t, f.items(t), 1)
}

func TestSyncItems_RemoteFailureKeepsWatermark(t *testing.T) {
	f := newFixture(t)
	old := t0.Add(-48 * time.Hour)
	f.remote.items = []masterdata.ItemSnapshot{itemSnap("A-1", "Resistor", old, old)}
	_, err := f.svc.SyncItems(context.Background(), "jdoe")
	require.NoError(t, err)

	f.clock = t2
	f.remote.err = errors.New("sap unreachable")
	result, err := f.svc.SyncItems(context.Background(), "jdoe")
	require.NoError(t, err)
	assert.Equal(t, []string{syncapp.SourceRemote}, result.Degraded)
	assert.Zero(t, result.Fetched)
	assert.Zero(t, result.Written())

	meta, err := f.watermark(t, masterdata.SyncEntityItem)
	require.NoError(t, err)
	assert.True(t, t0.Equal(meta.LastSyncAt), "a run without remote data must not advance the watermark")
	assert.Len(t, f.items(t), 1)
}

func TestSyncItems_RemoteFailureOnColdStart(t *testing.T) {
	f := newFixture(t)
	f.remote.err = errors.New("sap unreachable")

	result, err := f.svc.SyncItems(context.Background(), "jdoe")
	require.NoError(t, err)
	assert.Equal(t, syncapp.ModeInitial, result.Mode)
	assert.Contains(t, result.Degraded, syncapp.SourceRemote)

	_, err = f.watermark(t, masterdata.SyncEntityItem)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestSyncItems_LocalFailureFallsBackToColdStart(t *testing.T) {
	f := newFixture(t)
	old := t0.Add(-48 * time.Hour)
	f.remote.items = []masterdata.ItemSnapshot{itemSnap("A-1", "Resistor", old, old)}
	_, err := f.svc.SyncItems(context.Background(), "jdoe")
	require.NoError(t, err)

	f.clock = t1
	f.remote.items = []masterdata.ItemSnapshot{
		itemSnap("A-1", "Resistor", old, old),
		itemSnap("A-2", "Capacitor", old, old),
	}
	svc := f.serviceWith(
		persistence.NewGormTransactionScope(f.db),
		unreadableItems{persistence.NewGormItemRepository(f.db)},
		persistence.NewGormSyncMetaRepository(f.db),
	)

	result, err := svc.SyncItems(context.Background(), "jdoe")
	require.NoError(t, err)
	assert.Equal(t, []string{syncapp.SourceLocal}, result.Degraded)
	assert.Equal(t, syncapp.ModeInitial, result.Mode, "an unreadable table is treated as empty")
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Skipped, "the bulk insert ignores codes already present")
	assert.True(t, t1.Equal(result.LastSyncAt))
	assert.Len(t, f.items(t), 2)
}

func TestSyncItems_SyncMetaFailureUsesDefaultWatermark(t *testing.T) {
	f := newFixture(t)
	old := t0.Add(-48 * time.Hour)
	f.remote.items = []masterdata.ItemSnapshot{itemSnap("A-1", "Resistor", old, old)}
	_, err := f.svc.SyncItems(context.Background(), "jdoe")
	require.NoError(t, err)

	f.clock = t1
	f.remote.items = []masterdata.ItemSnapshot{itemSnap("A-1", "Resistor 10k", old, old)}
	svc := f.serviceWith(
		persistence.NewGormTransactionScope(f.db),
		persistence.NewGormItemRepository(f.db),
		unreadableMetas{persistence.NewGormSyncMetaRepository(f.db)},
	)

	result, err := svc.SyncItems(context.Background(), "scheduler")
	require.NoError(t, err)
	assert.Equal(t, []string{syncapp.SourceSyncMeta}, result.Degraded)
	assert.Equal(t, syncapp.ModeIncremental, result.Mode)
	assert.Equal(t, 1, result.Updated, "a record older than the last run is newer than the default watermark")
	assert.Zero(t, result.Skipped)
	assert.True(t, old.After(masterdata.DefaultLastSyncAt))

	assert.Equal(t, "Resistor 10k", f.items(t)["A-1"].Name)
	meta, err := f.watermark(t, masterdata.SyncEntityItem)
	require.NoError(t, err)
	assert.True(t, t1.Equal(meta.LastSyncAt))
	assert.Equal(t, "scheduler", meta.UpdatedBy)
}

func TestSyncItems_TransactionFailureIsReported(t *testing.T) {
	f := newFixture(t)
	svc := f.service(failingScope{})

	_, err := svc.SyncItems(context.Background(), "jdoe")
	require.Error(t, err)

	var de *shared.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "SYNC_FAILED", de.Code)
	assert.Contains(t, err.Error(), "Items sync failed")
	assert.Empty(t, f.invalidator.tags, "nothing was committed")
	require.Len(t, f.metrics.runs, 1)
	assert.Error(t, f.metrics.runs[0].err)
}

func TestSyncCustomers_WritesPartnersWithAddresses(t *testing.T) {
	f := newFixture(t)
	old := t0.Add(-48 * time.Hour)
	f.remote.partners[masterdata.PartnerTypeCustomer] = []masterdata.PartnerSnapshot{{
		CardCode: "C001",
		CardType: masterdata.PartnerTypeCustomer,
		Details: masterdata.PartnerDetails{
			CardName:  "Acme",
			Addresses: []masterdata.Address{{Name: "HQ", Type: masterdata.AddressTypeBilling, City: "Austin"}},
		},
		CreatedAt: &old,
		UpdatedAt: &old,
	}}
	f.remote.partners[masterdata.PartnerTypeSupplier] = []masterdata.PartnerSnapshot{{
		CardCode:  "S001",
		CardType:  masterdata.PartnerTypeSupplier,
		Details:   masterdata.PartnerDetails{CardName: "Parts Inc"},
		CreatedAt: &old,
		UpdatedAt: &old,
	}}

	result, err := f.svc.Sync(context.Background(), masterdata.SyncEntityCustomer, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, masterdata.SyncEntityCustomer, result.Entity)
	assert.Equal(t, 1, result.Created)

	repo := persistence.NewGormBusinessPartnerRepository(f.db)
	acme, err := repo.FindByCode(context.Background(), "C001")
	require.NoError(t, err)
	require.Len(t, acme.Addresses, 1)

	suppliers, err := repo.FindAll(context.Background(), masterdata.PartnerTypeSupplier)
	require.NoError(t, err)
	assert.Empty(t, suppliers, "customer sync leaves suppliers alone")
	assert.Contains(t, f.invalidator.tags, cache.PartnerTag("C"))

	result, err = f.svc.SyncSuppliers(context.Background(), "jdoe")
	require.NoError(t, err)
	assert.Equal(t, syncapp.ModeInitial, result.Mode, "each partner type has its own cold start")
	assert.Equal(t, 1, result.Created)
}

func TestSync_UnknownEntity(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Sync(context.Background(), "warehouse", "jdoe")
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}

func TestStatus_ReportsEveryEntity(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SyncItems(context.Background(), "jdoe")
	require.NoError(t, err)

	statuses, err := f.svc.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 3)

	assert.Equal(t, masterdata.SyncEntityItem, statuses[0].Entity)
	assert.False(t, statuses[0].NeverRun)
	assert.True(t, t0.Equal(statuses[0].LastSyncAt))
	assert.Equal(t, "jdoe", statuses[0].UpdatedBy)

	assert.Equal(t, "Customers", statuses[1].Label)
	assert.True(t, statuses[1].NeverRun)
	assert.True(t, masterdata.DefaultLastSyncAt.Equal(statuses[1].LastSyncAt))
}
