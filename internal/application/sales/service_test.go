package sales_test

import (
	"context"
	"errors"
	"testing"
	"time"

	salesapp "github.com/erp/portal/internal/application/sales"
	"github.com/erp/portal/internal/domain/sales"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/infrastructure/cache"
	"github.com/erp/portal/internal/infrastructure/persistence"
	"github.com/erp/portal/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var salesNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func TestRequisitionService(t *testing.T) {
	repo := persistence.NewGormRequisitionRepository(setupDB(t))
	svc := salesapp.NewRequisitionService(repo, cache.NewMemoryTagCache(time.Minute), nil)
	ctx := context.Background()

	req, err := sales.NewRequisition("REQ-1", "C100", salesNow, sales.RequisitionStatusQuoted, []sales.RequestedItem{
		{ItemCode: "A-1", Quantity: decimal.NewFromInt(4)},
		{MPN: "LM317", Quantity: decimal.RequireFromString("1.5")},
	}, "jdoe", salesNow)
	require.NoError(t, err)
	_, err = repo.CreateBatch(ctx, []*sales.Requisition{req})
	require.NoError(t, err)

	got, err := svc.Get(ctx, "REQ-1")
	require.NoError(t, err)
	assert.Equal(t, "Quoted", got.StatusLabel)
	assert.Equal(t, "5.5", got.TotalQuantity.String())
	assert.Len(t, got.Items, 2)

	page, err := svc.List(ctx, shared.Filter{Search: "req"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	require.NoError(t, svc.Delete(ctx, "asmith", "REQ-1"))
	_, err = svc.Get(ctx, "REQ-1")
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	page, err = svc.List(ctx, shared.Filter{Search: "req"})
	require.NoError(t, err)
	assert.Zero(t, page.Total, "the delete dropped the cached page")
}

func TestSupplierQuoteService(t *testing.T) {
	repo := persistence.NewGormSupplierQuoteRepository(setupDB(t))
	svc := salesapp.NewSupplierQuoteService(repo, cache.NewMemoryTagCache(time.Minute), nil)
	ctx := context.Background()

	q, err := sales.NewSupplierQuote("SQ-1", "S200", "REQ-1", salesNow, sales.QuoteStatusReceived, "EUR", []sales.QuoteLine{
		{ItemCode: "A-1", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.RequireFromString("0.25"), LeadTimeDays: 14},
	}, "jdoe", salesNow)
	require.NoError(t, err)
	_, err = repo.CreateBatch(ctx, []*sales.SupplierQuote{q})
	require.NoError(t, err)

	page, err := svc.List(ctx, shared.Filter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "2.5", page.Items[0].Total.String())
	assert.Equal(t, "2.5", page.Items[0].Lines[0].Amount.String())

	require.NoError(t, svc.Delete(ctx, "asmith", "SQ-1"))
	assert.True(t, errors.Is(svc.Delete(ctx, "asmith", "SQ-1"), shared.ErrNotFound))
}
