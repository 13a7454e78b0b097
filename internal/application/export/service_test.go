package export_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/erp/portal/internal/application/export"
	importapp "github.com/erp/portal/internal/application/import"
	"github.com/erp/portal/internal/domain/bulk"
	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/domain/sales"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/infrastructure/cache"
	"github.com/erp/portal/internal/infrastructure/persistence"
	"github.com/erp/portal/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var exportNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

type repos struct {
	items        masterdata.ItemRepository
	partners     masterdata.BusinessPartnerRepository
	requisitions sales.RequisitionRepository
	quotes       sales.SupplierQuoteRepository
}

func setupRepos(t *testing.T) repos {
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
	return repos{
		items:        persistence.NewGormItemRepository(db),
		partners:     persistence.NewGormBusinessPartnerRepository(db),
		requisitions: persistence.NewGormRequisitionRepository(db),
		quotes:       persistence.NewGormSupplierQuoteRepository(db),
	}
}

func (r repos) exporter(opts ...export.Option) *export.Service {
	opts = append(opts, export.WithClock(func() time.Time { return exportNow }))
	return export.NewService(r.items, r.partners, r.requisitions, r.quotes, opts...)
}

type memoryArchive struct {
	keys []string
}

func (a *memoryArchive) Put(_ context.Context, key string, _ []byte, _ string) error {
	a.keys = append(a.keys, key)
	return nil
}

func sheetRows(t *testing.T, data []byte, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestExportItems_RoundTrip(t *testing.T) {
	src := setupRepos(t)
	ctx := context.Background()

	synced := masterdata.NewSyncedItem("CAP-1", masterdata.ItemDetails{
		Name: "Capacitor 10uF", GroupCode: 105, GroupName: "Capacitors",
		ManufacturerCode: 7, ManufacturerName: "Murata", MPN: "GRM188", UoM: "pcs",
	}, nil, nil, "sync", exportNow)
	portal, err := masterdata.NewPortalItem("RES-1", masterdata.ItemDetails{
		Name: "Resistor 1k", GroupCode: 100, GroupName: "Items", ManufacturerCode: masterdata.NoManufacturer,
	}, "jdoe", exportNow)
	require.NoError(t, err)
	_, err = src.items.CreateBatch(ctx, []*masterdata.Item{synced, portal})
	require.NoError(t, err)

	archive := &memoryArchive{}
	file, err := src.exporter(export.WithArchive(archive)).Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, "items_20240601_093000.xlsx", file.Name)
	assert.Equal(t, 2, file.Rows)
	require.Len(t, archive.keys, 1)
	assert.Equal(t, archive.keys[0], file.ObjectKey)
	assert.True(t, strings.HasPrefix(file.ObjectKey, "exports/items/2024/06/01/"))

	rows := sheetRows(t, file.Data, importapp.ItemLayout.Sheet)
	require.Len(t, rows, 3)
	assert.Equal(t, importapp.ItemLayout.Header(), rows[0])
	assert.Contains(t, rows[1:], []string{"CAP-1", "Capacitor 10uF", "Capacitors", "Murata", "GRM188", "", "pcs", "SAP", "Synced"})

	parsed, err := importapp.Parse(bulk.ImportEntityItems, file.Data)
	require.NoError(t, err)
	items := parsed.(importapp.Parsed[importapp.ItemRow])

	dst := setupRepos(t)
	svc := importapp.NewService(dst.items, dst.partners, dst.requisitions, dst.quotes, cache.NopInvalidator{})
	resp := svc.ImportItems(ctx, importapp.ChunkRequest[importapp.ItemRow]{
		Rows:        items.Rows,
		Total:       items.Total,
		IsLastBatch: true,
		Lookups: importapp.ReferenceLookup{
			ItemGroups:    []masterdata.ItemGroup{{Code: 100, Name: "Items"}, {Code: 105, Name: "Capacitors"}},
			Manufacturers: []masterdata.Manufacturer{{Code: 7, Name: "Murata"}},
		},
	})
	require.False(t, resp.Failed())
	assert.Empty(t, resp.Stats.Errors)
	assert.Equal(t, 2, resp.Stats.Completed)

	before, err := src.items.FindAll(ctx)
	require.NoError(t, err)
	after, err := dst.items.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].Code, after[i].Code)
		assert.Equal(t, before[i].GroupCode, after[i].GroupCode)
		assert.Equal(t, before[i].ManufacturerCode, after[i].ManufacturerCode)
	}
}

func TestExportBusinessPartners_LabelsAndChildRows(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()

	customer, err := masterdata.NewPortalBusinessPartner("C100", masterdata.PartnerTypeCustomer, masterdata.PartnerDetails{
		CardName: "Acme", Currency: "EUR",
		Addresses: []masterdata.Address{
			{Name: "HQ", Type: masterdata.AddressTypeBilling, City: "Berlin"},
			{Name: "Depot", Type: masterdata.AddressTypeShipping, City: "Hamburg"},
		},
	}, "jdoe", exportNow)
	require.NoError(t, err)
	supplier, err := masterdata.NewPortalBusinessPartner("S200", masterdata.PartnerTypeSupplier, masterdata.PartnerDetails{CardName: "Parts Ltd"}, "jdoe", exportNow)
	require.NoError(t, err)
	_, err = r.partners.CreateBatch(ctx, []*masterdata.BusinessPartner{customer, supplier})
	require.NoError(t, err)

	file, err := r.exporter().Export(ctx, bulk.ImportEntityBusinessPartners, "C")
	require.NoError(t, err)
	assert.Equal(t, 1, file.Rows)
	assert.True(t, strings.HasPrefix(file.Name, "business-partners-Customer_"))

	rows := sheetRows(t, file.Data, importapp.BusinessPartnerLayout.Sheet)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"C100", "MAIN", "Acme", "Customer", "", "", "", "EUR"}, rows[1])
	assert.Equal(t, "ADDRESS", rows[2][1])
	assert.Equal(t, "Billing", rows[2][9])
	assert.Equal(t, "Shipping", rows[3][9])

	parsed, err := importapp.Parse(bulk.ImportEntityBusinessPartners, file.Data)
	require.NoError(t, err)
	partners := parsed.(importapp.Parsed[importapp.BusinessPartnerRow])
	assert.Empty(t, partners.Failures)
	require.Len(t, partners.Rows, 1)
	assert.Len(t, partners.Rows[0].Row.Addresses, 2)

	all, err := r.exporter().Export(ctx, bulk.ImportEntityBusinessPartners, "")
	require.NoError(t, err)
	assert.Equal(t, 2, all.Rows)
}

func TestExportRequisitions_RoundTrip(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()

	req, err := sales.NewRequisition("REQ-1", "C100", exportNow, sales.RequisitionStatusWon, []sales.RequestedItem{
		{ItemCode: "CAP-1", Quantity: decimal.RequireFromString("2.5"), CustomerStandardPrice: decimal.RequireFromString("0.12")},
	}, "jdoe", exportNow)
	require.NoError(t, err)
	_, err = r.requisitions.CreateBatch(ctx, []*sales.Requisition{req})
	require.NoError(t, err)

	file, err := r.exporter().Requisitions(ctx)
	require.NoError(t, err)

	parsed, err := importapp.Parse(bulk.ImportEntityRequisitions, file.Data)
	require.NoError(t, err)
	reqs := parsed.(importapp.Parsed[importapp.RequisitionRow])
	require.Len(t, reqs.Rows, 1)
	row := reqs.Rows[0].Row
	assert.Equal(t, "Won", row.Status)
	assert.Equal(t, "2024-06-01", row.RequestedAt)
	require.Len(t, row.Items, 1)
	assert.Equal(t, "2.5", row.Items[0].Quantity)
	assert.Equal(t, "0.12", row.Items[0].CustomerStandardPrice)
}

func TestExportSupplierQuotes(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()

	q, err := sales.NewSupplierQuote("SQ-1", "S200", "REQ-1", exportNow, sales.QuoteStatusAccepted, "usd", []sales.QuoteLine{
		{MPN: "LM317", Quantity: decimal.NewFromInt(100), UnitPrice: decimal.RequireFromString("0.35"), LeadTimeDays: 21},
	}, "jdoe", exportNow)
	require.NoError(t, err)
	_, err = r.quotes.CreateBatch(ctx, []*sales.SupplierQuote{q})
	require.NoError(t, err)

	file, err := r.exporter().Export(ctx, bulk.ImportEntitySupplierQuotes, "")
	require.NoError(t, err)

	rows := sheetRows(t, file.Data, importapp.SupplierQuoteLayout.Sheet)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"SQ-1", "MAIN", "S200", "REQ-1", "2024-06-01", "Accepted", "USD"}, rows[1])
	assert.Equal(t, []string{"SQ-1", "LINE_ITEM", "", "", "", "", "", "", "", "LM317", "100", "0.35", "21"}, rows[2])
}

func TestExport_UnknownEntity(t *testing.T) {
	r := setupRepos(t)
	_, err := r.exporter().Export(context.Background(), bulk.ImportEntity("products"), "")
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	_, err = r.exporter().Export(context.Background(), bulk.ImportEntityBusinessPartners, "lead")
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}
