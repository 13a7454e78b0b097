package models

import (
	"testing"
	"time"

	"github.com/erp/portal/internal/domain/bulk"
	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/domain/sales"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

func TestTableNames(t *testing.T) {
	assert.Equal(t, "items", ItemModel{}.TableName())
	assert.Equal(t, "business_partners", BusinessPartnerModel{}.TableName())
	assert.Equal(t, "business_partner_addresses", BusinessPartnerAddressModel{}.TableName())
	assert.Equal(t, "sync_meta", SyncMetaModel{}.TableName())
	assert.Equal(t, "requisitions", RequisitionModel{}.TableName())
	assert.Equal(t, "requisition_items", RequestedItemModel{}.TableName())
	assert.Equal(t, "supplier_quotes", SupplierQuoteModel{}.TableName())
	assert.Equal(t, "supplier_quote_lines", QuoteLineModel{}.TableName())
	assert.Equal(t, "import_histories", ImportHistoryModel{}.TableName())
}

func TestItemModel_KeepsTombstone(t *testing.T) {
	item := masterdata.NewSyncedItem("A-1", masterdata.ItemDetails{Name: "Resistor", ManufacturerCode: masterdata.NoManufacturer}, &now, nil, "sync", now)
	require.NoError(t, item.SoftDelete("jdoe", now.Add(time.Hour)))

	m := ItemModelFromDomain(item)
	assert.Equal(t, "deleted", m.Lifecycle)
	require.NotNil(t, m.DeletedAt)
	assert.Equal(t, "jdoe", m.DeletedBy)

	back := m.ToDomain()
	assert.Equal(t, item.Code, back.Code)
	assert.Equal(t, masterdata.NoManufacturer, back.ManufacturerCode)
	assert.True(t, back.IsDeleted())
	assert.Equal(t, "jdoe", back.Tombstone.DeletedBy)
	assert.Equal(t, masterdata.SourceSAP, back.Source)
}

func TestBusinessPartnerModel_AddressOrder(t *testing.T) {
	bp := masterdata.NewSyncedBusinessPartner("C1", masterdata.PartnerTypeCustomer, masterdata.PartnerDetails{
		CardName: "Acme",
		Addresses: []masterdata.Address{
			{Name: "HQ", Type: masterdata.AddressTypeBilling},
			{Name: "Dock", Type: masterdata.AddressTypeShipping},
		},
	}, nil, nil, "sync", now)

	m := BusinessPartnerModelFromDomain(bp)
	require.Len(t, m.Addresses, 2)
	assert.Equal(t, 1, m.Addresses[1].Position)
	assert.Equal(t, bp.ID, m.Addresses[0].PartnerID)
	assert.Equal(t, string(shared.LifecycleActive), m.Lifecycle)

	back := m.ToDomain()
	assert.Equal(t, "Dock", back.Addresses[1].Name)
}

func TestRequisitionModel_Items(t *testing.T) {
	r, err := sales.NewRequisition("REQ-1", "C1", now, sales.RequisitionStatusOpen, []sales.RequestedItem{
		{ItemCode: "A-1", Quantity: decimal.NewFromInt(3), CustomerStandardPrice: decimal.RequireFromString("9.99")},
	}, "jdoe", now)
	require.NoError(t, err)

	back := RequisitionModelFromDomain(r).ToDomain()
	require.Len(t, back.Items, 1)
	assert.True(t, back.Items[0].CustomerStandardPrice.Equal(decimal.RequireFromString("9.99")))
	assert.Equal(t, sales.RequisitionStatusOpen, back.Status)
}

func TestImportHistoryModel_Errors(t *testing.T) {
	h, err := bulk.NewImportHistory(bulk.ImportEntityItems, "items.xlsx", 10, "jdoe")
	require.NoError(t, err)
	h.Errors = []bulk.RowFailure{{RowNumber: 3, Entries: []string{"Name is required"}}}

	m := ImportHistoryModelFromDomain(h)
	assert.Contains(t, m.Errors, `"rowNumber":3`)

	m.Errors = "not json"
	back := m.ToDomain()
	assert.Equal(t, h.ID, back.ID)
	assert.Empty(t, back.Errors)
}
