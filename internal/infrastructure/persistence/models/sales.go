package models

import (
	"time"

	"github.com/erp/portal/internal/domain/sales"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequisitionModel is the persistence model for sales.Requisition
type RequisitionModel struct {
	RecordModel
	Code         string               `gorm:"type:varchar(50);not null;uniqueIndex:idx_requisitions_code_live,where:lifecycle <> 'deleted'"`
	CustomerCode string               `gorm:"type:varchar(50);not null;index"`
	RequestedAt  time.Time            `gorm:"not null"`
	Status       string               `gorm:"type:varchar(20);not null"`
	SalesRep     string               `gorm:"type:varchar(100)"`
	Notes        string               `gorm:"type:text"`
	Items        []RequestedItemModel `gorm:"foreignKey:RequisitionID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (RequisitionModel) TableName() string {
	return "requisitions"
}

// RequestedItemModel stores one requested item of a requisition
type RequestedItemModel struct {
	ID                    uuid.UUID       `gorm:"type:uuid;primaryKey"`
	RequisitionID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position              int             `gorm:"not null"`
	ItemCode              string          `gorm:"type:varchar(50)"`
	SupplierSuggested     string          `gorm:"type:varchar(50)"`
	MPN                   string          `gorm:"column:mpn;type:varchar(100)"`
	Quantity              decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CustomerStandardPrice decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Notes                 string          `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (RequestedItemModel) TableName() string {
	return "requisition_items"
}

// RequisitionModelFromDomain creates a persistence model, items included
func RequisitionModelFromDomain(r *sales.Requisition) *RequisitionModel {
	m := &RequisitionModel{
		RecordModel:  fillRecord(r.ID, r.SoftDeletable, r.Audit),
		Code:         r.Code,
		CustomerCode: r.CustomerCode,
		RequestedAt:  r.RequestedAt,
		Status:       string(r.Status),
		SalesRep:     r.SalesRep,
		Notes:        r.Notes,
	}
	m.Items = RequestedItemModelsFromDomain(r.ID, r.Items)
	return m
}

// RequestedItemModelsFromDomain maps requested items to rows owned by requisitionID
func RequestedItemModelsFromDomain(requisitionID uuid.UUID, items []sales.RequestedItem) []RequestedItemModel {
	rows := make([]RequestedItemModel, 0, len(items))
	for i, it := range items {
		rows = append(rows, RequestedItemModel{
			ID:                    uuid.New(),
			RequisitionID:         requisitionID,
			Position:              i,
			ItemCode:              it.ItemCode,
			SupplierSuggested:     it.SupplierSuggested,
			MPN:                   it.MPN,
			Quantity:              it.Quantity,
			CustomerStandardPrice: it.CustomerStandardPrice,
			Notes:                 it.Notes,
		})
	}
	return rows
}

// ToDomain converts the model to a domain requisition
func (m *RequisitionModel) ToDomain() *sales.Requisition {
	r := &sales.Requisition{
		ID:            m.ID,
		Code:          m.Code,
		CustomerCode:  m.CustomerCode,
		RequestedAt:   m.RequestedAt,
		Status:        sales.RequisitionStatus(m.Status),
		SalesRep:      m.SalesRep,
		Notes:         m.Notes,
		SoftDeletable: m.RecordModel.SoftDeletable(),
		Audit:         m.RecordModel.Audit(),
	}
	for _, it := range m.Items {
		r.Items = append(r.Items, sales.RequestedItem{
			ItemCode:              it.ItemCode,
			SupplierSuggested:     it.SupplierSuggested,
			MPN:                   it.MPN,
			Quantity:              it.Quantity,
			CustomerStandardPrice: it.CustomerStandardPrice,
			Notes:                 it.Notes,
		})
	}
	return r
}

// SupplierQuoteModel is the persistence model for sales.SupplierQuote
type SupplierQuoteModel struct {
	RecordModel
	Code            string           `gorm:"type:varchar(50);not null;uniqueIndex:idx_supplier_quotes_code_live,where:lifecycle <> 'deleted'"`
	SupplierCode    string           `gorm:"type:varchar(50);not null;index"`
	RequisitionCode string           `gorm:"type:varchar(50);index"`
	QuotedAt        time.Time        `gorm:"not null"`
	Status          string           `gorm:"type:varchar(20);not null"`
	Currency        string           `gorm:"type:varchar(3)"`
	Notes           string           `gorm:"type:text"`
	Lines           []QuoteLineModel `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (SupplierQuoteModel) TableName() string {
	return "supplier_quotes"
}

// QuoteLineModel stores one line of a supplier quote
type QuoteLineModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	QuoteID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position     int             `gorm:"not null"`
	ItemCode     string          `gorm:"type:varchar(50)"`
	MPN          string          `gorm:"column:mpn;type:varchar(100)"`
	Quantity     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	LeadTimeDays int             `gorm:"not null"`
	Notes        string          `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (QuoteLineModel) TableName() string {
	return "supplier_quote_lines"
}

// SupplierQuoteModelFromDomain creates a persistence model, lines included
func SupplierQuoteModelFromDomain(q *sales.SupplierQuote) *SupplierQuoteModel {
	m := &SupplierQuoteModel{
		RecordModel:     fillRecord(q.ID, q.SoftDeletable, q.Audit),
		Code:            q.Code,
		SupplierCode:    q.SupplierCode,
		RequisitionCode: q.RequisitionCode,
		QuotedAt:        q.QuotedAt,
		Status:          string(q.Status),
		Currency:        q.Currency,
		Notes:           q.Notes,
	}
	m.Lines = QuoteLineModelsFromDomain(q.ID, q.Lines)
	return m
}

// QuoteLineModelsFromDomain maps quote lines to rows owned by quoteID
func QuoteLineModelsFromDomain(quoteID uuid.UUID, lines []sales.QuoteLine) []QuoteLineModel {
	rows := make([]QuoteLineModel, 0, len(lines))
	for i, l := range lines {
		rows = append(rows, QuoteLineModel{
			ID:           uuid.New(),
			QuoteID:      quoteID,
			Position:     i,
			ItemCode:     l.ItemCode,
			MPN:          l.MPN,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice,
			LeadTimeDays: l.LeadTimeDays,
			Notes:        l.Notes,
		})
	}
	return rows
}

// ToDomain converts the model to a domain supplier quote
func (m *SupplierQuoteModel) ToDomain() *sales.SupplierQuote {
	q := &sales.SupplierQuote{
		ID:              m.ID,
		Code:            m.Code,
		SupplierCode:    m.SupplierCode,
		RequisitionCode: m.RequisitionCode,
		QuotedAt:        m.QuotedAt,
		Status:          sales.QuoteStatus(m.Status),
		Currency:        m.Currency,
		Notes:           m.Notes,
		SoftDeletable:   m.RecordModel.SoftDeletable(),
		Audit:           m.RecordModel.Audit(),
	}
	for _, l := range m.Lines {
		q.Lines = append(q.Lines, sales.QuoteLine{
			ItemCode:     l.ItemCode,
			MPN:          l.MPN,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice,
			LeadTimeDays: l.LeadTimeDays,
			Notes:        l.Notes,
		})
	}
	return q
}
