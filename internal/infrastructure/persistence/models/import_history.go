package models

import (
	"time"

	"github.com/erp/portal/internal/domain/bulk"
	"github.com/google/uuid"
)

// ImportHistoryModel is the persistence model for bulk.ImportHistory
type ImportHistoryModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Entity        string     `gorm:"type:varchar(30);not null;index"`
	FileName      string     `gorm:"type:varchar(255);not null"`
	ObjectKey     string     `gorm:"type:varchar(500)"`
	FileSize      int64      `gorm:"not null"`
	TotalRows     int        `gorm:"not null"`
	CompletedRows int        `gorm:"not null"`
	ErrorRows     int        `gorm:"not null"`
	Status        string     `gorm:"type:varchar(20);not null;index"`
	FailureReason string     `gorm:"type:text"`
	Note          string     `gorm:"type:text"`
	Errors        string     `gorm:"type:jsonb"`
	ImportedBy    string     `gorm:"type:varchar(100);index"`
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time  `gorm:"not null"`
	UpdatedAt     time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ImportHistoryModel) TableName() string {
	return "import_histories"
}

// ToDomain converts the persistence model to a domain ImportHistory
func (m *ImportHistoryModel) ToDomain() *bulk.ImportHistory {
	h := &bulk.ImportHistory{
		ID:            m.ID,
		Entity:        bulk.ImportEntity(m.Entity),
		FileName:      m.FileName,
		ObjectKey:     m.ObjectKey,
		FileSize:      m.FileSize,
		TotalRows:     m.TotalRows,
		CompletedRows: m.CompletedRows,
		ErrorRows:     m.ErrorRows,
		Status:        bulk.ImportStatus(m.Status),
		FailureReason: m.FailureReason,
		Note:          m.Note,
		ImportedBy:    m.ImportedBy,
		StartedAt:     m.StartedAt,
		CompletedAt:   m.CompletedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	// a corrupt error list must not hide the rest of the record
	_ = h.SetErrorsFromJSON(m.Errors)
	return h
}

// ImportHistoryModelFromDomain creates a persistence model from a domain ImportHistory
func ImportHistoryModelFromDomain(h *bulk.ImportHistory) *ImportHistoryModel {
	m := &ImportHistoryModel{
		ID:            h.ID,
		Entity:        string(h.Entity),
		FileName:      h.FileName,
		ObjectKey:     h.ObjectKey,
		FileSize:      h.FileSize,
		TotalRows:     h.TotalRows,
		CompletedRows: h.CompletedRows,
		ErrorRows:     h.ErrorRows,
		Status:        string(h.Status),
		FailureReason: h.FailureReason,
		Note:          h.Note,
		ImportedBy:    h.ImportedBy,
		StartedAt:     h.StartedAt,
		CompletedAt:   h.CompletedAt,
		CreatedAt:     h.CreatedAt,
		UpdatedAt:     h.UpdatedAt,
	}
	if errorsJSON, err := h.ErrorsJSON(); err == nil {
		m.Errors = errorsJSON
	} else {
		m.Errors = "[]"
	}
	return m
}

// All returns every model in migration order, for AutoMigrate in tests
func All() []any {
	return []any{
		&ItemModel{},
		&BusinessPartnerModel{},
		&BusinessPartnerAddressModel{},
		&SyncMetaModel{},
		&RequisitionModel{},
		&RequestedItemModel{},
		&SupplierQuoteModel{},
		&QuoteLineModel{},
		&ImportHistoryModel{},
	}
}
