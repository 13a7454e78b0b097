package models

import (
	"time"

	"github.com/erp/portal/internal/domain/shared"
	"github.com/google/uuid"
)

// RecordModel provides the identity, soft delete and audit columns shared by
// every portal table.
type RecordModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Lifecycle string     `gorm:"type:varchar(10);not null;index"`
	DeletedAt *time.Time
	DeletedBy string     `gorm:"type:varchar(100)"`
	CreatedBy string     `gorm:"type:varchar(100)"`
	UpdatedBy string     `gorm:"type:varchar(100)"`
	CreatedAt time.Time  `gorm:"not null"`
	UpdatedAt time.Time  `gorm:"not null"`
}

// fillRecord populates the shared columns from domain values
func fillRecord(id uuid.UUID, state shared.SoftDeletable, audit shared.Audit) RecordModel {
	m := RecordModel{
		ID:        id,
		Lifecycle: string(state.Lifecycle),
		CreatedBy: audit.CreatedBy,
		UpdatedBy: audit.UpdatedBy,
		CreatedAt: audit.CreatedAt,
		UpdatedAt: audit.UpdatedAt,
	}
	if m.Lifecycle == "" {
		m.Lifecycle = string(shared.LifecycleActive)
	}
	if state.Tombstone != nil {
		deletedAt := state.Tombstone.DeletedAt
		m.DeletedAt = &deletedAt
		m.DeletedBy = state.Tombstone.DeletedBy
	}
	return m
}

// SoftDeletable returns the domain lifecycle state
func (m *RecordModel) SoftDeletable() shared.SoftDeletable {
	state := shared.SoftDeletable{Lifecycle: shared.Lifecycle(m.Lifecycle)}
	if m.DeletedAt != nil {
		state.Tombstone = &shared.Tombstone{DeletedAt: *m.DeletedAt, DeletedBy: m.DeletedBy}
	}
	return state
}

// Audit returns the domain audit fields
func (m *RecordModel) Audit() shared.Audit {
	return shared.Audit{
		CreatedBy: m.CreatedBy,
		UpdatedBy: m.UpdatedBy,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
