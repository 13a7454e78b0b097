package masterdata

import (
	"fmt"
	"time"

	"github.com/erp/portal/internal/domain/shared"
)

// SyncEntity identifies a synchronizable entity type. Partner entities reuse
// SAP's CardType codes.
type SyncEntity string

const (
	SyncEntityItem     SyncEntity = "item"
	SyncEntityCustomer SyncEntity = "C"
	SyncEntitySupplier SyncEntity = "S"
)

// AllSyncEntities lists every entity type in sync order
var AllSyncEntities = []SyncEntity{SyncEntityItem, SyncEntityCustomer, SyncEntitySupplier}

// DefaultLastSyncAt is the watermark used when no sync has ever completed
var DefaultLastSyncAt = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// ParseSyncEntity accepts "item", "C"/"customers" or "S"/"suppliers"
func ParseSyncEntity(s string) (SyncEntity, error) {
	switch s {
	case "item", "items":
		return SyncEntityItem, nil
	case "C", "customer", "customers":
		return SyncEntityCustomer, nil
	case "S", "supplier", "suppliers":
		return SyncEntitySupplier, nil
	}
	return "", shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown sync entity: %q", s))
}

// IsValid checks if the entity is known
func (e SyncEntity) IsValid() bool {
	switch e {
	case SyncEntityItem, SyncEntityCustomer, SyncEntitySupplier:
		return true
	}
	return false
}

// PartnerType returns the partner type for C and S
func (e SyncEntity) PartnerType() (PartnerType, bool) {
	switch e {
	case SyncEntityCustomer:
		return PartnerTypeCustomer, true
	case SyncEntitySupplier:
		return PartnerTypeSupplier, true
	}
	return "", false
}

// Label returns the human readable name
func (e SyncEntity) Label() string {
	switch e {
	case SyncEntityItem:
		return "Items"
	case SyncEntityCustomer:
		return "Customers"
	case SyncEntitySupplier:
		return "Suppliers"
	}
	return string(e)
}

// SyncMeta is the sync watermark of one entity type. There is exactly one row
// per entity and only the sync orchestrator changes it.
type SyncMeta struct {
	Code       SyncEntity
	LastSyncAt time.Time
	UpdatedBy  string
	UpdatedAt  time.Time
}

// NewSyncMeta returns the watermark of an entity that was never synced
func NewSyncMeta(code SyncEntity) *SyncMeta {
	return &SyncMeta{Code: code, LastSyncAt: DefaultLastSyncAt}
}

// Advance moves the watermark to max(to, LastSyncAt) and returns it.
func (m *SyncMeta) Advance(to time.Time, by string) time.Time {
	if to.After(m.LastSyncAt) {
		m.LastSyncAt = to
	}
	m.UpdatedBy = by
	m.UpdatedAt = to
	return m.LastSyncAt
}

// IsInitial reports whether the watermark still holds the default
func (m *SyncMeta) IsInitial() bool {
	return !m.LastSyncAt.After(DefaultLastSyncAt)
}
