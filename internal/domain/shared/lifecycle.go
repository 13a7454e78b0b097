package shared

import (
	"strings"
	"time"
)

// Lifecycle is the explicit life state of a locally persisted record.
// Records are never hard-deleted; a delete moves them to LifecycleDeleted.
type Lifecycle string

const (
	LifecycleActive  Lifecycle = "active"
	LifecycleDeleted Lifecycle = "deleted"
)

// IsValid checks if the lifecycle value is known
func (l Lifecycle) IsValid() bool {
	return l == LifecycleActive || l == LifecycleDeleted
}

// Tombstone records who deleted a record and when
type Tombstone struct {
	DeletedAt time.Time
	DeletedBy string
}

// SoftDeletable is embedded by every record that supports soft delete.
// Tombstone is set exactly when Lifecycle is LifecycleDeleted.
type SoftDeletable struct {
	Lifecycle Lifecycle
	Tombstone *Tombstone
}

// Live returns the state of a newly created record
func Live() SoftDeletable {
	return SoftDeletable{Lifecycle: LifecycleActive}
}

// IsDeleted reports whether the record has been soft-deleted
func (s SoftDeletable) IsDeleted() bool {
	return s.Lifecycle == LifecycleDeleted
}

// SoftDelete moves the record from active to deleted
func (s *SoftDeletable) SoftDelete(actor string, at time.Time) error {
	if s.IsDeleted() {
		return NewDomainError("INVALID_STATE", "Record is already deleted")
	}
	s.Lifecycle = LifecycleDeleted
	s.Tombstone = &Tombstone{DeletedAt: at, DeletedBy: actor}
	return nil
}

// Audit holds who created and last changed a record
type Audit struct {
	CreatedBy string
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAudit stamps a record created by actor at the given time
func NewAudit(actor string, at time.Time) Audit {
	return Audit{CreatedBy: actor, UpdatedBy: actor, CreatedAt: at, UpdatedAt: at}
}

// Touch records a change by actor
func (a *Audit) Touch(actor string, at time.Time) {
	a.UpdatedBy = actor
	a.UpdatedAt = at
}

// NormalizeKey trims a natural business key. Keys are case sensitive.
func NormalizeKey(key string) string {
	return strings.TrimSpace(key)
}
