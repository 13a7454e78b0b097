package masterdata

import (
	"time"

	"github.com/erp/portal/internal/domain/shared"
	"github.com/google/uuid"
)

// NoManufacturer is SAP's code for "- No Manufacturer -"
const NoManufacturer = -1

// Item is the local mirror of an SAP item master record
type Item struct {
	ID               uuid.UUID
	Code             string
	Name             string
	GroupCode        int
	GroupName        string
	ManufacturerCode int
	ManufacturerName string
	MPN              string
	Description      string
	UoM              string
	RemoteCreatedAt  *time.Time
	RemoteUpdatedAt  *time.Time
	Source           Source
	SyncStatus       SyncStatus
	shared.SoftDeletable
	shared.Audit
}

// ItemDetails are the descriptive fields shared by remote snapshots, imports and portal edits
type ItemDetails struct {
	Name             string
	GroupCode        int
	GroupName        string
	ManufacturerCode int
	ManufacturerName string
	MPN              string
	Description      string
	UoM              string
}

// NewPortalItem creates an item originating in the portal. It is pending
// until the remote system confirms it.
func NewPortalItem(code string, details ItemDetails, actor string, at time.Time) (*Item, error) {
	item := &Item{
		ID:            uuid.New(),
		Code:          shared.NormalizeKey(code),
		Source:        SourcePortal,
		SyncStatus:    SyncStatusPending,
		SoftDeletable: shared.Live(),
		Audit:         shared.NewAudit(actor, at),
	}
	item.apply(details)
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}

// NewSyncedItem creates an item mirrored from SAP
func NewSyncedItem(code string, details ItemDetails, remoteCreated, remoteUpdated *time.Time, actor string, at time.Time) *Item {
	item := &Item{
		ID:              uuid.New(),
		Code:            shared.NormalizeKey(code),
		RemoteCreatedAt: remoteCreated,
		RemoteUpdatedAt: remoteUpdated,
		Source:          SourceSAP,
		SyncStatus:      SyncStatusSynced,
		SoftDeletable:   shared.Live(),
		Audit:           shared.NewAudit(actor, at),
	}
	item.apply(details)
	return item
}

// Validate checks the required fields
func (i *Item) Validate() error {
	if i.Code == "" {
		return shared.NewDomainError("INVALID_INPUT", "Item code is required")
	}
	if len(i.Code) > 50 {
		return shared.NewDomainError("INVALID_INPUT", "Item code cannot exceed 50 characters")
	}
	if i.Name == "" {
		return shared.NewDomainError("INVALID_INPUT", "Item name is required")
	}
	if len(i.Name) > 200 {
		return shared.NewDomainError("INVALID_INPUT", "Item name cannot exceed 200 characters")
	}
	return nil
}

// NaturalKey returns the item code
func (i *Item) NaturalKey() string {
	return i.Code
}

// ChangedSince reports whether the remote record was created or updated strictly after t
func (i *Item) ChangedSince(t time.Time) bool {
	return changedSince(i.RemoteCreatedAt, i.RemoteUpdatedAt, t)
}

// Details returns the descriptive fields
func (i *Item) Details() ItemDetails {
	return ItemDetails{
		Name:             i.Name,
		GroupCode:        i.GroupCode,
		GroupName:        i.GroupName,
		ManufacturerCode: i.ManufacturerCode,
		ManufacturerName: i.ManufacturerName,
		MPN:              i.MPN,
		Description:      i.Description,
		UoM:              i.UoM,
	}
}

// Update applies a portal edit. The record no longer matches SAP afterwards.
func (i *Item) Update(details ItemDetails, actor string, at time.Time) error {
	if i.IsDeleted() {
		return shared.NewDomainError("INVALID_STATE", "Cannot update a deleted item")
	}
	prev := i.Details()
	i.apply(details)
	if err := i.Validate(); err != nil {
		i.apply(prev)
		return err
	}
	i.SyncStatus = SyncStatusPending
	i.Touch(actor, at)
	return nil
}

// MergeRemote overwrites the descriptive fields with the remote copy. Portal
// only fields (MPN, Description) survive when the remote leaves them empty.
func (i *Item) MergeRemote(remote *Item, actor string, at time.Time) {
	details := remote.Details()
	if details.MPN == "" {
		details.MPN = i.MPN
	}
	if details.Description == "" {
		details.Description = i.Description
	}
	i.apply(details)
	i.RemoteCreatedAt = remote.RemoteCreatedAt
	i.RemoteUpdatedAt = remote.RemoteUpdatedAt
	i.Source = SourceSAP
	i.SyncStatus = SyncStatusSynced
	i.Touch(actor, at)
}

func (i *Item) apply(d ItemDetails) {
	i.Name = d.Name
	i.GroupCode = d.GroupCode
	i.GroupName = d.GroupName
	i.ManufacturerCode = d.ManufacturerCode
	i.ManufacturerName = d.ManufacturerName
	i.MPN = d.MPN
	i.Description = d.Description
	i.UoM = d.UoM
}

func changedSince(created, updated *time.Time, t time.Time) bool {
	if created != nil && created.After(t) {
		return true
	}
	return updated != nil && updated.After(t)
}
