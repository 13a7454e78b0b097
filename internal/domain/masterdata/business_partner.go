package masterdata

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/portal/internal/domain/shared"
	"github.com/google/uuid"
)

// PartnerType is SAP's CardType, reduced to the two kinds the portal mirrors
type PartnerType string

const (
	PartnerTypeCustomer PartnerType = "C"
	PartnerTypeSupplier PartnerType = "S"
)

// ParsePartnerType accepts the code ("C"), the label ("Customer") or SAP's
// enum name ("cCustomer"), case insensitively.
func ParsePartnerType(s string) (PartnerType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c", "customer", "ccustomer":
		return PartnerTypeCustomer, nil
	case "s", "supplier", "csupplier":
		return PartnerTypeSupplier, nil
	}
	return "", shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown business partner type: %q", s))
}

// IsValid checks if the partner type is known
func (t PartnerType) IsValid() bool {
	return t == PartnerTypeCustomer || t == PartnerTypeSupplier
}

// Label returns the human readable form used in exports
func (t PartnerType) Label() string {
	switch t {
	case PartnerTypeCustomer:
		return "Customer"
	case PartnerTypeSupplier:
		return "Supplier"
	}
	return string(t)
}

// RemoteName returns SAP's CardType enum value
func (t PartnerType) RemoteName() string {
	if t == PartnerTypeSupplier {
		return "cSupplier"
	}
	return "cCustomer"
}

// SyncEntity returns the watermark code for partners of this type
func (t PartnerType) SyncEntity() SyncEntity {
	return SyncEntity(t)
}

// AddressType distinguishes billing and shipping addresses
type AddressType string

const (
	AddressTypeBilling  AddressType = "bill"
	AddressTypeShipping AddressType = "ship"
)

// ParseAddressType accepts "bill"/"ship", "billing"/"shipping" or SAP's
// bo_BillTo/bo_ShipTo, case insensitively
func ParseAddressType(s string) (AddressType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bill", "billing", "bill to", "bo_billto":
		return AddressTypeBilling, nil
	case "ship", "shipping", "ship to", "bo_shipto":
		return AddressTypeShipping, nil
	}
	return "", shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown address type: %q", s))
}

// Label returns the human readable form used in exports
func (t AddressType) Label() string {
	switch t {
	case AddressTypeBilling:
		return "Billing"
	case AddressTypeShipping:
		return "Shipping"
	}
	return string(t)
}

// Address is a business partner address
type Address struct {
	Name    string
	Type    AddressType
	Street  string
	City    string
	ZipCode string
	State   string
	Country string
}

// BusinessPartner is the local mirror of an SAP business partner (customer or supplier)
type BusinessPartner struct {
	ID              uuid.UUID
	CardCode        string
	CardName        string
	CardType        PartnerType
	GroupCode       int
	Phone           string
	Email           string
	Currency        string
	Addresses       []Address
	RemoteCreatedAt *time.Time
	RemoteUpdatedAt *time.Time
	Source          Source
	SyncStatus      SyncStatus
	shared.SoftDeletable
	shared.Audit
}

// PartnerDetails are the descriptive fields of a business partner
type PartnerDetails struct {
	CardName  string
	GroupCode int
	Phone     string
	Email     string
	Currency  string
	Addresses []Address
}

// NewPortalBusinessPartner creates a partner originating in the portal
func NewPortalBusinessPartner(code string, cardType PartnerType, details PartnerDetails, actor string, at time.Time) (*BusinessPartner, error) {
	bp := &BusinessPartner{
		ID:            uuid.New(),
		CardCode:      shared.NormalizeKey(code),
		CardType:      cardType,
		Source:        SourcePortal,
		SyncStatus:    SyncStatusPending,
		SoftDeletable: shared.Live(),
		Audit:         shared.NewAudit(actor, at),
	}
	bp.apply(details)
	if err := bp.Validate(); err != nil {
		return nil, err
	}
	return bp, nil
}

// NewSyncedBusinessPartner creates a partner mirrored from SAP
func NewSyncedBusinessPartner(code string, cardType PartnerType, details PartnerDetails, remoteCreated, remoteUpdated *time.Time, actor string, at time.Time) *BusinessPartner {
	bp := &BusinessPartner{
		ID:              uuid.New(),
		CardCode:        shared.NormalizeKey(code),
		CardType:        cardType,
		RemoteCreatedAt: remoteCreated,
		RemoteUpdatedAt: remoteUpdated,
		Source:          SourceSAP,
		SyncStatus:      SyncStatusSynced,
		SoftDeletable:   shared.Live(),
		Audit:           shared.NewAudit(actor, at),
	}
	bp.apply(details)
	return bp
}

// Validate checks the required fields
func (b *BusinessPartner) Validate() error {
	if b.CardCode == "" {
		return shared.NewDomainError("INVALID_INPUT", "Card code is required")
	}
	if len(b.CardCode) > 50 {
		return shared.NewDomainError("INVALID_INPUT", "Card code cannot exceed 50 characters")
	}
	if b.CardName == "" {
		return shared.NewDomainError("INVALID_INPUT", "Card name is required")
	}
	if !b.CardType.IsValid() {
		return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown business partner type: %q", b.CardType))
	}
	if b.Currency != "" && len(b.Currency) != 3 && b.Currency != "##" {
		return shared.NewDomainError("INVALID_INPUT", "Currency must be a 3-letter code")
	}
	return nil
}

// NaturalKey returns the card code
func (b *BusinessPartner) NaturalKey() string {
	return b.CardCode
}

// ChangedSince reports whether the remote record was created or updated strictly after t
func (b *BusinessPartner) ChangedSince(t time.Time) bool {
	return changedSince(b.RemoteCreatedAt, b.RemoteUpdatedAt, t)
}

// Details returns the descriptive fields
func (b *BusinessPartner) Details() PartnerDetails {
	return PartnerDetails{
		CardName:  b.CardName,
		GroupCode: b.GroupCode,
		Phone:     b.Phone,
		Email:     b.Email,
		Currency:  b.Currency,
		Addresses: append([]Address(nil), b.Addresses...),
	}
}

// Update applies a portal edit
func (b *BusinessPartner) Update(details PartnerDetails, actor string, at time.Time) error {
	if b.IsDeleted() {
		return shared.NewDomainError("INVALID_STATE", "Cannot update a deleted business partner")
	}
	prev := b.Details()
	b.apply(details)
	if err := b.Validate(); err != nil {
		b.apply(prev)
		return err
	}
	b.SyncStatus = SyncStatusPending
	b.Touch(actor, at)
	return nil
}

// MergeRemote overwrites the partner with the remote copy
func (b *BusinessPartner) MergeRemote(remote *BusinessPartner, actor string, at time.Time) {
	b.apply(remote.Details())
	b.CardType = remote.CardType
	b.RemoteCreatedAt = remote.RemoteCreatedAt
	b.RemoteUpdatedAt = remote.RemoteUpdatedAt
	b.Source = SourceSAP
	b.SyncStatus = SyncStatusSynced
	b.Touch(actor, at)
}

// BillingAddress returns the first billing address, if any
func (b *BusinessPartner) BillingAddress() (Address, bool) {
	for _, a := range b.Addresses {
		if a.Type == AddressTypeBilling {
			return a, true
		}
	}
	return Address{}, false
}

func (b *BusinessPartner) apply(d PartnerDetails) {
	b.CardName = d.CardName
	b.GroupCode = d.GroupCode
	b.Phone = d.Phone
	b.Email = d.Email
	b.Currency = strings.ToUpper(strings.TrimSpace(d.Currency))
	b.Addresses = d.Addresses
}
