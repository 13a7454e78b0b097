package masterdata

import "time"

// ItemSnapshot is an item as reported by SAP
type ItemSnapshot struct {
	Code      string
	Details   ItemDetails
	CreatedAt *time.Time
	UpdatedAt *time.Time
}

// ToItem builds the local mirror of the snapshot
func (s ItemSnapshot) ToItem(actor string, at time.Time) *Item {
	return NewSyncedItem(s.Code, s.Details, s.CreatedAt, s.UpdatedAt, actor, at)
}

// PartnerSnapshot is a business partner as reported by SAP
type PartnerSnapshot struct {
	CardCode  string
	CardType  PartnerType
	Details   PartnerDetails
	CreatedAt *time.Time
	UpdatedAt *time.Time
}

// ToBusinessPartner builds the local mirror of the snapshot
func (s PartnerSnapshot) ToBusinessPartner(actor string, at time.Time) *BusinessPartner {
	return NewSyncedBusinessPartner(s.CardCode, s.CardType, s.Details, s.CreatedAt, s.UpdatedAt, actor, at)
}

// ItemGroup is an SAP item group, used to resolve group names during import
type ItemGroup struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

// Manufacturer is an SAP manufacturer
type Manufacturer struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}
