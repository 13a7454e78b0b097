package models

import (
	"time"

	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/google/uuid"
)

// ItemModel is the persistence model for masterdata.Item
type ItemModel struct {
	RecordModel
	Code             string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_items_code_live,where:lifecycle <> 'deleted'"`
	Name             string     `gorm:"type:varchar(200);not null"`
	GroupCode        int        `gorm:"not null"`
	GroupName        string     `gorm:"type:varchar(100)"`
	ManufacturerCode int        `gorm:"not null"`
	ManufacturerName string     `gorm:"type:varchar(100)"`
	MPN              string     `gorm:"column:mpn;type:varchar(100);index"`
	Description      string     `gorm:"type:text"`
	UoM              string     `gorm:"column:uom;type:varchar(20)"`
	RemoteCreatedAt  *time.Time
	RemoteUpdatedAt  *time.Time
	Source           string     `gorm:"type:varchar(10);not null"`
	SyncStatus       string     `gorm:"type:varchar(10);not null"`
}

// TableName returns the table name for GORM
func (ItemModel) TableName() string {
	return "items"
}

// ItemModelFromDomain creates a persistence model from an item
func ItemModelFromDomain(i *masterdata.Item) *ItemModel {
	return &ItemModel{
		RecordModel:      fillRecord(i.ID, i.SoftDeletable, i.Audit),
		Code:             i.Code,
		Name:             i.Name,
		GroupCode:        i.GroupCode,
		GroupName:        i.GroupName,
		ManufacturerCode: i.ManufacturerCode,
		ManufacturerName: i.ManufacturerName,
		MPN:              i.MPN,
		Description:      i.Description,
		UoM:              i.UoM,
		RemoteCreatedAt:  i.RemoteCreatedAt,
		RemoteUpdatedAt:  i.RemoteUpdatedAt,
		Source:           string(i.Source),
		SyncStatus:       string(i.SyncStatus),
	}
}

// ToDomain converts the model to a domain item
func (m *ItemModel) ToDomain() *masterdata.Item {
	return &masterdata.Item{
		ID:               m.ID,
		Code:             m.Code,
		Name:             m.Name,
		GroupCode:        m.GroupCode,
		GroupName:        m.GroupName,
		ManufacturerCode: m.ManufacturerCode,
		ManufacturerName: m.ManufacturerName,
		MPN:              m.MPN,
		Description:      m.Description,
		UoM:              m.UoM,
		RemoteCreatedAt:  m.RemoteCreatedAt,
		RemoteUpdatedAt:  m.RemoteUpdatedAt,
		Source:           masterdata.Source(m.Source),
		SyncStatus:       masterdata.SyncStatus(m.SyncStatus),
		SoftDeletable:    m.RecordModel.SoftDeletable(),
		Audit:            m.RecordModel.Audit(),
	}
}

// BusinessPartnerModel is the persistence model for masterdata.BusinessPartner
type BusinessPartnerModel struct {
	RecordModel
	CardCode        string                        `gorm:"type:varchar(50);not null;uniqueIndex:idx_business_partners_code_live,where:lifecycle <> 'deleted'"`
	CardName        string                        `gorm:"type:varchar(200);not null"`
	CardType        string                        `gorm:"type:varchar(1);not null;index"`
	GroupCode       int                           `gorm:"not null"`
	Phone           string                        `gorm:"type:varchar(50)"`
	Email           string                        `gorm:"type:varchar(200)"`
	Currency        string                        `gorm:"type:varchar(3)"`
	RemoteCreatedAt *time.Time
	RemoteUpdatedAt *time.Time
	Source          string                        `gorm:"type:varchar(10);not null"`
	SyncStatus      string                        `gorm:"type:varchar(10);not null"`
	Addresses       []BusinessPartnerAddressModel `gorm:"foreignKey:PartnerID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (BusinessPartnerModel) TableName() string {
	return "business_partners"
}

// BusinessPartnerAddressModel stores one address of a business partner
type BusinessPartnerAddressModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	PartnerID uuid.UUID `gorm:"type:uuid;not null;index"`
	Position  int       `gorm:"not null"`
	Name      string    `gorm:"type:varchar(100)"`
	Type      string    `gorm:"type:varchar(10);not null"`
	Street    string    `gorm:"type:varchar(200)"`
	City      string    `gorm:"type:varchar(100)"`
	ZipCode   string    `gorm:"type:varchar(20)"`
	State     string    `gorm:"type:varchar(50)"`
	Country   string    `gorm:"type:varchar(3)"`
}

// TableName returns the table name for GORM
func (BusinessPartnerAddressModel) TableName() string {
	return "business_partner_addresses"
}

// BusinessPartnerModelFromDomain creates a persistence model, addresses included
func BusinessPartnerModelFromDomain(b *masterdata.BusinessPartner) *BusinessPartnerModel {
	m := &BusinessPartnerModel{
		RecordModel:     fillRecord(b.ID, b.SoftDeletable, b.Audit),
		CardCode:        b.CardCode,
		CardName:        b.CardName,
		CardType:        string(b.CardType),
		GroupCode:       b.GroupCode,
		Phone:           b.Phone,
		Email:           b.Email,
		Currency:        b.Currency,
		RemoteCreatedAt: b.RemoteCreatedAt,
		RemoteUpdatedAt: b.RemoteUpdatedAt,
		Source:          string(b.Source),
		SyncStatus:      string(b.SyncStatus),
	}
	m.Addresses = AddressModelsFromDomain(b.ID, b.Addresses)
	return m
}

// AddressModelsFromDomain maps addresses to rows owned by partnerID, keeping their order
func AddressModelsFromDomain(partnerID uuid.UUID, addresses []masterdata.Address) []BusinessPartnerAddressModel {
	rows := make([]BusinessPartnerAddressModel, 0, len(addresses))
	for i, a := range addresses {
		rows = append(rows, BusinessPartnerAddressModel{
			ID:        uuid.New(),
			PartnerID: partnerID,
			Position:  i,
			Name:      a.Name,
			Type:      string(a.Type),
			Street:    a.Street,
			City:      a.City,
			ZipCode:   a.ZipCode,
			State:     a.State,
			Country:   a.Country,
		})
	}
	return rows
}

// ToDomain converts the model to a domain business partner
func (m *BusinessPartnerModel) ToDomain() *masterdata.BusinessPartner {
	bp := &masterdata.BusinessPartner{
		ID:              m.ID,
		CardCode:        m.CardCode,
		CardName:        m.CardName,
		CardType:        masterdata.PartnerType(m.CardType),
		GroupCode:       m.GroupCode,
		Phone:           m.Phone,
		Email:           m.Email,
		Currency:        m.Currency,
		RemoteCreatedAt: m.RemoteCreatedAt,
		RemoteUpdatedAt: m.RemoteUpdatedAt,
		Source:          masterdata.Source(m.Source),
		SyncStatus:      masterdata.SyncStatus(m.SyncStatus),
		SoftDeletable:   m.RecordModel.SoftDeletable(),
		Audit:           m.RecordModel.Audit(),
	}
	for _, a := range m.Addresses {
		bp.Addresses = append(bp.Addresses, masterdata.Address{
			Name:    a.Name,
			Type:    masterdata.AddressType(a.Type),
			Street:  a.Street,
			City:    a.City,
			ZipCode: a.ZipCode,
			State:   a.State,
			Country: a.Country,
		})
	}
	return bp
}

// SyncMetaModel is the persistence model for masterdata.SyncMeta
type SyncMetaModel struct {
	Code       string    `gorm:"type:varchar(20);primaryKey"`
	LastSyncAt time.Time `gorm:"not null"`
	UpdatedBy  string    `gorm:"type:varchar(100)"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncMetaModel) TableName() string {
	return "sync_meta"
}

// SyncMetaModelFromDomain creates a persistence model from a watermark
func SyncMetaModelFromDomain(s *masterdata.SyncMeta) *SyncMetaModel {
	return &SyncMetaModel{
		Code:       string(s.Code),
		LastSyncAt: s.LastSyncAt,
		UpdatedBy:  s.UpdatedBy,
		UpdatedAt:  s.UpdatedAt,
	}
}

// ToDomain converts the model to a domain watermark
func (m *SyncMetaModel) ToDomain() *masterdata.SyncMeta {
	return &masterdata.SyncMeta{
		Code:       masterdata.SyncEntity(m.Code),
		LastSyncAt: m.LastSyncAt,
		UpdatedBy:  m.UpdatedBy,
		UpdatedAt:  m.UpdatedAt,
	}
}
