package masterdata

import (
	"time"

	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/google/uuid"
)

// =============================================================================
// Item DTOs
// =============================================================================

// CreateItemRequest represents a request to create a portal item
type CreateItemRequest struct {
	Code             string `json:"code" binding:"required,min=1,max=50"`
	Name             string `json:"name" binding:"required,min=1,max=200"`
	GroupCode        int    `json:"group_code" binding:"required"`
	ManufacturerCode *int   `json:"manufacturer_code"`
	MPN              string `json:"mpn" binding:"max=100"`
	Description      string `json:"description" binding:"max=1000"`
	UoM              string `json:"uom" binding:"max=20"`
}

// UpdateItemRequest represents a request to update an item. Nil fields keep their value.
type UpdateItemRequest struct {
	Name             *string `json:"name" binding:"omitempty,min=1,max=200"`
	GroupCode        *int    `json:"group_code"`
	ManufacturerCode *int    `json:"manufacturer_code"`
	MPN              *string `json:"mpn" binding:"omitempty,max=100"`
	Description      *string `json:"description" binding:"omitempty,max=1000"`
	UoM              *string `json:"uom" binding:"omitempty,max=20"`
}

// ItemResponse represents an item in API responses
type ItemResponse struct {
	ID               uuid.UUID  `json:"id"`
	Code             string     `json:"code"`
	Name             string     `json:"name"`
	GroupCode        int        `json:"group_code"`
	GroupName        string     `json:"group_name"`
	ManufacturerCode int        `json:"manufacturer_code"`
	ManufacturerName string     `json:"manufacturer_name"`
	MPN              string     `json:"mpn"`
	Description      string     `json:"description"`
	UoM              string     `json:"uom"`
	Source           string     `json:"source"`
	SyncStatus       string     `json:"sync_status"`
	RemoteUpdatedAt  *time.Time `json:"remote_updated_at,omitempty"`
	CreatedBy        string     `json:"created_by"`
	UpdatedBy        string     `json:"updated_by"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ToItemResponse converts a domain Item to ItemResponse
func ToItemResponse(i *masterdata.Item) ItemResponse {
	return ItemResponse{
		ID:               i.ID,
		Code:             i.Code,
		Name:             i.Name,
		GroupCode:        i.GroupCode,
		GroupName:        i.GroupName,
		ManufacturerCode: i.ManufacturerCode,
		ManufacturerName: i.ManufacturerName,
		MPN:              i.MPN,
		Description:      i.Description,
		UoM:              i.UoM,
		Source:           string(i.Source),
		SyncStatus:       string(i.SyncStatus),
		RemoteUpdatedAt:  i.RemoteUpdatedAt,
		CreatedBy:        i.CreatedBy,
		UpdatedBy:        i.UpdatedBy,
		CreatedAt:        i.CreatedAt,
		UpdatedAt:        i.UpdatedAt,
	}
}

// =============================================================================
// Business partner DTOs
// =============================================================================

// AddressDTO is a business partner address in requests and responses
type AddressDTO struct {
	Name    string `json:"name" binding:"max=100"`
	Type    string `json:"type" binding:"required"`
	Street  string `json:"street" binding:"max=200"`
	City    string `json:"city" binding:"max=100"`
	ZipCode string `json:"zip_code" binding:"max=20"`
	State   string `json:"state" binding:"max=50"`
	Country string `json:"country" binding:"max=50"`
}

// CreateBusinessPartnerRequest represents a request to create a portal business partner
type CreateBusinessPartnerRequest struct {
	CardCode  string       `json:"card_code" binding:"required,min=1,max=50"`
	CardName  string       `json:"card_name" binding:"required,min=1,max=200"`
	CardType  string       `json:"card_type" binding:"required"`
	GroupCode int          `json:"group_code"`
	Phone     string       `json:"phone" binding:"max=50"`
	Email     string       `json:"email" binding:"omitempty,email,max=100"`
	Currency  string       `json:"currency" binding:"omitempty,len=3"`
	Addresses []AddressDTO `json:"addresses" binding:"dive"`
}

// UpdateBusinessPartnerRequest represents a request to update a business
// partner. Addresses, when present, replace the existing list.
type UpdateBusinessPartnerRequest struct {
	CardName  *string       `json:"card_name" binding:"omitempty,min=1,max=200"`
	GroupCode *int          `json:"group_code"`
	Phone     *string       `json:"phone" binding:"omitempty,max=50"`
	Email     *string       `json:"email" binding:"omitempty,email,max=100"`
	Currency  *string       `json:"currency" binding:"omitempty,len=3"`
	Addresses *[]AddressDTO `json:"addresses"`
}

// BusinessPartnerResponse represents a business partner in API responses
type BusinessPartnerResponse struct {
	ID              uuid.UUID    `json:"id"`
	CardCode        string       `json:"card_code"`
	CardName        string       `json:"card_name"`
	CardType        string       `json:"card_type"`
	GroupCode       int          `json:"group_code"`
	Phone           string       `json:"phone"`
	Email           string       `json:"email"`
	Currency        string       `json:"currency"`
	Addresses       []AddressDTO `json:"addresses"`
	Source          string       `json:"source"`
	SyncStatus      string       `json:"sync_status"`
	RemoteUpdatedAt *time.Time   `json:"remote_updated_at,omitempty"`
	CreatedBy       string       `json:"created_by"`
	UpdatedBy       string       `json:"updated_by"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// ToBusinessPartnerResponse converts a domain BusinessPartner to BusinessPartnerResponse
func ToBusinessPartnerResponse(b *masterdata.BusinessPartner) BusinessPartnerResponse {
	addresses := make([]AddressDTO, len(b.Addresses))
	for i, a := range b.Addresses {
		addresses[i] = AddressDTO{
			Name:    a.Name,
			Type:    string(a.Type),
			Street:  a.Street,
			City:    a.City,
			ZipCode: a.ZipCode,
			State:   a.State,
			Country: a.Country,
		}
	}
	return BusinessPartnerResponse{
		ID:              b.ID,
		CardCode:        b.CardCode,
		CardName:        b.CardName,
		CardType:        string(b.CardType),
		GroupCode:       b.GroupCode,
		Phone:           b.Phone,
		Email:           b.Email,
		Currency:        b.Currency,
		Addresses:       addresses,
		Source:          string(b.Source),
		SyncStatus:      string(b.SyncStatus),
		RemoteUpdatedAt: b.RemoteUpdatedAt,
		CreatedBy:       b.CreatedBy,
		UpdatedBy:       b.UpdatedBy,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func toAddresses(in []AddressDTO) ([]masterdata.Address, error) {
	out := make([]masterdata.Address, 0, len(in))
	for _, a := range in {
		t, err := masterdata.ParseAddressType(a.Type)
		if err != nil {
			return nil, err
		}
		out = append(out, masterdata.Address{
			Name:    a.Name,
			Type:    t,
			Street:  a.Street,
			City:    a.City,
			ZipCode: a.ZipCode,
			State:   a.State,
			Country: a.Country,
		})
	}
	return out, nil
}
