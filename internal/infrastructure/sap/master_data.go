package sap

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/domain/shared"
)

// ItemSnapshotQuery is the saved SQL query that lists the item master with
// group and manufacturer names joined in
const ItemSnapshotQuery = "query2"

// Manufacturers lists every manufacturer
func (c *Client) Manufacturers(ctx context.Context) ([]masterdata.Manufacturer, error) {
	var rows []ManufacturerDTO
	if err := c.Get(ctx, query("Manufacturers", url.Values{"$select": {"Code,ManufacturerName"}}), &rows); err != nil {
		return nil, fmt.Errorf("list manufacturers: %w", err)
	}
	out := make([]masterdata.Manufacturer, len(rows))
	for i, r := range rows {
		out[i] = masterdata.Manufacturer{Code: r.Code, Name: strings.TrimSpace(r.ManufacturerName)}
	}
	return out, nil
}

// ItemGroups lists every item group
func (c *Client) ItemGroups(ctx context.Context) ([]masterdata.ItemGroup, error) {
	var rows []ItemGroupDTO
	if err := c.Get(ctx, query("ItemGroups", url.Values{"$select": {"Number,GroupName"}}), &rows); err != nil {
		return nil, fmt.Errorf("list item groups: %w", err)
	}
	out := make([]masterdata.ItemGroup, len(rows))
	for i, r := range rows {
		out[i] = masterdata.ItemGroup{Code: r.Number, Name: strings.TrimSpace(r.GroupName)}
	}
	return out, nil
}

// ItemGroup returns a single item group
func (c *Client) ItemGroup(ctx context.Context, code int) (*masterdata.ItemGroup, error) {
	var row ItemGroupDTO
	if err := c.Get(ctx, fmt.Sprintf("ItemGroups(%d)", code), &row); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("get item group %d: %w", code, err)
	}
	return &masterdata.ItemGroup{Code: row.Number, Name: strings.TrimSpace(row.GroupName)}, nil
}

// ItemSnapshot lists the whole item master through the saved snapshot query
func (c *Client) ItemSnapshot(ctx context.Context) ([]masterdata.ItemSnapshot, error) {
	var rows []ItemRowDTO
	if err := c.Get(ctx, fmt.Sprintf("SQLQueries('%s')/List", ItemSnapshotQuery), &rows); err != nil {
		return nil, fmt.Errorf("run item snapshot query: %w", err)
	}
	out := make([]masterdata.ItemSnapshot, 0, len(rows))
	for _, r := range rows {
		if strings.TrimSpace(r.ItemCode) == "" {
			continue
		}
		out = append(out, r.toSnapshot(c.config.Location()))
	}
	return out, nil
}

// BusinessPartners lists every business partner of cardType with its addresses
func (c *Client) BusinessPartners(ctx context.Context, cardType masterdata.PartnerType) ([]masterdata.PartnerSnapshot, error) {
	if !cardType.IsValid() {
		return nil, fmt.Errorf("%w: unknown card type %q", ErrRequestFailed, cardType)
	}
	params := url.Values{
		"$filter": {fmt.Sprintf("CardType eq '%s'", cardType.RemoteName())},
		"$select": {"CardCode,CardName,CardType,GroupCode,Phone1,EmailAddress,Currency,CreateDate,CreateTime,UpdateDate,UpdateTime,BPAddresses"},
	}
	var rows []BusinessPartnerDTO
	if err := c.Get(ctx, query("BusinessPartners", params), &rows); err != nil {
		return nil, fmt.Errorf("list business partners %s: %w", cardType, err)
	}
	out := make([]masterdata.PartnerSnapshot, 0, len(rows))
	for _, r := range rows {
		if strings.TrimSpace(r.CardCode) == "" {
			continue
		}
		out = append(out, r.toSnapshot(cardType, c.config.Location()))
	}
	return out, nil
}

func (r ItemRowDTO) toSnapshot(loc *time.Location) masterdata.ItemSnapshot {
	manufacturer := masterdata.NoManufacturer
	if r.ManufacturerCode != nil {
		manufacturer = *r.ManufacturerCode
	}
	return masterdata.ItemSnapshot{
		Code: r.ItemCode,
		Details: masterdata.ItemDetails{
			Name:             strings.TrimSpace(r.ItemName),
			GroupCode:        r.GroupCode,
			GroupName:        strings.TrimSpace(r.GroupName),
			ManufacturerCode: manufacturer,
			ManufacturerName: strings.TrimSpace(r.ManufacturerName),
			MPN:              strings.TrimSpace(r.MPN),
			Description:      r.Description,
			UoM:              strings.TrimSpace(r.UoM),
		},
		CreatedAt: r.CreateDate.In(loc),
		UpdatedAt: withClock(r.UpdateDate, string(r.UpdateTS), loc),
	}
}

func (r BusinessPartnerDTO) toSnapshot(cardType masterdata.PartnerType, loc *time.Location) masterdata.PartnerSnapshot {
	addresses := make([]masterdata.Address, 0, len(r.BPAddresses))
	for _, a := range r.BPAddresses {
		addrType := masterdata.AddressTypeShipping
		if a.AddressType == AddressTypeBillTo {
			addrType = masterdata.AddressTypeBilling
		}
		addresses = append(addresses, masterdata.Address{
			Name:    a.AddressName,
			Type:    addrType,
			Street:  a.Street,
			City:    a.City,
			ZipCode: a.ZipCode,
			State:   a.State,
			Country: a.Country,
		})
	}
	return masterdata.PartnerSnapshot{
		CardCode: r.CardCode,
		CardType: cardType,
		Details: masterdata.PartnerDetails{
			CardName:  strings.TrimSpace(r.CardName),
			GroupCode: r.GroupCode,
			Phone:     r.Phone1,
			Email:     r.EmailAddress,
			Currency:  r.Currency,
			Addresses: addresses,
		},
		CreatedAt: withClock(r.CreateDate, r.CreateTime, loc),
		UpdatedAt: withClock(r.UpdateDate, r.UpdateTime, loc),
	}
}

// RemoteSource adapts the client to the sync and import ports
type RemoteSource struct {
	client *Client
}

// NewRemoteSource creates a RemoteSource
func NewRemoteSource(client *Client) *RemoteSource {
	return &RemoteSource{client: client}
}

// ItemSnapshots returns the item master
func (s *RemoteSource) ItemSnapshots(ctx context.Context) ([]masterdata.ItemSnapshot, error) {
	return s.client.ItemSnapshot(ctx)
}

// PartnerSnapshots returns the business partners of cardType
func (s *RemoteSource) PartnerSnapshots(ctx context.Context, cardType masterdata.PartnerType) ([]masterdata.PartnerSnapshot, error) {
	return s.client.BusinessPartners(ctx, cardType)
}

// ItemGroups returns the item groups
func (s *RemoteSource) ItemGroups(ctx context.Context) ([]masterdata.ItemGroup, error) {
	return s.client.ItemGroups(ctx)
}

// Manufacturers returns the manufacturers
func (s *RemoteSource) Manufacturers(ctx context.Context) ([]masterdata.Manufacturer, error) {
	return s.client.Manufacturers(ctx)
}
