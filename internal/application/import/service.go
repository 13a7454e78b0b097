// Package importapp imports spreadsheet rows into the master-data and sales
// tables in sequential chunks.
package importapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/portal/internal/domain/bulk"
	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/domain/sales"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/infrastructure/cache"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Metrics records imported rows
type Metrics interface {
	RecordImportRows(ctx context.Context, entity string, written, failed int)
}

// Service processes one chunk per call. Chunks of one import must be sent
// strictly in sequence, each with the stats returned by the previous call.
type Service struct {
	items        masterdata.ItemRepository
	partners     masterdata.BusinessPartnerRepository
	requisitions sales.RequisitionRepository
	quotes       sales.SupplierQuoteRepository
	invalidator  cache.Invalidator
	metrics      Metrics
	validate     *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithMetrics records every chunk
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the fallback logger used when the context carries none
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates a new import Service
func NewService(
	items masterdata.ItemRepository,
	partners masterdata.BusinessPartnerRepository,
	requisitions sales.RequisitionRepository,
	quotes sales.SupplierQuoteRepository,
	invalidator cache.Invalidator,
	opts ...Option,
) *Service {
	s := &Service{
		items:        items,
		partners:     partners,
		requisitions: requisitions,
		quotes:       quotes,
		invalidator:  invalidator,
		validate:     newRowValidator(),
		logger:       zap.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ImportItems writes one chunk of item rows as portal items
func (s *Service) ImportItems(ctx context.Context, req ChunkRequest[ItemRow]) ChunkResponse {
	return runChunk(ctx, s, chunkWriter[ItemRow, *masterdata.Item]{
		entity:   bulk.ImportEntityItems,
		keyLabel: "Item code",
		key:      func(r ItemRow) string { return shared.NormalizeKey(r.Code) },
		validate: func(r ItemRow) []string { return rowEntries(s.validate, r) },
		existing: s.items.ExistingCodes,
		transform: func(r ItemRow, lookups ReferenceLookup, actor string, at time.Time) (*masterdata.Item, []string) {
			details := masterdata.ItemDetails{
				Name:             strings.TrimSpace(r.Name),
				ManufacturerCode: masterdata.NoManufacturer,
				MPN:              strings.TrimSpace(r.MPN),
				Description:      strings.TrimSpace(r.Description),
				UoM:              strings.TrimSpace(r.UoM),
			}
			group, ok := lookups.ItemGroup(r.Group)
			if !ok {
				return nil, []string{fmt.Sprintf("Item group %q not found", r.Group)}
			}
			details.GroupCode, details.GroupName = group.Code, group.Name
			if m, ok := lookups.Manufacturer(r.Manufacturer); ok {
				details.ManufacturerCode, details.ManufacturerName = m.Code, m.Name
			}
			item, err := masterdata.NewPortalItem(r.Code, details, actor, at)
			if err != nil {
				return nil, []string{domainMessage(err)}
			}
			return item, nil
		},
		insert: s.items.CreateBatch,
		tags:   func([]*masterdata.Item) []string { return []string{cache.TagItems} },
	}, req)
}

// ImportBusinessPartners writes one chunk of business partners with their addresses
func (s *Service) ImportBusinessPartners(ctx context.Context, req ChunkRequest[BusinessPartnerRow]) ChunkResponse {
	return runChunk(ctx, s, chunkWriter[BusinessPartnerRow, *masterdata.BusinessPartner]{
		entity:   bulk.ImportEntityBusinessPartners,
		keyLabel: "Card code",
		key:      func(r BusinessPartnerRow) string { return shared.NormalizeKey(r.CardCode) },
		validate: func(r BusinessPartnerRow) []string {
			entries := rowEntries(s.validate, r)
			for _, a := range r.Addresses {
				entries = append(entries, childEntries(a.RowNumber, rowEntries(s.validate, a))...)
			}
			return entries
		},
		existing:  s.partners.ExistingCodes,
		transform: transformPartner,
		insert:    s.partners.CreateBatch,
		tags: func(partners []*masterdata.BusinessPartner) []string {
			seen := map[string]bool{}
			var tags []string
			for _, p := range partners {
				tag := cache.PartnerTag(string(p.CardType))
				if !seen[tag] {
					seen[tag] = true
					tags = append(tags, tag)
				}
			}
			return tags
		},
	}, req)
}

// ImportRequisitions writes one chunk of requisitions with their requested items
func (s *Service) ImportRequisitions(ctx context.Context, req ChunkRequest[RequisitionRow]) ChunkResponse {
	return runChunk(ctx, s, chunkWriter[RequisitionRow, *sales.Requisition]{
		entity:   bulk.ImportEntityRequisitions,
		keyLabel: "Requisition",
		key:      func(r RequisitionRow) string { return shared.NormalizeKey(r.Code) },
		validate: func(r RequisitionRow) []string {
			entries := rowEntries(s.validate, r)
			for _, item := range r.Items {
				entries = append(entries, childEntries(item.RowNumber, rowEntries(s.validate, item))...)
			}
			return entries
		},
		existing:  s.requisitions.ExistingCodes,
		transform: transformRequisition,
		insert:    s.requisitions.CreateBatch,
		tags:      func([]*sales.Requisition) []string { return []string{cache.TagRequisitions} },
	}, req)
}

// ImportSupplierQuotes writes one chunk of supplier quotes with their lines
func (s *Service) ImportSupplierQuotes(ctx context.Context, req ChunkRequest[SupplierQuoteRow]) ChunkResponse {
	return runChunk(ctx, s, chunkWriter[SupplierQuoteRow, *sales.SupplierQuote]{
		entity:   bulk.ImportEntitySupplierQuotes,
		keyLabel: "Quote",
		key:      func(r SupplierQuoteRow) string { return shared.NormalizeKey(r.Code) },
		validate: func(r SupplierQuoteRow) []string {
			entries := rowEntries(s.validate, r)
			for _, line := range r.Lines {
				entries = append(entries, childEntries(line.RowNumber, rowEntries(s.validate, line))...)
			}
			return entries
		},
		existing:  s.quotes.ExistingCodes,
		transform: transformSupplierQuote,
		insert:    s.quotes.CreateBatch,
		tags:      func([]*sales.SupplierQuote) []string { return []string{cache.TagSupplierQuotes} },
	}, req)
}

func transformPartner(r BusinessPartnerRow, _ ReferenceLookup, actor string, at time.Time) (*masterdata.BusinessPartner, []string) {
	var entries []string
	cardType, err := masterdata.ParsePartnerType(r.CardType)
	if err != nil {
		entries = append(entries, domainMessage(err))
	}
	groupCode, err := parseInt(r.GroupCode, 0)
	if err != nil {
		entries = append(entries, fmt.Sprintf("Group Code %q is not a number", r.GroupCode))
	}
	addresses := make([]masterdata.Address, 0, len(r.Addresses))
	for _, a := range r.Addresses {
		addrType, err := masterdata.ParseAddressType(a.Type)
		if err != nil {
			entries = append(entries, fmt.Sprintf("row %d: %s", a.RowNumber, domainMessage(err)))
			continue
		}
		addresses = append(addresses, masterdata.Address{
			Name:    a.Name,
			Type:    addrType,
			Street:  a.Street,
			City:    a.City,
			ZipCode: a.ZipCode,
			State:   a.State,
			Country: a.Country,
		})
	}
	if len(entries) > 0 {
		return nil, entries
	}

	bp, err := masterdata.NewPortalBusinessPartner(r.CardCode, cardType, masterdata.PartnerDetails{
		CardName:  strings.TrimSpace(r.CardName),
		GroupCode: groupCode,
		Phone:     strings.TrimSpace(r.Phone),
		Email:     strings.TrimSpace(r.Email),
		Currency:  r.Currency,
		Addresses: addresses,
	}, actor, at)
	if err != nil {
		return nil, []string{domainMessage(err)}
	}
	return bp, nil
}

func transformRequisition(r RequisitionRow, _ ReferenceLookup, actor string, at time.Time) (*sales.Requisition, []string) {
	var entries []string
	requestedAt, err := parseDate(r.RequestedAt, at)
	if err != nil {
		entries = append(entries, "Requested At: "+err.Error())
	}
	status, err := sales.ParseRequisitionStatus(r.Status)
	if err != nil {
		entries = append(entries, domainMessage(err))
	}
	items := make([]sales.RequestedItem, 0, len(r.Items))
	for _, row := range r.Items {
		qty, qErr := parseDecimal(row.Quantity)
		price, pErr := parseDecimal(row.CustomerStandardPrice)
		if qErr != nil || pErr != nil {
			entries = append(entries, fmt.Sprintf("row %d: invalid number", row.RowNumber))
			continue
		}
		items = append(items, sales.RequestedItem{
			ItemCode:              strings.TrimSpace(row.ItemCode),
			SupplierSuggested:     strings.TrimSpace(row.SupplierSuggested),
			MPN:                   strings.TrimSpace(row.MPN),
			Quantity:              qty,
			CustomerStandardPrice: price,
			Notes:                 row.Notes,
		})
	}
	if len(entries) > 0 {
		return nil, entries
	}

	req, err := sales.NewRequisition(r.Code, r.Customer, requestedAt, status, items, actor, at)
	if err != nil {
		return nil, []string{domainMessage(err)}
	}
	req.SalesRep = strings.TrimSpace(r.SalesRep)
	req.Notes = r.Notes
	return req, nil
}

func transformSupplierQuote(r SupplierQuoteRow, _ ReferenceLookup, actor string, at time.Time) (*sales.SupplierQuote, []string) {
	var entries []string
	quotedAt, err := parseDate(r.QuotedAt, at)
	if err != nil {
		entries = append(entries, "Quoted At: "+err.Error())
	}
	status, err := sales.ParseQuoteStatus(r.Status)
	if err != nil {
		entries = append(entries, domainMessage(err))
	}
	lines := make([]sales.QuoteLine, 0, len(r.Lines))
	for _, row := range r.Lines {
		qty, qErr := parseDecimal(row.Quantity)
		price, pErr := parseDecimal(row.UnitPrice)
		lead, lErr := parseInt(row.LeadTimeDays, 0)
		if qErr != nil || pErr != nil || lErr != nil {
			entries = append(entries, fmt.Sprintf("row %d: invalid number", row.RowNumber))
			continue
		}
		lines = append(lines, sales.QuoteLine{
			ItemCode:     strings.TrimSpace(row.ItemCode),
			MPN:          strings.TrimSpace(row.MPN),
			Quantity:     qty,
			UnitPrice:    price,
			LeadTimeDays: lead,
			Notes:        row.Notes,
		})
	}
	if len(entries) > 0 {
		return nil, entries
	}

	q, err := sales.NewSupplierQuote(r.Code, r.Supplier, r.Requisition, quotedAt, status, r.Currency, lines, actor, at)
	if err != nil {
		return nil, []string{domainMessage(err)}
	}
	q.Notes = r.Notes
	return q, nil
}

// domainMessage returns the user-facing message of a domain error
func domainMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
