// Package export renders master data and sales records as xlsx workbooks in
// the same layout the importer reads.
package export

import (
	"context"
	"fmt"
	"time"

	importapp "github.com/erp/portal/internal/application/import"
	"github.com/erp/portal/internal/domain/bulk"
	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/domain/sales"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/infrastructure/logger"
	"github.com/erp/portal/internal/infrastructure/storage"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// Archive stores rendered workbooks
type Archive interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// File is a rendered workbook
type File struct {
	Name      string
	Data      []byte
	Rows      int
	ObjectKey string
}

// Service renders exports
type Service struct {
	items        masterdata.ItemRepository
	partners     masterdata.BusinessPartnerRepository
	requisitions sales.RequisitionRepository
	quotes       sales.SupplierQuoteRepository
	archive      Archive
	logger       *zap.Logger
	now          func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithArchive keeps a copy of every export
func WithArchive(a Archive) Option {
	return func(s *Service) {
		s.archive = a
	}
}

// WithLogger sets the fallback logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates an export Service
func NewService(
	items masterdata.ItemRepository,
	partners masterdata.BusinessPartnerRepository,
	requisitions sales.RequisitionRepository,
	quotes sales.SupplierQuoteRepository,
	opts ...Option,
) *Service {
	s := &Service{
		items:        items,
		partners:     partners,
		requisitions: requisitions,
		quotes:       quotes,
		logger:       zap.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Export renders entity. cardType narrows business partners and is ignored
// otherwise; empty exports both types.
func (s *Service) Export(ctx context.Context, entity bulk.ImportEntity, cardType string) (*File, error) {
	switch entity {
	case bulk.ImportEntityItems:
		return s.Items(ctx)
	case bulk.ImportEntityBusinessPartners:
		if cardType == "" {
			return s.BusinessPartners(ctx)
		}
		t, err := masterdata.ParsePartnerType(cardType)
		if err != nil {
			return nil, err
		}
		return s.BusinessPartners(ctx, t)
	case bulk.ImportEntityRequisitions:
		return s.Requisitions(ctx)
	case bulk.ImportEntitySupplierQuotes:
		return s.SupplierQuotes(ctx)
	}
	return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown export entity: %q", entity))
}

// Items renders every live item
func (s *Service) Items(ctx context.Context) (*File, error) {
	items, err := s.items.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}
	layout := importapp.ItemLayout
	rows := make([][]any, 0, len(items))
	for _, i := range items {
		group := i.GroupName
		if group == "" {
			group = fmt.Sprint(i.GroupCode)
		}
		manufacturer := i.ManufacturerName
		if i.ManufacturerCode == masterdata.NoManufacturer {
			manufacturer = ""
		}
		rows = append(rows, layout.Row(map[string]any{
			"Item Code":    i.Code,
			"Item Name":    i.Name,
			"Item Group":   group,
			"Manufacturer": manufacturer,
			"MPN":          i.MPN,
			"Description":  i.Description,
			"UoM":          i.UoM,
			"Source":       i.Source.Label(),
			"Sync Status":  i.SyncStatus.Label(),
		}))
	}
	return s.render(ctx, layout, string(layout.Entity), rows, len(items))
}

// BusinessPartners renders the live partners of the given types, customers
// and suppliers when none is given
func (s *Service) BusinessPartners(ctx context.Context, types ...masterdata.PartnerType) (*File, error) {
	if len(types) == 0 {
		types = []masterdata.PartnerType{masterdata.PartnerTypeCustomer, masterdata.PartnerTypeSupplier}
	}
	layout := importapp.BusinessPartnerLayout
	var (
		rows  [][]any
		count int
	)
	for _, t := range types {
		partners, err := s.partners.FindAll(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("failed to load business partners %s: %w", t, err)
		}
		count += len(partners)
		for _, p := range partners {
			head := map[string]any{
				importapp.ColumnID:      p.CardCode,
				importapp.ColumnRowType: importapp.RowTypeMain,
				"Card Name":             p.CardName,
				"Card Type":             p.CardType.Label(),
				"Phone":                 p.Phone,
				"Email":                 p.Email,
				"Currency":              p.Currency,
			}
			if p.GroupCode != 0 {
				head["Group Code"] = p.GroupCode
			}
			rows = append(rows, layout.Row(head))
			for _, a := range p.Addresses {
				rows = append(rows, layout.Row(map[string]any{
					importapp.ColumnID:      p.CardCode,
					importapp.ColumnRowType: importapp.RowTypeAddress,
					"Address Name":          a.Name,
					"Address Type":          a.Type.Label(),
					"Street":                a.Street,
					"City":                  a.City,
					"Zip Code":              a.ZipCode,
					"State":                 a.State,
					"Country":               a.Country,
				}))
			}
		}
	}
	name := string(layout.Entity)
	if len(types) == 1 {
		name = fmt.Sprintf("%s-%s", layout.Entity, types[0].Label())
	}
	return s.render(ctx, layout, name, rows, count)
}

// Requisitions renders every live requisition with its requested items
func (s *Service) Requisitions(ctx context.Context) (*File, error) {
	reqs, err := s.requisitions.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load requisitions: %w", err)
	}
	layout := importapp.RequisitionLayout
	var rows [][]any
	for _, r := range reqs {
		rows = append(rows, layout.Row(map[string]any{
			importapp.ColumnID:      r.Code,
			importapp.ColumnRowType: importapp.RowTypeMain,
			"Customer":              r.CustomerCode,
			"Requested At":          r.RequestedAt.UTC().Format(dateLayout),
			"Status":                r.Status.Label(),
			"Sales Rep":             r.SalesRep,
			"Notes":                 r.Notes,
		}))
		for _, item := range r.Items {
			rows = append(rows, layout.Row(map[string]any{
				importapp.ColumnID:        r.Code,
				importapp.ColumnRowType:   importapp.RowTypeRequestedItem,
				"Item":                    item.ItemCode,
				"Supplier Suggested":      item.SupplierSuggested,
				"MPN":                     item.MPN,
				"Quantity":                item.Quantity.InexactFloat64(),
				"Customer Standard Price": item.CustomerStandardPrice.InexactFloat64(),
				"Item Notes":              item.Notes,
			}))
		}
	}
	return s.render(ctx, layout, string(layout.Entity), rows, len(reqs))
}

// SupplierQuotes renders every live supplier quote with its lines
func (s *Service) SupplierQuotes(ctx context.Context) (*File, error) {
	quotes, err := s.quotes.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load supplier quotes: %w", err)
	}
	layout := importapp.SupplierQuoteLayout
	var rows [][]any
	for _, q := range quotes {
		rows = append(rows, layout.Row(map[string]any{
			importapp.ColumnID:      q.Code,
			importapp.ColumnRowType: importapp.RowTypeMain,
			"Supplier":              q.SupplierCode,
			"Requisition":           q.RequisitionCode,
			"Quoted At":             q.QuotedAt.UTC().Format(dateLayout),
			"Status":                q.Status.Label(),
			"Currency":              q.Currency,
			"Notes":                 q.Notes,
		}))
		for _, l := range q.Lines {
			rows = append(rows, layout.Row(map[string]any{
				importapp.ColumnID:      q.Code,
				importapp.ColumnRowType: importapp.RowTypeLineItem,
				"Item":                  l.ItemCode,
				"MPN":                   l.MPN,
				"Quantity":              l.Quantity.InexactFloat64(),
				"Unit Price":            l.UnitPrice.InexactFloat64(),
				"Lead Time Days":        l.LeadTimeDays,
				"Line Notes":            l.Notes,
			}))
		}
	}
	return s.render(ctx, layout, string(layout.Entity), rows, len(quotes))
}

func (s *Service) render(ctx context.Context, layout importapp.Layout, name string, rows [][]any, records int) (*File, error) {
	data, err := layout.Writer().Write(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s export: %w", layout.Entity, err)
	}
	at := s.now()
	file := &File{
		Name: fmt.Sprintf("%s_%s.xlsx", name, at.UTC().Format("20060102_150405")),
		Data: data,
		Rows: records,
	}

	log := logger.Or(ctx, s.logger)
	if s.archive != nil {
		key := storage.ArchiveKey("exports", string(layout.Entity), file.Name, at)
		if err := s.archive.Put(ctx, key, data, storage.XLSXContentType); err != nil {
			log.Warn("Failed to archive export", zap.String("entity", string(layout.Entity)), zap.Error(err))
		} else {
			file.ObjectKey = key
		}
	}
	log.Info("Export rendered",
		zap.String("entity", string(layout.Entity)),
		zap.Int("records", records),
		zap.Int("bytes", len(data)),
	)
	return file, nil
}
