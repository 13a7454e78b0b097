package masterdata

import (
	"context"

	"github.com/erp/portal/internal/domain/shared"
)

// ItemRepository persists items. Finders only return live records unless noted.
type ItemRepository interface {
	// FindByCode returns the live item with the given code or shared.ErrNotFound
	FindByCode(ctx context.Context, code string) (*Item, error)

	// FindAll returns every live item
	FindAll(ctx context.Context) ([]*Item, error)

	// List returns a page of live items matching filter.Search on code, name or MPN
	List(ctx context.Context, filter shared.Filter) (shared.Paginated[*Item], error)

	// ExistingCodes returns which of codes already belong to a live item
	ExistingCodes(ctx context.Context, codes []string) (map[string]struct{}, error)

	// CreateBatch inserts items in one statement, skipping natural key conflicts.
	// It returns how many rows were written.
	CreateBatch(ctx context.Context, items []*Item) (int64, error)

	// Upsert updates the live item with the same code or inserts it. Reports whether it was created.
	Upsert(ctx context.Context, item *Item) (bool, error)

	// Save persists changes to an existing item
	Save(ctx context.Context, item *Item) error
}

// BusinessPartnerRepository persists business partners
type BusinessPartnerRepository interface {
	FindByCode(ctx context.Context, code string) (*BusinessPartner, error)
	FindAll(ctx context.Context, cardType PartnerType) ([]*BusinessPartner, error)
	List(ctx context.Context, cardType PartnerType, filter shared.Filter) (shared.Paginated[*BusinessPartner], error)
	// ExistingCodes checks card codes across both partner types
	ExistingCodes(ctx context.Context, codes []string) (map[string]struct{}, error)
	CreateBatch(ctx context.Context, partners []*BusinessPartner) (int64, error)
	Upsert(ctx context.Context, partner *BusinessPartner) (bool, error)
	Save(ctx context.Context, partner *BusinessPartner) error
}

// SyncMetaRepository persists sync watermarks
type SyncMetaRepository interface {
	// FindByCode returns the watermark row or shared.ErrNotFound
	FindByCode(ctx context.Context, code SyncEntity) (*SyncMeta, error)
	ListAll(ctx context.Context) ([]*SyncMeta, error)
	// Save inserts or replaces the row for meta.Code
	Save(ctx context.Context, meta *SyncMeta) error
}
