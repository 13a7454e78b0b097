package sales

import (
	"context"

	"github.com/erp/portal/internal/domain/shared"
)

// RequisitionRepository persists requisitions together with their requested items
type RequisitionRepository interface {
	FindByCode(ctx context.Context, code string) (*Requisition, error)
	FindAll(ctx context.Context) ([]*Requisition, error)
	List(ctx context.Context, filter shared.Filter) (shared.Paginated[*Requisition], error)
	ExistingCodes(ctx context.Context, codes []string) (map[string]struct{}, error)
	// CreateBatch writes each requisition and its items; a conflicting code skips the whole requisition
	CreateBatch(ctx context.Context, requisitions []*Requisition) (int64, error)
	Save(ctx context.Context, requisition *Requisition) error
}

// SupplierQuoteRepository persists supplier quotes together with their lines
type SupplierQuoteRepository interface {
	FindByCode(ctx context.Context, code string) (*SupplierQuote, error)
	FindAll(ctx context.Context) ([]*SupplierQuote, error)
	List(ctx context.Context, filter shared.Filter) (shared.Paginated[*SupplierQuote], error)
	ExistingCodes(ctx context.Context, codes []string) (map[string]struct{}, error)
	CreateBatch(ctx context.Context, quotes []*SupplierQuote) (int64, error)
	Save(ctx context.Context, quote *SupplierQuote) error
}
