// Package sales serves the requisition and supplier quote screens.
package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/portal/internal/domain/sales"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/infrastructure/cache"
	"github.com/erp/portal/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// RequisitionService reads and deletes requisitions
type RequisitionService struct {
	repo   sales.RequisitionRepository
	cache  cache.TagCache
	logger *zap.Logger
	now    func() time.Time
}

// NewRequisitionService creates a new RequisitionService
func NewRequisitionService(repo sales.RequisitionRepository, c cache.TagCache, l *zap.Logger) *RequisitionService {
	if l == nil {
		l = zap.NewNop()
	}
	return &RequisitionService{repo: repo, cache: c, logger: l, now: time.Now}
}

// List returns a page of live requisitions
func (s *RequisitionService) List(ctx context.Context, filter shared.Filter) (shared.Paginated[RequisitionResponse], error) {
	filter = filter.Normalize()
	return cache.GetOrLoad(ctx, s.cache, logger.Or(ctx, s.logger), listKey(cache.TagRequisitions, filter), []string{cache.TagRequisitions},
		func(ctx context.Context) (shared.Paginated[RequisitionResponse], error) {
			page, err := s.repo.List(ctx, filter)
			if err != nil {
				return shared.Paginated[RequisitionResponse]{}, err
			}
			out := make([]RequisitionResponse, len(page.Items))
			for i, r := range page.Items {
				out[i] = ToRequisitionResponse(r)
			}
			return shared.NewPaginated(out, page.Total, page.Page, page.PageSize), nil
		})
}

// Get returns the live requisition with code
func (s *RequisitionService) Get(ctx context.Context, code string) (*RequisitionResponse, error) {
	r, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	resp := ToRequisitionResponse(r)
	return &resp, nil
}

// Delete soft-deletes the live requisition with code
func (s *RequisitionService) Delete(ctx context.Context, actor, code string) error {
	r, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return err
	}
	if err := r.SoftDelete(actor, s.now()); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, r); err != nil {
		return err
	}
	cache.InvalidateQuietly(ctx, s.cache, logger.Or(ctx, s.logger), cache.TagRequisitions)
	return nil
}

// SupplierQuoteService reads and deletes supplier quotes
type SupplierQuoteService struct {
	repo   sales.SupplierQuoteRepository
	cache  cache.TagCache
	logger *zap.Logger
	now    func() time.Time
}

// NewSupplierQuoteService creates a new SupplierQuoteService
func NewSupplierQuoteService(repo sales.SupplierQuoteRepository, c cache.TagCache, l *zap.Logger) *SupplierQuoteService {
	if l == nil {
		l = zap.NewNop()
	}
	return &SupplierQuoteService{repo: repo, cache: c, logger: l, now: time.Now}
}

// List returns a page of live supplier quotes
func (s *SupplierQuoteService) List(ctx context.Context, filter shared.Filter) (shared.Paginated[SupplierQuoteResponse], error) {
	filter = filter.Normalize()
	return cache.GetOrLoad(ctx, s.cache, logger.Or(ctx, s.logger), listKey(cache.TagSupplierQuotes, filter), []string{cache.TagSupplierQuotes},
		func(ctx context.Context) (shared.Paginated[SupplierQuoteResponse], error) {
			page, err := s.repo.List(ctx, filter)
			if err != nil {
				return shared.Paginated[SupplierQuoteResponse]{}, err
			}
			out := make([]SupplierQuoteResponse, len(page.Items))
			for i, q := range page.Items {
				out[i] = ToSupplierQuoteResponse(q)
			}
			return shared.NewPaginated(out, page.Total, page.Page, page.PageSize), nil
		})
}

// Get returns the live supplier quote with code
func (s *SupplierQuoteService) Get(ctx context.Context, code string) (*SupplierQuoteResponse, error) {
	q, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	resp := ToSupplierQuoteResponse(q)
	return &resp, nil
}

// Delete soft-deletes the live supplier quote with code
func (s *SupplierQuoteService) Delete(ctx context.Context, actor, code string) error {
	q, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return err
	}
	if err := q.SoftDelete(actor, s.now()); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, q); err != nil {
		return err
	}
	cache.InvalidateQuietly(ctx, s.cache, logger.Or(ctx, s.logger), cache.TagSupplierQuotes)
	return nil
}

func listKey(prefix string, f shared.Filter) string {
	return fmt.Sprintf("%s:list:%d:%d:%s:%s:%s", prefix, f.Page, f.PageSize, f.OrderBy, f.OrderDir, f.Search)
}
