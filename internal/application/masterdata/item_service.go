// Package masterdata serves the portal's item and business partner screens.
package masterdata

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/infrastructure/cache"
	"github.com/erp/portal/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// References lists the SAP reference data used to name groups and manufacturers
type References interface {
	ItemGroups(ctx context.Context) ([]masterdata.ItemGroup, error)
	Manufacturers(ctx context.Context) ([]masterdata.Manufacturer, error)
}

// ItemService handles item reads and portal edits
type ItemService struct {
	repo       masterdata.ItemRepository
	cache      cache.TagCache
	references References
	logger     *zap.Logger
	now        func() time.Time
}

// NewItemService creates a new ItemService
func NewItemService(repo masterdata.ItemRepository, c cache.TagCache, references References, l *zap.Logger) *ItemService {
	if l == nil {
		l = zap.NewNop()
	}
	return &ItemService{repo: repo, cache: c, references: references, logger: l, now: time.Now}
}

// List returns a page of live items. Pages are cached under the items tag.
func (s *ItemService) List(ctx context.Context, filter shared.Filter) (shared.Paginated[ItemResponse], error) {
	filter = filter.Normalize()
	return cache.GetOrLoad(ctx, s.cache, logger.Or(ctx, s.logger), listKey(cache.TagItems, filter), []string{cache.TagItems},
		func(ctx context.Context) (shared.Paginated[ItemResponse], error) {
			page, err := s.repo.List(ctx, filter)
			if err != nil {
				return shared.Paginated[ItemResponse]{}, err
			}
			items := make([]ItemResponse, len(page.Items))
			for i, item := range page.Items {
				items[i] = ToItemResponse(item)
			}
			return shared.NewPaginated(items, page.Total, page.Page, page.PageSize), nil
		})
}

// Get returns the live item with code
func (s *ItemService) Get(ctx context.Context, code string) (*ItemResponse, error) {
	item, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	resp := ToItemResponse(item)
	return &resp, nil
}

// Create creates a portal item pending confirmation by SAP
func (s *ItemService) Create(ctx context.Context, actor string, req CreateItemRequest) (*ItemResponse, error) {
	code := shared.NormalizeKey(req.Code)
	existing, err := s.repo.ExistingCodes(ctx, []string{code})
	if err != nil {
		return nil, err
	}
	if _, ok := existing[code]; ok {
		return nil, shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("Item %q already exists", code))
	}

	details := masterdata.ItemDetails{
		Name:             req.Name,
		GroupCode:        req.GroupCode,
		ManufacturerCode: masterdata.NoManufacturer,
		MPN:              req.MPN,
		Description:      req.Description,
		UoM:              req.UoM,
	}
	if req.ManufacturerCode != nil {
		details.ManufacturerCode = *req.ManufacturerCode
	}
	s.name(ctx, &details)

	item, err := masterdata.NewPortalItem(code, details, actor, s.now())
	if err != nil {
		return nil, err
	}
	written, err := s.repo.CreateBatch(ctx, []*masterdata.Item{item})
	if err != nil {
		return nil, err
	}
	if written == 0 {
		return nil, shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("Item %q already exists", code))
	}
	s.invalidate(ctx)

	resp := ToItemResponse(item)
	return &resp, nil
}

// Update applies a portal edit to the live item with code
func (s *ItemService) Update(ctx context.Context, actor, code string, req UpdateItemRequest) (*ItemResponse, error) {
	item, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	details := item.Details()
	if req.Name != nil {
		details.Name = *req.Name
	}
	if req.GroupCode != nil {
		details.GroupCode = *req.GroupCode
	}
	if req.ManufacturerCode != nil {
		details.ManufacturerCode = *req.ManufacturerCode
	}
	if req.MPN != nil {
		details.MPN = *req.MPN
	}
	if req.Description != nil {
		details.Description = *req.Description
	}
	if req.UoM != nil {
		details.UoM = *req.UoM
	}
	if req.GroupCode != nil || req.ManufacturerCode != nil {
		s.name(ctx, &details)
	}

	if err := item.Update(details, actor, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, item); err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	resp := ToItemResponse(item)
	return &resp, nil
}

// Delete soft-deletes the live item with code
func (s *ItemService) Delete(ctx context.Context, actor, code string) error {
	item, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return err
	}
	if err := item.SoftDelete(actor, s.now()); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, item); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// name fills group and manufacturer names from the reference lists. An
// unreachable list leaves the name empty.
func (s *ItemService) name(ctx context.Context, d *masterdata.ItemDetails) {
	if s.references == nil {
		return
	}
	log := logger.Or(ctx, s.logger)
	d.GroupName = ""
	if groups, err := s.references.ItemGroups(ctx); err != nil {
		log.Warn("Item groups unavailable", zap.Error(err))
	} else {
		for _, g := range groups {
			if g.Code == d.GroupCode {
				d.GroupName = g.Name
			}
		}
	}
	d.ManufacturerName = ""
	if d.ManufacturerCode == masterdata.NoManufacturer {
		return
	}
	if manufacturers, err := s.references.Manufacturers(ctx); err != nil {
		log.Warn("Manufacturers unavailable", zap.Error(err))
	} else {
		for _, m := range manufacturers {
			if m.Code == d.ManufacturerCode {
				d.ManufacturerName = m.Name
			}
		}
	}
}

func (s *ItemService) invalidate(ctx context.Context) {
	cache.InvalidateQuietly(ctx, s.cache, logger.Or(ctx, s.logger), cache.TagItems)
}

// listKey derives the cache key of one list page
func listKey(prefix string, f shared.Filter) string {
	return fmt.Sprintf("%s:list:%d:%d:%s:%s:%s", prefix, f.Page, f.PageSize, f.OrderBy, f.OrderDir, f.Search)
}
