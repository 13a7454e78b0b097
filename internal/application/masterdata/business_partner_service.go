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

// BusinessPartnerService handles customer and supplier reads and portal edits
type BusinessPartnerService struct {
	repo   masterdata.BusinessPartnerRepository
	cache  cache.TagCache
	logger *zap.Logger
	now    func() time.Time
}

// NewBusinessPartnerService creates a new BusinessPartnerService
func NewBusinessPartnerService(repo masterdata.BusinessPartnerRepository, c cache.TagCache, l *zap.Logger) *BusinessPartnerService {
	if l == nil {
		l = zap.NewNop()
	}
	return &BusinessPartnerService{repo: repo, cache: c, logger: l, now: time.Now}
}

// List returns a page of live partners of cardType
func (s *BusinessPartnerService) List(ctx context.Context, cardType string, filter shared.Filter) (shared.Paginated[BusinessPartnerResponse], error) {
	t, err := masterdata.ParsePartnerType(cardType)
	if err != nil {
		return shared.Paginated[BusinessPartnerResponse]{}, err
	}
	filter = filter.Normalize()
	tag := cache.PartnerTag(string(t))
	return cache.GetOrLoad(ctx, s.cache, logger.Or(ctx, s.logger), listKey(tag, filter), []string{tag},
		func(ctx context.Context) (shared.Paginated[BusinessPartnerResponse], error) {
			page, err := s.repo.List(ctx, t, filter)
			if err != nil {
				return shared.Paginated[BusinessPartnerResponse]{}, err
			}
			partners := make([]BusinessPartnerResponse, len(page.Items))
			for i, p := range page.Items {
				partners[i] = ToBusinessPartnerResponse(p)
			}
			return shared.NewPaginated(partners, page.Total, page.Page, page.PageSize), nil
		})
}

// Get returns the live partner with code
func (s *BusinessPartnerService) Get(ctx context.Context, code string) (*BusinessPartnerResponse, error) {
	bp, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	resp := ToBusinessPartnerResponse(bp)
	return &resp, nil
}

// Create creates a portal business partner. Card codes are unique across customers and suppliers.
func (s *BusinessPartnerService) Create(ctx context.Context, actor string, req CreateBusinessPartnerRequest) (*BusinessPartnerResponse, error) {
	cardType, err := masterdata.ParsePartnerType(req.CardType)
	if err != nil {
		return nil, err
	}
	code := shared.NormalizeKey(req.CardCode)
	existing, err := s.repo.ExistingCodes(ctx, []string{code})
	if err != nil {
		return nil, err
	}
	if _, ok := existing[code]; ok {
		return nil, shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("Business partner %q already exists", code))
	}
	addresses, err := toAddresses(req.Addresses)
	if err != nil {
		return nil, err
	}

	bp, err := masterdata.NewPortalBusinessPartner(code, cardType, masterdata.PartnerDetails{
		CardName:  req.CardName,
		GroupCode: req.GroupCode,
		Phone:     req.Phone,
		Email:     req.Email,
		Currency:  req.Currency,
		Addresses: addresses,
	}, actor, s.now())
	if err != nil {
		return nil, err
	}
	written, err := s.repo.CreateBatch(ctx, []*masterdata.BusinessPartner{bp})
	if err != nil {
		return nil, err
	}
	if written == 0 {
		return nil, shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("Business partner %q already exists", code))
	}
	s.invalidate(ctx, bp.CardType)

	resp := ToBusinessPartnerResponse(bp)
	return &resp, nil
}

// Update applies a portal edit to the live partner with code
func (s *BusinessPartnerService) Update(ctx context.Context, actor, code string, req UpdateBusinessPartnerRequest) (*BusinessPartnerResponse, error) {
	bp, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	details := bp.Details()
	if req.CardName != nil {
		details.CardName = *req.CardName
	}
	if req.GroupCode != nil {
		details.GroupCode = *req.GroupCode
	}
	if req.Phone != nil {
		details.Phone = *req.Phone
	}
	if req.Email != nil {
		details.Email = *req.Email
	}
	if req.Currency != nil {
		details.Currency = *req.Currency
	}
	if req.Addresses != nil {
		addresses, err := toAddresses(*req.Addresses)
		if err != nil {
			return nil, err
		}
		details.Addresses = addresses
	}

	if err := bp.Update(details, actor, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, bp); err != nil {
		return nil, err
	}
	s.invalidate(ctx, bp.CardType)

	resp := ToBusinessPartnerResponse(bp)
	return &resp, nil
}

// Delete soft-deletes the live partner with code
func (s *BusinessPartnerService) Delete(ctx context.Context, actor, code string) error {
	bp, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return err
	}
	if err := bp.SoftDelete(actor, s.now()); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, bp); err != nil {
		return err
	}
	s.invalidate(ctx, bp.CardType)
	return nil
}

func (s *BusinessPartnerService) invalidate(ctx context.Context, t masterdata.PartnerType) {
	cache.InvalidateQuietly(ctx, s.cache, logger.Or(ctx, s.logger), cache.PartnerTag(string(t)))
}
