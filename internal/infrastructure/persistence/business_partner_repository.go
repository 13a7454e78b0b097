package persistence

import (
	"context"
	"errors"

	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BusinessPartnerSortFields contains allowed sort fields for business partners
var BusinessPartnerSortFields = sortColumns{
	"created_at":  true,
	"updated_at":  true,
	"card_code":   true,
	"card_name":   true,
	"group_code":  true,
	"currency":    true,
	"source":      true,
	"sync_status": true,
}

// GormBusinessPartnerRepository implements masterdata.BusinessPartnerRepository using GORM
type GormBusinessPartnerRepository struct {
	db *gorm.DB
}

// NewGormBusinessPartnerRepository creates a new GormBusinessPartnerRepository
func NewGormBusinessPartnerRepository(db *gorm.DB) *GormBusinessPartnerRepository {
	return &GormBusinessPartnerRepository{db: db}
}

func preloadAddresses(db *gorm.DB) *gorm.DB {
	return db.Preload("Addresses", func(db *gorm.DB) *gorm.DB {
		return db.Order("position")
	})
}

// FindByCode returns the live partner with the given card code
func (r *GormBusinessPartnerRepository) FindByCode(ctx context.Context, code string) (*masterdata.BusinessPartner, error) {
	var model models.BusinessPartnerModel
	if err := preloadAddresses(live(r.db.WithContext(ctx))).
		Where("card_code = ?", code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns every live partner of cardType
func (r *GormBusinessPartnerRepository) FindAll(ctx context.Context, cardType masterdata.PartnerType) ([]*masterdata.BusinessPartner, error) {
	var rows []models.BusinessPartnerModel
	if err := preloadAddresses(live(r.db.WithContext(ctx))).
		Where("card_type = ?", string(cardType)).
		Order("card_code").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	partners := make([]*masterdata.BusinessPartner, len(rows))
	for i := range rows {
		partners[i] = rows[i].ToDomain()
	}
	return partners, nil
}

// List returns a page of live partners of cardType
func (r *GormBusinessPartnerRepository) List(ctx context.Context, cardType masterdata.PartnerType, filter shared.Filter) (shared.Paginated[*masterdata.BusinessPartner], error) {
	filter = filter.Normalize()
	query := live(r.db.WithContext(ctx).Model(&models.BusinessPartnerModel{})).
		Where("card_type = ?", string(cardType))
	if filter.Search != "" {
		p := likePattern(filter.Search)
		query = query.Where(`(LOWER(card_code) LIKE ? ESCAPE '\' OR LOWER(card_name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\')`, p, p, p)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return shared.Paginated[*masterdata.BusinessPartner]{}, err
	}

	var rows []models.BusinessPartnerModel
	if err := preloadAddresses(query).
		Order(BusinessPartnerSortFields.orderBy(filter)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return shared.Paginated[*masterdata.BusinessPartner]{}, err
	}

	partners := make([]*masterdata.BusinessPartner, len(rows))
	for i := range rows {
		partners[i] = rows[i].ToDomain()
	}
	return shared.NewPaginated(partners, total, filter.Page, filter.PageSize), nil
}

// ExistingCodes returns which of codes belong to a live partner of either type
func (r *GormBusinessPartnerRepository) ExistingCodes(ctx context.Context, codes []string) (map[string]struct{}, error) {
	return existingCodes(ctx, r.db, &models.BusinessPartnerModel{}, "card_code", codes)
}

// CreateBatch inserts partners in one statement skipping conflicting card
// codes, then inserts the addresses of the partners that were written.
func (r *GormBusinessPartnerRepository) CreateBatch(ctx context.Context, partners []*masterdata.BusinessPartner) (int64, error) {
	if len(partners) == 0 {
		return 0, nil
	}
	var written int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows := make([]*models.BusinessPartnerModel, len(partners))
		ids := make([]uuid.UUID, len(partners))
		for i, p := range partners {
			rows[i] = models.BusinessPartnerModelFromDomain(p)
			ids[i] = p.ID
		}

		result := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&rows)
		if result.Error != nil {
			return result.Error
		}
		written = result.RowsAffected
		if written == 0 {
			return nil
		}

		inserted, err := insertedIDs(tx, &models.BusinessPartnerModel{}, ids)
		if err != nil {
			return err
		}
		var addresses []models.BusinessPartnerAddressModel
		for _, row := range rows {
			if _, ok := inserted[row.ID]; ok {
				addresses = append(addresses, row.Addresses...)
			}
		}
		if len(addresses) == 0 {
			return nil
		}
		return tx.Create(&addresses).Error
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// Upsert updates the live partner with the same card code, or inserts it
func (r *GormBusinessPartnerRepository) Upsert(ctx context.Context, partner *masterdata.BusinessPartner) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.BusinessPartnerModel
		err := live(tx).Where("card_code = ?", partner.CardCode).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			return tx.Create(models.BusinessPartnerModelFromDomain(partner)).Error
		case err != nil:
			return err
		}

		current := existing.ToDomain()
		current.MergeRemote(partner, partner.UpdatedBy, partner.UpdatedAt)
		partner.ID = current.ID
		return savePartner(tx, current)
	})
	return created, err
}

// Save persists changes to an existing partner and replaces its addresses
func (r *GormBusinessPartnerRepository) Save(ctx context.Context, partner *masterdata.BusinessPartner) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return savePartner(tx, partner)
	})
}

func savePartner(tx *gorm.DB, partner *masterdata.BusinessPartner) error {
	model := models.BusinessPartnerModelFromDomain(partner)
	result := tx.Model(&models.BusinessPartnerModel{}).
		Where("id = ?", partner.ID).
		Select("*").
		Omit("id", "created_at", "created_by", "Addresses").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	if err := tx.Where("partner_id = ?", partner.ID).Delete(&models.BusinessPartnerAddressModel{}).Error; err != nil {
		return err
	}
	if len(model.Addresses) == 0 {
		return nil
	}
	return tx.Create(&model.Addresses).Error
}

// insertedIDs returns which of ids are present in model's table
func insertedIDs(tx *gorm.DB, model any, ids []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	var present []uuid.UUID
	if err := tx.Model(model).Where("id IN ?", ids).Pluck("id", &present).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]struct{}, len(present))
	for _, id := range present {
		out[id] = struct{}{}
	}
	return out, nil
}

var _ masterdata.BusinessPartnerRepository = (*GormBusinessPartnerRepository)(nil)
