package persistence

import (
	"context"
	"errors"

	"github.com/erp/portal/internal/domain/sales"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequisitionSortFields contains allowed sort fields for requisitions
var RequisitionSortFields = sortColumns{
	"created_at":    true,
	"updated_at":    true,
	"code":          true,
	"customer_code": true,
	"requested_at":  true,
	"status":        true,
	"sales_rep":     true,
}

// GormRequisitionRepository implements sales.RequisitionRepository using GORM
type GormRequisitionRepository struct {
	db *gorm.DB
}

// NewGormRequisitionRepository creates a new GormRequisitionRepository
func NewGormRequisitionRepository(db *gorm.DB) *GormRequisitionRepository {
	return &GormRequisitionRepository{db: db}
}

func preloadRequestedItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position")
	})
}

// FindByCode returns the live requisition with its items
func (r *GormRequisitionRepository) FindByCode(ctx context.Context, code string) (*sales.Requisition, error) {
	var model models.RequisitionModel
	if err := preloadRequestedItems(live(r.db.WithContext(ctx))).
		Where("code = ?", code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns every live requisition, newest first
func (r *GormRequisitionRepository) FindAll(ctx context.Context) ([]*sales.Requisition, error) {
	var rows []models.RequisitionModel
	if err := preloadRequestedItems(live(r.db.WithContext(ctx))).
		Order("requested_at DESC, code").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*sales.Requisition, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// List returns a page of live requisitions
func (r *GormRequisitionRepository) List(ctx context.Context, filter shared.Filter) (shared.Paginated[*sales.Requisition], error) {
	filter = filter.Normalize()
	query := live(r.db.WithContext(ctx).Model(&models.RequisitionModel{}))
	if filter.Search != "" {
		p := likePattern(filter.Search)
		query = query.Where(`(LOWER(code) LIKE ? ESCAPE '\' OR LOWER(customer_code) LIKE ? ESCAPE '\' OR LOWER(sales_rep) LIKE ? ESCAPE '\')`, p, p, p)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return shared.Paginated[*sales.Requisition]{}, err
	}

	var rows []models.RequisitionModel
	if err := preloadRequestedItems(query).
		Order(RequisitionSortFields.orderBy(filter)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return shared.Paginated[*sales.Requisition]{}, err
	}

	out := make([]*sales.Requisition, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return shared.NewPaginated(out, total, filter.Page, filter.PageSize), nil
}

// ExistingCodes returns which of codes belong to a live requisition
func (r *GormRequisitionRepository) ExistingCodes(ctx context.Context, codes []string) (map[string]struct{}, error) {
	return existingCodes(ctx, r.db, &models.RequisitionModel{}, "code", codes)
}

// CreateBatch inserts requisitions skipping conflicting codes, then the items
// of the requisitions that were written
func (r *GormRequisitionRepository) CreateBatch(ctx context.Context, requisitions []*sales.Requisition) (int64, error) {
	if len(requisitions) == 0 {
		return 0, nil
	}
	var written int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows := make([]*models.RequisitionModel, len(requisitions))
		ids := make([]uuid.UUID, len(requisitions))
		for i, req := range requisitions {
			rows[i] = models.RequisitionModelFromDomain(req)
			ids[i] = req.ID
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

		inserted, err := insertedIDs(tx, &models.RequisitionModel{}, ids)
		if err != nil {
			return err
		}
		var items []models.RequestedItemModel
		for _, row := range rows {
			if _, ok := inserted[row.ID]; ok {
				items = append(items, row.Items...)
			}
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Create(&items).Error
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// Save persists header changes and replaces the requested items
func (r *GormRequisitionRepository) Save(ctx context.Context, requisition *sales.Requisition) error {
	model := models.RequisitionModelFromDomain(requisition)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.RequisitionModel{}).
			Where("id = ?", requisition.ID).
			Select("*").
			Omit("id", "created_at", "created_by", "Items").
			Updates(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		if err := tx.Where("requisition_id = ?", requisition.ID).Delete(&models.RequestedItemModel{}).Error; err != nil {
			return err
		}
		if len(model.Items) == 0 {
			return nil
		}
		return tx.Create(&model.Items).Error
	})
}

var _ sales.RequisitionRepository = (*GormRequisitionRepository)(nil)
