package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ItemSortFields contains allowed sort fields for items
var ItemSortFields = sortColumns{
	"created_at":        true,
	"updated_at":        true,
	"code":              true,
	"name":              true,
	"group_name":        true,
	"manufacturer_name": true,
	"mpn":               true,
	"source":            true,
	"sync_status":       true,
}

// GormItemRepository implements masterdata.ItemRepository using GORM
type GormItemRepository struct {
	db *gorm.DB
}

// NewGormItemRepository creates a new GormItemRepository
func NewGormItemRepository(db *gorm.DB) *GormItemRepository {
	return &GormItemRepository{db: db}
}

// live restricts a query to rows that have not been soft-deleted
func live(db *gorm.DB) *gorm.DB {
	return db.Where("lifecycle <> ?", string(shared.LifecycleDeleted))
}

// likePattern builds a case-insensitive LIKE pattern that works on postgres and sqlite
func likePattern(search string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(search))
	return "%" + escaped + "%"
}

// FindByCode returns the live item with the given code
func (r *GormItemRepository) FindByCode(ctx context.Context, code string) (*masterdata.Item, error) {
	var model models.ItemModel
	if err := live(r.db.WithContext(ctx)).Where("code = ?", code).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns every live item ordered by code
func (r *GormItemRepository) FindAll(ctx context.Context) ([]*masterdata.Item, error) {
	var rows []models.ItemModel
	if err := live(r.db.WithContext(ctx)).Order("code").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]*masterdata.Item, len(rows))
	for i := range rows {
		items[i] = rows[i].ToDomain()
	}
	return items, nil
}

// List returns a page of live items
func (r *GormItemRepository) List(ctx context.Context, filter shared.Filter) (shared.Paginated[*masterdata.Item], error) {
	filter = filter.Normalize()
	query := live(r.db.WithContext(ctx).Model(&models.ItemModel{}))
	if filter.Search != "" {
		p := likePattern(filter.Search)
		query = query.Where(`(LOWER(code) LIKE ? ESCAPE '\' OR LOWER(name) LIKE ? ESCAPE '\' OR LOWER(mpn) LIKE ? ESCAPE '\')`, p, p, p)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return shared.Paginated[*masterdata.Item]{}, err
	}

	var rows []models.ItemModel
	if err := query.
		Order(ItemSortFields.orderBy(filter)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return shared.Paginated[*masterdata.Item]{}, err
	}

	items := make([]*masterdata.Item, len(rows))
	for i := range rows {
		items[i] = rows[i].ToDomain()
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// ExistingCodes returns which of codes belong to a live item
func (r *GormItemRepository) ExistingCodes(ctx context.Context, codes []string) (map[string]struct{}, error) {
	return existingCodes(ctx, r.db, &models.ItemModel{}, "code", codes)
}

// CreateBatch inserts items in one statement; rows whose code already exists are skipped
func (r *GormItemRepository) CreateBatch(ctx context.Context, items []*masterdata.Item) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	rows := make([]*models.ItemModel, len(items))
	for i, item := range items {
		rows[i] = models.ItemModelFromDomain(item)
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Upsert updates the live item with the same code, or inserts item when there is none
func (r *GormItemRepository) Upsert(ctx context.Context, item *masterdata.Item) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ItemModel
		err := live(tx).Where("code = ?", item.Code).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			return tx.Create(models.ItemModelFromDomain(item)).Error
		case err != nil:
			return err
		}

		current := existing.ToDomain()
		current.MergeRemote(item, item.UpdatedBy, item.UpdatedAt)
		item.ID = current.ID
		return tx.Save(models.ItemModelFromDomain(current)).Error
	})
	return created, err
}

// Save persists changes to an existing item
func (r *GormItemRepository) Save(ctx context.Context, item *masterdata.Item) error {
	result := r.db.WithContext(ctx).
		Model(&models.ItemModel{}).
		Where("id = ?", item.ID).
		Select("*").
		Omit("id", "created_at", "created_by").
		Updates(models.ItemModelFromDomain(item))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// existingCodes plucks the subset of codes present among live rows of model
func existingCodes(ctx context.Context, db *gorm.DB, model any, column string, codes []string) (map[string]struct{}, error) {
	found := make(map[string]struct{}, len(codes))
	if len(codes) == 0 {
		return found, nil
	}
	var existing []string
	if err := live(db.WithContext(ctx).Model(model)).
		Where(column+" IN ?", codes).
		Pluck(column, &existing).Error; err != nil {
		return nil, err
	}
	for _, c := range existing {
		found[c] = struct{}{}
	}
	return found, nil
}

var _ masterdata.ItemRepository = (*GormItemRepository)(nil)
