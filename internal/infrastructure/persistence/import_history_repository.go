package persistence

import (
	"context"
	"errors"

	"github.com/erp/portal/internal/domain/bulk"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormImportHistoryRepository implements bulk.ImportHistoryRepository using GORM
type GormImportHistoryRepository struct {
	db *gorm.DB
}

// NewGormImportHistoryRepository creates a new GormImportHistoryRepository
func NewGormImportHistoryRepository(db *gorm.DB) *GormImportHistoryRepository {
	return &GormImportHistoryRepository{db: db}
}

// FindByID finds an import history by ID
func (r *GormImportHistoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*bulk.ImportHistory, error) {
	var model models.ImportHistoryModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns import histories with pagination and filtering, newest first
func (r *GormImportHistoryRepository) FindAll(
	ctx context.Context,
	filter bulk.ImportHistoryFilter,
	page, pageSize int,
) (*bulk.ImportHistoryListResult, error) {
	query := r.applyFilters(r.db.WithContext(ctx).Model(&models.ImportHistoryModel{}), filter)

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, err
	}

	if page > 0 && pageSize > 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}

	var rows []models.ImportHistoryModel
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	histories := make([]*bulk.ImportHistory, len(rows))
	for i := range rows {
		histories[i] = rows[i].ToDomain()
	}

	return &bulk.ImportHistoryListResult{
		Items:      histories,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// FindUnfinished returns pending or processing imports, oldest first
func (r *GormImportHistoryRepository) FindUnfinished(ctx context.Context) ([]*bulk.ImportHistory, error) {
	var rows []models.ImportHistoryModel
	if err := r.db.WithContext(ctx).
		Where("status IN ?", []string{string(bulk.ImportStatusPending), string(bulk.ImportStatusProcessing)}).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	histories := make([]*bulk.ImportHistory, len(rows))
	for i := range rows {
		histories[i] = rows[i].ToDomain()
	}
	return histories, nil
}

// Save saves an import history (create or update)
func (r *GormImportHistoryRepository) Save(ctx context.Context, history *bulk.ImportHistory) error {
	return r.db.WithContext(ctx).Save(models.ImportHistoryModelFromDomain(history)).Error
}

func (r *GormImportHistoryRepository) applyFilters(query *gorm.DB, filter bulk.ImportHistoryFilter) *gorm.DB {
	if filter.Entity != nil {
		query = query.Where("entity = ?", string(*filter.Entity))
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.ImportedBy != "" {
		query = query.Where("imported_by = ?", filter.ImportedBy)
	}
	if filter.StartedFrom != nil {
		query = query.Where("started_at >= ?", *filter.StartedFrom)
	}
	if filter.StartedTo != nil {
		query = query.Where("started_at <= ?", *filter.StartedTo)
	}
	return query
}

var _ bulk.ImportHistoryRepository = (*GormImportHistoryRepository)(nil)
