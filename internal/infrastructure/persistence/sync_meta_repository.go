package persistence

import (
	"context"
	"errors"

	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSyncMetaRepository implements masterdata.SyncMetaRepository using GORM
type GormSyncMetaRepository struct {
	db *gorm.DB
}

// NewGormSyncMetaRepository creates a new GormSyncMetaRepository
func NewGormSyncMetaRepository(db *gorm.DB) *GormSyncMetaRepository {
	return &GormSyncMetaRepository{db: db}
}

// FindByCode returns the watermark for code
func (r *GormSyncMetaRepository) FindByCode(ctx context.Context, code masterdata.SyncEntity) (*masterdata.SyncMeta, error) {
	var model models.SyncMetaModel
	if err := r.db.WithContext(ctx).Where("code = ?", string(code)).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListAll returns every watermark ordered by code
func (r *GormSyncMetaRepository) ListAll(ctx context.Context) ([]*masterdata.SyncMeta, error) {
	var rows []models.SyncMetaModel
	if err := r.db.WithContext(ctx).Order("code").Find(&rows).Error; err != nil {
		return nil, err
	}
	metas := make([]*masterdata.SyncMeta, len(rows))
	for i := range rows {
		metas[i] = rows[i].ToDomain()
	}
	return metas, nil
}

// Save inserts the watermark or overwrites the existing row for its code
func (r *GormSyncMetaRepository) Save(ctx context.Context, meta *masterdata.SyncMeta) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_sync_at", "updated_by", "updated_at"}),
		}).
		Create(models.SyncMetaModelFromDomain(meta)).Error
}

var _ masterdata.SyncMetaRepository = (*GormSyncMetaRepository)(nil)
