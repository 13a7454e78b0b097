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

// SupplierQuoteSortFields contains allowed sort fields for supplier quotes
var SupplierQuoteSortFields = sortColumns{
	"created_at":       true,
	"updated_at":       true,
	"code":             true,
	"supplier_code":    true,
	"requisition_code": true,
	"quoted_at":        true,
	"status":           true,
	"currency":         true,
}

// GormSupplierQuoteRepository implements sales.SupplierQuoteRepository using GORM
type GormSupplierQuoteRepository struct {
	db *gorm.DB
}

// NewGormSupplierQuoteRepository creates a new GormSupplierQuoteRepository
func NewGormSupplierQuoteRepository(db *gorm.DB) *GormSupplierQuoteRepository {
	return &GormSupplierQuoteRepository{db: db}
}

func preloadQuoteLines(db *gorm.DB) *gorm.DB {
	return db.Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("position")
	})
}

// FindByCode returns the live quote with its lines
func (r *GormSupplierQuoteRepository) FindByCode(ctx context.Context, code string) (*sales.SupplierQuote, error) {
	var model models.SupplierQuoteModel
	if err := preloadQuoteLines(live(r.db.WithContext(ctx))).
		Where("code = ?", code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns every live quote, newest first
func (r *GormSupplierQuoteRepository) FindAll(ctx context.Context) ([]*sales.SupplierQuote, error) {
	var rows []models.SupplierQuoteModel
	if err := preloadQuoteLines(live(r.db.WithContext(ctx))).
		Order("quoted_at DESC, code").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*sales.SupplierQuote, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// List returns a page of live quotes
func (r *GormSupplierQuoteRepository) List(ctx context.Context, filter shared.Filter) (shared.Paginated[*sales.SupplierQuote], error) {
	filter = filter.Normalize()
	query := live(r.db.WithContext(ctx).Model(&models.SupplierQuoteModel{}))
	if filter.Search != "" {
		p := likePattern(filter.Search)
		query = query.Where(`(LOWER(code) LIKE ? ESCAPE '\' OR LOWER(supplier_code) LIKE ? ESCAPE '\' OR LOWER(requisition_code) LIKE ? ESCAPE '\')`, p, p, p)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return shared.Paginated[*sales.SupplierQuote]{}, err
	}

	var rows []models.SupplierQuoteModel
	if err := preloadQuoteLines(query).
		Order(SupplierQuoteSortFields.orderBy(filter)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return shared.Paginated[*sales.SupplierQuote]{}, err
	}

	out := make([]*sales.SupplierQuote, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return shared.NewPaginated(out, total, filter.Page, filter.PageSize), nil
}

// ExistingCodes returns which of codes belong to a live quote
func (r *GormSupplierQuoteRepository) ExistingCodes(ctx context.Context, codes []string) (map[string]struct{}, error) {
	return existingCodes(ctx, r.db, &models.SupplierQuoteModel{}, "code", codes)
}

// CreateBatch inserts quotes skipping conflicting codes, then the lines of the quotes that were written
func (r *GormSupplierQuoteRepository) CreateBatch(ctx context.Context, quotes []*sales.SupplierQuote) (int64, error) {
	if len(quotes) == 0 {
		return 0, nil
	}
	var written int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows := make([]*models.SupplierQuoteModel, len(quotes))
		ids := make([]uuid.UUID, len(quotes))
		for i, q := range quotes {
			rows[i] = models.SupplierQuoteModelFromDomain(q)
			ids[i] = q.ID
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

		inserted, err := insertedIDs(tx, &models.SupplierQuoteModel{}, ids)
		if err != nil {
			return err
		}
		var lines []models.QuoteLineModel
		for _, row := range rows {
			if _, ok := inserted[row.ID]; ok {
				lines = append(lines, row.Lines...)
			}
		}
		if len(lines) == 0 {
			return nil
		}
		return tx.Create(&lines).Error
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// Save persists header changes and replaces the quote lines
func (r *GormSupplierQuoteRepository) Save(ctx context.Context, quote *sales.SupplierQuote) error {
	model := models.SupplierQuoteModelFromDomain(quote)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.SupplierQuoteModel{}).
			Where("id = ?", quote.ID).
			Select("*").
			Omit("id", "created_at", "created_by", "Lines").
			Updates(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		if err := tx.Where("quote_id = ?", quote.ID).Delete(&models.QuoteLineModel{}).Error; err != nil {
			return err
		}
		if len(model.Lines) == 0 {
			return nil
		}
		return tx.Create(&model.Lines).Error
	})
}

var _ sales.SupplierQuoteRepository = (*GormSupplierQuoteRepository)(nil)
