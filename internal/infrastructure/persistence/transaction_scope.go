package persistence

import (
	"context"

	syncapp "github.com/erp/portal/internal/application/sync"
	"github.com/erp/portal/internal/domain/masterdata"
	"gorm.io/gorm"
)

// GormTransactionScope implements syncapp.TransactionScope using GORM transactions.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction.
// If fn returns an error the transaction is rolled back, otherwise it is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos syncapp.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories hands out repositories bound to one transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) Items() masterdata.ItemRepository {
	return NewGormItemRepository(r.tx)
}

func (r *gormTransactionalRepositories) BusinessPartners() masterdata.BusinessPartnerRepository {
	return NewGormBusinessPartnerRepository(r.tx)
}

func (r *gormTransactionalRepositories) SyncMeta() masterdata.SyncMetaRepository {
	return NewGormSyncMetaRepository(r.tx)
}

var (
	_ syncapp.TransactionScope          = (*GormTransactionScope)(nil)
	_ syncapp.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
