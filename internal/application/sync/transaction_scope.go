package syncapp

import (
	"context"

	"github.com/erp/portal/internal/domain/masterdata"
)

// TransactionScope runs a unit of work atomically.
type TransactionScope interface {
	// Execute runs fn within a database transaction. If fn returns an error
	// the transaction is rolled back, otherwise it is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories gives access to the master-data repositories of
// one transaction. Every repository returned shares that transaction.
type TransactionalRepositories interface {
	Items() masterdata.ItemRepository
	BusinessPartners() masterdata.BusinessPartnerRepository
	SyncMeta() masterdata.SyncMetaRepository
}
