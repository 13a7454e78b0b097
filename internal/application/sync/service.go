// Package syncapp reconciles the local master-data mirror with SAP.
package syncapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/portal/internal/application/fanout"
	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/infrastructure/cache"
	"github.com/erp/portal/internal/infrastructure/logger"
	"github.com/erp/portal/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Mode tells which branch a sync run took
type Mode string

const (
	// ModeInitial bulk-inserts the whole remote collection into an empty table
	ModeInitial Mode = "initial"
	// ModeIncremental upserts remote records changed since the watermark
	ModeIncremental Mode = "incremental"
)

// Sources that can degrade to their fallback during the fan-out
const (
	SourceRemote   = "remote"
	SourceLocal    = "local"
	SourceSyncMeta = "sync_meta"
)

// RemoteSource is the read side of SAP used by the sync
type RemoteSource interface {
	ItemSnapshots(ctx context.Context) ([]masterdata.ItemSnapshot, error)
	PartnerSnapshots(ctx context.Context, cardType masterdata.PartnerType) ([]masterdata.PartnerSnapshot, error)
}

// Metrics records sync runs
type Metrics interface {
	RecordSync(ctx context.Context, entity, mode string, err error, written int, d time.Duration)
}

// Result describes a successful sync run
type Result struct {
	Entity     masterdata.SyncEntity `json:"entity"`
	Mode       Mode                  `json:"mode"`
	Fetched    int                   `json:"fetched"`
	Created    int                   `json:"created"`
	Updated    int                   `json:"updated"`
	Skipped    int                   `json:"skipped"`
	LastSyncAt time.Time             `json:"last_sync_at"`
	Degraded   []string              `json:"degraded,omitempty"`
	Duration   time.Duration         `json:"duration"`
}

// Written returns the number of records inserted or updated
func (r *Result) Written() int {
	return r.Created + r.Updated
}

// Status is the sync state of one entity type
type Status struct {
	Entity     masterdata.SyncEntity `json:"entity"`
	Label      string                `json:"label"`
	LastSyncAt time.Time             `json:"last_sync_at"`
	UpdatedBy  string                `json:"updated_by,omitempty"`
	NeverRun   bool                  `json:"never_run"`
}

// Service reconciles one entity type per call. It never retries: a failed
// run is reported and the caller decides whether to run it again.
type Service struct {
	remote      RemoteSource
	items       masterdata.ItemRepository
	partners    masterdata.BusinessPartnerRepository
	metas       masterdata.SyncMetaRepository
	scope       TransactionScope
	invalidator cache.Invalidator
	metrics     Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithMetrics records every run
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the fallback logger used when the context carries none
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates a new sync Service
func NewService(
	remote RemoteSource,
	items masterdata.ItemRepository,
	partners masterdata.BusinessPartnerRepository,
	metas masterdata.SyncMetaRepository,
	scope TransactionScope,
	invalidator cache.Invalidator,
	opts ...Option,
) *Service {
	s := &Service{
		remote:      remote,
		items:       items,
		partners:    partners,
		metas:       metas,
		scope:       scope,
		invalidator: invalidator,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync runs the sync of entity on behalf of actor
func (s *Service) Sync(ctx context.Context, entity masterdata.SyncEntity, actor string) (*Result, error) {
	switch entity {
	case masterdata.SyncEntityItem:
		return s.SyncItems(ctx, actor)
	case masterdata.SyncEntityCustomer:
		return s.SyncCustomers(ctx, actor)
	case masterdata.SyncEntitySupplier:
		return s.SyncSuppliers(ctx, actor)
	}
	return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown sync entity: %q", entity))
}

// SyncItems reconciles the item master
func (s *Service) SyncItems(ctx context.Context, actor string) (*Result, error) {
	return run(ctx, s, reconciler[*masterdata.Item]{
		entity: masterdata.SyncEntityItem,
		tags:   []string{cache.TagItems},
		remote: func(ctx context.Context, at time.Time) ([]*masterdata.Item, error) {
			snaps, err := s.remote.ItemSnapshots(ctx)
			if err != nil {
				return nil, err
			}
			items := make([]*masterdata.Item, len(snaps))
			for i, snap := range snaps {
				items[i] = snap.ToItem(actor, at)
			}
			return items, nil
		},
		local: s.items.FindAll,
		insertAll: func(ctx context.Context, repos TransactionalRepositories, items []*masterdata.Item) (int64, error) {
			return repos.Items().CreateBatch(ctx, items)
		},
		upsert: func(ctx context.Context, repos TransactionalRepositories, item *masterdata.Item) (bool, error) {
			return repos.Items().Upsert(ctx, item)
		},
		changedSince: (*masterdata.Item).ChangedSince,
	}, actor)
}

// SyncCustomers reconciles business partners of type C
func (s *Service) SyncCustomers(ctx context.Context, actor string) (*Result, error) {
	return s.syncPartners(ctx, masterdata.PartnerTypeCustomer, actor)
}

// SyncSuppliers reconciles business partners of type S
func (s *Service) SyncSuppliers(ctx context.Context, actor string) (*Result, error) {
	return s.syncPartners(ctx, masterdata.PartnerTypeSupplier, actor)
}

func (s *Service) syncPartners(ctx context.Context, cardType masterdata.PartnerType, actor string) (*Result, error) {
	return run(ctx, s, reconciler[*masterdata.BusinessPartner]{
		entity: cardType.SyncEntity(),
		tags:   []string{cache.PartnerTag(string(cardType))},
		remote: func(ctx context.Context, at time.Time) ([]*masterdata.BusinessPartner, error) {
			snaps, err := s.remote.PartnerSnapshots(ctx, cardType)
			if err != nil {
				return nil, err
			}
			partners := make([]*masterdata.BusinessPartner, len(snaps))
			for i, snap := range snaps {
				partners[i] = snap.ToBusinessPartner(actor, at)
			}
			return partners, nil
		},
		local: func(ctx context.Context) ([]*masterdata.BusinessPartner, error) {
			return s.partners.FindAll(ctx, cardType)
		},
		insertAll: func(ctx context.Context, repos TransactionalRepositories, partners []*masterdata.BusinessPartner) (int64, error) {
			return repos.BusinessPartners().CreateBatch(ctx, partners)
		},
		upsert: func(ctx context.Context, repos TransactionalRepositories, partner *masterdata.BusinessPartner) (bool, error) {
			return repos.BusinessPartners().Upsert(ctx, partner)
		},
		changedSince: (*masterdata.BusinessPartner).ChangedSince,
	}, actor)
}

// Status returns the watermark of every entity type, defaults included
func (s *Service) Status(ctx context.Context) ([]Status, error) {
	metas, err := s.metas.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	byCode := make(map[masterdata.SyncEntity]*masterdata.SyncMeta, len(metas))
	for _, m := range metas {
		byCode[m.Code] = m
	}

	out := make([]Status, 0, len(masterdata.AllSyncEntities))
	for _, entity := range masterdata.AllSyncEntities {
		meta, ok := byCode[entity]
		if !ok {
			meta = masterdata.NewSyncMeta(entity)
		}
		out = append(out, Status{
			Entity:     entity,
			Label:      entity.Label(),
			LastSyncAt: meta.LastSyncAt,
			UpdatedBy:  meta.UpdatedBy,
			NeverRun:   !ok,
		})
	}
	return out, nil
}

// reconciler binds the generic sync run to one entity type
type reconciler[T any] struct {
	entity       masterdata.SyncEntity
	tags         []string
	remote       func(ctx context.Context, at time.Time) ([]T, error)
	local        func(ctx context.Context) ([]T, error)
	insertAll    func(ctx context.Context, repos TransactionalRepositories, records []T) (int64, error)
	upsert       func(ctx context.Context, repos TransactionalRepositories, record T) (bool, error)
	changedSince func(record T, t time.Time) bool
}

func run[T any](ctx context.Context, s *Service, r reconciler[T], actor string) (result *Result, err error) {
	start := s.now()
	log := logger.Or(ctx, s.logger).With(zap.String("entity", string(r.entity)))
	ctx, span := telemetry.StartSpan(ctx, "sync.run", attribute.String("sync.entity", string(r.entity)))

	result = &Result{Entity: r.entity}
	defer func() {
		result.Duration = s.now().Sub(start)
		span.SetAttributes(
			attribute.String("sync.mode", string(result.Mode)),
			attribute.Int("sync.written", result.Written()),
			attribute.StringSlice("sync.degraded", result.Degraded),
		)
		telemetry.EndSpan(span, err)
		if s.metrics != nil {
			written := 0
			if err == nil {
				written = result.Written()
			}
			s.metrics.RecordSync(ctx, string(r.entity), string(result.Mode), err, written, result.Duration)
		}
	}()

	var g fanout.Group
	remote := fanout.Go(ctx, &g, []T(nil), func(ctx context.Context) ([]T, error) {
		return r.remote(ctx, start)
	})
	local := fanout.Go(ctx, &g, []T(nil), r.local)
	meta := fanout.Go(ctx, &g, masterdata.NewSyncMeta(r.entity), func(ctx context.Context) (*masterdata.SyncMeta, error) {
		return s.metas.FindByCode(ctx, r.entity)
	})
	g.Wait()

	if remote.Failed() {
		result.Degraded = append(result.Degraded, SourceRemote)
		log.Warn("Remote fetch failed, continuing with no remote records", zap.Error(remote.Err))
	}
	if local.Failed() {
		result.Degraded = append(result.Degraded, SourceLocal)
		log.Warn("Local fetch failed, treating the table as empty", zap.Error(local.Err))
	}
	if meta.Failed() && !errors.Is(meta.Err, shared.ErrNotFound) {
		result.Degraded = append(result.Degraded, SourceSyncMeta)
		log.Warn("Sync metadata fetch failed, using the default watermark", zap.Error(meta.Err))
	}

	watermark := meta.Value
	previous := watermark.LastSyncAt
	result.Fetched = len(remote.Value)

	txErr := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if len(local.Value) == 0 {
			result.Mode = ModeInitial
			written, err := r.insertAll(ctx, repos, remote.Value)
			if err != nil {
				return fmt.Errorf("bulk insert: %w", err)
			}
			result.Created = int(written)
			result.Skipped = len(remote.Value) - int(written)
		} else {
			result.Mode = ModeIncremental
			for _, record := range remote.Value {
				if !r.changedSince(record, previous) {
					result.Skipped++
					continue
				}
				created, err := r.upsert(ctx, repos, record)
				if err != nil {
					return fmt.Errorf("upsert: %w", err)
				}
				if created {
					result.Created++
				} else {
					result.Updated++
				}
			}
		}

		// Without remote data nothing was reconciled, so the watermark must not move.
		if remote.Failed() {
			return nil
		}
		watermark.Advance(start, actor)
		return repos.SyncMeta().Save(ctx, watermark)
	})
	if txErr != nil {
		log.Error("Sync failed", zap.String("mode", string(result.Mode)), zap.Error(txErr))
		return result, shared.WrapDomainError("SYNC_FAILED", fmt.Sprintf("%s sync failed", r.entity.Label()), txErr)
	}
	result.LastSyncAt = watermark.LastSyncAt

	cache.InvalidateQuietly(ctx, s.invalidator, log, append(r.tags, cache.TagSyncMeta)...)

	log.Info("Sync completed",
		zap.String("mode", string(result.Mode)),
		zap.Int("fetched", result.Fetched),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Time("last_sync_at", result.LastSyncAt),
		zap.Strings("degraded", result.Degraded),
	)
	return result, nil
}
