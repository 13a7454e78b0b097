package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Cache tags of the portal read paths
const (
	TagItems          = "items"
	TagRequisitions   = "requisitions"
	TagSupplierQuotes = "supplier-quotes"
	TagSyncMeta       = "sync-meta"
	TagImports        = "imports"
	TagReferences     = "references"
)

// PartnerTag returns the tag of the business partner list of cardType (C or S)
func PartnerTag(cardType string) string {
	return "business-partners:" + cardType
}

// ErrCacheMiss is returned by Get when the key is absent or expired
var ErrCacheMiss = errors.New("cache: miss")

// DefaultTTL is used when a cache is built without an explicit lifetime
const DefaultTTL = 5 * time.Minute

// Invalidator drops every cached value carrying one of the tags
type Invalidator interface {
	InvalidateTags(ctx context.Context, tags ...string) error
}

// TagCache is a read-through cache whose entries are grouped by tags
type TagCache interface {
	Invalidator
	// Get decodes the value stored under key into dest or returns ErrCacheMiss
	Get(ctx context.Context, key string, dest any) error
	// Set stores value under key and registers it with tags
	Set(ctx context.Context, key string, value any, tags ...string) error
}

// GetOrLoad returns the cached value for key, calling load and caching its
// result on a miss. Cache failures are logged and never fail the read.
func GetOrLoad[T any](ctx context.Context, c TagCache, logger *zap.Logger, key string, tags []string, load func(context.Context) (T, error)) (T, error) {
	var cached T
	err := c.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	if err := c.Set(ctx, key, value, tags...); err != nil {
		logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
	return value, nil
}

// InvalidateQuietly drops tags and logs instead of failing. Invalidation is
// a signal to readers; the write it follows has already committed.
func InvalidateQuietly(ctx context.Context, inv Invalidator, logger *zap.Logger, tags ...string) {
	if inv == nil || len(tags) == 0 {
		return
	}
	if err := inv.InvalidateTags(ctx, tags...); err != nil {
		logger.Warn("Cache invalidation failed", zap.Strings("tags", tags), zap.Error(err))
	}
}

// NopInvalidator ignores every invalidation
type NopInvalidator struct{}

// InvalidateTags implements Invalidator
func (NopInvalidator) InvalidateTags(context.Context, ...string) error { return nil }
