package cache

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"
)

// Subscriber delivers tags invalidated by other instances
type Subscriber interface {
	Subscribe(ctx context.Context, callback func(tags []string)) error
}

// TieredTagCache keeps a short-lived local layer in front of a shared one.
// Invalidations received from peers drop the matching local entries.
type TieredTagCache struct {
	l1         *MemoryTagCache
	l2         TagCache
	subscriber Subscriber
	logger     *zap.Logger

	l1Hits atomic.Int64
	l2Hits atomic.Int64
	misses atomic.Int64
}

// TieredStats are hit counters for monitoring
type TieredStats struct {
	L1Hits int64 `json:"l1_hits"`
	L2Hits int64 `json:"l2_hits"`
	Misses int64 `json:"misses"`
}

// NewTieredTagCache creates a tiered cache. subscriber may be nil.
func NewTieredTagCache(l1 *MemoryTagCache, l2 TagCache, subscriber Subscriber, logger *zap.Logger) *TieredTagCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TieredTagCache{l1: l1, l2: l2, subscriber: subscriber, logger: logger}
}

// StartInvalidationSubscription blocks while relaying peer invalidations to the local layer
func (c *TieredTagCache) StartInvalidationSubscription(ctx context.Context) error {
	if c.subscriber == nil {
		return nil
	}
	return c.subscriber.Subscribe(ctx, func(tags []string) {
		if err := c.l1.InvalidateTags(context.Background(), tags...); err != nil {
			c.logger.Error("Failed to invalidate local cache", zap.Strings("tags", tags), zap.Error(err))
			return
		}
		c.logger.Debug("Invalidated local cache", zap.Strings("tags", tags))
	})
}

// Get implements TagCache (L1 then L2)
func (c *TieredTagCache) Get(ctx context.Context, key string, dest any) error {
	err := c.l1.Get(ctx, key, dest)
	if err == nil {
		c.l1Hits.Add(1)
		return nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("L1 cache error", zap.String("key", key), zap.Error(err))
	}

	if err := c.l2.Get(ctx, key, dest); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			c.misses.Add(1)
		}
		return err
	}
	// L2 hits are not copied into L1: the tags of the entry are only
	// known to the instance that wrote it.
	c.l2Hits.Add(1)
	return nil
}

// Set implements TagCache (both layers)
func (c *TieredTagCache) Set(ctx context.Context, key string, value any, tags ...string) error {
	if err := c.l1.Set(ctx, key, value, tags...); err != nil {
		c.logger.Warn("Failed to set L1 cache", zap.String("key", key), zap.Error(err))
	}
	return c.l2.Set(ctx, key, value, tags...)
}

// InvalidateTags implements Invalidator (both layers)
func (c *TieredTagCache) InvalidateTags(ctx context.Context, tags ...string) error {
	if err := c.l1.InvalidateTags(ctx, tags...); err != nil {
		c.logger.Warn("Failed to invalidate L1 cache", zap.Strings("tags", tags), zap.Error(err))
	}
	return c.l2.InvalidateTags(ctx, tags...)
}

// Stats returns the hit counters
func (c *TieredTagCache) Stats() TieredStats {
	return TieredStats{
		L1Hits: c.l1Hits.Load(),
		L2Hits: c.l2Hits.Load(),
		Misses: c.misses.Load(),
	}
}

var _ TagCache = (*TieredTagCache)(nil)
