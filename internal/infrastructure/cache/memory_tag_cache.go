package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	tags      []string
	expiresAt time.Time
}

// MemoryTagCache implements TagCache in process memory. Values are stored
// JSON encoded so callers never share state with the cache.
// It is used in tests, as the L1 layer of TieredTagCache and when Redis is disabled.
type MemoryTagCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
	tags    map[string]map[string]struct{}
	now     func() time.Time
}

// NewMemoryTagCache creates an in-memory tag cache
func NewMemoryTagCache(ttl time.Duration) *MemoryTagCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryTagCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		tags:    make(map[string]map[string]struct{}),
		now:     time.Now,
	}
}

// Get implements TagCache
func (c *MemoryTagCache) Get(_ context.Context, key string, dest any) error {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expiresAt) {
		return ErrCacheMiss
	}
	if err := json.Unmarshal(e.data, dest); err != nil {
		return fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return nil
}

// Set implements TagCache
func (c *MemoryTagCache) Set(_ context.Context, key string, value any, tags ...string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked(key)
	c.entries[key] = memoryEntry{data: data, tags: tags, expiresAt: c.now().Add(c.ttl)}
	for _, tag := range tags {
		keys, ok := c.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			c.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}
	return nil
}

// InvalidateTags implements Invalidator
func (c *MemoryTagCache) InvalidateTags(_ context.Context, tags ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tag := range tags {
		for key := range c.tags[tag] {
			c.dropLocked(key)
		}
		delete(c.tags, tag)
	}
	return nil
}

// Len returns the number of live entries
func (c *MemoryTagCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	now := c.now()
	for _, e := range c.entries {
		if !now.After(e.expiresAt) {
			n++
		}
	}
	return n
}

func (c *MemoryTagCache) dropLocked(key string) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	delete(c.entries, key)
	for _, tag := range e.tags {
		if keys, ok := c.tags[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.tags, tag)
			}
		}
	}
}

var _ TagCache = (*MemoryTagCache)(nil)
