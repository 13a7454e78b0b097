package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultKeyPrefix    = "portal:cache:"
	defaultChannel      = "portal:cache:invalidate"
	defaultCloseTimeout = 5 * time.Second
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// InvalidationMessage is published on the invalidation channel
type InvalidationMessage struct {
	Tags      []string `json:"tags"`
	Timestamp int64    `json:"timestamp"`
}

// RedisTagCache implements TagCache on Redis. Each tag is a set of cache
// keys; invalidating a tag deletes its members and announces the tags on a
// Pub/Sub channel so peers can drop their local layers.
type RedisTagCache struct {
	client     *redis.Client
	ownsClient bool
	keyPrefix  string
	channel    string
	ttl        time.Duration
	logger     *zap.Logger

	mu        sync.Mutex
	cancelFn  context.CancelFunc
	doneCh    chan struct{}
	doneOnce  sync.Once
	isRunning bool
}

// RedisTagCacheOption is a functional option for configuring the cache
type RedisTagCacheOption func(*RedisTagCache)

// WithChannel sets the Pub/Sub channel name
func WithChannel(channel string) RedisTagCacheOption {
	return func(c *RedisTagCache) {
		if channel != "" {
			c.channel = channel
		}
	}
}

// WithTTL sets the lifetime of cached values
func WithTTL(ttl time.Duration) RedisTagCacheOption {
	return func(c *RedisTagCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithKeyPrefix sets the prefix of every key written by the cache
func WithKeyPrefix(prefix string) RedisTagCacheOption {
	return func(c *RedisTagCache) {
		if prefix != "" {
			c.keyPrefix = prefix
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) RedisTagCacheOption {
	return func(c *RedisTagCache) {
		c.logger = logger
	}
}

// NewRedisTagCache connects to Redis and creates a tag cache that owns the client
func NewRedisTagCache(ctx context.Context, cfg RedisConfig, opts ...RedisTagCacheOption) (*RedisTagCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c := NewRedisTagCacheWithClient(client, opts...)
	c.ownsClient = true
	return c, nil
}

// NewRedisTagCacheWithClient creates a tag cache on a shared client. The caller keeps ownership of client.
func NewRedisTagCacheWithClient(client *redis.Client, opts ...RedisTagCacheOption) *RedisTagCache {
	c := &RedisTagCache{
		client:    client,
		keyPrefix: defaultKeyPrefix,
		channel:   defaultChannel,
		ttl:       DefaultTTL,
		logger:    zap.NewNop(),
		doneCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisTagCache) valueKey(key string) string { return c.keyPrefix + "v:" + key }
func (c *RedisTagCache) tagKey(tag string) string   { return c.keyPrefix + "t:" + tag }

// Get implements TagCache
func (c *RedisTagCache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, c.valueKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("cache: get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return nil
}

// Set implements TagCache. The value and its tag memberships are written in one MULTI block.
func (c *RedisTagCache) Set(ctx context.Context, key string, value any, tags ...string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	vk := c.valueKey(key)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, vk, data, c.ttl)
		for _, tag := range tags {
			tk := c.tagKey(tag)
			pipe.SAdd(ctx, tk, vk)
			pipe.Expire(ctx, tk, 2*c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// InvalidateTags implements Invalidator and notifies subscribers
func (c *RedisTagCache) InvalidateTags(ctx context.Context, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	for _, tag := range tags {
		tk := c.tagKey(tag)
		members, err := c.client.SMembers(ctx, tk).Result()
		if err != nil {
			return fmt.Errorf("cache: members of %s: %w", tag, err)
		}
		if err := c.client.Del(ctx, append(members, tk)...).Err(); err != nil {
			return fmt.Errorf("cache: invalidate %s: %w", tag, err)
		}
	}
	return c.publish(ctx, InvalidationMessage{Tags: tags, Timestamp: time.Now().UnixNano()})
}

func (c *RedisTagCache) publish(ctx context.Context, msg InvalidationMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := c.client.Publish(ctx, c.channel, data).Err(); err != nil {
		c.logger.Error("Failed to publish cache invalidation",
			zap.String("channel", c.channel),
			zap.Error(err))
		return fmt.Errorf("failed to publish message: %w", err)
	}
	c.logger.Debug("Published cache invalidation",
		zap.Strings("tags", msg.Tags),
		zap.String("channel", c.channel))
	return nil
}

// Subscribe listens for invalidations published by any instance and calls
// callback with their tags. It blocks until ctx is cancelled or Close is called.
func (c *RedisTagCache) Subscribe(ctx context.Context, callback func(tags []string)) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return fmt.Errorf("subscription already running")
	}
	c.isRunning = true
	subCtx, cancel := context.WithCancel(ctx)
	c.cancelFn = cancel
	c.mu.Unlock()

	stop := func() {
		c.mu.Lock()
		c.isRunning = false
		c.mu.Unlock()
		c.doneOnce.Do(func() { close(c.doneCh) })
	}

	pubsub := c.client.Subscribe(subCtx, c.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		stop()
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}
	c.logger.Info("Subscribed to cache invalidation channel", zap.String("channel", c.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			c.logger.Info("Cache invalidation subscription stopped")
			stop()
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				c.logger.Warn("Cache invalidation channel closed")
				stop()
				return nil
			}
			var m InvalidationMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				c.logger.Error("Failed to unmarshal cache invalidation",
					zap.String("payload", msg.Payload),
					zap.Error(err))
				continue
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						c.logger.Error("Panic in cache invalidation callback", zap.Any("panic", r))
					}
				}()
				callback(m.Tags)
			}()
		}
	}
}

// Close stops the subscription and closes the client when the cache owns it
func (c *RedisTagCache) Close() error {
	c.mu.Lock()
	cancelFn := c.cancelFn
	c.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
		select {
		case <-c.doneCh:
		case <-time.After(defaultCloseTimeout):
			c.logger.Warn("Timeout waiting for subscription to stop")
		}
	}
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}

// Client returns the underlying Redis client
func (c *RedisTagCache) Client() *redis.Client {
	return c.client
}

var _ TagCache = (*RedisTagCache)(nil)
