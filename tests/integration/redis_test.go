package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/portal/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// startRedis runs a throwaway Redis for the calling test
func startRedis(t *testing.T) cache.RedisConfig {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)
	return cache.RedisConfig{Host: host, Port: port.Int()}
}

func newInstanceCache(t *testing.T, ctx context.Context, cfg cache.RedisConfig) (*cache.TieredTagCache, *cache.RedisTagCache) {
	t.Helper()
	remote, err := cache.NewRedisTagCache(ctx, cfg, cache.WithTTL(time.Minute))
	require.NoError(t, err)
	t.Cleanup(func() { _ = remote.Close() })

	tiered := cache.NewTieredTagCache(cache.NewMemoryTagCache(time.Minute), remote, remote, zap.NewNop())
	go func() { _ = tiered.StartInvalidationSubscription(ctx) }()
	return tiered, remote
}

func TestRedisTagCache_InvalidationAcrossInstances(t *testing.T) {
	cfg := startRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, _ := newInstanceCache(t, ctx, cfg)
	b, _ := newInstanceCache(t, ctx, cfg)

	require.NoError(t, a.Set(ctx, "items:page:1", []string{"A-1", "A-2"}, cache.TagItems))

	var got []string
	require.NoError(t, b.Get(ctx, "items:page:1", &got), "b reads a's entry from Redis")
	assert.Equal(t, []string{"A-1", "A-2"}, got)

	require.NoError(t, b.Set(ctx, "items:page:2", []string{"A-3"}, cache.TagItems))

	// b's local copy only goes away through the Pub/Sub announcement. The
	// subscription starts asynchronously, so keep announcing until b hears it.
	assert.Eventually(t, func() bool {
		_ = a.InvalidateTags(ctx, cache.TagItems)
		var v []string
		return errors.Is(b.Get(ctx, "items:page:2", &v), cache.ErrCacheMiss)
	}, 10*time.Second, 100*time.Millisecond)

	assert.ErrorIs(t, b.Get(ctx, "items:page:1", &got), cache.ErrCacheMiss)
}

func TestRedisIdempotencyStore(t *testing.T) {
	cfg := startRedis(t)
	ctx := context.Background()

	_, remote := newInstanceCache(t, ctx, cfg)
	first := cache.NewRedisIdempotencyStore(remote.Client(), "")
	second := cache.NewRedisIdempotencyStore(remote.Client(), "")

	ok, err := first.Claim(ctx, "jdoe:/api/v1/imports/items/batches:chunk-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Claim(ctx, "jdoe:/api/v1/imports/items/batches:chunk-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "claims are shared between instances")

	require.NoError(t, first.Release(ctx, "jdoe:/api/v1/imports/items/batches:chunk-1"))
	ok, err = second.Claim(ctx, "jdoe:/api/v1/imports/items/batches:chunk-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
