package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/erp/portal/internal/infrastructure/cache"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type brokenStore struct{}

func (brokenStore) Claim(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}
func (brokenStore) Release(context.Context, string) error { return nil }
func (brokenStore) Close() error                          { return nil }

func idempotentRouter(store cache.IdempotencyStore, status *int) *gin.Engine {
	router := gin.New()
	router.Use(HeaderIdentity(), Idempotency(IdempotencyConfig{Store: store, TTL: time.Hour}))
	router.POST("/imports/:entity/batches", func(c *gin.Context) { c.Status(*status) })
	return router
}

func sendBatch(router http.Handler, path, actor, key string) int {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set(ActorHeader, actor)
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec.Code
}

func TestIdempotency(t *testing.T) {
	store := cache.NewMemoryIdempotencyStore()
	defer store.Close()
	status := http.StatusOK
	router := idempotentRouter(store, &status)

	t.Run("a retried key is refused", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, sendBatch(router, "/imports/items/batches", "jdoe", "chunk-1"))
		assert.Equal(t, http.StatusConflict, sendBatch(router, "/imports/items/batches", "jdoe", "chunk-1"))
	})

	t.Run("keys are scoped by actor and path", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, sendBatch(router, "/imports/items/batches", "alice", "chunk-1"))
		assert.Equal(t, http.StatusOK, sendBatch(router, "/imports/requisitions/batches", "jdoe", "chunk-1"))
	})

	t.Run("requests without a key always pass", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, sendBatch(router, "/imports/items/batches", "jdoe", ""))
		assert.Equal(t, http.StatusOK, sendBatch(router, "/imports/items/batches", "jdoe", ""))
	})

	t.Run("server errors release the key", func(t *testing.T) {
		status = http.StatusInternalServerError
		assert.Equal(t, http.StatusInternalServerError, sendBatch(router, "/imports/items/batches", "jdoe", "chunk-2"))
		status = http.StatusOK
		assert.Equal(t, http.StatusOK, sendBatch(router, "/imports/items/batches", "jdoe", "chunk-2"))
	})

	t.Run("overlong keys are rejected", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, sendBatch(router, "/imports/items/batches", "jdoe", strings.Repeat("k", 200)))
	})
}

func TestIdempotency_StoreFailureLetsRequestsThrough(t *testing.T) {
	status := http.StatusOK
	router := idempotentRouter(brokenStore{}, &status)

	assert.Equal(t, http.StatusOK, sendBatch(router, "/imports/items/batches", "jdoe", "chunk-1"))
	assert.Equal(t, http.StatusOK, sendBatch(router, "/imports/items/batches", "jdoe", "chunk-1"))
}
