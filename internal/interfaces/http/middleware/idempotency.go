package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/erp/portal/internal/infrastructure/cache"
	"github.com/erp/portal/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// IdempotencyKeyHeader names a request so that its retries are refused
	IdempotencyKeyHeader = "Idempotency-Key"

	maxIdempotencyKeyLength = 128
)

// IdempotencyConfig configures the Idempotency middleware
type IdempotencyConfig struct {
	Store  cache.IdempotencyStore
	TTL    time.Duration
	Logger *zap.Logger
}

// Idempotency refuses a second request carrying the same Idempotency-Key
// from the same actor on the same path. Requests without the header pass
// through. A claim is released when the handler answers with a 5xx so the
// client can retry; when the store itself fails the request is let through.
func Idempotency(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeBadRequest,
				"Idempotency-Key is too long",
				GetRequestID(c),
			))
			return
		}

		scoped := c.GetString(ActorKey) + ":" + c.Request.URL.Path + ":" + key
		ctx := c.Request.Context()
		fresh, err := cfg.Store.Claim(ctx, scoped, cfg.TTL)
		if err != nil {
			log.Warn("Idempotency store unavailable, accepting request",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if !fresh {
			c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeDuplicateRequest,
				"This request was already submitted",
				GetRequestID(c),
			))
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusInternalServerError {
			if err := cfg.Store.Release(ctx, scoped); err != nil {
				log.Warn("Failed to release idempotency key", zap.Error(err))
			}
		}
	}
}
