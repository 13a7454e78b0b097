package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Window(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	ok, left := rl.Allow("jdoe")
	assert.True(t, ok)
	assert.Equal(t, 1, left)
	ok, _ = rl.Allow("jdoe")
	assert.True(t, ok)
	ok, left = rl.Allow("jdoe")
	assert.False(t, ok)
	assert.Equal(t, 0, left)

	ok, _ = rl.Allow("alice")
	assert.True(t, ok, "keys are independent")

	now = now.Add(time.Minute)
	ok, _ = rl.Allow("jdoe")
	assert.True(t, ok, "a new window starts after the period")
	assert.Len(t, rl.windows, 1, "expired windows are pruned")
}

func TestRateLimit_Middleware(t *testing.T) {
	router := gin.New()
	router.Use(HeaderIdentity(), RateLimit(NewRateLimiter(1, time.Hour)))
	router.POST("/sync/items", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	send := func(actor string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/sync/items", nil)
		if actor != "" {
			req.Header.Set(ActorHeader, actor)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	first := send("jdoe")
	assert.Equal(t, http.StatusAccepted, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusTooManyRequests, send("jdoe").Code)
	assert.Equal(t, http.StatusAccepted, send("alice").Code)
	assert.Equal(t, http.StatusAccepted, send("").Code)
	assert.Equal(t, http.StatusTooManyRequests, send("").Code, "anonymous callers share their IP's budget")
}
