package middleware

import (
	"context"
	"strings"

	"github.com/erp/portal/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// Profiling labels requests with their route and method so CPU profiles
// can be split by endpoint. Paths under skipPrefixes are not labeled.
func Profiling(enabled bool, skipPrefixes ...string) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		for _, prefix := range skipPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		telemetry.WithProfilingLabels(c.Request.Context(), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		}, "route", route, "method", c.Request.Method, "controller", controllerOf(route))
	}
}

// controllerOf returns the first path segment after the API version,
// e.g. "imports" for /api/v1/imports/:entity/batches
func controllerOf(route string) string {
	segments := strings.Split(strings.Trim(route, "/"), "/")
	for _, s := range segments {
		if s == "api" || (len(s) > 1 && s[0] == 'v' && strings.Trim(s[1:], "0123456789") == "") {
			continue
		}
		if s == "" || strings.HasPrefix(s, ":") {
			break
		}
		return s
	}
	return "unknown"
}
