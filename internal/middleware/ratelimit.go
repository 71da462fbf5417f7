package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sidestreets/core/internal/pkg/response"
)

// Counter increments a windowed counter key. The Redis client implements
// it in production; tests inject an in-memory fake.
type Counter interface {
	IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RateLimitOptions configures one fixed-window limit.
type RateLimitOptions struct {
	Prefix string // key namespace, e.g. "subscribe"
	Max    int64  // accepted requests per window
	Window time.Duration
}

// RateLimit enforces a fixed-window per-IP limit backed by a Counter.
// The window boundary is aligned to the wall clock, so the counter resets
// entirely at each boundary rather than sliding.
func RateLimit(counter Counter, opts RateLimitOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := ClientIP(c)

		windowStart := time.Now().Unix() / int64(opts.Window.Seconds()) * int64(opts.Window.Seconds())
		key := fmt.Sprintf("ss:rate_limit:%s:%s:%d", opts.Prefix, ip, windowStart)

		count, err := counter.IncrWindow(c.Request.Context(), key, opts.Window+time.Second)
		if err != nil {
			// Limiter store down: let the request through rather than
			// refusing every submission.
			c.Next()
			return
		}

		if count > opts.Max {
			response.TooManyRequests(c)
			return
		}

		c.Next()
	}
}

// ClientIP derives the caller address from the first entry of the
// forwarded-for header, or "unknown" if absent.
func ClientIP(c *gin.Context) string {
	fwd := c.GetHeader("X-Forwarded-For")
	if fwd == "" {
		return "unknown"
	}
	first := strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	if first == "" {
		return "unknown"
	}
	return first
}
