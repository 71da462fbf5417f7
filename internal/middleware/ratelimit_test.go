package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type fakeCounter struct {
	counts map[string]int64
	err    error
}

func (f *fakeCounter) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.counts == nil {
		f.counts = make(map[string]int64)
	}
	f.counts[key]++
	return f.counts[key], nil
}

func newLimitedRouter(counter Counter, max int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/submit", RateLimit(counter, RateLimitOptions{
		Prefix: "test", Max: max, Window: 10 * time.Minute,
	}), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func hit(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	if ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit(t *testing.T) {
	t.Run("allows up to max then rejects", func(t *testing.T) {
		r := newLimitedRouter(&fakeCounter{}, 5)

		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusOK, hit(r, "203.0.113.9").Code)
		}
		w := hit(r, "203.0.113.9")
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "600", w.Header().Get("Retry-After"))
	})

	t.Run("limits are per client address", func(t *testing.T) {
		r := newLimitedRouter(&fakeCounter{}, 1)

		assert.Equal(t, http.StatusOK, hit(r, "203.0.113.9").Code)
		assert.Equal(t, http.StatusTooManyRequests, hit(r, "203.0.113.9").Code)
		assert.Equal(t, http.StatusOK, hit(r, "203.0.113.10").Code)
	})

	t.Run("counter outage lets requests through", func(t *testing.T) {
		r := newLimitedRouter(&fakeCounter{err: errors.New("redis down")}, 1)

		for i := 0; i < 3; i++ {
			assert.Equal(t, http.StatusOK, hit(r, "203.0.113.9").Code)
		}
	})
}

func TestClientIP(t *testing.T) {
	ctxWith := func(fwd string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if fwd != "" {
			c.Request.Header.Set("X-Forwarded-For", fwd)
		}
		return c
	}

	assert.Equal(t, "203.0.113.9", ClientIP(ctxWith("203.0.113.9")))
	assert.Equal(t, "203.0.113.9", ClientIP(ctxWith("203.0.113.9, 10.0.0.1, 10.0.0.2")))
	assert.Equal(t, "203.0.113.9", ClientIP(ctxWith("  203.0.113.9 , 10.0.0.1")))
	assert.Equal(t, "unknown", ClientIP(ctxWith("")))
}
