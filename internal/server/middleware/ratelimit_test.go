package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeLimiter counts requests per key in memory.
type fakeLimiter struct {
	counts map[string]int
	err    error
}

func (f *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.counts == nil {
		f.counts = make(map[string]int)
	}
	f.counts[key]++
	return f.counts[key] <= limit, nil
}

func TestRateLimitAllowsWithinLimit(t *testing.T) {
	limiter := &fakeLimiter{}
	h := RateLimit(limiter, 2, time.Minute)(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestRateLimitFailsOpenOnLimiterError(t *testing.T) {
	limiter := &fakeLimiter{err: errors.New("redis down")}
	h := RateLimit(limiter, 1, time.Minute)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitDisabledWithoutLimiter(t *testing.T) {
	h := RateLimit(nil, 1, time.Minute)(okHandler())

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimitKeysOnForwardedFor(t *testing.T) {
	limiter := &fakeLimiter{}
	h := RateLimit(limiter, 1, time.Minute)(okHandler())

	a := httptest.NewRequest(http.MethodGet, "/", nil)
	a.Header.Set("X-Forwarded-For", "10.0.0.1, 192.168.1.1")
	b := httptest.NewRequest(http.MethodGet, "/", nil)
	b.Header.Set("X-Forwarded-For", "10.0.0.2")

	for _, req := range []*http.Request{a, b} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, 1, limiter.counts["api:10.0.0.1"])
	assert.Equal(t, 1, limiter.counts["api:10.0.0.2"])
}
