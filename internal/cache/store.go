// Package cache implements the TTL-keyed payload store that fronts every
// dataset the service computes. Reads and writes go to a primary backend
// (Redis in production) with bounded retries; when the backend is unreachable
// the store degrades to a process-local bounded map with identical TTL
// semantics, so callers never observe a backend failure.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/arbilo/arbilod/internal/domain"
	"github.com/arbilo/arbilod/internal/metrics"
)

// Backend is the primary key-value store. Get returns domain.ErrNotFound for
// missing or expired keys; any other error is treated as a backend outage.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config holds the store's retry policy and local-fallback bound.
type Config struct {
	MaxRetries    int           // attempts per backend operation
	RetryBackoff  time.Duration // base backoff, doubled per attempt
	MaxLocalItems int           // bound on the fallback map
}

// localEntry is one fallback-map slot.
type localEntry struct {
	payload   domain.CachedPayload
	expiresAt time.Time
}

// Store implements domain.SnapshotCache.
type Store struct {
	backend Backend
	cfg     Config
	logger  *slog.Logger

	sf singleflight.Group

	mu    sync.RWMutex
	local map[string]localEntry

	now func() time.Time
}

// NewStore creates a Store over the given backend. A nil backend is allowed;
// the store then runs purely on the local map.
func NewStore(backend Backend, cfg Config, logger *slog.Logger) *Store {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	if cfg.MaxLocalItems <= 0 {
		cfg.MaxLocalItems = 64
	}
	return &Store{
		backend: backend,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "cache")),
		local:   make(map[string]localEntry),
		now:     time.Now,
	}
}

// GetOrCompute returns the unexpired entry for key verbatim when one exists.
// On a miss it invokes compute exactly once even under concurrent callers
// (later callers await the first), stores the result, and returns it. Backend
// failures are absorbed by the local fallback; the only error surfaced to the
// caller is a compute failure with no cached data to fall back on.
func (s *Store) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute domain.ComputeFunc) (domain.CachedPayload, error) {
	if p, ok := s.lookup(ctx, key); ok {
		return p, nil
	}

	v, err, _ := s.sf.Do(key, func() (any, error) {
		// A concurrent caller may have filled the key while we waited.
		if p, ok := s.lookup(ctx, key); ok {
			return p, nil
		}
		data, err := compute(ctx)
		if err != nil {
			return nil, fmt.Errorf("cache: compute %s: %w", key, err)
		}
		p, err := s.Put(ctx, key, data, ttl)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return domain.CachedPayload{}, err
	}
	return v.(domain.CachedPayload), nil
}

// Put unconditionally overwrites the entry for key with a fresh payload. It
// never fails on backend outages; the entry is then held locally instead.
func (s *Store) Put(ctx context.Context, key string, data json.RawMessage, ttl time.Duration) (domain.CachedPayload, error) {
	now := s.now()
	p := domain.CachedPayload{
		Key:           key,
		Data:          data,
		CreatedAt:     now,
		TTLSeconds:    int(ttl / time.Second),
		NextRefreshAt: now.Add(ttl),
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return domain.CachedPayload{}, fmt.Errorf("cache: marshal %s: %w", key, err)
	}

	if err := s.backendSet(ctx, key, raw, ttl); err != nil {
		s.logger.WarnContext(ctx, "backend write failed, holding entry locally",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		metrics.CacheFallbacks.Inc()
	}
	// The local map doubles as the fallback read path, so always mirror.
	s.storeLocal(key, p, ttl)
	return p, nil
}

// lookup reads key from the backend, falling back to the local map when the
// backend errors. Missing and expired entries return ok=false.
func (s *Store) lookup(ctx context.Context, key string) (domain.CachedPayload, bool) {
	raw, err := s.backendGet(ctx, key)
	switch {
	case err == nil:
		var p domain.CachedPayload
		if uerr := json.Unmarshal(raw, &p); uerr != nil {
			s.logger.Warn("corrupt cache entry dropped", slog.String("key", key))
			return domain.CachedPayload{}, false
		}
		return p, true
	case errors.Is(err, domain.ErrNotFound):
		return domain.CachedPayload{}, false
	default:
		metrics.CacheFallbacks.Inc()
		s.logger.WarnContext(ctx, "backend read failed, trying local fallback",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return s.loadLocal(key)
	}
}

func (s *Store) backendGet(ctx context.Context, key string) ([]byte, error) {
	if s.backend == nil {
		return nil, fmt.Errorf("no backend: %w", domain.ErrCacheBackend)
	}
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		raw, err := s.backend.Get(ctx, key)
		if err == nil || errors.Is(err, domain.ErrNotFound) {
			return raw, err
		}
		lastErr = err
		if attempt < s.cfg.MaxRetries {
			if serr := sleepCtx(ctx, s.cfg.RetryBackoff<<(attempt-1)); serr != nil {
				break
			}
		}
	}
	return nil, fmt.Errorf("%w: %w", domain.ErrCacheBackend, lastErr)
}

func (s *Store) backendSet(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.backend == nil {
		return fmt.Errorf("no backend: %w", domain.ErrCacheBackend)
	}
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		if err := s.backend.Set(ctx, key, value, ttl); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < s.cfg.MaxRetries {
			if serr := sleepCtx(ctx, s.cfg.RetryBackoff<<(attempt-1)); serr != nil {
				break
			}
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrCacheBackend, lastErr)
}

func (s *Store) storeLocal(key string, p domain.CachedPayload, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if len(s.local) >= s.cfg.MaxLocalItems {
		s.evictLocked(now)
	}
	s.local[key] = localEntry{payload: p, expiresAt: now.Add(ttl)}
}

func (s *Store) loadLocal(key string) (domain.CachedPayload, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.local[key]
	if !ok || s.now().After(e.expiresAt) {
		return domain.CachedPayload{}, false
	}
	return e.payload, true
}

// evictLocked drops expired entries, then the oldest live one if the map is
// still at capacity. Caller holds the write lock.
func (s *Store) evictLocked(now time.Time) {
	for k, e := range s.local {
		if now.After(e.expiresAt) {
			delete(s.local, k)
		}
	}
	if len(s.local) < s.cfg.MaxLocalItems {
		return
	}
	var oldestKey string
	var oldestAt time.Time
	for k, e := range s.local {
		if oldestKey == "" || e.payload.CreatedAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.payload.CreatedAt
		}
	}
	if oldestKey != "" {
		delete(s.local, oldestKey)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ domain.SnapshotCache = (*Store)(nil)
