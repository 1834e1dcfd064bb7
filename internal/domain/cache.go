package domain

import (
	"context"
	"encoding/json"
	"time"
)

// CachedPayload is the unit stored in the cache: one computed dataset plus the
// timing metadata clients use to schedule their next poll. One payload exists
// per logical dataset key and is fully overwritten on refresh.
type CachedPayload struct {
	Key           string          `json:"key"`
	Data          json.RawMessage `json:"data"`
	CreatedAt     time.Time       `json:"createdAt"`
	TTLSeconds    int             `json:"ttlSeconds"`
	NextRefreshAt time.Time       `json:"nextRefreshAt"`
}

// Envelope is the response shape shared by the HTTP query surface and the
// WebSocket push surface. Times are Unix milliseconds to match what frontend
// clients already consume.
type Envelope struct {
	Key                  string          `json:"key,omitempty"`
	Data                 json.RawMessage `json:"data"`
	LastRefreshTime      int64           `json:"lastRefreshTime"`
	TTL                  int             `json:"ttl"`
	NextRefreshTime      int64           `json:"nextRefreshTime"`
	TimeUntilNextRefresh int64           `json:"timeUntilNextRefresh"`
	ServerTime           int64           `json:"serverTime"`
}

// NewEnvelope builds an Envelope from a cached payload at the given wall time.
// TimeUntilNextRefresh is clamped at zero for stale entries.
func NewEnvelope(p CachedPayload, now time.Time) Envelope {
	until := p.NextRefreshAt.UnixMilli() - now.UnixMilli()
	if until < 0 {
		until = 0
	}
	return Envelope{
		Key:                  p.Key,
		Data:                 p.Data,
		LastRefreshTime:      p.CreatedAt.UnixMilli(),
		TTL:                  p.TTLSeconds,
		NextRefreshTime:      p.NextRefreshAt.UnixMilli(),
		TimeUntilNextRefresh: until,
		ServerTime:           now.UnixMilli(),
	}
}

// RateLimiter provides per-key request rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// ComputeFunc produces a fresh dataset payload for one cache key.
type ComputeFunc func(ctx context.Context) (json.RawMessage, error)

// SnapshotCache is the TTL-keyed store of last-computed payloads. GetOrCompute
// returns an unexpired entry verbatim when present, otherwise invokes compute
// and stores the result. Implementations must never surface backend failures
// to the caller; they degrade to locally held data instead.
type SnapshotCache interface {
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) (CachedPayload, error)
	// Put unconditionally overwrites the entry for key. It is the refresh
	// scheduler's write-through path.
	Put(ctx context.Context, key string, data json.RawMessage, ttl time.Duration) (CachedPayload, error)
}
