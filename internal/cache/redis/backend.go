package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arbilo/arbilod/internal/cache"
	"github.com/arbilo/arbilod/internal/domain"
)

// keyPrefix namespaces dataset payloads within the Redis keyspace.
const keyPrefix = "dataset:"

// Backend implements cache.Backend over plain GET/SET with server-side TTL
// expiry, so an entry past its TTL is a miss without any bookkeeping here.
type Backend struct {
	rdb *redis.Client
}

// NewBackend creates a Backend over the given Client.
func NewBackend(c *Client) *Backend {
	return &Backend{rdb: c.Underlying()}
}

// Get returns the payload bytes for key, or domain.ErrNotFound when the key
// is missing or expired.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := b.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return raw, nil
}

// Set stores the payload bytes under key with the given TTL.
func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.rdb.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ cache.Backend = (*Backend)(nil)
