package domain

import "errors"

var (
	// ErrVenueUnavailable marks a venue whose market metadata could not be
	// loaded. The venue is excluded for the rest of the process lifetime.
	ErrVenueUnavailable = errors.New("venue unavailable")

	// ErrPairUnsupported marks a symbol that a venue does not list. Fetches
	// fail immediately without retrying.
	ErrPairUnsupported = errors.New("pair not supported on venue")

	// ErrFetchFailed marks a ticker fetch that exhausted its retry budget.
	ErrFetchFailed = errors.New("ticker fetch failed")

	// ErrCacheBackend marks a primary cache backend failure. Callers of the
	// cache store never observe it; the store falls back to local memory.
	ErrCacheBackend = errors.New("cache backend unreachable")

	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
)
