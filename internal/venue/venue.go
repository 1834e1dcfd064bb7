// Package venue owns one market-data client per trading venue. Clients expose
// a small capability interface (load markets, fetch ticker, fetch best
// bid/ask) and are constructed through a static registry so new venues are
// added by registering an implementation, not by runtime lookup.
package venue

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/arbilo/arbilod/internal/domain"
)

// Client is the per-venue market-data capability interface. Symbols are
// canonical "BASE/QUOTE" pairs (e.g. "BTC/USDT"); each implementation maps
// them to its native format.
type Client interface {
	// Name returns the venue identifier, e.g. "binance".
	Name() string
	// LoadMarkets fetches the venue's tradable-symbol metadata. It must be
	// called once before HasPair or any fetch.
	LoadMarkets(ctx context.Context) error
	// HasPair reports whether the venue lists the canonical symbol.
	HasPair(symbol string) bool
	// FetchTicker returns the last price and 24h quote volume for a symbol.
	FetchTicker(ctx context.Context, symbol string) (domain.Ticker, error)
	// FetchBookTicker returns the best bid/ask for a symbol, with the last
	// trade price available as a fallback.
	FetchBookTicker(ctx context.Context, symbol string) (domain.BookTicker, error)
}

// Factory constructs a Client for one venue.
type Factory func() Client

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a venue factory under the given identifier. It is called from
// the init function of each client implementation.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// New constructs the client registered under name.
func New(name string) (Client, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("venue %q not registered: %w", name, domain.ErrVenueUnavailable)
	}
	return f(), nil
}

// Registered returns all registered venue identifiers, sorted.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
