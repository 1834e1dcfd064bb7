// Package aggregate fans ticker fetches out across the venue x coin matrix
// and assembles the market snapshot the arbitrage engines consume.
package aggregate

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/arbilo/arbilod/internal/domain"
)

// TickerFetcher is the slice of the venue gateway the aggregator needs.
type TickerFetcher interface {
	HasPair(venueID, symbol string) bool
	FetchTicker(ctx context.Context, venueID, symbol string) (domain.Ticker, error)
}

// Aggregator builds MarketSnapshots. Quote currency and the minimum 24h
// quote-volume floor are fixed at construction.
type Aggregator struct {
	fetcher   TickerFetcher
	quote     string
	minVolume float64
	logger    *slog.Logger
}

// New creates an Aggregator. Tickers whose quote volume is below minVolume
// are dropped from every snapshot.
func New(fetcher TickerFetcher, quote string, minVolume float64, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		fetcher:   fetcher,
		quote:     quote,
		minVolume: minVolume,
		logger:    logger.With(slog.String("component", "aggregator")),
	}
}

// Snapshot issues one ticker fetch per (venue, coin) pair concurrently, waits
// for every outcome, and returns a snapshot built only from tickers that
// survived the volume floor. Individual failures leave gaps, never errors:
// a dead venue or unlisted coin is simply absent from the result.
func (a *Aggregator) Snapshot(ctx context.Context, venues, coins []string) domain.MarketSnapshot {
	type result struct {
		venue  string
		coin   string
		ticker domain.Ticker
	}

	results := make(chan result, len(venues)*len(coins))
	var wg sync.WaitGroup

	for _, venueID := range venues {
		for _, coin := range coins {
			symbol := coin + "/" + a.quote
			if !a.fetcher.HasPair(venueID, symbol) {
				continue
			}
			wg.Add(1)
			go func(venueID, coin, symbol string) {
				defer wg.Done()
				t, err := a.fetcher.FetchTicker(ctx, venueID, symbol)
				if err != nil {
					if !errors.Is(err, domain.ErrPairUnsupported) {
						a.logger.DebugContext(ctx, "ticker dropped",
							slog.String("venue", venueID),
							slog.String("symbol", symbol),
							slog.String("error", err.Error()),
						)
					}
					return
				}
				if t.Price <= 0 {
					return
				}
				if t.QuoteVolume < a.minVolume {
					a.logger.DebugContext(ctx, "ticker below volume floor",
						slog.String("venue", venueID),
						slog.String("symbol", symbol),
						slog.Float64("quote_volume", t.QuoteVolume),
					)
					return
				}
				results <- result{venue: venueID, coin: coin, ticker: t}
			}(venueID, coin, symbol)
		}
	}

	wg.Wait()
	close(results)

	snap := make(domain.MarketSnapshot)
	for r := range results {
		if snap[r.venue] == nil {
			snap[r.venue] = make(map[string]domain.Ticker)
		}
		snap[r.venue][r.coin] = r.ticker
	}

	a.logger.InfoContext(ctx, "snapshot assembled",
		slog.Int("venues", len(snap)),
		slog.Int("requested_venues", len(venues)),
	)
	return snap
}
