// Package domain defines the core data types and interfaces shared across the
// arbitrage service: tickers, market snapshots, opportunity records, and the
// cache payload shape served to API and push clients.
package domain

import "time"

// Ticker is a point-in-time price and volume quote for one symbol on one
// venue. QuoteVolume is the rolling 24h traded volume denominated in the
// quote asset. Tickers are immutable once produced.
type Ticker struct {
	Venue       string    `json:"venue"`
	Symbol      string    `json:"symbol"`
	Price       float64   `json:"price"`
	QuoteVolume float64   `json:"quoteVolume"`
	ObservedAt  time.Time `json:"observedAt"`
}

// BookTicker carries the best bid and ask for one symbol on one venue, with
// the last trade price as a fallback when a side of the book is empty.
type BookTicker struct {
	Venue  string  `json:"venue"`
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Last   float64 `json:"last"`
}

// AskOrLast returns the best ask, falling back to the last trade price when
// the ask side is empty.
func (bt BookTicker) AskOrLast() float64 {
	if bt.Ask > 0 {
		return bt.Ask
	}
	return bt.Last
}

// BidOrLast returns the best bid, falling back to the last trade price when
// the bid side is empty.
func (bt BookTicker) BidOrLast() float64 {
	if bt.Bid > 0 {
		return bt.Bid
	}
	return bt.Last
}

// MarketSnapshot maps venue -> coin -> Ticker for one aggregation cycle.
// A snapshot is assembled once, never mutated afterwards, and fully replaced
// (not merged) on the next cycle. A venue or coin that failed to produce a
// surviving ticker is simply absent.
type MarketSnapshot map[string]map[string]Ticker

// Venues returns the venue identifiers present in the snapshot.
func (s MarketSnapshot) Venues() []string {
	venues := make([]string, 0, len(s))
	for v := range s {
		venues = append(venues, v)
	}
	return venues
}

// Ticker looks up the ticker for a coin on a venue.
func (s MarketSnapshot) Ticker(venue, coin string) (Ticker, bool) {
	coins, ok := s[venue]
	if !ok {
		return Ticker{}, false
	}
	t, ok := coins[coin]
	return t, ok
}
