package aggregate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbilo/arbilod/internal/domain"
)

// fakeFetcher serves canned tickers keyed by "venue|symbol".
type fakeFetcher struct {
	tickers map[string]domain.Ticker
	fail    map[string]error
}

func (f *fakeFetcher) HasPair(venueID, symbol string) bool {
	_, ok := f.tickers[venueID+"|"+symbol]
	if !ok {
		_, ok = f.fail[venueID+"|"+symbol]
	}
	return ok
}

func (f *fakeFetcher) FetchTicker(ctx context.Context, venueID, symbol string) (domain.Ticker, error) {
	key := venueID + "|" + symbol
	if err, ok := f.fail[key]; ok {
		return domain.Ticker{}, err
	}
	return f.tickers[key], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSnapshotAssemblesSurvivingTickers(t *testing.T) {
	fetcher := &fakeFetcher{tickers: map[string]domain.Ticker{
		"alpha|BTC/USDT": {Venue: "alpha", Symbol: "BTC/USDT", Price: 100, QuoteVolume: 500000},
		"alpha|ETH/USDT": {Venue: "alpha", Symbol: "ETH/USDT", Price: 50, QuoteVolume: 300000},
		"beta|BTC/USDT":  {Venue: "beta", Symbol: "BTC/USDT", Price: 101, QuoteVolume: 400000},
	}}

	agg := New(fetcher, "USDT", 100000, testLogger())
	snap := agg.Snapshot(context.Background(), []string{"alpha", "beta"}, []string{"BTC", "ETH"})

	require.Len(t, snap, 2)
	tick, ok := snap.Ticker("alpha", "BTC")
	require.True(t, ok)
	assert.Equal(t, float64(100), tick.Price)

	_, ok = snap.Ticker("beta", "ETH")
	assert.False(t, ok, "beta does not list ETH")
}

func TestSnapshotDropsBelowVolumeFloor(t *testing.T) {
	fetcher := &fakeFetcher{tickers: map[string]domain.Ticker{
		"alpha|BTC/USDT": {Venue: "alpha", Symbol: "BTC/USDT", Price: 100, QuoteVolume: 99999},
	}}

	agg := New(fetcher, "USDT", 100000, testLogger())
	snap := agg.Snapshot(context.Background(), []string{"alpha"}, []string{"BTC"})

	assert.Empty(t, snap)
}

func TestSnapshotDropsNonPositivePrices(t *testing.T) {
	fetcher := &fakeFetcher{tickers: map[string]domain.Ticker{
		"alpha|BTC/USDT": {Venue: "alpha", Symbol: "BTC/USDT", Price: 0, QuoteVolume: 500000},
	}}

	agg := New(fetcher, "USDT", 100000, testLogger())
	snap := agg.Snapshot(context.Background(), []string{"alpha"}, []string{"BTC"})

	assert.Empty(t, snap)
}

func TestSnapshotFailureLeavesGapNotError(t *testing.T) {
	fetcher := &fakeFetcher{
		tickers: map[string]domain.Ticker{
			"alpha|BTC/USDT": {Venue: "alpha", Symbol: "BTC/USDT", Price: 100, QuoteVolume: 500000},
		},
		fail: map[string]error{
			"beta|BTC/USDT": errors.New("venue timeout"),
		},
	}

	agg := New(fetcher, "USDT", 100000, testLogger())
	snap := agg.Snapshot(context.Background(), []string{"alpha", "beta"}, []string{"BTC"})

	require.Len(t, snap, 1)
	_, ok := snap.Ticker("alpha", "BTC")
	assert.True(t, ok)
	_, ok = snap.Ticker("beta", "BTC")
	assert.False(t, ok)
}
