package arb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbilo/arbilod/internal/domain"
)

// fakeBooks serves canned book tickers keyed by "venue|pair".
type fakeBooks struct {
	books map[string]domain.BookTicker
	fail  map[string]error
}

func (f *fakeBooks) HasPair(venueID, symbol string) bool {
	_, ok := f.books[venueID+"|"+symbol]
	return ok
}

func (f *fakeBooks) FetchBookTicker(ctx context.Context, venueID, symbol string) (domain.BookTicker, error) {
	key := venueID + "|" + symbol
	if err, ok := f.fail[key]; ok {
		return domain.BookTicker{}, err
	}
	bt, ok := f.books[key]
	if !ok {
		return domain.BookTicker{}, domain.ErrPairUnsupported
	}
	return bt, nil
}

func triConfig(venues ...string) TriangularConfig {
	return TriangularConfig{
		Venues:         venues,
		BaseCurrency:   "USDT",
		Coins:          []string{"BTC", "ETH"},
		StartingAmount: 1000,
		SetDelay:       time.Millisecond,
	}
}

func TestTriangularDetectPicksBetterPath(t *testing.T) {
	// Cross pair listed as ETH/BTC. Forward path: 1000 USDT -> 10 BTC at ask
	// 100 -> 25 ETH at cross ask 0.4 -> 1237.50 USDT at bid 49.5.
	fetcher := &fakeBooks{books: map[string]domain.BookTicker{
		"alpha|BTC/USDT": {Ask: 100, Bid: 99, Last: 99.5},
		"alpha|ETH/USDT": {Ask: 50, Bid: 49.5, Last: 49.8},
		"alpha|ETH/BTC":  {Ask: 0.4, Bid: 0.39, Last: 0.395},
	}}

	tri := NewTriangular(triConfig("alpha"), fetcher, testLogger())
	opps := tri.Detect(context.Background())
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, "alpha", opp.Venue)
	assert.Equal(t, "USDT", opp.BaseCurrency)
	assert.Equal(t, "USDT -> BTC -> ETH -> USDT", opp.Path)
	require.Len(t, opp.Legs, 3)
	assert.Equal(t, "BUY", opp.Legs[0].Action)
	assert.Equal(t, "BUY", opp.Legs[1].Action)
	assert.Equal(t, "SELL", opp.Legs[2].Action)
	assert.InDelta(t, 1237.50, opp.FinalAmount, 0.01)
	assert.InDelta(t, 237.50, opp.ProfitAmount, 0.01)
	assert.InDelta(t, 23.75, opp.ProfitPercent, 0.01)

	// Conservation: final amount equals starting amount scaled by the profit.
	assert.InDelta(t, opp.StartingAmount*(1+opp.ProfitPercent/100), opp.FinalAmount, 0.01)
}

func TestTriangularDetectReportsLossyCycles(t *testing.T) {
	// No positivity filter: a cycle that loses money is still reported.
	fetcher := &fakeBooks{books: map[string]domain.BookTicker{
		"alpha|BTC/USDT": {Ask: 100, Bid: 99, Last: 99.5},
		"alpha|ETH/USDT": {Ask: 50, Bid: 49.5, Last: 49.8},
		"alpha|ETH/BTC":  {Ask: 0.5, Bid: 0.49, Last: 0.495},
	}}

	tri := NewTriangular(triConfig("alpha"), fetcher, testLogger())
	opps := tri.Detect(context.Background())
	require.Len(t, opps, 1)

	// Forward path: 10 BTC -> 20 ETH -> 990 USDT (-1%). The swapped path is
	// worse (-2.98%), so the forward path is reported.
	assert.InDelta(t, -1.0, opps[0].ProfitPercent, 0.01)
	assert.Negative(t, opps[0].ProfitAmount)
}

func TestTriangularDetectSkipsSetMissingCrossPair(t *testing.T) {
	fetcher := &fakeBooks{books: map[string]domain.BookTicker{
		"alpha|BTC/USDT": {Ask: 100, Bid: 99, Last: 99.5},
		"alpha|ETH/USDT": {Ask: 50, Bid: 49.5, Last: 49.8},
	}}

	tri := NewTriangular(triConfig("alpha"), fetcher, testLogger())
	assert.Empty(t, tri.Detect(context.Background()))
}

func TestTriangularDetectSkipsFailedSetAndContinues(t *testing.T) {
	fetcher := &fakeBooks{
		books: map[string]domain.BookTicker{
			"alpha|BTC/USDT": {Ask: 100, Bid: 99, Last: 99.5},
			"alpha|ETH/USDT": {Ask: 50, Bid: 49.5, Last: 49.8},
			"alpha|ETH/BTC":  {Ask: 0.5, Bid: 0.49, Last: 0.495},
			"beta|BTC/USDT":  {Ask: 100, Bid: 99, Last: 99.5},
			"beta|ETH/USDT":  {Ask: 50, Bid: 49.5, Last: 49.8},
			"beta|ETH/BTC":   {Ask: 0.4, Bid: 0.39, Last: 0.395},
		},
		fail: map[string]error{
			"alpha|BTC/USDT": errors.New("venue timeout"),
		},
	}

	tri := NewTriangular(triConfig("alpha", "beta"), fetcher, testLogger())
	opps := tri.Detect(context.Background())
	require.Len(t, opps, 1)
	assert.Equal(t, "beta", opps[0].Venue)
}

func TestTriangularWalkPathFallsBackToLastPrice(t *testing.T) {
	// Empty ask sides fall back to the last trade price on buys.
	fetcher := &fakeBooks{books: map[string]domain.BookTicker{
		"alpha|BTC/USDT": {Ask: 0, Bid: 99, Last: 100},
		"alpha|ETH/USDT": {Ask: 50, Bid: 49.5, Last: 49.8},
		"alpha|ETH/BTC":  {Ask: 0, Bid: 0.39, Last: 0.4},
	}}

	tri := NewTriangular(triConfig("alpha"), fetcher, testLogger())
	opps := tri.Detect(context.Background())
	require.Len(t, opps, 1)

	// Same arithmetic as the profitable case, priced off Last instead of Ask.
	assert.InDelta(t, 1237.50, opps[0].FinalAmount, 0.01)
}
