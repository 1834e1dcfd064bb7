package arb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbilo/arbilod/internal/domain"
)

func TestTrackSpreads(t *testing.T) {
	snap := snapWith(map[string]map[string][2]float64{
		"alpha": {"BTC": {100, 1000000}, "ETH": {50, 200000}},
		"beta":  {"BTC": {105, 800000}, "ETH": {50.5, 300000}},
		"gamma": {"BTC": {102, 900000}},
	})

	spreads := TrackSpreads(snap, []string{"BTC", "ETH", "SOL"})
	require.Len(t, spreads, 2)

	// BTC: 100 on alpha vs 105 on beta = 5%, the widest spread, listed first.
	btc := spreads[0]
	assert.Equal(t, "BTC", btc.Coin)
	assert.Equal(t, "beta", btc.HighestVenue)
	assert.Equal(t, "alpha", btc.LowestVenue)
	assert.Equal(t, float64(105), btc.HighestPrice)
	assert.Equal(t, float64(100), btc.LowestPrice)
	assert.InDelta(t, 5.0, btc.SpreadPercent, 0.001)

	eth := spreads[1]
	assert.Equal(t, "ETH", eth.Coin)
	assert.InDelta(t, 1.0, eth.SpreadPercent, 0.001)
}

func TestTrackSpreadsNeedsTwoVenues(t *testing.T) {
	snap := snapWith(map[string]map[string][2]float64{
		"alpha": {"BTC": {100, 1000000}},
	})

	assert.Empty(t, TrackSpreads(snap, []string{"BTC"}))
}

func TestTrackSpreadsIgnoresNonPositivePrices(t *testing.T) {
	snap := snapWith(map[string]map[string][2]float64{
		"alpha": {"BTC": {100, 1000000}},
		"beta":  {"BTC": {0, 1000000}},
	})

	assert.Empty(t, TrackSpreads(snap, []string{"BTC"}))
}

func TestTrackSpreadsEmptySnapshot(t *testing.T) {
	assert.Empty(t, TrackSpreads(domain.MarketSnapshot{}, []string{"BTC"}))
}
