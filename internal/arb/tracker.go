package arb

import (
	"sort"

	"github.com/arbilo/arbilod/internal/domain"
)

// TrackSpreads computes the per-coin tracker view: for every coin quoted on
// at least two venues in the snapshot, the venues with the highest and lowest
// price and the spread between them as a percentage of the low price. Results
// are sorted by spread percent descending.
func TrackSpreads(snap domain.MarketSnapshot, coins []string) []domain.CoinSpread {
	venues := snap.Venues()
	sort.Strings(venues)

	var out []domain.CoinSpread
	for _, coin := range coins {
		var (
			count    int
			high, lo domain.Ticker
		)
		for _, venueID := range venues {
			t, ok := snap.Ticker(venueID, coin)
			if !ok || t.Price <= 0 {
				continue
			}
			count++
			if count == 1 {
				high, lo = t, t
				continue
			}
			if t.Price > high.Price {
				high = t
			}
			if t.Price < lo.Price {
				lo = t
			}
		}
		if count < 2 {
			continue
		}

		out = append(out, domain.CoinSpread{
			Coin:          coin,
			HighestVenue:  high.Venue,
			LowestVenue:   lo.Venue,
			HighestPrice:  high.Price,
			LowestPrice:   lo.Price,
			SpreadPercent: round((high.Price-lo.Price)/lo.Price*100, 2),
			HighestVolume: round(high.QuoteVolume, 2),
			LowestVolume:  round(lo.QuoteVolume, 2),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SpreadPercent > out[j].SpreadPercent
	})
	return out
}
