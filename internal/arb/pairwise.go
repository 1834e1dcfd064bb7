// Package arb derives arbitrage opportunities from market snapshots: the
// cross-venue pairwise round trip, the per-coin spread tracker, and the
// single-venue triangular cycle.
package arb

import (
	"log/slog"
	"math"
	"sort"

	"github.com/arbilo/arbilod/internal/domain"
)

// PairwiseConfig configures the cross-venue pairwise engine.
type PairwiseConfig struct {
	Coins     []string // coin universe; unordered pairs are drawn from it
	Venues    []string // venue iteration order; first encountered wins ties
	MinVolume float64  // per-leg 24h quote-volume floor
	TopN      int      // result cap after sorting by profit
}

// Pairwise finds the best two-coin, two-venue round trips in a snapshot.
//
// Venue selection is keyed on coin A's price only: the venue where A is
// cheapest and the venue where it is dearest. This is an O(venues) sweep,
// not a joint optimization over both coins' prices, and can under-report
// round trips where coin B's skew dominates.
type Pairwise struct {
	cfg    PairwiseConfig
	logger *slog.Logger
}

// NewPairwise creates a pairwise engine.
func NewPairwise(cfg PairwiseConfig, logger *slog.Logger) *Pairwise {
	if cfg.TopN <= 0 {
		cfg.TopN = 20
	}
	return &Pairwise{cfg: cfg, logger: logger.With(slog.String("engine", "pairwise"))}
}

// Detect evaluates every unordered coin pair against the snapshot and returns
// the profitable round trips, sorted by profit descending and capped at TopN.
// Every emitted opportunity satisfies BuyVenue != SellVenue and Profit > 0.
func (p *Pairwise) Detect(snap domain.MarketSnapshot, investment float64) []domain.PairwiseOpportunity {
	if len(snap) == 0 {
		p.logger.Warn("empty snapshot, no pairwise opportunities")
		return nil
	}

	var out []domain.PairwiseOpportunity
	for i := 0; i < len(p.cfg.Coins); i++ {
		for j := i + 1; j < len(p.cfg.Coins); j++ {
			coinA, coinB := p.cfg.Coins[i], p.cfg.Coins[j]
			if opp, ok := p.evalPair(snap, coinA, coinB, investment); ok {
				out = append(out, opp)
			}
		}
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].Profit > out[b].Profit })
	if len(out) > p.cfg.TopN {
		out = out[:p.cfg.TopN]
	}
	return out
}

// evalPair picks the venues where coin A is cheapest and dearest among the
// venues quoting both coins, then runs the four-leg round trip arithmetic.
func (p *Pairwise) evalPair(snap domain.MarketSnapshot, coinA, coinB string, investment float64) (domain.PairwiseOpportunity, bool) {
	type quote struct {
		venue            string
		priceA, priceB   float64
		volumeA, volumeB float64
	}

	var quotes []quote
	for _, venueID := range p.cfg.Venues {
		tA, okA := snap.Ticker(venueID, coinA)
		tB, okB := snap.Ticker(venueID, coinB)
		if !okA || !okB || tA.Price <= 0 || tB.Price <= 0 {
			continue
		}
		if tA.QuoteVolume < p.cfg.MinVolume || tB.QuoteVolume < p.cfg.MinVolume {
			continue
		}
		quotes = append(quotes, quote{
			venue:   venueID,
			priceA:  tA.Price,
			priceB:  tB.Price,
			volumeA: tA.QuoteVolume,
			volumeB: tB.QuoteVolume,
		})
	}
	if len(quotes) < 2 {
		return domain.PairwiseOpportunity{}, false
	}

	// First encountered wins ties, in configured venue order.
	minQ, maxQ := quotes[0], quotes[0]
	for _, q := range quotes[1:] {
		if q.priceA < minQ.priceA {
			minQ = q
		}
		if q.priceA > maxQ.priceA {
			maxQ = q
		}
	}
	if minQ.venue == maxQ.venue {
		return domain.PairwiseOpportunity{}, false
	}

	coinABought := investment / minQ.priceA
	proceedsAfterSellA := coinABought * maxQ.priceA
	coinBBought := proceedsAfterSellA / maxQ.priceB
	finalAmount := coinBBought * minQ.priceB

	profit := finalAmount - investment
	if profit <= 0 {
		return domain.PairwiseOpportunity{}, false
	}
	profitPercent := profit / investment * 100

	return domain.PairwiseOpportunity{
		Pair:          coinA + " / " + coinB,
		CoinA:         coinA,
		CoinB:         coinB,
		BuyVenue:      minQ.venue,
		SellVenue:     maxQ.venue,
		BuyPriceA:     round(minQ.priceA, 8),
		BuyPriceB:     round(minQ.priceB, 8),
		SellPriceA:    round(maxQ.priceA, 8),
		SellPriceB:    round(maxQ.priceB, 8),
		BuyVolumeA:    round(minQ.volumeA, 2),
		BuyVolumeB:    round(minQ.volumeB, 2),
		SellVolumeA:   round(maxQ.volumeA, 2),
		SellVolumeB:   round(maxQ.volumeB, 2),
		Profit:        round(profit, 2),
		ProfitPercent: round(profitPercent, 2),
		Investment:    investment,
	}, true
}

// round truncates f to n decimal places, half away from zero.
func round(f float64, n int) float64 {
	pow := math.Pow(10, float64(n))
	return math.Round(f*pow) / pow
}
