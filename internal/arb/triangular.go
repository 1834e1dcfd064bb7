package arb

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/arbilo/arbilod/internal/domain"
)

// BookFetcher is the slice of the venue gateway the triangular engine needs.
type BookFetcher interface {
	HasPair(venueID, symbol string) bool
	FetchBookTicker(ctx context.Context, venueID, symbol string) (domain.BookTicker, error)
}

// TriangularConfig configures the single-venue triangular engine.
type TriangularConfig struct {
	Venues         []string
	BaseCurrency   string   // cycle start and end currency, e.g. "USDT"
	Coins          []string // tradable coins drawn into (coinA, coinB) sets
	StartingAmount float64  // notional in base currency
	SetDelay       time.Duration // pause between sets to respect venue rate limits
}

// Triangular finds three-leg cycles through a base currency on one venue.
// Both profitable and lossy cycles are reported; the caller decides what to
// do with negative spreads.
type Triangular struct {
	cfg     TriangularConfig
	fetcher BookFetcher
	logger  *slog.Logger
}

// NewTriangular creates a triangular engine.
func NewTriangular(cfg TriangularConfig, fetcher BookFetcher, logger *slog.Logger) *Triangular {
	if cfg.StartingAmount <= 0 {
		cfg.StartingAmount = 1000
	}
	if cfg.SetDelay <= 0 {
		cfg.SetDelay = 100 * time.Millisecond
	}
	return &Triangular{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger.With(slog.String("engine", "triangular")),
	}
}

// triSet is one candidate cycle: base -> {coinA, coinB} -> base. crossPair is
// the coin-to-coin pair actually listed on the venue; reversed marks the
// "coinB/coinA" direction.
type triSet struct {
	venue     string
	coinA     string
	coinB     string
	crossPair string
	reversed  bool
}

// Detect evaluates every available (coinA, coinB) set on every configured
// venue and returns one result per set: whichever directional path yields the
// higher profit percent, regardless of sign. Per-set fetch failures are
// logged and skipped; results are sorted by profit percent descending.
func (t *Triangular) Detect(ctx context.Context) []domain.TriangularOpportunity {
	var out []domain.TriangularOpportunity

	for _, venueID := range t.cfg.Venues {
		for _, set := range t.availableSets(venueID) {
			opp, err := t.evalSet(ctx, set)
			if err != nil {
				t.logger.WarnContext(ctx, "triangular set skipped",
					slog.String("venue", set.venue),
					slog.String("coins", set.coinA+"/"+set.coinB),
					slog.String("error", err.Error()),
				)
			} else {
				out = append(out, opp)
			}

			select {
			case <-ctx.Done():
				return sortByProfit(out)
			case <-time.After(t.cfg.SetDelay):
			}
		}
	}

	return sortByProfit(out)
}

func sortByProfit(opps []domain.TriangularOpportunity) []domain.TriangularOpportunity {
	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].ProfitPercent > opps[j].ProfitPercent
	})
	return opps
}

// availableSets returns the coin sets whose three required pairs all exist on
// the venue. A set missing any pair is skipped entirely, no partial
// evaluation.
func (t *Triangular) availableSets(venueID string) []triSet {
	base := t.cfg.BaseCurrency
	var coins []string
	for _, c := range t.cfg.Coins {
		if c != base {
			coins = append(coins, c)
		}
	}

	var sets []triSet
	for i := 0; i < len(coins); i++ {
		for j := i + 1; j < len(coins); j++ {
			coinA, coinB := coins[i], coins[j]
			if !t.fetcher.HasPair(venueID, coinA+"/"+base) || !t.fetcher.HasPair(venueID, coinB+"/"+base) {
				continue
			}
			set := triSet{venue: venueID, coinA: coinA, coinB: coinB}
			switch {
			case t.fetcher.HasPair(venueID, coinA+"/"+coinB):
				set.crossPair = coinA + "/" + coinB
			case t.fetcher.HasPair(venueID, coinB+"/"+coinA):
				set.crossPair = coinB + "/" + coinA
				set.reversed = true
			default:
				continue
			}
			sets = append(sets, set)
		}
	}
	return sets
}

// evalSet fetches the three books and evaluates both directional cycles,
// returning the one with the higher profit percent.
func (t *Triangular) evalSet(ctx context.Context, set triSet) (domain.TriangularOpportunity, error) {
	base := t.cfg.BaseCurrency
	pairA := set.coinA + "/" + base
	pairB := set.coinB + "/" + base

	bookA, err := t.fetcher.FetchBookTicker(ctx, set.venue, pairA)
	if err != nil {
		return domain.TriangularOpportunity{}, err
	}
	bookB, err := t.fetcher.FetchBookTicker(ctx, set.venue, pairB)
	if err != nil {
		return domain.TriangularOpportunity{}, err
	}
	bookCross, err := t.fetcher.FetchBookTicker(ctx, set.venue, set.crossPair)
	if err != nil {
		return domain.TriangularOpportunity{}, err
	}

	path1 := t.walkPath(set, bookA, bookB, bookCross, false)
	path2 := t.walkPath(set, bookA, bookB, bookCross, true)

	best := path1
	if path2.ProfitPercent > path1.ProfitPercent {
		best = path2
	}
	best.Venue = set.venue
	best.BaseCurrency = base
	best.Coins = [2]string{set.coinA, set.coinB}
	best.StartingAmount = t.cfg.StartingAmount
	best.Prices = map[string]float64{
		pairA:         bookA.Last,
		pairB:         bookB.Last,
		set.crossPair: bookCross.Last,
	}
	best.ObservedAt = time.Now().UTC()
	return best, nil
}

// walkPath runs one directional cycle. With swapped=false the path is
// base -> coinA -> coinB -> base; swapped=true starts with coinB. Each leg's
// output amount feeds the next leg's input. Buys execute at the ask, sells at
// the bid, with last-trade fallback when a side of the book is empty.
func (t *Triangular) walkPath(set triSet, bookA, bookB, bookCross domain.BookTicker, swapped bool) domain.TriangularOpportunity {
	base := t.cfg.BaseCurrency
	first, second := set.coinA, set.coinB
	firstBook, secondBook := bookA, bookB
	if swapped {
		first, second = set.coinB, set.coinA
		firstBook, secondBook = bookB, bookA
	}

	amount := t.cfg.StartingAmount
	var legs []domain.TradeLeg

	// Leg 1: buy the first coin with base.
	buyPrice := firstBook.AskOrLast()
	amountFirst := amount / buyPrice
	legs = append(legs, domain.TradeLeg{
		Step:        1,
		Action:      "BUY",
		Pair:        first + "/" + base,
		Price:       buyPrice,
		Amount:      amountFirst,
		Description: fmt.Sprintf("Buy %.6f %s with %.2f %s", amountFirst, first, amount, base),
	})

	// Leg 2: convert first -> second across the cross pair. Whether this is
	// a buy or a sell depends on which direction the venue lists.
	crossQuotedInFirst := (!swapped && set.reversed) || (swapped && !set.reversed)
	var amountSecond float64
	if crossQuotedInFirst {
		// Cross pair is "second/first": buy the second coin at the ask.
		price := bookCross.AskOrLast()
		amountSecond = amountFirst / price
		legs = append(legs, domain.TradeLeg{
			Step:        2,
			Action:      "BUY",
			Pair:        second + "/" + first,
			Price:       price,
			Amount:      amountSecond,
			Description: fmt.Sprintf("Buy %.6f %s with %.6f %s", amountSecond, second, amountFirst, first),
		})
	} else {
		// Cross pair is "first/second": sell the first coin at the bid.
		price := bookCross.BidOrLast()
		amountSecond = amountFirst * price
		legs = append(legs, domain.TradeLeg{
			Step:        2,
			Action:      "SELL",
			Pair:        first + "/" + second,
			Price:       price,
			Amount:      amountFirst,
			Description: fmt.Sprintf("Sell %.6f %s for %.6f %s", amountFirst, first, amountSecond, second),
		})
	}

	// Leg 3: sell the second coin back into base.
	sellPrice := secondBook.BidOrLast()
	finalAmount := amountSecond * sellPrice
	legs = append(legs, domain.TradeLeg{
		Step:        3,
		Action:      "SELL",
		Pair:        second + "/" + base,
		Price:       sellPrice,
		Amount:      amountSecond,
		Description: fmt.Sprintf("Sell %.6f %s for %.2f %s", amountSecond, second, finalAmount, base),
	})

	profit := finalAmount - t.cfg.StartingAmount
	return domain.TriangularOpportunity{
		Path:          base + " -> " + first + " -> " + second + " -> " + base,
		Legs:          legs,
		ProfitPercent: round(profit/t.cfg.StartingAmount*100, 4),
		ProfitAmount:  round(profit, 2),
		FinalAmount:   round(finalAmount, 2),
	}
}
