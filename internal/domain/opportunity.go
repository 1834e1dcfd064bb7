package domain

import "time"

// PairwiseOpportunity is a cross-venue round trip: buy coin A on the cheap
// venue, sell it on the expensive venue, buy coin B there, and sell B back on
// the cheap venue. Invariants: BuyVenue != SellVenue and Profit > 0; the
// pairwise engine discards anything else.
type PairwiseOpportunity struct {
	Pair           string  `json:"pair"`
	CoinA          string  `json:"coin1"`
	CoinB          string  `json:"coin2"`
	BuyVenue       string  `json:"minExchange"`
	SellVenue      string  `json:"maxExchange"`
	BuyPriceA      float64 `json:"minPrice1"`
	BuyPriceB      float64 `json:"minPrice2"`
	SellPriceA     float64 `json:"maxPrice1"`
	SellPriceB     float64 `json:"maxPrice2"`
	BuyVolumeA     float64 `json:"volume1Min"`
	BuyVolumeB     float64 `json:"volume2Min"`
	SellVolumeA    float64 `json:"volume1Max"`
	SellVolumeB    float64 `json:"volume2Max"`
	Profit         float64 `json:"profit"`
	ProfitPercent  float64 `json:"profitPercentage"`
	Investment     float64 `json:"investmentAmount"`
}

// TradeLeg is one buy or sell step within a triangular cycle. Amount is the
// quantity of the asset acquired (buy) or disposed of (sell) at Price.
type TradeLeg struct {
	Step        int     `json:"step"`
	Action      string  `json:"action"` // "BUY" or "SELL"
	Pair        string  `json:"pair"`
	Price       float64 `json:"price"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

// TriangularOpportunity is a three-leg cycle through a base currency on a
// single venue. Both profitable and lossy cycles are reported; no positivity
// filter is applied so operators can monitor negative spreads.
type TriangularOpportunity struct {
	Venue          string             `json:"exchange"`
	BaseCurrency   string             `json:"baseCurrency"`
	Coins          [2]string          `json:"coins"`
	Path           string             `json:"path"`
	Legs           []TradeLeg         `json:"trades"`
	ProfitPercent  float64            `json:"profitPercentage"`
	ProfitAmount   float64            `json:"profitAmount"`
	StartingAmount float64            `json:"startingAmount"`
	FinalAmount    float64            `json:"finalAmount"`
	Prices         map[string]float64 `json:"prices"`
	ObservedAt     time.Time          `json:"timestamp"`
}

// CoinSpread is the tracker view for one coin: the widest same-coin price
// spread across venues in the current snapshot.
type CoinSpread struct {
	Coin          string  `json:"coin"`
	HighestVenue  string  `json:"highestExchange"`
	LowestVenue   string  `json:"lowestExchange"`
	HighestPrice  float64 `json:"highestPrice"`
	LowestPrice   float64 `json:"lowestPrice"`
	SpreadPercent float64 `json:"profitPercentage"`
	HighestVolume float64 `json:"highestVolume"`
	LowestVolume  float64 `json:"lowestVolume"`
}
