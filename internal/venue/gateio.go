package venue

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/arbilo/arbilod/internal/domain"
)

func init() {
	Register("gateio", func() Client { return newGateio() })
}

// gateio implements Client against the Gate.io v4 spot REST API.
type gateio struct {
	restClient

	mu      sync.RWMutex
	markets map[string]string // "BTC/USDT" -> "BTC_USDT"
}

func newGateio() *gateio {
	return &gateio{
		restClient: newRESTClient("https://api.gateio.ws"),
		markets:    make(map[string]string),
	}
}

func (g *gateio) Name() string { return "gateio" }

func (g *gateio) LoadMarkets(ctx context.Context) error {
	var resp []struct {
		ID          string `json:"id"`
		Base        string `json:"base"`
		Quote       string `json:"quote"`
		TradeStatus string `json:"trade_status"`
	}
	if err := g.getJSON(ctx, "/api/v4/spot/currency_pairs", &resp); err != nil {
		return fmt.Errorf("gateio: load markets: %w", err)
	}

	markets := make(map[string]string, len(resp))
	for _, s := range resp {
		if s.TradeStatus != "tradable" {
			continue
		}
		markets[s.Base+"/"+s.Quote] = s.ID
	}

	g.mu.Lock()
	g.markets = markets
	g.mu.Unlock()
	return nil
}

func (g *gateio) HasPair(symbol string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.markets[symbol]
	return ok
}

func (g *gateio) native(symbol string) (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	native, ok := g.markets[symbol]
	if !ok {
		return "", fmt.Errorf("gateio: %s: %w", symbol, domain.ErrPairUnsupported)
	}
	return native, nil
}

type gateioTickerRow struct {
	Last        string `json:"last"`
	QuoteVolume string `json:"quote_volume"`
	BaseVolume  string `json:"base_volume"`
	HighestBid  string `json:"highest_bid"`
	LowestAsk   string `json:"lowest_ask"`
}

func (g *gateio) fetchRow(ctx context.Context, symbol string) (gateioTickerRow, error) {
	native, err := g.native(symbol)
	if err != nil {
		return gateioTickerRow{}, err
	}

	var resp []gateioTickerRow
	path := "/api/v4/spot/tickers?currency_pair=" + url.QueryEscape(native)
	if err := g.getJSON(ctx, path, &resp); err != nil {
		return gateioTickerRow{}, fmt.Errorf("gateio: ticker %s: %w", symbol, err)
	}
	if len(resp) == 0 {
		return gateioTickerRow{}, fmt.Errorf("gateio: ticker %s: empty response", symbol)
	}
	return resp[0], nil
}

func (g *gateio) FetchTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	row, err := g.fetchRow(ctx, symbol)
	if err != nil {
		return domain.Ticker{}, err
	}

	price := parseFloat(row.Last)
	quoteVol := parseFloat(row.QuoteVolume)
	if quoteVol == 0 {
		quoteVol = parseFloat(row.BaseVolume) * price
	}
	return domain.Ticker{
		Venue:       g.Name(),
		Symbol:      symbol,
		Price:       price,
		QuoteVolume: quoteVol,
		ObservedAt:  time.Now().UTC(),
	}, nil
}

func (g *gateio) FetchBookTicker(ctx context.Context, symbol string) (domain.BookTicker, error) {
	row, err := g.fetchRow(ctx, symbol)
	if err != nil {
		return domain.BookTicker{}, err
	}
	return domain.BookTicker{
		Venue:  g.Name(),
		Symbol: symbol,
		Bid:    parseFloat(row.HighestBid),
		Ask:    parseFloat(row.LowestAsk),
		Last:   parseFloat(row.Last),
	}, nil
}

var _ Client = (*gateio)(nil)
