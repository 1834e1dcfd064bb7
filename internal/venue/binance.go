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
	Register("binance", func() Client { return newBinance() })
}

// binance implements Client against the Binance spot REST API.
type binance struct {
	restClient

	mu      sync.RWMutex
	markets map[string]string // canonical "BTC/USDT" -> native "BTCUSDT"
}

func newBinance() *binance {
	return &binance{
		restClient: newRESTClient("https://api.binance.com"),
		markets:    make(map[string]string),
	}
}

func (b *binance) Name() string { return "binance" }

func (b *binance) LoadMarkets(ctx context.Context) error {
	var resp struct {
		Symbols []struct {
			Symbol     string `json:"symbol"`
			BaseAsset  string `json:"baseAsset"`
			QuoteAsset string `json:"quoteAsset"`
			Status     string `json:"status"`
		} `json:"symbols"`
	}
	if err := b.getJSON(ctx, "/api/v3/exchangeInfo", &resp); err != nil {
		return fmt.Errorf("binance: load markets: %w", err)
	}

	markets := make(map[string]string, len(resp.Symbols))
	for _, s := range resp.Symbols {
		if s.Status != "TRADING" {
			continue
		}
		markets[s.BaseAsset+"/"+s.QuoteAsset] = s.Symbol
	}

	b.mu.Lock()
	b.markets = markets
	b.mu.Unlock()
	return nil
}

func (b *binance) HasPair(symbol string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.markets[symbol]
	return ok
}

func (b *binance) native(symbol string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	native, ok := b.markets[symbol]
	if !ok {
		return "", fmt.Errorf("binance: %s: %w", symbol, domain.ErrPairUnsupported)
	}
	return native, nil
}

func (b *binance) FetchTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	native, err := b.native(symbol)
	if err != nil {
		return domain.Ticker{}, err
	}

	var resp struct {
		LastPrice   string `json:"lastPrice"`
		QuoteVolume string `json:"quoteVolume"`
		Volume      string `json:"volume"`
	}
	path := "/api/v3/ticker/24hr?symbol=" + url.QueryEscape(native)
	if err := b.getJSON(ctx, path, &resp); err != nil {
		return domain.Ticker{}, fmt.Errorf("binance: ticker %s: %w", symbol, err)
	}

	price := parseFloat(resp.LastPrice)
	quoteVol := parseFloat(resp.QuoteVolume)
	if quoteVol == 0 {
		quoteVol = parseFloat(resp.Volume) * price
	}
	return domain.Ticker{
		Venue:       b.Name(),
		Symbol:      symbol,
		Price:       price,
		QuoteVolume: quoteVol,
		ObservedAt:  time.Now().UTC(),
	}, nil
}

func (b *binance) FetchBookTicker(ctx context.Context, symbol string) (domain.BookTicker, error) {
	native, err := b.native(symbol)
	if err != nil {
		return domain.BookTicker{}, err
	}

	var resp struct {
		BidPrice string `json:"bidPrice"`
		AskPrice string `json:"askPrice"`
	}
	path := "/api/v3/ticker/bookTicker?symbol=" + url.QueryEscape(native)
	if err := b.getJSON(ctx, path, &resp); err != nil {
		return domain.BookTicker{}, fmt.Errorf("binance: book ticker %s: %w", symbol, err)
	}

	bt := domain.BookTicker{
		Venue:  b.Name(),
		Symbol: symbol,
		Bid:    parseFloat(resp.BidPrice),
		Ask:    parseFloat(resp.AskPrice),
	}
	if bt.Bid == 0 || bt.Ask == 0 {
		// Thin books happen; fall back to the last trade price.
		var last struct {
			Price string `json:"price"`
		}
		if err := b.getJSON(ctx, "/api/v3/ticker/price?symbol="+url.QueryEscape(native), &last); err == nil {
			bt.Last = parseFloat(last.Price)
		}
	}
	return bt, nil
}

var _ Client = (*binance)(nil)
