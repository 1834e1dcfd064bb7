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
	Register("bybit", func() Client { return newBybit() })
}

// bybit implements Client against the Bybit v5 spot REST API.
type bybit struct {
	restClient

	mu      sync.RWMutex
	markets map[string]string
}

func newBybit() *bybit {
	return &bybit{
		restClient: newRESTClient("https://api.bybit.com"),
		markets:    make(map[string]string),
	}
}

func (b *bybit) Name() string { return "bybit" }

func (b *bybit) LoadMarkets(ctx context.Context) error {
	var resp struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List []struct {
				Symbol    string `json:"symbol"`
				BaseCoin  string `json:"baseCoin"`
				QuoteCoin string `json:"quoteCoin"`
				Status    string `json:"status"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := b.getJSON(ctx, "/v5/market/instruments-info?category=spot&limit=1000", &resp); err != nil {
		return fmt.Errorf("bybit: load markets: %w", err)
	}
	if resp.RetCode != 0 {
		return fmt.Errorf("bybit: load markets: retCode %d: %s", resp.RetCode, resp.RetMsg)
	}

	markets := make(map[string]string, len(resp.Result.List))
	for _, s := range resp.Result.List {
		if s.Status != "Trading" {
			continue
		}
		markets[s.BaseCoin+"/"+s.QuoteCoin] = s.Symbol
	}

	b.mu.Lock()
	b.markets = markets
	b.mu.Unlock()
	return nil
}

func (b *bybit) HasPair(symbol string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.markets[symbol]
	return ok
}

func (b *bybit) native(symbol string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	native, ok := b.markets[symbol]
	if !ok {
		return "", fmt.Errorf("bybit: %s: %w", symbol, domain.ErrPairUnsupported)
	}
	return native, nil
}

// tickerRow is the shared shape of bybit's spot ticker entries.
type bybitTickerRow struct {
	LastPrice  string `json:"lastPrice"`
	Turnover   string `json:"turnover24h"`
	Volume     string `json:"volume24h"`
	Bid1Price  string `json:"bid1Price"`
	Ask1Price  string `json:"ask1Price"`
}

func (b *bybit) fetchRow(ctx context.Context, symbol string) (bybitTickerRow, error) {
	native, err := b.native(symbol)
	if err != nil {
		return bybitTickerRow{}, err
	}

	var resp struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List []bybitTickerRow `json:"list"`
		} `json:"result"`
	}
	path := "/v5/market/tickers?category=spot&symbol=" + url.QueryEscape(native)
	if err := b.getJSON(ctx, path, &resp); err != nil {
		return bybitTickerRow{}, fmt.Errorf("bybit: ticker %s: %w", symbol, err)
	}
	if resp.RetCode != 0 || len(resp.Result.List) == 0 {
		return bybitTickerRow{}, fmt.Errorf("bybit: ticker %s: retCode %d: %s", symbol, resp.RetCode, resp.RetMsg)
	}
	return resp.Result.List[0], nil
}

func (b *bybit) FetchTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	row, err := b.fetchRow(ctx, symbol)
	if err != nil {
		return domain.Ticker{}, err
	}

	price := parseFloat(row.LastPrice)
	quoteVol := parseFloat(row.Turnover)
	if quoteVol == 0 {
		quoteVol = parseFloat(row.Volume) * price
	}
	return domain.Ticker{
		Venue:       b.Name(),
		Symbol:      symbol,
		Price:       price,
		QuoteVolume: quoteVol,
		ObservedAt:  time.Now().UTC(),
	}, nil
}

func (b *bybit) FetchBookTicker(ctx context.Context, symbol string) (domain.BookTicker, error) {
	row, err := b.fetchRow(ctx, symbol)
	if err != nil {
		return domain.BookTicker{}, err
	}
	return domain.BookTicker{
		Venue:  b.Name(),
		Symbol: symbol,
		Bid:    parseFloat(row.Bid1Price),
		Ask:    parseFloat(row.Ask1Price),
		Last:   parseFloat(row.LastPrice),
	}, nil
}

var _ Client = (*bybit)(nil)
