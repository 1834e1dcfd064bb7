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
	Register("kucoin", func() Client { return newKucoin() })
}

// kucoin implements Client against the KuCoin spot REST API.
type kucoin struct {
	restClient

	mu      sync.RWMutex
	markets map[string]string // "BTC/USDT" -> "BTC-USDT"
}

func newKucoin() *kucoin {
	return &kucoin{
		restClient: newRESTClient("https://api.kucoin.com"),
		markets:    make(map[string]string),
	}
}

func (k *kucoin) Name() string { return "kucoin" }

func (k *kucoin) LoadMarkets(ctx context.Context) error {
	var resp struct {
		Code string `json:"code"`
		Data []struct {
			Symbol        string `json:"symbol"`
			BaseCurrency  string `json:"baseCurrency"`
			QuoteCurrency string `json:"quoteCurrency"`
			EnableTrading bool   `json:"enableTrading"`
		} `json:"data"`
	}
	if err := k.getJSON(ctx, "/api/v2/symbols", &resp); err != nil {
		return fmt.Errorf("kucoin: load markets: %w", err)
	}
	if resp.Code != "200000" {
		return fmt.Errorf("kucoin: load markets: code %s", resp.Code)
	}

	markets := make(map[string]string, len(resp.Data))
	for _, s := range resp.Data {
		if !s.EnableTrading {
			continue
		}
		markets[s.BaseCurrency+"/"+s.QuoteCurrency] = s.Symbol
	}

	k.mu.Lock()
	k.markets = markets
	k.mu.Unlock()
	return nil
}

func (k *kucoin) HasPair(symbol string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.markets[symbol]
	return ok
}

func (k *kucoin) native(symbol string) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	native, ok := k.markets[symbol]
	if !ok {
		return "", fmt.Errorf("kucoin: %s: %w", symbol, domain.ErrPairUnsupported)
	}
	return native, nil
}

func (k *kucoin) FetchTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	native, err := k.native(symbol)
	if err != nil {
		return domain.Ticker{}, err
	}

	var resp struct {
		Code string `json:"code"`
		Data struct {
			Last     string `json:"last"`
			VolValue string `json:"volValue"`
			Vol      string `json:"vol"`
		} `json:"data"`
	}
	path := "/api/v1/market/stats?symbol=" + url.QueryEscape(native)
	if err := k.getJSON(ctx, path, &resp); err != nil {
		return domain.Ticker{}, fmt.Errorf("kucoin: ticker %s: %w", symbol, err)
	}
	if resp.Code != "200000" {
		return domain.Ticker{}, fmt.Errorf("kucoin: ticker %s: code %s", symbol, resp.Code)
	}

	price := parseFloat(resp.Data.Last)
	quoteVol := parseFloat(resp.Data.VolValue)
	if quoteVol == 0 {
		quoteVol = parseFloat(resp.Data.Vol) * price
	}
	return domain.Ticker{
		Venue:       k.Name(),
		Symbol:      symbol,
		Price:       price,
		QuoteVolume: quoteVol,
		ObservedAt:  time.Now().UTC(),
	}, nil
}

func (k *kucoin) FetchBookTicker(ctx context.Context, symbol string) (domain.BookTicker, error) {
	native, err := k.native(symbol)
	if err != nil {
		return domain.BookTicker{}, err
	}

	var resp struct {
		Code string `json:"code"`
		Data struct {
			Price   string `json:"price"`
			BestBid string `json:"bestBid"`
			BestAsk string `json:"bestAsk"`
		} `json:"data"`
	}
	path := "/api/v1/market/orderbook/level1?symbol=" + url.QueryEscape(native)
	if err := k.getJSON(ctx, path, &resp); err != nil {
		return domain.BookTicker{}, fmt.Errorf("kucoin: book ticker %s: %w", symbol, err)
	}
	if resp.Code != "200000" {
		return domain.BookTicker{}, fmt.Errorf("kucoin: book ticker %s: code %s", symbol, resp.Code)
	}

	return domain.BookTicker{
		Venue:  k.Name(),
		Symbol: symbol,
		Bid:    parseFloat(resp.Data.BestBid),
		Ask:    parseFloat(resp.Data.BestAsk),
		Last:   parseFloat(resp.Data.Price),
	}, nil
}

var _ Client = (*kucoin)(nil)
