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
	Register("okx", func() Client { return newOKX() })
}

// okx implements Client against the OKX v5 public REST API.
type okx struct {
	restClient

	mu      sync.RWMutex
	markets map[string]string // "BTC/USDT" -> "BTC-USDT"
}

func newOKX() *okx {
	return &okx{
		restClient: newRESTClient("https://www.okx.com"),
		markets:    make(map[string]string),
	}
}

func (o *okx) Name() string { return "okx" }

func (o *okx) LoadMarkets(ctx context.Context) error {
	var resp struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			InstID   string `json:"instId"`
			BaseCcy  string `json:"baseCcy"`
			QuoteCcy string `json:"quoteCcy"`
			State    string `json:"state"`
		} `json:"data"`
	}
	if err := o.getJSON(ctx, "/api/v5/public/instruments?instType=SPOT", &resp); err != nil {
		return fmt.Errorf("okx: load markets: %w", err)
	}
	if resp.Code != "0" {
		return fmt.Errorf("okx: load markets: code %s: %s", resp.Code, resp.Msg)
	}

	markets := make(map[string]string, len(resp.Data))
	for _, s := range resp.Data {
		if s.State != "live" {
			continue
		}
		markets[s.BaseCcy+"/"+s.QuoteCcy] = s.InstID
	}

	o.mu.Lock()
	o.markets = markets
	o.mu.Unlock()
	return nil
}

func (o *okx) HasPair(symbol string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.markets[symbol]
	return ok
}

func (o *okx) native(symbol string) (string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	native, ok := o.markets[symbol]
	if !ok {
		return "", fmt.Errorf("okx: %s: %w", symbol, domain.ErrPairUnsupported)
	}
	return native, nil
}

type okxTickerRow struct {
	Last     string `json:"last"`
	VolCcy   string `json:"volCcy24h"`
	Vol      string `json:"vol24h"`
	BidPx    string `json:"bidPx"`
	AskPx    string `json:"askPx"`
}

func (o *okx) fetchRow(ctx context.Context, symbol string) (okxTickerRow, error) {
	native, err := o.native(symbol)
	if err != nil {
		return okxTickerRow{}, err
	}

	var resp struct {
		Code string         `json:"code"`
		Msg  string         `json:"msg"`
		Data []okxTickerRow `json:"data"`
	}
	path := "/api/v5/market/ticker?instId=" + url.QueryEscape(native)
	if err := o.getJSON(ctx, path, &resp); err != nil {
		return okxTickerRow{}, fmt.Errorf("okx: ticker %s: %w", symbol, err)
	}
	if resp.Code != "0" || len(resp.Data) == 0 {
		return okxTickerRow{}, fmt.Errorf("okx: ticker %s: code %s: %s", symbol, resp.Code, resp.Msg)
	}
	return resp.Data[0], nil
}

func (o *okx) FetchTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	row, err := o.fetchRow(ctx, symbol)
	if err != nil {
		return domain.Ticker{}, err
	}

	price := parseFloat(row.Last)
	// volCcy24h is quote-denominated for spot instruments.
	quoteVol := parseFloat(row.VolCcy)
	if quoteVol == 0 {
		quoteVol = parseFloat(row.Vol) * price
	}
	return domain.Ticker{
		Venue:       o.Name(),
		Symbol:      symbol,
		Price:       price,
		QuoteVolume: quoteVol,
		ObservedAt:  time.Now().UTC(),
	}, nil
}

func (o *okx) FetchBookTicker(ctx context.Context, symbol string) (domain.BookTicker, error) {
	row, err := o.fetchRow(ctx, symbol)
	if err != nil {
		return domain.BookTicker{}, err
	}
	return domain.BookTicker{
		Venue:  o.Name(),
		Symbol: symbol,
		Bid:    parseFloat(row.BidPx),
		Ask:    parseFloat(row.AskPx),
		Last:   parseFloat(row.Last),
	}, nil
}

var _ Client = (*okx)(nil)
