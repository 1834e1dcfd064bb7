package venue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbilo/arbilod/internal/domain"
)

// flakyClient fails a configurable number of fetches before succeeding.
type flakyClient struct {
	name      string
	pairs     map[string]bool
	failUntil int
	calls     int
}

func (c *flakyClient) Name() string { return c.name }

func (c *flakyClient) LoadMarkets(ctx context.Context) error { return nil }

func (c *flakyClient) HasPair(symbol string) bool { return c.pairs[symbol] }

func (c *flakyClient) FetchTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	c.calls++
	if c.calls <= c.failUntil {
		return domain.Ticker{}, errors.New("502 bad gateway")
	}
	return domain.Ticker{Venue: c.name, Symbol: symbol, Price: 100, QuoteVolume: 500000}, nil
}

func (c *flakyClient) FetchBookTicker(ctx context.Context, symbol string) (domain.BookTicker, error) {
	c.calls++
	if c.calls <= c.failUntil {
		return domain.BookTicker{}, errors.New("502 bad gateway")
	}
	return domain.BookTicker{Venue: c.name, Symbol: symbol, Bid: 99, Ask: 101, Last: 100}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testGateway(clients ...Client) *Gateway {
	g := NewGateway(GatewayConfig{MaxRetries: 3, RetryDelay: time.Millisecond}, testLogger())
	for _, c := range clients {
		g.register(c)
	}
	return g
}

func TestFetchTickerRetriesThenSucceeds(t *testing.T) {
	client := &flakyClient{name: "alpha", pairs: map[string]bool{"BTC/USDT": true}, failUntil: 2}
	g := testGateway(client)

	tick, err := g.FetchTicker(context.Background(), "alpha", "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, float64(100), tick.Price)
	assert.Equal(t, 3, client.calls)
}

func TestFetchTickerGivesUpAfterMaxRetries(t *testing.T) {
	client := &flakyClient{name: "alpha", pairs: map[string]bool{"BTC/USDT": true}, failUntil: 10}
	g := testGateway(client)

	_, err := g.FetchTicker(context.Background(), "alpha", "BTC/USDT")
	require.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.Equal(t, 3, client.calls, "exactly MaxRetries attempts")
}

func TestFetchTickerUnsupportedPairFailsFast(t *testing.T) {
	client := &flakyClient{name: "alpha", pairs: map[string]bool{"BTC/USDT": true}}
	g := testGateway(client)

	_, err := g.FetchTicker(context.Background(), "alpha", "XYZ/USDT")
	require.ErrorIs(t, err, domain.ErrPairUnsupported)
	assert.Zero(t, client.calls, "no fetch attempt for an unlisted pair")
}

func TestFetchTickerUnknownVenue(t *testing.T) {
	g := testGateway()

	_, err := g.FetchTicker(context.Background(), "nowhere", "BTC/USDT")
	require.ErrorIs(t, err, domain.ErrVenueUnavailable)
}

func TestFetchBookTickerRetryPolicy(t *testing.T) {
	client := &flakyClient{name: "alpha", pairs: map[string]bool{"ETH/BTC": true}, failUntil: 1}
	g := testGateway(client)

	bt, err := g.FetchBookTicker(context.Background(), "alpha", "ETH/BTC")
	require.NoError(t, err)
	assert.Equal(t, float64(101), bt.Ask)
	assert.Equal(t, 2, client.calls)
}

func TestInitExcludesFailedVenues(t *testing.T) {
	g := NewGateway(GatewayConfig{MaxRetries: 1, RetryDelay: time.Millisecond}, testLogger())
	g.Init(context.Background(), []string{"not-registered"})

	assert.Empty(t, g.Venues())
	assert.False(t, g.HasPair("not-registered", "BTC/USDT"))
}

func TestVenuesPreservesConfiguredOrder(t *testing.T) {
	a := &flakyClient{name: "alpha", pairs: map[string]bool{}}
	b := &flakyClient{name: "beta", pairs: map[string]bool{}}
	g := testGateway(a, b)

	assert.Equal(t, []string{"alpha", "beta"}, g.Venues())
}
