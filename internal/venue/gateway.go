package venue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arbilo/arbilod/internal/domain"
	"github.com/arbilo/arbilod/internal/metrics"
)

// GatewayConfig holds the retry policy applied to every ticker fetch.
type GatewayConfig struct {
	MaxRetries int           // attempts per fetch before giving up
	RetryDelay time.Duration // base delay; grows linearly per attempt
}

// Gateway fronts the per-venue clients. Init loads market metadata for every
// configured venue and permanently excludes the ones that fail; fetches go
// through a bounded retry with linearly increasing backoff.
type Gateway struct {
	cfg     GatewayConfig
	clients map[string]Client
	order   []string // configured venue order, active venues only
	logger  *slog.Logger
}

// NewGateway creates a Gateway for the named venues. Call Init before use.
func NewGateway(cfg GatewayConfig, logger *slog.Logger) *Gateway {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	return &Gateway{
		cfg:     cfg,
		clients: make(map[string]Client),
		logger:  logger.With(slog.String("component", "venue_gateway")),
	}
}

// Init constructs and initializes a client for each venue id. A venue whose
// metadata load fails is logged and excluded for the rest of the process
// lifetime; Init itself never fails on individual venues.
func (g *Gateway) Init(ctx context.Context, venueIDs []string) {
	for _, id := range venueIDs {
		client, err := New(id)
		if err != nil {
			g.logger.WarnContext(ctx, "skipping unregistered venue", slog.String("venue", id))
			continue
		}
		if err := client.LoadMarkets(ctx); err != nil {
			g.logger.WarnContext(ctx, "skipping venue, market metadata load failed",
				slog.String("venue", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		g.clients[id] = client
		g.order = append(g.order, id)
		g.logger.InfoContext(ctx, "venue initialized", slog.String("venue", id))
	}
}

// Venues returns the active venue ids in configured order.
func (g *Gateway) Venues() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// HasPair reports whether an active venue lists the canonical symbol.
func (g *Gateway) HasPair(venueID, symbol string) bool {
	c, ok := g.clients[venueID]
	return ok && c.HasPair(symbol)
}

func (g *Gateway) client(venueID string) (Client, error) {
	c, ok := g.clients[venueID]
	if !ok {
		return nil, fmt.Errorf("venue %q: %w", venueID, domain.ErrVenueUnavailable)
	}
	return c, nil
}

// FetchTicker fetches one ticker with the gateway's retry policy. A symbol
// the venue does not list fails immediately with ErrPairUnsupported; other
// failures are retried up to MaxRetries times with linearly increasing delay
// before the call fails with ErrFetchFailed.
func (g *Gateway) FetchTicker(ctx context.Context, venueID, symbol string) (domain.Ticker, error) {
	c, err := g.client(venueID)
	if err != nil {
		return domain.Ticker{}, err
	}
	if !c.HasPair(symbol) {
		return domain.Ticker{}, fmt.Errorf("%s %s: %w", venueID, symbol, domain.ErrPairUnsupported)
	}

	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxRetries; attempt++ {
		t, err := c.FetchTicker(ctx, symbol)
		if err == nil {
			metrics.TickersFetched.WithLabelValues(venueID).Inc()
			return t, nil
		}
		lastErr = err
		if errors.Is(err, domain.ErrPairUnsupported) {
			return domain.Ticker{}, err
		}
		if attempt < g.cfg.MaxRetries {
			if serr := sleepCtx(ctx, g.cfg.RetryDelay*time.Duration(attempt)); serr != nil {
				break
			}
		}
	}
	metrics.FetchFailures.WithLabelValues(venueID).Inc()
	return domain.Ticker{}, fmt.Errorf("%s %s after %d attempts: %w: %w",
		venueID, symbol, g.cfg.MaxRetries, domain.ErrFetchFailed, lastErr)
}

// FetchBookTicker fetches best bid/ask with the same retry policy as
// FetchTicker.
func (g *Gateway) FetchBookTicker(ctx context.Context, venueID, symbol string) (domain.BookTicker, error) {
	c, err := g.client(venueID)
	if err != nil {
		return domain.BookTicker{}, err
	}
	if !c.HasPair(symbol) {
		return domain.BookTicker{}, fmt.Errorf("%s %s: %w", venueID, symbol, domain.ErrPairUnsupported)
	}

	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxRetries; attempt++ {
		bt, err := c.FetchBookTicker(ctx, symbol)
		if err == nil {
			return bt, nil
		}
		lastErr = err
		if errors.Is(err, domain.ErrPairUnsupported) {
			return domain.BookTicker{}, err
		}
		if attempt < g.cfg.MaxRetries {
			if serr := sleepCtx(ctx, g.cfg.RetryDelay*time.Duration(attempt)); serr != nil {
				break
			}
		}
	}
	metrics.FetchFailures.WithLabelValues(venueID).Inc()
	return domain.BookTicker{}, fmt.Errorf("%s %s after %d attempts: %w: %w",
		venueID, symbol, g.cfg.MaxRetries, domain.ErrFetchFailed, lastErr)
}

// register inserts a pre-built client, bypassing the registry. Used by tests.
func (g *Gateway) register(c Client) {
	g.clients[c.Name()] = c
	g.order = append(g.order, c.Name())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
