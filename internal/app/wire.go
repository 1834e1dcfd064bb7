package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arbilo/arbilod/internal/aggregate"
	"github.com/arbilo/arbilod/internal/arb"
	"github.com/arbilo/arbilod/internal/cache"
	"github.com/arbilo/arbilod/internal/cache/redis"
	"github.com/arbilo/arbilod/internal/config"
	"github.com/arbilo/arbilod/internal/domain"
	"github.com/arbilo/arbilod/internal/scheduler"
	"github.com/arbilo/arbilod/internal/server"
	"github.com/arbilo/arbilod/internal/server/handler"
	"github.com/arbilo/arbilod/internal/server/middleware"
	"github.com/arbilo/arbilod/internal/server/ws"
	"github.com/arbilo/arbilod/internal/service"
	"github.com/arbilo/arbilod/internal/venue"
)

// Dependencies bundles everything the application run loop needs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Gateway     *venue.Gateway
	Store       *cache.Store
	Service     *service.OpportunityService
	Scheduler   *scheduler.Scheduler
	Hub         *ws.Hub
	Server      *server.Server
	RateLimiter domain.RateLimiter // nil when Redis is disabled
	RedisPing   handler.Pinger     // nil when Redis is disabled
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Redis (optional; the cache store degrades to its local map) ---
	var backend cache.Backend
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			// A down Redis at boot is not fatal: the store serves from its
			// local fallback until the backend recovers on a later restart.
			logger.WarnContext(ctx, "redis unavailable, running on local cache only",
				slog.String("error", err.Error()),
			)
		} else {
			closers = append(closers, func() { _ = redisClient.Close() })
			backend = redis.NewBackend(redisClient)
			deps.RateLimiter = redis.NewRateLimiter(redisClient)
			deps.RedisPing = redisClient
		}
	}

	deps.Store = cache.NewStore(backend, cache.Config{
		MaxRetries:    cfg.Cache.MaxRetries,
		MaxLocalItems: cfg.Cache.MaxLocalItems,
	}, logger)

	// --- Venue gateway ---
	deps.Gateway = venue.NewGateway(venue.GatewayConfig{
		MaxRetries: cfg.Fetch.MaxRetries,
		RetryDelay: cfg.Fetch.RetryDelay.Duration,
	}, logger)
	deps.Gateway.Init(ctx, cfg.Aggregator.Venues)
	if len(deps.Gateway.Venues()) == 0 {
		cleanup()
		return nil, nil, fmt.Errorf("wire: no venues initialized")
	}

	// --- Engines ---
	aggregator := aggregate.New(deps.Gateway, cfg.Aggregator.QuoteCurrency, cfg.Aggregator.MinVolume, logger)
	pairwise := arb.NewPairwise(arb.PairwiseConfig{
		Coins:     cfg.Aggregator.Coins,
		Venues:    deps.Gateway.Venues(),
		MinVolume: cfg.Aggregator.MinVolume,
		TopN:      cfg.Pairwise.TopN,
	}, logger)
	triangular := arb.NewTriangular(arb.TriangularConfig{
		Venues:         cfg.Triangular.Venues,
		BaseCurrency:   cfg.Triangular.BaseCurrency,
		Coins:          cfg.Triangular.Coins,
		StartingAmount: cfg.Triangular.StartingAmount,
		SetDelay:       cfg.Triangular.SetDelay.Duration,
	}, deps.Gateway, logger)

	// --- Service ---
	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	deps.Service = service.New(service.Config{
		Venues:            deps.Gateway.Venues(),
		Coins:             cfg.Aggregator.Coins,
		DefaultInvestment: cfg.Pairwise.DefaultInvestment,
		TTL:               ttl,
	}, aggregator, pairwise, triangular, deps.Store, logger)

	// --- Push surface ---
	deps.Hub = ws.NewHub(middleware.RequestAuthenticator(cfg.Server.JWTSecret), logger)

	// --- Scheduler ---
	deps.Scheduler = scheduler.New(deps.Store, deps.Hub, scheduler.RealClock{}, logger)
	deps.Scheduler.Add(service.KeyTracker, ttl, deps.Service.ComputeTracker)
	deps.Scheduler.Add(service.KeyPairwise, ttl, deps.Service.ComputePairwise(cfg.Pairwise.DefaultInvestment))
	deps.Scheduler.Add(service.KeyTriangular, ttl, deps.Service.ComputeTriangular)

	// --- HTTP server ---
	handlers := server.Handlers{
		Health:        handler.NewHealthHandler(deps.RedisPing, logger),
		Opportunities: handler.NewOpportunityHandler(deps.Service, logger),
	}
	deps.Server = server.NewServer(server.Config{
		Port:            cfg.Server.Port,
		CORSOrigins:     cfg.Server.CORSOrigins,
		JWTSecret:       cfg.Server.JWTSecret,
		RateLimit:       cfg.Server.RateLimit,
		RateLimitWindow: cfg.Server.RateLimitWindow.Duration,
	}, handlers, deps.Hub, deps.RateLimiter, logger)

	return deps, cleanup, nil
}
