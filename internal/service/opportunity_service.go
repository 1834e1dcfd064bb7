// Package service ties the aggregation pipeline and the arbitrage engines to
// the cache store. It owns the dataset keys, the compute functions behind
// them, and the query path the HTTP handlers delegate to.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/arbilo/arbilod/internal/aggregate"
	"github.com/arbilo/arbilod/internal/arb"
	"github.com/arbilo/arbilod/internal/domain"
)

// Logical dataset keys. One cache entry exists per key.
const (
	KeyTracker    = "arbitrack_data"
	KeyPairwise   = "arbipair_data"
	KeyTriangular = "arbitri_data"
)

// Config holds the service's venue/coin universe and query defaults.
type Config struct {
	Venues            []string
	Coins             []string
	DefaultInvestment float64
	TTL               time.Duration
}

// OpportunityService computes and serves the three opportunity datasets.
// It never computes on the query path unless the cache entry for the key is
// cold or expired.
type OpportunityService struct {
	cfg        Config
	aggregator *aggregate.Aggregator
	pairwise   *arb.Pairwise
	triangular *arb.Triangular
	store      domain.SnapshotCache
	logger     *slog.Logger
	now        func() time.Time
}

// New creates an OpportunityService.
func New(
	cfg Config,
	aggregator *aggregate.Aggregator,
	pairwise *arb.Pairwise,
	triangular *arb.Triangular,
	store domain.SnapshotCache,
	logger *slog.Logger,
) *OpportunityService {
	if cfg.DefaultInvestment <= 0 {
		cfg.DefaultInvestment = 100000
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	return &OpportunityService{
		cfg:        cfg,
		aggregator: aggregator,
		pairwise:   pairwise,
		triangular: triangular,
		store:      store,
		logger:     logger.With(slog.String("component", "opportunity_service")),
		now:        time.Now,
	}
}

// TTL returns the refresh interval shared by all dataset keys.
func (s *OpportunityService) TTL() time.Duration { return s.cfg.TTL }

// ComputeTracker assembles a fresh snapshot and derives the per-coin spread
// summary from it.
func (s *OpportunityService) ComputeTracker(ctx context.Context) (json.RawMessage, error) {
	snap := s.aggregator.Snapshot(ctx, s.cfg.Venues, s.cfg.Coins)
	spreads := arb.TrackSpreads(snap, s.cfg.Coins)
	if spreads == nil {
		spreads = []domain.CoinSpread{}
	}
	data, err := json.Marshal(spreads)
	if err != nil {
		return nil, fmt.Errorf("service: marshal tracker: %w", err)
	}
	return data, nil
}

// ComputePairwise returns a compute function that assembles a fresh snapshot
// and runs the pairwise engine with the given investment notional. Each cache
// entry is computed from a single consistent snapshot, never a partial one.
func (s *OpportunityService) ComputePairwise(investment float64) domain.ComputeFunc {
	if investment <= 0 {
		investment = s.cfg.DefaultInvestment
	}
	return func(ctx context.Context) (json.RawMessage, error) {
		snap := s.aggregator.Snapshot(ctx, s.cfg.Venues, s.cfg.Coins)
		opps := s.pairwise.Detect(snap, investment)
		if opps == nil {
			opps = []domain.PairwiseOpportunity{}
		}
		data, err := json.Marshal(opps)
		if err != nil {
			return nil, fmt.Errorf("service: marshal pairwise: %w", err)
		}
		return data, nil
	}
}

// ComputeTriangular runs the triangular engine across its configured venues.
func (s *OpportunityService) ComputeTriangular(ctx context.Context) (json.RawMessage, error) {
	opps := s.triangular.Detect(ctx)
	if opps == nil {
		opps = []domain.TriangularOpportunity{}
	}
	data, err := json.Marshal(opps)
	if err != nil {
		return nil, fmt.Errorf("service: marshal triangular: %w", err)
	}
	return data, nil
}

// QueryTracker serves the tracker dataset from cache, computing only on a
// cold or expired key.
func (s *OpportunityService) QueryTracker(ctx context.Context) (domain.Envelope, error) {
	p, err := s.store.GetOrCompute(ctx, KeyTracker, s.cfg.TTL, s.ComputeTracker)
	if err != nil {
		return domain.Envelope{}, err
	}
	return domain.NewEnvelope(p, s.now()), nil
}

// QueryPairwise serves the pairwise dataset from cache. The investment
// parameter only shapes a cold-path compute; a warm entry is returned
// verbatim regardless of the requested notional.
func (s *OpportunityService) QueryPairwise(ctx context.Context, investment float64) (domain.Envelope, error) {
	p, err := s.store.GetOrCompute(ctx, KeyPairwise, s.cfg.TTL, s.ComputePairwise(investment))
	if err != nil {
		return domain.Envelope{}, err
	}
	return domain.NewEnvelope(p, s.now()), nil
}

// QueryTriangular serves the triangular dataset from cache.
func (s *OpportunityService) QueryTriangular(ctx context.Context) (domain.Envelope, error) {
	p, err := s.store.GetOrCompute(ctx, KeyTriangular, s.cfg.TTL, s.ComputeTriangular)
	if err != nil {
		return domain.Envelope{}, err
	}
	return domain.NewEnvelope(p, s.now()), nil
}
