// Package scheduler drives the periodic recomputation of every dataset key,
// independent of inbound requests. Each key has its own timer; a failed cycle
// is logged and skipped while the previous cache entry keeps serving, stale,
// until a cycle succeeds.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arbilo/arbilod/internal/domain"
	"github.com/arbilo/arbilod/internal/metrics"
)

// Notifier receives the fresh envelope after every successful cycle. The
// WebSocket hub implements it.
type Notifier interface {
	Broadcast(env domain.Envelope)
}

type task struct {
	key     string
	ttl     time.Duration
	compute domain.ComputeFunc
}

// Scheduler owns one independent periodic task per cache key. Timers are not
// synchronized with each other.
type Scheduler struct {
	store  domain.SnapshotCache
	notify Notifier // may be nil
	clock  Clock
	logger *slog.Logger
	tasks  []task
}

// New creates a Scheduler writing through the given store. notify may be nil
// when no push surface is attached.
func New(store domain.SnapshotCache, notify Notifier, clock Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{
		store:  store,
		notify: notify,
		clock:  clock,
		logger: logger.With(slog.String("component", "scheduler")),
	}
}

// Add registers a dataset key to be recomputed every ttl. Must be called
// before Run.
func (s *Scheduler) Add(key string, ttl time.Duration, compute domain.ComputeFunc) {
	s.tasks = append(s.tasks, task{key: key, ttl: ttl, compute: compute})
}

// Run executes every task once immediately, then repeats each on its own
// ticker until ctx is cancelled. Shutdown is graceful: no new cycles start
// after cancellation, but an in-flight cycle runs to completion.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range s.tasks {
		g.Go(func() error {
			return s.runTask(ctx, t)
		})
	}
	return g.Wait()
}

func (s *Scheduler) runTask(ctx context.Context, t task) error {
	s.runCycle(ctx, t)

	ticker := s.clock.NewTicker(t.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			s.runCycle(ctx, t)
		}
	}
}

// runCycle recomputes one key, writes through the store, and notifies push
// subscribers. Failures never terminate the loop; the previous entry remains
// valid until a cycle succeeds.
func (s *Scheduler) runCycle(ctx context.Context, t task) {
	// Detach from cancellation so a shutdown mid-cycle lets the write finish.
	cctx := context.WithoutCancel(ctx)

	data, err := t.compute(cctx)
	if err != nil {
		metrics.RefreshCycles.WithLabelValues(t.key, "error").Inc()
		s.logger.ErrorContext(ctx, "refresh cycle failed",
			slog.String("key", t.key),
			slog.String("error", err.Error()),
		)
		return
	}

	p, err := s.store.Put(cctx, t.key, data, t.ttl)
	if err != nil {
		metrics.RefreshCycles.WithLabelValues(t.key, "error").Inc()
		s.logger.ErrorContext(ctx, "refresh write failed",
			slog.String("key", t.key),
			slog.String("error", err.Error()),
		)
		return
	}

	metrics.RefreshCycles.WithLabelValues(t.key, "ok").Inc()
	s.logger.InfoContext(ctx, "refresh cycle complete",
		slog.String("key", t.key),
		slog.Time("next_refresh", p.NextRefreshAt),
	)

	if s.notify != nil {
		s.notify.Broadcast(domain.NewEnvelope(p, s.clock.Now()))
	}
}
