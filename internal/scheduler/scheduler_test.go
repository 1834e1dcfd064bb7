package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbilo/arbilod/internal/cache"
	"github.com/arbilo/arbilod/internal/domain"
)

// manualClock drives the scheduler's tickers by hand.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
	ch  chan time.Time
}

func newManualClock() *manualClock {
	return &manualClock{
		now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		ch:  make(chan time.Time, 1),
	}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) NewTicker(d time.Duration) Ticker {
	return manualTicker{ch: c.ch}
}

// tick advances the clock and fires every registered ticker once.
func (c *manualClock) tick(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	c.ch <- now
}

type manualTicker struct {
	ch chan time.Time
}

func (t manualTicker) C() <-chan time.Time { return t.ch }
func (t manualTicker) Stop()               {}

// recorder captures broadcast envelopes.
type recorder struct {
	mu   sync.Mutex
	envs []domain.Envelope
}

func (r *recorder) Broadcast(env domain.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
}

func (r *recorder) wait(t *testing.T, n int) []domain.Envelope {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		if len(r.envs) >= n {
			out := make([]domain.Envelope, len(r.envs))
			copy(out, r.envs)
			r.mu.Unlock()
			return out
		}
		r.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d broadcasts", n)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerRunsImmediatelyAndOnEveryTick(t *testing.T) {
	store := cache.NewStore(nil, cache.Config{}, testLogger())
	clock := newManualClock()
	notify := &recorder{}
	sched := New(store, notify, clock, testLogger())

	var mu sync.Mutex
	cycle := 0
	sched.Add("k", time.Minute, func(ctx context.Context) (json.RawMessage, error) {
		mu.Lock()
		defer mu.Unlock()
		cycle++
		return json.Marshal(cycle)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	// The first cycle runs without waiting for a tick.
	envs := notify.wait(t, 1)
	assert.JSONEq(t, `1`, string(envs[0].Data))
	assert.Equal(t, "k", envs[0].Key)

	clock.tick(time.Minute)
	envs = notify.wait(t, 2)
	assert.JSONEq(t, `2`, string(envs[1].Data))
	assert.GreaterOrEqual(t, envs[1].ServerTime, envs[0].ServerTime)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestSchedulerKeepsRunningAfterFailedCycle(t *testing.T) {
	store := cache.NewStore(nil, cache.Config{}, testLogger())
	clock := newManualClock()
	notify := &recorder{}
	sched := New(store, notify, clock, testLogger())

	var mu sync.Mutex
	cycle := 0
	sched.Add("k", time.Minute, func(ctx context.Context) (json.RawMessage, error) {
		mu.Lock()
		defer mu.Unlock()
		cycle++
		if cycle == 2 {
			return nil, errors.New("all venues down")
		}
		return json.Marshal(cycle)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	notify.wait(t, 1)

	// Cycle 2 fails: no broadcast, but the loop survives and cycle 3 lands.
	clock.tick(time.Minute)
	clock.tick(time.Minute)
	envs := notify.wait(t, 2)
	assert.JSONEq(t, `3`, string(envs[1].Data))

	// The failed cycle never overwrote the cached entry in between.
	p, err := store.GetOrCompute(ctx, "k", time.Minute, func(ctx context.Context) (json.RawMessage, error) {
		t.Fatal("cache should be warm")
		return nil, nil
	})
	require.NoError(t, err)
	assert.JSONEq(t, `3`, string(p.Data))

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestSchedulerWithoutNotifierStillRefreshes(t *testing.T) {
	store := cache.NewStore(nil, cache.Config{}, testLogger())
	clock := newManualClock()
	sched := New(store, nil, clock, testLogger())

	computed := make(chan struct{}, 1)
	sched.Add("k", time.Minute, func(ctx context.Context) (json.RawMessage, error) {
		select {
		case computed <- struct{}{}:
		default:
		}
		return json.RawMessage(`[]`), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	select {
	case <-computed:
	case <-time.After(2 * time.Second):
		t.Fatal("immediate cycle never ran")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
