package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.ch
}

func (t *fakeTicker) Stop() {}

type fakeClock struct {
	mu      sync.Mutex
	tickers map[time.Duration]*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{tickers: make(map[time.Duration]*fakeTicker)}
}

func (c *fakeClock) Now() time.Time {
	return time.Now()
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	ticker := &fakeTicker{ch: make(chan time.Time)}
	c.tickers[d] = ticker
	return ticker
}

func (c *fakeClock) tick(d time.Duration) {
	c.mu.Lock()
	ticker := c.tickers[d]
	c.mu.Unlock()

	ticker.ch <- time.Now()
}

func waitForTicker(t *testing.T, clock *fakeClock, d time.Duration) {
	t.Helper()

	deadline := time.After(time.Second)
	for {
		clock.mu.Lock()
		_, ok := clock.tickers[d]
		clock.mu.Unlock()
		if ok {
			return
		}

		select {
		case <-deadline:
			t.Fatal("ticker was never created")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestSchedulerRunsJobOnTick(t *testing.T) {
	clock := newFakeClock()
	sched := New(slog.Default(), clock)

	runs := make(chan struct{}, 10)
	sched.Every("sweep", time.Minute, func(ctx context.Context) {
		runs <- struct{}{}
	})

	sched.Start(context.Background())
	defer sched.Stop()

	waitForTicker(t, clock, time.Minute)

	clock.tick(time.Minute)
	select {
	case <-runs:
	case <-time.After(time.Second):
		t.Fatal("job did not run after the first tick")
	}

	clock.tick(time.Minute)
	select {
	case <-runs:
	case <-time.After(time.Second):
		t.Fatal("job did not run after the second tick")
	}
}

func TestSchedulerRunsIndependentJobs(t *testing.T) {
	clock := newFakeClock()
	sched := New(slog.Default(), clock)

	fastRuns := make(chan struct{}, 10)
	slowRuns := make(chan struct{}, 10)

	sched.Every("fast", time.Second, func(ctx context.Context) { fastRuns <- struct{}{} })
	sched.Every("slow", time.Hour, func(ctx context.Context) { slowRuns <- struct{}{} })

	sched.Start(context.Background())
	defer sched.Stop()

	waitForTicker(t, clock, time.Second)
	waitForTicker(t, clock, time.Hour)

	clock.tick(time.Second)
	select {
	case <-fastRuns:
	case <-time.After(time.Second):
		t.Fatal("fast job did not run")
	}

	assert.Empty(t, slowRuns)

	clock.tick(time.Hour)
	select {
	case <-slowRuns:
	case <-time.After(time.Second):
		t.Fatal("slow job did not run")
	}
}

func TestSchedulerEveryFromStartRunsImmediately(t *testing.T) {
	clock := newFakeClock()
	sched := New(slog.Default(), clock)

	runs := make(chan struct{}, 10)
	sched.EveryFromStart("cleanup", 24*time.Hour, func(ctx context.Context) {
		runs <- struct{}{}
	})

	sched.Start(context.Background())
	defer sched.Stop()

	// No tick yet: the startup run alone must fire.
	select {
	case <-runs:
	case <-time.After(time.Second):
		t.Fatal("job did not run at scheduler start")
	}

	waitForTicker(t, clock, 24*time.Hour)

	clock.tick(24 * time.Hour)
	select {
	case <-runs:
	case <-time.After(time.Second):
		t.Fatal("job did not run on the following tick")
	}
}

func TestSchedulerStopHaltsJobs(t *testing.T) {
	clock := newFakeClock()
	sched := New(slog.Default(), clock)

	var mu sync.Mutex
	runs := 0
	sched.Every("sweep", time.Minute, func(ctx context.Context) {
		mu.Lock()
		runs++
		mu.Unlock()
	})

	sched.Start(context.Background())
	waitForTicker(t, clock, time.Minute)

	sched.Stop()

	// After Stop returns the run loops have exited; a tick has nowhere to go.
	select {
	case clock.tickers[time.Minute].ch <- time.Now():
		t.Fatal("ticker was still being consumed after Stop")
	case <-time.After(50 * time.Millisecond):
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, runs)
}

func TestSchedulerJobReceivesCancelableContext(t *testing.T) {
	clock := newFakeClock()
	sched := New(slog.Default(), clock)

	ctxCh := make(chan context.Context, 1)
	sched.Every("sweep", time.Minute, func(ctx context.Context) {
		ctxCh <- ctx
	})

	sched.Start(context.Background())
	waitForTicker(t, clock, time.Minute)

	clock.tick(time.Minute)

	var jobCtx context.Context
	select {
	case jobCtx = <-ctxCh:
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}
	require.NoError(t, jobCtx.Err())

	sched.Stop()
	assert.Error(t, jobCtx.Err())
}

func TestSchedulerStopBeforeStart(t *testing.T) {
	sched := New(slog.Default(), nil)
	sched.Stop()
}
