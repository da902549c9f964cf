// Package scheduler runs the recurring sweeps. One goroutine per registered
// job; a job finishes its run before its own next tick, while jobs on
// different timers are free to overlap.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{ticker: time.NewTicker(d)}
}

type realTicker struct {
	ticker *time.Ticker
}

func (t *realTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t *realTicker) Stop() {
	t.ticker.Stop()
}

type Job func(ctx context.Context)

type scheduledJob struct {
	name       string
	interval   time.Duration
	run        Job
	runAtStart bool
}

type Scheduler struct {
	logger *slog.Logger
	clock  Clock
	jobs   []scheduledJob
	cancel context.CancelFunc
	group  *errgroup.Group
}

// New builds a scheduler. A nil clock means the wall clock; tests inject a
// fake one.
func New(logger *slog.Logger, clock Clock) *Scheduler {
	if clock == nil {
		clock = realClock{}
	}

	return &Scheduler{
		logger: logger.With("component", "scheduler"),
		clock:  clock,
	}
}

func (s *Scheduler) Every(name string, interval time.Duration, job Job) {
	s.jobs = append(s.jobs, scheduledJob{
		name:     name,
		interval: interval,
		run:      job,
	})
}

// EveryFromStart registers a job that additionally runs once as soon as the
// scheduler starts, without waiting out the first interval.
func (s *Scheduler) EveryFromStart(name string, interval time.Duration, job Job) {
	s.jobs = append(s.jobs, scheduledJob{
		name:       name,
		interval:   interval,
		run:        job,
		runAtStart: true,
	})
}

// Start launches every registered job. Cancellation of ctx (or Stop) ends
// future firings; an in-flight run is left to finish.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	group, ctx := errgroup.WithContext(ctx)
	s.group = group

	for _, job := range s.jobs {
		group.Go(func() error {
			s.runLoop(ctx, job)
			return nil
		})
	}

	s.logger.Info("scheduler started", slog.Int("jobs", len(s.jobs)))
}

func (s *Scheduler) runLoop(ctx context.Context, job scheduledJob) {
	ticker := s.clock.NewTicker(job.interval)
	defer ticker.Stop()

	if job.runAtStart {
		job.run(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("job stopped", slog.String("job", job.name))
			return
		case <-ticker.C():
			job.run(ctx)
		}
	}
}

// Stop cancels the timers and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}

	s.cancel()
	_ = s.group.Wait()
	s.logger.Info("scheduler stopped")
}
