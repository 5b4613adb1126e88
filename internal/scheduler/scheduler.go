// Package scheduler triggers a job immediately and then at a fixed rate until canceled.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrAlreadyStarted is returned by Start on a scheduler that was started or canceled before.
var ErrAlreadyStarted = errors.New("scheduler already started")

// Job is one scheduled unit of work. It must return once ctx is done.
type Job func(ctx context.Context)

// Ticker is the subset of time.Ticker the scheduler needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

type realClock struct{}

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// Scheduler runs a Job on startup and then every interval, measured from Start.
// Runs never overlap: ticks that arrive while the job is running collapse into
// at most one pending run.
type Scheduler struct {
	logger   *slog.Logger
	interval time.Duration
	job      Job
	clock    Clock

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Scheduler. It does nothing until Start is called.
func New(interval time.Duration, job Job, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:   logger,
		interval: interval,
		job:      job,
		clock:    realClock{},
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start triggers the job once right away and then on every tick.
// The schedule stops when ctx is done or Cancel is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("scheduler interval must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	ticker := s.clock.NewTicker(s.interval)
	go s.loop(ctx, ticker)

	s.logger.Info("Scheduler started", "interval", s.interval)
	return nil
}

func (s *Scheduler) loop(ctx context.Context, ticker Ticker) {
	defer close(s.done)
	defer ticker.Stop()

	s.job(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C():
			// Cancel may race with a pending tick.
			if ctx.Err() != nil {
				continue
			}
			s.job(ctx)
		}
	}
}

// Cancel stops all future triggers and waits for the loop to exit.
// It is safe to call more than once, and before Start.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	if !s.started {
		// A scheduler canceled before Start can never run.
		s.started = true
		close(s.done)
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-s.done
}

// Done is closed once the scheduler will not trigger the job again.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}
