package premium

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"kimchi/internal/exchange"
	"kimchi/internal/metrics"
	"kimchi/internal/model"
)

const cycleKey = "cycle"

// Listener receives every published snapshot, in publication order.
type Listener func(model.CycleState)

// EngineConfig controls the refresh cycle.
type EngineConfig struct {
	// CycleTimeout bounds the fetches of one cycle.
	CycleTimeout time.Duration
	// KeepStaleOnError keeps the previous quotes and premium next to the error of a failed cycle.
	KeepStaleOnError bool
}

// Engine runs refresh cycles and owns the only CycleState.
type Engine struct {
	logger  *slog.Logger
	sources exchange.Sources
	calc    Calculator
	cfg     EngineConfig
	now     func() time.Time

	state  atomic.Pointer[model.CycleState]
	gen    atomic.Uint64
	flight singleflight.Group

	mu        sync.RWMutex
	listeners []Listener
}

// NewEngine creates a new Engine with an empty state.
func NewEngine(logger *slog.Logger, sources exchange.Sources, calc Calculator, cfg EngineConfig) *Engine {
	if calc == nil {
		calc = Standard{}
	}
	e := &Engine{
		logger:  logger,
		sources: sources,
		calc:    calc,
		cfg:     cfg,
		now:     time.Now,
	}
	e.state.Store(&model.CycleState{})
	return e
}

// Snapshot returns the current state. It is never a mix of two cycles.
func (e *Engine) Snapshot() model.CycleState {
	return *e.state.Load()
}

// Subscribe registers a listener for published snapshots.
// Listeners run on the cycle goroutine and must not block.
func (e *Engine) Subscribe(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// Refresh runs a cycle, or joins the one already in flight, and returns its state.
// A failed cycle is reported through the returned state's Err; the error return
// is only set when ctx ends before the cycle does. The cycle itself keeps
// running in that case and still commits.
func (e *Engine) Refresh(ctx context.Context) (model.CycleState, error) {
	detached := context.WithoutCancel(ctx)
	ch := e.flight.DoChan(cycleKey, func() (any, error) {
		return e.runCycle(detached), nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			e.logger.Debug("Joined in-flight refresh cycle")
		}
		return res.Val.(model.CycleState), nil
	case <-ctx.Done():
		return e.Snapshot(), ctx.Err()
	}
}

func (e *Engine) runCycle(ctx context.Context) model.CycleState {
	gen := e.gen.Add(1)
	start := e.now()
	e.publishProgress()

	if e.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.CycleTimeout)
		defer cancel()
	}

	quotes, err := e.fetchAll(ctx)
	next := e.buildState(gen, quotes, err)
	committed := e.commit(next)

	duration := e.now().Sub(start)
	metrics.RecordCycle(next.Err == nil, duration)
	if next.Err != nil {
		e.logger.Error("Refresh cycle failed", "generation", gen, "duration", duration, "error", next.Err)
	} else {
		metrics.SetPremium(next.Premium.Value)
		e.logger.Info("Refresh cycle completed",
			"generation", gen,
			"domestic", next.Domestic.Value,
			"international", next.International.Value,
			"fxRate", next.FX.Value,
			"premium", next.Premium.Display,
			"duration", duration,
		)
	}
	return committed
}

// fetchAll fetches the three sources concurrently and waits for all of them.
func (e *Engine) fetchAll(ctx context.Context) ([3]model.Quote, error) {
	var (
		g      errgroup.Group
		quotes [3]model.Quote
		errs   [3]error
	)

	for i, src := range []exchange.QuoteSource{e.sources.Domestic, e.sources.International, e.sources.FX} {
		g.Go(func() error {
			q, err := src.FetchQuote(ctx)
			if err != nil {
				var srcErr *exchange.SourceError
				if !errors.As(err, &srcErr) {
					err = &exchange.SourceError{Source: src.Source(), Provider: src.GetName(), Err: err}
				}
				metrics.RecordSourceError(string(src.Source()))
				e.logger.Warn("Quote fetch failed", "source", src.Source(), "provider", src.GetName(), "error", err)
				errs[i] = err
				return err
			}
			quotes[i] = q
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return quotes, errors.Join(errs[:]...)
	}
	return quotes, nil
}

// buildState turns one cycle's fetch results into the next full snapshot.
func (e *Engine) buildState(gen uint64, quotes [3]model.Quote, err error) model.CycleState {
	now := e.now()

	if err == nil {
		var value float64
		value, err = e.calc.Compute(quotes[0].Value, quotes[1].Value, quotes[2].Value)
		if err == nil {
			for i := range quotes {
				quotes[i].Generation = gen
			}
			return model.CycleState{
				Generation:    gen,
				Domestic:      &quotes[0],
				International: &quotes[1],
				FX:            &quotes[2],
				Premium: &model.PremiumResult{
					Value:      value,
					Display:    Format(value),
					ComputedAt: now,
					Generation: gen,
				},
				UpdatedAt: now,
			}
		}
	}

	next := model.CycleState{
		Generation: gen,
		Err:        fmt.Errorf("refresh cycle %d: %w", gen, err),
		UpdatedAt:  now,
	}
	if e.cfg.KeepStaleOnError {
		prev := e.state.Load()
		next.Domestic = prev.Domestic
		next.International = prev.International
		next.FX = prev.FX
		next.Premium = prev.Premium
	}
	return next
}

// commit replaces the state with next unless a newer generation is already stored.
func (e *Engine) commit(next model.CycleState) model.CycleState {
	for {
		cur := e.state.Load()
		if cur.Generation >= next.Generation {
			e.logger.Warn("Discarding stale cycle result", "generation", next.Generation, "current", cur.Generation)
			return *cur
		}
		if e.state.CompareAndSwap(cur, &next) {
			break
		}
	}
	e.publish(next)
	return next
}

// publishProgress republishes the current state flagged as in progress.
func (e *Engine) publishProgress() {
	for {
		cur := e.state.Load()
		next := *cur
		next.InProgress = true
		if e.state.CompareAndSwap(cur, &next) {
			e.publish(next)
			return
		}
	}
}

func (e *Engine) publish(s model.CycleState) {
	e.mu.RLock()
	listeners := e.listeners
	e.mu.RUnlock()

	for _, l := range listeners {
		l(s)
	}
}
