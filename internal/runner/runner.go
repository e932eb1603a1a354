// Package runner drives the inference scheduler at control-cycle rate.
// It pulls one consistent snapshot per cycle from a Source, ticks the
// scheduler, keeps the latest result for the API, and optionally
// persists every tick to the belief store.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/intent.report/internal/infer"
	"github.com/banshee-data/intent.report/internal/monitoring"
)

// Source produces one consistent environment snapshot per control cycle:
// tracked agents, observed velocities, and the predicted-velocity matrix
// must all belong to the same instant. Pairing a velocity from cycle k
// with predictions from cycle k+1 is a correctness bug, so sources build
// the whole TickInput atomically before returning it.
type Source interface {
	Snapshot() (infer.TickInput, error)
}

// Sink receives completed tick results, typically for persistence.
type Sink interface {
	RecordTick(res *infer.TickResult) error
}

// Runner owns the tick loop. One tick runs to completion before the next
// begins; there is no overlap between ticks.
type Runner struct {
	sched    *infer.Scheduler
	source   Source
	sink     Sink // may be nil
	interval time.Duration

	mu        sync.RWMutex
	latest    *infer.TickResult
	tickCount int64
	lastErr   error
}

// New creates a runner. sink may be nil to disable persistence.
func New(sched *infer.Scheduler, source Source, sink Sink, interval time.Duration) (*Runner, error) {
	if sched == nil || source == nil {
		return nil, fmt.Errorf("runner needs a scheduler and a source")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("tick interval must be positive, got %v", interval)
	}
	return &Runner{
		sched:    sched,
		source:   source,
		sink:     sink,
		interval: interval,
	}, nil
}

// Run ticks until ctx is cancelled. Snapshot or persistence failures are
// logged and the loop continues; ticks are periodic, so recovery is
// implicit on the next cycle. Only scheduler-level configuration errors
// (empty hypothesis set) stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.tick(); err != nil {
				return err
			}
		}
	}
}

// tick executes one full cycle: snapshot, infer, publish, persist.
func (r *Runner) tick() error {
	in, err := r.source.Snapshot()
	if err != nil {
		monitoring.Logf("runner: snapshot failed, skipping cycle: %v", err)
		r.setErr(err)
		return nil
	}

	res, err := r.sched.Tick(in)
	if err != nil {
		return fmt.Errorf("inference tick: %w", err)
	}

	r.mu.Lock()
	r.latest = res
	r.tickCount++
	r.lastErr = nil
	r.mu.Unlock()

	if r.sink != nil {
		if err := r.sink.RecordTick(res); err != nil {
			monitoring.Logf("runner: failed to persist tick: %v", err)
			r.setErr(err)
		}
	}
	return nil
}

func (r *Runner) setErr(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
}

// Latest returns the most recent tick result, or nil before the first
// completed tick. Results are immutable once published.
func (r *Runner) Latest() *infer.TickResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

// TickCount returns the number of completed inference ticks.
func (r *Runner) TickCount() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tickCount
}

// LastErr returns the most recent non-fatal cycle error, or nil.
func (r *Runner) LastErr() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}
