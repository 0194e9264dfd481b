package system

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
)

type entry struct {
	name   string
	phase  Phase
	ticker Ticker
}

// Runner ticks registered worlds in phase order and keeps the absolute clock
// handed to them. Registration order breaks ties within a phase.
type Runner struct {
	entries []entry
	sorted  bool
	now     time.Duration
	ticks   uint64
	log     *zap.Logger
}

func NewRunner(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		entries: make([]entry, 0, 4),
		log:     log,
	}
}

func (r *Runner) Register(name string, phase Phase, t Ticker) {
	r.entries = append(r.entries, entry{name: name, phase: phase, ticker: t})
	r.sorted = false
}

// Now is the absolute time reached by the last Tick.
func (r *Runner) Now() time.Duration { return r.now }

// Ticks counts completed ticks.
func (r *Runner) Ticks() uint64 { return r.ticks }

// Tick advances the clock by dt and ticks every registered world.
func (r *Runner) Tick(dt time.Duration, args ...any) {
	r.ensureSorted()
	r.now += dt
	for _, e := range r.entries {
		e.ticker.Tick(dt, r.now, args...)
	}
	r.ticks++
}

// TickPhase ticks only the worlds of one phase without advancing the clock.
func (r *Runner) TickPhase(phase Phase, dt time.Duration, args ...any) {
	r.ensureSorted()
	for _, e := range r.entries {
		if e.phase == phase {
			e.ticker.Tick(dt, r.now, args...)
		}
	}
}

// Run ticks at the given rate until ctx is done or maxTicks ticks ran
// (maxTicks 0 means no limit). dt is the fixed tick rate, so the simulation
// clock stays deterministic even when a tick overruns.
func (r *Runner) Run(ctx context.Context, rate time.Duration, maxTicks uint64) error {
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	for maxTicks == 0 || r.ticks < maxTicks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			r.Tick(rate)
			if elapsed := time.Since(start); elapsed > rate {
				r.log.Warn("tick overran its budget",
					zap.Uint64("tick", r.ticks),
					zap.Duration("elapsed", elapsed),
					zap.Duration("rate", rate))
			}
		}
	}
	return nil
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.entries, func(i, j int) bool {
			return r.entries[i].phase < r.entries[j].phase
		})
		r.sorted = true
	}
}
