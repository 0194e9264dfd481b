package system

import (
	"time"

	"github.com/l1jgo/tickecs/internal/core/ecs"
)

// Phase defines execution ordering of worlds within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: worlds fed by external input
	PhasePreUpdate               // 1: reconcile last tick's results
	PhaseUpdate                  // 2: simulation
	PhasePostUpdate              // 3: derived state, bookkeeping
	PhaseOutput                  // 4: worlds that only observe others
)

// Ticker is anything the Runner can drive. *ecs.World satisfies it.
type Ticker interface {
	Tick(dt, now time.Duration, args ...any)
}

var _ Ticker = (*ecs.World)(nil)
