package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/tickecs/internal/core/ecs"
)

// RecycleSystem returns entity ids to the world's allocator once they have
// left the world. An entity seen tagged removed during one tick is evicted by
// the next commit, so its id is recycled on the following tick. Its cells in
// the world's tables are deleted first so a reused id starts blank.
type RecycleSystem struct {
	pending []retired
	log     *zap.Logger
}

// retired is a removed entity and the tables of its world at that time.
// Tables emptied by the removal may be evicted before the id is released.
type retired struct {
	id     ecs.EntityID
	tables []*ecs.Table
}

func NewRecycleSystem(log *zap.Logger) *RecycleSystem {
	if log == nil {
		log = zap.NewNop()
	}
	return &RecycleSystem{log: log}
}

// Behavior wraps the system for attachment to a world.
func (s *RecycleSystem) Behavior() *ecs.Behavior {
	return &ecs.Behavior{
		Name:     "recycle",
		OnTick:   s.Update,
		OnDetach: s.flush,
	}
}

func (s *RecycleSystem) Update(w *ecs.World, _, _ time.Duration, _ []any) {
	s.release(w)
	var tables []*ecs.Table
	for e, st := range w.Entities().All() {
		if st != ecs.StatusRemoved {
			continue
		}
		if tables == nil {
			tables = w.Tables().Keys()
		}
		s.pending = append(s.pending, retired{id: e, tables: tables})
	}
}

// Pending reports how many ids wait for the next tick.
func (s *RecycleSystem) Pending() int { return len(s.pending) }

func (s *RecycleSystem) release(w *ecs.World) {
	if len(s.pending) == 0 {
		return
	}
	alloc := w.Allocator()
	n := 0
	for _, r := range s.pending {
		// Re-added before eviction; the id is still in use.
		if w.Entities().Contains(r.id) || w.Entities().IsStaged(r.id) {
			continue
		}
		for _, t := range r.tables {
			t.DeleteProps(r.id)
		}
		alloc.Recycle(r.id)
		n++
	}
	s.log.Debug("recycled entity ids", zap.Int("count", n))
	s.pending = s.pending[:0]
}

// flush drops what is pending: after detach the removals may never commit.
func (s *RecycleSystem) flush(*ecs.World) {
	s.pending = s.pending[:0]
}
