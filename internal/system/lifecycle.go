package system

import (
	"time"

	"github.com/l1jgo/tickecs/internal/core/ecs"
	"github.com/l1jgo/tickecs/internal/core/event"
)

// LifecycleSystem publishes the entities a tick's commit added to or tagged
// removed from its world. Subscribers see them on the following tick.
//
// A behavior does not run on the tick that makes it visible, so the first run
// after attaching publishes every visible entity: active ones count as added.
type LifecycleSystem struct {
	world  string
	bus    *event.Bus
	synced bool
}

func NewLifecycleSystem(world string, bus *event.Bus) *LifecycleSystem {
	return &LifecycleSystem{world: world, bus: bus}
}

func (s *LifecycleSystem) Behavior() *ecs.Behavior {
	return &ecs.Behavior{
		Name:     "lifecycle-" + s.world,
		OnAttach: func(*ecs.World) { s.synced = false },
		OnTick:   s.Update,
	}
}

func (s *LifecycleSystem) Update(w *ecs.World, _, _ time.Duration, _ []any) {
	first := !s.synced
	s.synced = true
	if !first && !w.Entities().Changed() {
		return
	}
	for e, st := range w.Entities().All() {
		switch {
		case st == ecs.StatusAdded, first && st == ecs.StatusActive:
			event.Emit(s.bus, event.EntityAdded{World: s.world, Entity: e})
		case st == ecs.StatusRemoved:
			event.Emit(s.bus, event.EntityRemoved{World: s.world, Entity: e})
		}
	}
}
