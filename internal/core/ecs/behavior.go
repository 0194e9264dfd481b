package ecs

import (
	"time"

	"github.com/rs/xid"
)

// TickFunc runs once per tick for every active behavior. dt is the time since
// the previous tick, now the absolute simulation time.
type TickFunc func(w *World, dt, now time.Duration, args []any)

// Behavior bundles the hooks a World calls. Every hook is optional.
type Behavior struct {
	Name     string
	OnAttach func(w *World)
	OnTick   TickFunc
	OnDetach func(w *World)
}

// NewBehavior returns a behavior with only a tick hook. An empty name is
// replaced by a generated one.
func NewBehavior(name string, tick TickFunc) *Behavior {
	if name == "" {
		name = "behavior-" + xid.New().String()
	}
	return &Behavior{Name: name, OnTick: tick}
}

func (b *Behavior) attach(w *World) {
	if b.OnAttach != nil {
		b.OnAttach(w)
	}
}

func (b *Behavior) tick(w *World, dt, now time.Duration, args []any) {
	if b.OnTick != nil {
		b.OnTick(w, dt, now, args)
	}
}

func (b *Behavior) detach(w *World) {
	if b.OnDetach != nil {
		b.OnDetach(w)
	}
}
