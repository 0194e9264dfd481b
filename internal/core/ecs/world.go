package ecs

import (
	"time"

	"go.uber.org/zap"
)

// World owns the entity, table and behavior stores and reconciles them once
// per tick. Mutations requested while a tick runs are staged and only become
// visible at the next tick.
type World struct {
	entities  *Store[EntityID]
	tables    *Store[*Table]
	behaviors *Store[*Behavior]
	capacity  int
	alloc     *Allocator
	log       *zap.Logger
}

type WorldOption func(*World)

// WithCapacity bounds each of the three stores. n <= 0 keeps DefaultCapacity.
func WithCapacity(n int) WorldOption {
	return func(w *World) {
		if n > 0 {
			w.capacity = n
		}
	}
}

// WithAllocator sets the allocator CreateEntity draws ids from.
func WithAllocator(a *Allocator) WorldOption {
	return func(w *World) { w.alloc = a }
}

func WithLogger(log *zap.Logger) WorldOption {
	return func(w *World) {
		if log != nil {
			w.log = log
		}
	}
}

func NewWorld(opts ...WorldOption) *World {
	w := &World{
		entities:  NewStore[EntityID](),
		tables:    NewStore[*Table](),
		behaviors: NewStore[*Behavior](),
		capacity:  DefaultCapacity,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.alloc == nil {
		w.alloc = NewAllocator()
	}
	return w
}

func (w *World) Entities() *Store[EntityID]   { return w.entities }
func (w *World) Tables() *Store[*Table]       { return w.tables }
func (w *World) Behaviors() *Store[*Behavior] { return w.behaviors }
func (w *World) Capacity() int                { return w.capacity }
func (w *World) Allocator() *Allocator        { return w.alloc }

// CreateEntity allocates an id and stages it. ok is false when the world is
// full; the id is recycled in that case.
func (w *World) CreateEntity() (id EntityID, ok bool) {
	id = w.alloc.Allocate()
	if !w.AddEntity(id) {
		w.alloc.Recycle(id)
		return id, false
	}
	return id, true
}

func (w *World) AddEntity(e EntityID) bool {
	if w.entities.LenWithPending() >= w.capacity {
		w.log.Debug("world full, entity rejected", zap.Uint32("entity", uint32(e)), zap.Int("capacity", w.capacity))
		return false
	}
	return w.entities.Add(e)
}

// RemoveEntity stages e for removal and detaches it from every table of the
// world that holds it.
func (w *World) RemoveEntity(e EntityID) bool {
	if !w.entities.canRemove(e) {
		return false
	}
	w.eachTable(func(t *Table) {
		if t.holds(e) {
			t.Detach(e)
		}
	})
	return w.entities.Remove(e)
}

func (w *World) AddTable(t *Table) bool {
	if w.tables.LenWithPending() >= w.capacity {
		w.log.Debug("world full, table rejected", zap.String("table", t.Name()), zap.Int("capacity", w.capacity))
		return false
	}
	return w.tables.Add(t)
}

func (w *World) RemoveTable(t *Table) bool {
	return w.tables.Remove(t)
}

// Attach attaches e to t and registers t with the world when needed.
func (w *World) Attach(t *Table, e EntityID) bool {
	register := !w.hasTable(t)
	if register && (w.tables.LenWithPending() >= w.capacity || !w.tables.canAdd(t)) {
		return false
	}
	if !t.Attach(e) {
		return false
	}
	if register {
		w.tables.Add(t)
	}
	return true
}

// Detach stages e for removal from t.
func (w *World) Detach(t *Table, e EntityID) bool {
	return t.Detach(e)
}

// hasTable reports whether t is visible or pending addition and not pending
// removal.
func (w *World) hasTable(t *Table) bool {
	if w.tables.IsStagedRemove(t) {
		return false
	}
	return w.tables.Contains(t) || w.tables.IsStagedAdd(t)
}

// AddBehavior runs the attach hook and stages b. b starts ticking from the
// tick after the one that makes it visible.
func (w *World) AddBehavior(b *Behavior) bool {
	if w.behaviors.LenWithPending() >= w.capacity {
		w.log.Debug("world full, behavior rejected", zap.String("behavior", b.Name), zap.Int("capacity", w.capacity))
		return false
	}
	if !w.behaviors.canAdd(b) {
		return false
	}
	b.attach(w)
	return w.behaviors.Add(b)
}

// RemoveBehavior runs the detach hook and stages b for removal.
func (w *World) RemoveBehavior(b *Behavior) bool {
	if !w.behaviors.canRemove(b) {
		return false
	}
	b.detach(w)
	return w.behaviors.Remove(b)
}

// Tick commits every store and then runs the tick hook of each active
// behavior in attachment order.
func (w *World) Tick(dt, now time.Duration, args ...any) {
	w.entities.Commit()

	w.tables.Commit()
	for t := range w.tables.All() {
		t.entities.Commit()
		if t.entities.Len() == 0 {
			w.tables.RemoveImmediate(t)
			w.log.Debug("evicted empty table", zap.String("table", t.Name()))
		}
	}

	w.behaviors.Commit()
	for b, st := range w.behaviors.All() {
		if st == StatusActive {
			b.tick(w, dt, now, args)
		}
	}
}

// Destroy clears the world's stores. Tables themselves are left intact since
// other worlds may share them.
func (w *World) Destroy() {
	w.entities.Destroy()
	w.tables.Destroy()
	w.behaviors.Destroy()
}

func (w *World) eachTable(fn func(*Table)) {
	for t := range w.tables.All() {
		fn(t)
	}
	for _, t := range w.tables.pendingAdd.items {
		fn(t)
	}
}
