package ecs

import (
	"time"

	"go.uber.org/zap"
)

// Engine bundles the shared allocator with helpers that apply one operation
// across several worlds or tables. Batch results hold one entry per
// (world, item) pair, world-major.
type Engine struct {
	alloc *Allocator
	log   *zap.Logger
}

func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{alloc: NewAllocator(), log: log}
}

func (e *Engine) Allocator() *Allocator { return e.alloc }

// CreateWorld builds a world sharing the engine's allocator and logger.
func (e *Engine) CreateWorld(opts ...WorldOption) *World {
	base := []WorldOption{WithAllocator(e.alloc), WithLogger(e.log)}
	return NewWorld(append(base, opts...)...)
}

// CreateEntity allocates a fresh entity id.
func (e *Engine) CreateEntity() EntityID { return e.alloc.Allocate() }

// RecycleEntity returns id to the allocator.
func (e *Engine) RecycleEntity(id EntityID) { e.alloc.Recycle(id) }

func (e *Engine) DefineTable(name string, schema []ColumnDef, capacity int) (*Table, error) {
	return NewTable(name, schema, capacity)
}

func (e *Engine) DefineQuery(cfg QueryConfig) *Query { return NewQuery(cfg) }

func (e *Engine) AddEntity(worlds []*World, entities ...EntityID) []bool {
	return applyEach(worlds, entities, (*World).AddEntity)
}

func (e *Engine) RemoveEntity(worlds []*World, entities ...EntityID) []bool {
	return applyEach(worlds, entities, (*World).RemoveEntity)
}

func (e *Engine) AddTable(worlds []*World, tables ...*Table) []bool {
	return applyEach(worlds, tables, (*World).AddTable)
}

func (e *Engine) RemoveTable(worlds []*World, tables ...*Table) []bool {
	return applyEach(worlds, tables, (*World).RemoveTable)
}

func (e *Engine) AddBehavior(worlds []*World, behaviors ...*Behavior) []bool {
	return applyEach(worlds, behaviors, (*World).AddBehavior)
}

func (e *Engine) RemoveBehavior(worlds []*World, behaviors ...*Behavior) []bool {
	return applyEach(worlds, behaviors, (*World).RemoveBehavior)
}

// AttachEntity results are table-major.
func (e *Engine) AttachEntity(tables []*Table, entities ...EntityID) []bool {
	return applyEach(tables, entities, (*Table).Attach)
}

func (e *Engine) DetachEntity(tables []*Table, entities ...EntityID) []bool {
	return applyEach(tables, entities, (*Table).Detach)
}

func (e *Engine) Tick(worlds []*World, dt, now time.Duration, args ...any) {
	for _, w := range worlds {
		w.Tick(dt, now, args...)
	}
}

func (e *Engine) DestroyWorld(worlds ...*World) {
	for _, w := range worlds {
		w.Destroy()
	}
}

func applyEach[O, I any](owners []O, items []I, fn func(O, I) bool) []bool {
	results := make([]bool, 0, len(owners)*len(items))
	for _, o := range owners {
		for _, it := range items {
			results = append(results, fn(o, it))
		}
	}
	return results
}
