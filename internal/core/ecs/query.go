package ecs

import "fmt"

// Operator combines the per-table membership tests of a query clause.
type Operator uint8

const (
	matchDefault Operator = iota
	MatchAll                   // every listed table holds the entity
	MatchAny                   // at least one listed table holds the entity
	MatchExact                 // MatchAll, and no other table of the world holds it
)

func (o Operator) String() string {
	switch o {
	case matchDefault:
		return "default"
	case MatchAll:
		return "all"
	case MatchAny:
		return "any"
	case MatchExact:
		return "exact"
	}
	return fmt.Sprintf("Operator(%d)", uint8(o))
}

// QueryConfig describes a query. Left unset, IncludeOp is MatchAll and
// ExcludeOp is MatchAny.
type QueryConfig struct {
	Include   []*Table
	Exclude   []*Table
	IncludeOp Operator
	ExcludeOp Operator
}

// Query filters a world's entities by table membership. Every evaluation
// recomputes from the world's visible state, so staged mutations never leak
// into a result.
type Query struct {
	include   []*Table
	exclude   []*Table
	includeOp Operator
	excludeOp Operator

	world  *World
	result []EntityID
}

func NewQuery(cfg QueryConfig) *Query {
	q := &Query{
		include:   dedupTables(cfg.Include),
		exclude:   dedupTables(cfg.Exclude),
		includeOp: cfg.IncludeOp,
		excludeOp: cfg.ExcludeOp,
	}
	if q.includeOp == matchDefault {
		q.includeOp = MatchAll
	}
	if q.excludeOp == matchDefault {
		q.excludeOp = MatchAny
	}
	return q
}

// Evaluate returns the entities of w that match the include clause and do not
// match the exclude clause, in the world's entity order.
func (q *Query) Evaluate(w *World) []EntityID {
	return q.evaluate(w, nil, nil)
}

// EvaluateStatus is Evaluate restricted to entities tagged status. The tag is
// read from scope's entity store when scope is non-nil, else from the world's.
func (q *Query) EvaluateStatus(w *World, status Status, scope *Table) []EntityID {
	return q.evaluate(w, &status, scope)
}

// Result returns the entities of the last evaluation.
func (q *Query) Result() []EntityID { return q.result }

// World returns the world of the last evaluation.
func (q *Query) World() *World { return q.world }

func (q *Query) evaluate(w *World, status *Status, scope *Table) []EntityID {
	tags := w.entities
	if scope != nil {
		tags = scope.entities
	}
	result := make([]EntityID, 0, w.entities.Len())
	for e := range w.entities.All() {
		if !q.match(w, e, q.include, q.includeOp) || q.match(w, e, q.exclude, q.excludeOp) {
			continue
		}
		if status != nil {
			if st, ok := tags.Status(e); !ok || st != *status {
				continue
			}
		}
		result = append(result, e)
	}
	q.world = w
	q.result = result
	return result
}

func (q *Query) match(w *World, e EntityID, tables []*Table, op Operator) bool {
	if len(tables) == 0 {
		return false
	}
	switch op {
	case MatchAny:
		for _, t := range tables {
			if t.Has(e) {
				return true
			}
		}
		return false
	case MatchAll:
		return allHave(tables, e)
	case MatchExact:
		if !allHave(tables, e) {
			return false
		}
		for t := range w.tables.All() {
			if t.Has(e) && !containsTable(tables, t) {
				return false
			}
		}
		return true
	}
	return false
}

func allHave(tables []*Table, e EntityID) bool {
	for _, t := range tables {
		if !t.Has(e) {
			return false
		}
	}
	return true
}

func containsTable(tables []*Table, t *Table) bool {
	for _, x := range tables {
		if x == t {
			return true
		}
	}
	return false
}

func dedupTables(tables []*Table) []*Table {
	out := make([]*Table, 0, len(tables))
	for _, t := range tables {
		if t != nil && !containsTable(out, t) {
			out = append(out, t)
		}
	}
	return out
}
