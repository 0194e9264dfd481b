package ecs

import (
	"errors"
	"fmt"
	"slices"
)

// DefaultCapacity bounds worlds and tables built without an explicit capacity.
const DefaultCapacity = 1000

// ErrInvalidSchema is returned by NewTable for malformed column definitions.
var ErrInvalidSchema = errors.New("invalid table schema")

// ColumnKind selects the value shape a column stores.
type ColumnKind uint8

const (
	KindScalar ColumnKind = iota // float64
	KindVector                   // []float64 of a fixed length
	KindOpaque                   // any value, stored as is
)

func (k ColumnKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindVector:
		return "vector"
	case KindOpaque:
		return "opaque"
	}
	return fmt.Sprintf("ColumnKind(%d)", uint8(k))
}

// ColumnDef describes one named column. Len is the vector length and must be
// zero for other kinds.
type ColumnDef struct {
	Name string
	Kind ColumnKind
	Len  int
}

// Value is a column cell. The zero Value holds nothing and every column
// rejects it.
type Value struct {
	kind   ColumnKind
	set    bool
	scalar float64
	vector []float64
	opaque any
}

func Scalar(v float64) Value { return Value{kind: KindScalar, set: true, scalar: v} }

// Vector copies v so later writes to the caller's slice do not leak in.
func Vector(v ...float64) Value {
	return Value{kind: KindVector, set: true, vector: slices.Clone(v)}
}

func Opaque(v any) Value { return Value{kind: KindOpaque, set: true, opaque: v} }

func (v Value) Kind() ColumnKind { return v.kind }

func (v Value) Float() (float64, bool) { return v.scalar, v.set && v.kind == KindScalar }

// Floats returns a copy of a vector value.
func (v Value) Floats() ([]float64, bool) {
	if !v.set || v.kind != KindVector {
		return nil, false
	}
	return slices.Clone(v.vector), true
}

func (v Value) Any() (any, bool) { return v.opaque, v.set && v.kind == KindOpaque }

type column struct {
	def    ColumnDef
	values map[EntityID]Value
}

func (c *column) accepts(v Value) bool {
	if !v.set || v.kind != c.def.Kind {
		return false
	}
	return c.def.Kind != KindVector || len(v.vector) == c.def.Len
}

// Table is an attribute table: capacity-bounded named columns keyed by entity,
// plus the store of entities attached to it. Column cells and attachment are
// bounded independently; writing a cell does not attach the entity.
//
// A Table may be registered with several worlds at once. Each world commits
// the table's entity store during its own tick.
type Table struct {
	name     string
	capacity int
	entities *Store[EntityID]
	columns  map[string]*column
	order    []string
}

// NewTable validates schema and builds an empty table. capacity <= 0 selects
// DefaultCapacity.
func NewTable(name string, schema []ColumnDef, capacity int) (*Table, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	t := &Table{
		name:     name,
		capacity: capacity,
		entities: NewStore[EntityID](),
		columns:  make(map[string]*column, len(schema)),
		order:    make([]string, 0, len(schema)),
	}
	for i, def := range schema {
		if def.Name == "" {
			return nil, fmt.Errorf("%w: column %d has no name", ErrInvalidSchema, i)
		}
		if _, dup := t.columns[def.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrInvalidSchema, def.Name)
		}
		switch def.Kind {
		case KindScalar, KindOpaque:
			if def.Len != 0 {
				return nil, fmt.Errorf("%w: %s column %q cannot have a length", ErrInvalidSchema, def.Kind, def.Name)
			}
		case KindVector:
			if def.Len <= 0 {
				return nil, fmt.Errorf("%w: vector column %q needs a positive length", ErrInvalidSchema, def.Name)
			}
		default:
			return nil, fmt.Errorf("%w: column %q has unknown kind %d", ErrInvalidSchema, def.Name, uint8(def.Kind))
		}
		t.columns[def.Name] = &column{def: def, values: make(map[EntityID]Value)}
		t.order = append(t.order, def.Name)
	}
	return t, nil
}

// MustTable is NewTable for schemas known to be valid. It panics on error.
func MustTable(name string, schema []ColumnDef, capacity int) *Table {
	t, err := NewTable(name, schema, capacity)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) Name() string               { return t.name }
func (t *Table) Capacity() int              { return t.capacity }
func (t *Table) Entities() *Store[EntityID] { return t.entities }

// Columns returns the column definitions in schema order.
func (t *Table) Columns() []ColumnDef {
	defs := make([]ColumnDef, 0, len(t.order))
	for _, name := range t.order {
		defs = append(defs, t.columns[name].def)
	}
	return defs
}

// Attach stages e as carrying this table. Fails when the table is full,
// counting pending attachments.
func (t *Table) Attach(e EntityID) bool {
	if t.entities.LenWithPending() >= t.capacity {
		return false
	}
	return t.entities.Add(e)
}

// Detach stages e for removal from this table.
func (t *Table) Detach(e EntityID) bool {
	return t.entities.Remove(e)
}

// Has reports whether e is visibly attached.
func (t *Table) Has(e EntityID) bool { return t.entities.Contains(e) }

// holds reports whether e is attached or pending attachment.
func (t *Table) holds(e EntityID) bool {
	return t.entities.Contains(e) || t.entities.IsStaged(e)
}

// Get returns the cell of column for e. Vector cells are returned as copies.
func (t *Table) Get(col string, e EntityID) (Value, bool) {
	c, ok := t.columns[col]
	if !ok {
		return Value{}, false
	}
	v, ok := c.values[e]
	if ok && v.kind == KindVector {
		v.vector = slices.Clone(v.vector)
	}
	return v, ok
}

// Set writes the cell of column for e. It fails for unknown columns, values
// of the wrong shape, and new cells once the column holds capacity cells.
func (t *Table) Set(col string, e EntityID, v Value) bool {
	c, ok := t.columns[col]
	if !ok || !c.accepts(v) {
		return false
	}
	if _, exists := c.values[e]; !exists && len(c.values) >= t.capacity {
		return false
	}
	if v.kind == KindVector {
		v.vector = slices.Clone(v.vector)
	}
	c.values[e] = v
	return true
}

// Delete clears the cell of column for e.
func (t *Table) Delete(col string, e EntityID) bool {
	c, ok := t.columns[col]
	if !ok {
		return false
	}
	if _, exists := c.values[e]; !exists {
		return false
	}
	delete(c.values, e)
	return true
}

// Props returns every present cell of e keyed by column name.
func (t *Table) Props(e EntityID) map[string]Value {
	props := make(map[string]Value, len(t.columns))
	for _, name := range t.order {
		if v, ok := t.Get(name, e); ok {
			props[name] = v
		}
	}
	return props
}

// SetProps writes every given cell, or none of them if any write would fail.
func (t *Table) SetProps(e EntityID, props map[string]Value) bool {
	for name, v := range props {
		c, ok := t.columns[name]
		if !ok || !c.accepts(v) {
			return false
		}
		if _, exists := c.values[e]; !exists && len(c.values) >= t.capacity {
			return false
		}
	}
	for name, v := range props {
		t.Set(name, e, v)
	}
	return true
}

// DeleteProps clears every cell of e and reports whether every column had one.
func (t *Table) DeleteProps(e EntityID) bool {
	ok := true
	for _, name := range t.order {
		if !t.Delete(name, e) {
			ok = false
		}
	}
	return ok
}

// Destroy detaches everything and clears every column.
func (t *Table) Destroy() {
	t.entities.Destroy()
	for _, c := range t.columns {
		clear(c.values)
	}
}
