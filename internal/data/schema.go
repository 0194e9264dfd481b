package data

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/l1jgo/tickecs/internal/core/ecs"
)

// ColumnEntry is one column of a table definition.
type ColumnEntry struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"` // scalar, vector or opaque
	Len  int    `yaml:"len"`  // vector length
}

// TableEntry defines an attribute table.
type TableEntry struct {
	Name     string        `yaml:"name"`
	Capacity int           `yaml:"capacity"`
	Columns  []ColumnEntry `yaml:"columns"`
	Note     string        `yaml:"note"`
}

type schemaFile struct {
	Tables []TableEntry `yaml:"tables"`
}

// SchemaTable holds the tables built from a schema file, by name.
type SchemaTable struct {
	tables map[string]*ecs.Table
	order  []string
}

// LoadSchemaTable loads a schema.yaml. Tables without a capacity get
// defaultCapacity.
func LoadSchemaTable(path string, defaultCapacity int) (*SchemaTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	var f schemaFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return Build(f.Tables, defaultCapacity)
}

// Build turns table definitions into tables. Names are NFC-normalized so
// visually identical names written in different forms collide.
func Build(entries []TableEntry, defaultCapacity int) (*SchemaTable, error) {
	t := &SchemaTable{
		tables: make(map[string]*ecs.Table, len(entries)),
		order:  make([]string, 0, len(entries)),
	}
	for i := range entries {
		e := &entries[i]
		name := normalizeName(e.Name)
		if name == "" {
			return nil, fmt.Errorf("schema table %d: missing name", i)
		}
		if _, dup := t.tables[name]; dup {
			return nil, fmt.Errorf("schema table %q: duplicate name", name)
		}
		cols := make([]ecs.ColumnDef, 0, len(e.Columns))
		for _, c := range e.Columns {
			kind, err := ParseKind(c.Kind)
			if err != nil {
				return nil, fmt.Errorf("schema table %q column %q: %w", name, c.Name, err)
			}
			cols = append(cols, ecs.ColumnDef{Name: normalizeName(c.Name), Kind: kind, Len: c.Len})
		}
		capacity := e.Capacity
		if capacity <= 0 {
			capacity = defaultCapacity
		}
		tbl, err := ecs.NewTable(name, cols, capacity)
		if err != nil {
			return nil, fmt.Errorf("schema table %q: %w", name, err)
		}
		t.tables[name] = tbl
		t.order = append(t.order, name)
	}
	return t, nil
}

// ParseKind maps a kind name to its ColumnKind. Empty means scalar.
func ParseKind(s string) (ecs.ColumnKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "scalar":
		return ecs.KindScalar, nil
	case "vector":
		return ecs.KindVector, nil
	case "opaque":
		return ecs.KindOpaque, nil
	}
	return 0, fmt.Errorf("%w: unknown column kind %q", ecs.ErrInvalidSchema, s)
}

func normalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Get returns the named table, or nil if none.
func (t *SchemaTable) Get(name string) *ecs.Table {
	return t.tables[normalizeName(name)]
}

// Tables returns every table in file order.
func (t *SchemaTable) Tables() []*ecs.Table {
	out := make([]*ecs.Table, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.tables[name])
	}
	return out
}

// Count returns the total number of tables loaded.
func (t *SchemaTable) Count() int {
	return len(t.tables)
}
