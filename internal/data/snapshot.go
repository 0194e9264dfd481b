package data

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/l1jgo/tickecs/internal/core/ecs"
)

// WorldSnapshot is the file form of a world's entity store and the entity
// stores of its tables, keyed by table name.
type WorldSnapshot struct {
	Entities ecs.Snapshot[ecs.EntityID]            `yaml:"entities"`
	Tables   map[string]ecs.Snapshot[ecs.EntityID] `yaml:"tables"`
}

// CaptureWorld snapshots w's entities and every visible table's membership.
func CaptureWorld(w *ecs.World) *WorldSnapshot {
	snap := &WorldSnapshot{
		Entities: w.Entities().Serialize(),
		Tables:   make(map[string]ecs.Snapshot[ecs.EntityID]),
	}
	for tbl := range w.Tables().All() {
		snap.Tables[tbl.Name()] = tbl.Entities().Serialize()
	}
	return snap
}

// ErrOverCapacity is returned by RestoreWorld when a snapshot holds more
// members than the world or a table can take.
var ErrOverCapacity = errors.New("snapshot exceeds capacity")

// RestoreWorld loads snap into w and the schema's tables. Every store is
// validated before any is modified, including world and table capacities.
// Restored ids are reserved in w's allocator so they are not issued again.
func RestoreWorld(w *ecs.World, schema *SchemaTable, snap *WorldSnapshot) error {
	scratch := ecs.NewStore[ecs.EntityID]()
	if err := scratch.Deserialize(snap.Entities); err != nil {
		return fmt.Errorf("restore entities: %w", err)
	}
	if n := snapshotLen(snap.Entities); n > w.Capacity() {
		return fmt.Errorf("restore entities: %w: %d members, world capacity %d", ErrOverCapacity, n, w.Capacity())
	}
	for _, e := range snapshotIDs(snap.Entities) {
		if e > ecs.MaxEntityID {
			return fmt.Errorf("restore entities: %w: %d", ecs.ErrIDOutOfRange, uint32(e))
		}
	}

	newTables := 0
	for name, ts := range snap.Tables {
		tbl := schema.Get(name)
		if tbl == nil {
			return fmt.Errorf("restore table %q: not in schema", name)
		}
		if err := scratch.Deserialize(ts); err != nil {
			return fmt.Errorf("restore table %q: %w", name, err)
		}
		if n := snapshotLen(ts); n > tbl.Capacity() {
			return fmt.Errorf("restore table %q: %w: %d members, table capacity %d", name, ErrOverCapacity, n, tbl.Capacity())
		}
		if !w.Tables().Contains(tbl) && !w.Tables().IsStagedAdd(tbl) {
			newTables++
		}
	}
	if n := w.Tables().LenWithPending() + newTables; n > w.Capacity() {
		return fmt.Errorf("restore tables: %w: %d tables, world capacity %d", ErrOverCapacity, n, w.Capacity())
	}

	if err := w.Entities().Deserialize(snap.Entities); err != nil {
		return fmt.Errorf("restore entities: %w", err)
	}
	alloc := w.Allocator()
	for _, e := range snapshotIDs(snap.Entities) {
		if err := alloc.Reserve(e); err != nil {
			return fmt.Errorf("restore entities: %w", err)
		}
	}
	for name, ts := range snap.Tables {
		tbl := schema.Get(name)
		if err := tbl.Entities().Deserialize(ts); err != nil {
			return fmt.Errorf("restore table %q: %w", name, err)
		}
		if !w.Tables().IsStagedAdd(tbl) {
			w.Tables().AddImmediate(tbl)
		}
	}
	return nil
}

func snapshotLen(s ecs.Snapshot[ecs.EntityID]) int {
	return len(s.Entries) + len(s.PendingAdd)
}

func snapshotIDs(s ecs.Snapshot[ecs.EntityID]) []ecs.EntityID {
	ids := make([]ecs.EntityID, 0, snapshotLen(s))
	for _, e := range s.Entries {
		ids = append(ids, e.Member)
	}
	return append(ids, s.PendingAdd...)
}

// SaveSnapshot writes snap as YAML.
func SaveSnapshot(path string, snap *WorldSnapshot) error {
	raw, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot written by SaveSnapshot.
func LoadSnapshot(path string) (*WorldSnapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap WorldSnapshot
	if err := yaml.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &snap, nil
}
