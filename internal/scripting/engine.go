package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/l1jgo/tickecs/internal/core/ecs"
)

// TableLookup resolves table names used by scripts. *data.SchemaTable
// satisfies it.
type TableLookup interface {
	Get(name string) *ecs.Table
}

// Engine owns the scripts loaded from one directory. Each script runs in its
// own VM. Single-goroutine access only (tick loop).
type Engine struct {
	scripts []*Script
	tables  TableLookup
	log     *zap.Logger
}

// NewEngine loads every .lua file in scriptsDir, in name order. A missing
// directory yields an engine with no scripts.
func NewEngine(scriptsDir string, tables TableLookup, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{tables: tables, log: log}
	if err := e.loadDir(scriptsDir); err != nil {
		e.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		s, err := LoadScript(path, e.tables, e.log)
		if err != nil {
			return err
		}
		e.scripts = append(e.scripts, s)
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Scripts returns the loaded scripts in load order.
func (e *Engine) Scripts() []*Script { return e.scripts }

// Behaviors returns one behavior per loaded script.
func (e *Engine) Behaviors() []*ecs.Behavior {
	out := make([]*ecs.Behavior, 0, len(e.scripts))
	for _, s := range e.scripts {
		out = append(out, s.Behavior())
	}
	return out
}

// Close shuts down every VM.
func (e *Engine) Close() {
	for _, s := range e.scripts {
		s.Close()
	}
	e.scripts = nil
}
