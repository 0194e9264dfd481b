package scripting

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/l1jgo/tickecs/internal/core/ecs"
)

// Hook names a script may define as globals.
const (
	hookAttach = "on_attach"
	hookTick   = "on_tick"
	hookDetach = "on_detach"
)

// Script is one Lua file turned into a behavior. While a hook runs, the ecs
// API functions act on the world the hook was called for.
type Script struct {
	name     string
	vm       *lua.LState
	tables   TableLookup
	world    *ecs.World
	behavior *ecs.Behavior
	log      *zap.Logger
}

// LoadScript runs the file at path in a fresh VM with the ecs API installed.
func LoadScript(path string, tables TableLookup, log *zap.Logger) (*Script, error) {
	if log == nil {
		log = zap.NewNop()
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	s := &Script{
		name:   name,
		vm:     lua.NewState(),
		tables: tables,
		log:    log.With(zap.String("script", name)),
	}
	s.vm.SetGlobal("API_VERSION", lua.LNumber(1))
	s.vm.SetGlobal("ecs", s.vm.SetFuncs(s.vm.NewTable(), s.api()))
	if err := s.vm.DoFile(path); err != nil {
		s.vm.Close()
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return s, nil
}

func (s *Script) Name() string { return s.name }

// Behavior returns the behavior driving this script's hooks. Repeated calls
// return the same value.
func (s *Script) Behavior() *ecs.Behavior {
	if s.behavior == nil {
		s.behavior = &ecs.Behavior{
			Name:     s.name,
			OnAttach: func(w *ecs.World) { s.call(w, hookAttach) },
			OnTick: func(w *ecs.World, dt, now time.Duration, _ []any) {
				s.call(w, hookTick, lua.LNumber(dt.Seconds()), lua.LNumber(now.Seconds()))
			},
			OnDetach: func(w *ecs.World) { s.call(w, hookDetach) },
		}
	}
	return s.behavior
}

func (s *Script) Close() { s.vm.Close() }

// call runs a hook if the script defines it. Errors are logged, never
// returned: one failing script must not stop the tick.
func (s *Script) call(w *ecs.World, hook string, args ...lua.LValue) {
	fn := s.vm.GetGlobal(hook)
	if fn.Type() != lua.LTFunction {
		return
	}
	prev := s.world
	s.world = w
	defer func() { s.world = prev }()

	if err := s.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...); err != nil {
		s.log.Error("lua hook error", zap.String("hook", hook), zap.Error(err))
	}
}

func (s *Script) api() map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		"spawn":   s.luaSpawn,
		"despawn": s.luaDespawn,
		"attach":  s.luaAttach,
		"detach":  s.luaDetach,
		"set":     s.luaSet,
		"get":     s.luaGet,
		"clear":   s.luaClear,
		"count":   s.luaCount,
		"query":   s.luaQuery,
		"log":     s.luaLog,
	}
}

// requireWorld raises a Lua error when the API is used outside a hook, e.g.
// at file load time.
func (s *Script) requireWorld(L *lua.LState) *ecs.World {
	if s.world == nil {
		L.RaiseError("ecs API used outside a hook")
	}
	return s.world
}

func (s *Script) table(L *lua.LState, n int) *ecs.Table {
	name := L.CheckString(n)
	if s.tables == nil {
		return nil
	}
	return s.tables.Get(name)
}

// checkEntity accepts whole numbers in [0, MaxEntityID] only, so a
// fractional or oversized id never aliases another entity.
func checkEntity(L *lua.LState, n int) ecs.EntityID {
	v := float64(L.CheckNumber(n))
	if v < 0 || v != math.Trunc(v) || v > float64(ecs.MaxEntityID) {
		L.ArgError(n, fmt.Sprintf("invalid entity id %v", v))
	}
	return ecs.EntityID(v)
}

// ecs.spawn() -> id or nil when the world is full.
func (s *Script) luaSpawn(L *lua.LState) int {
	w := s.requireWorld(L)
	id, ok := w.CreateEntity()
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(id))
	return 1
}

// ecs.despawn(id) -> bool
func (s *Script) luaDespawn(L *lua.LState) int {
	w := s.requireWorld(L)
	L.Push(lua.LBool(w.RemoveEntity(checkEntity(L, 1))))
	return 1
}

// ecs.attach(table, id) -> bool
func (s *Script) luaAttach(L *lua.LState) int {
	w := s.requireWorld(L)
	tbl := s.table(L, 1)
	id := checkEntity(L, 2)
	L.Push(lua.LBool(tbl != nil && w.Attach(tbl, id)))
	return 1
}

// ecs.detach(table, id) -> bool
func (s *Script) luaDetach(L *lua.LState) int {
	w := s.requireWorld(L)
	tbl := s.table(L, 1)
	id := checkEntity(L, 2)
	L.Push(lua.LBool(tbl != nil && w.Detach(tbl, id)))
	return 1
}

// ecs.set(table, column, id, value) -> bool
func (s *Script) luaSet(L *lua.LState) int {
	s.requireWorld(L)
	tbl := s.table(L, 1)
	col := L.CheckString(2)
	id := checkEntity(L, 3)
	v, ok := toValue(L.CheckAny(4))
	L.Push(lua.LBool(tbl != nil && ok && tbl.Set(col, id, v)))
	return 1
}

// ecs.get(table, column, id) -> number | {numbers} | string | bool | nil
func (s *Script) luaGet(L *lua.LState) int {
	s.requireWorld(L)
	tbl := s.table(L, 1)
	col := L.CheckString(2)
	id := checkEntity(L, 3)
	if tbl == nil {
		L.Push(lua.LNil)
		return 1
	}
	v, ok := tbl.Get(col, id)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(fromValue(L, v))
	return 1
}

// ecs.clear(table, id) -> bool, false if some column held no cell for id
func (s *Script) luaClear(L *lua.LState) int {
	s.requireWorld(L)
	tbl := s.table(L, 1)
	id := checkEntity(L, 2)
	L.Push(lua.LBool(tbl != nil && tbl.DeleteProps(id)))
	return 1
}

// ecs.count() -> visible entities in the world
func (s *Script) luaCount(L *lua.LState) int {
	w := s.requireWorld(L)
	L.Push(lua.LNumber(w.Entities().Len()))
	return 1
}

// ecs.query(include, exclude, [op]) -> {ids}. op is "all" (default), "any"
// or "exact" and applies to the include list.
func (s *Script) luaQuery(L *lua.LState) int {
	w := s.requireWorld(L)
	include := s.tableList(L, 1)
	exclude := s.tableList(L, 2)
	op := ecs.MatchAll
	switch name := L.OptString(3, "all"); name {
	case "all":
	case "any":
		op = ecs.MatchAny
	case "exact":
		op = ecs.MatchExact
	default:
		L.ArgError(3, fmt.Sprintf("unknown operator %q", name))
	}

	q := ecs.NewQuery(ecs.QueryConfig{Include: include, Exclude: exclude, IncludeOp: op})
	out := L.NewTable()
	for _, id := range q.Evaluate(w) {
		out.Append(lua.LNumber(id))
	}
	L.Push(out)
	return 1
}

// ecs.log(msg)
func (s *Script) luaLog(L *lua.LState) int {
	s.log.Info(L.CheckString(1))
	return 0
}

// tableList reads an optional array of table names. Unknown names resolve to
// an unregistered empty table so they never match.
func (s *Script) tableList(L *lua.LState, n int) []*ecs.Table {
	lt := L.OptTable(n, nil)
	if lt == nil {
		return nil
	}
	var out []*ecs.Table
	lt.ForEach(func(_, v lua.LValue) {
		name, ok := v.(lua.LString)
		if !ok {
			L.ArgError(n, "table names must be strings")
		}
		var tbl *ecs.Table
		if s.tables != nil {
			tbl = s.tables.Get(string(name))
		}
		if tbl == nil {
			tbl = ecs.MustTable(string(name), nil, 1)
		}
		out = append(out, tbl)
	})
	return out
}

// toValue converts a Lua value to a cell: numbers are scalars, arrays of
// numbers vectors, strings and booleans opaque.
func toValue(v lua.LValue) (ecs.Value, bool) {
	switch lv := v.(type) {
	case lua.LNumber:
		return ecs.Scalar(float64(lv)), true
	case *lua.LTable:
		n := lv.Len()
		vec := make([]float64, 0, n)
		for i := 1; i <= n; i++ {
			num, ok := lv.RawGetInt(i).(lua.LNumber)
			if !ok {
				return ecs.Value{}, false
			}
			vec = append(vec, float64(num))
		}
		return ecs.Vector(vec...), true
	case lua.LString:
		return ecs.Opaque(string(lv)), true
	case lua.LBool:
		return ecs.Opaque(bool(lv)), true
	}
	return ecs.Value{}, false
}

func fromValue(L *lua.LState, v ecs.Value) lua.LValue {
	switch v.Kind() {
	case ecs.KindScalar:
		f, _ := v.Float()
		return lua.LNumber(f)
	case ecs.KindVector:
		vec, _ := v.Floats()
		t := L.CreateTable(len(vec), 0)
		for _, f := range vec {
			t.Append(lua.LNumber(f))
		}
		return t
	}
	a, _ := v.Any()
	switch x := a.(type) {
	case string:
		return lua.LString(x)
	case bool:
		return lua.LBool(x)
	case float64:
		return lua.LNumber(x)
	case nil:
		return lua.LNil
	}
	return lua.LString(fmt.Sprint(a))
}
