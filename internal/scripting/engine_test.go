package scripting

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/l1jgo/tickecs/internal/core/ecs"
)

type tableMap map[string]*ecs.Table

func (m tableMap) Get(name string) *ecs.Table { return m[name] }

func writeScript(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func newTables() tableMap {
	return tableMap{
		"pos": ecs.MustTable("pos", []ecs.ColumnDef{{Name: "xy", Kind: ecs.KindVector, Len: 2}}, 10),
		"hp":  ecs.MustTable("hp", []ecs.ColumnDef{{Name: "hp", Kind: ecs.KindScalar}, {Name: "tag", Kind: ecs.KindOpaque}}, 10),
	}
}

func tickN(w *ecs.World, n int) {
	for i := 0; i < n; i++ {
		w.Tick(100*time.Millisecond, time.Duration(i+1)*100*time.Millisecond)
	}
}

func TestScriptHooks(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "counter.lua", `
attached = 0
ticks = 0
last_dt = 0
last_now = 0
detached = 0
function on_attach() attached = attached + 1 end
function on_tick(dt, now)
  ticks = ticks + 1
  last_dt = dt
  last_now = now
end
function on_detach() detached = detached + 1 end
`)
	s, err := LoadScript(path, nil, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "counter", s.Name())
	assert.Same(t, s.Behavior(), s.Behavior())

	w := ecs.NewWorld()
	require.True(t, w.AddBehavior(s.Behavior()))
	tickN(w, 3)
	require.True(t, w.RemoveBehavior(s.Behavior()))

	num := func(name string) float64 { return float64(s.vm.GetGlobal(name).(lua.LNumber)) }
	assert.Equal(t, 1.0, num("attached"))
	assert.Equal(t, 2.0, num("ticks"))
	assert.InDelta(t, 0.1, num("last_dt"), 1e-9)
	assert.InDelta(t, 0.3, num("last_now"), 1e-9)
	assert.Equal(t, 1.0, num("detached"))
}

func TestScriptWorldAPI(t *testing.T) {
	dir := t.TempDir()
	tables := newTables()
	path := writeScript(t, dir, "spawner.lua", `
spawned = {}
function on_tick(dt, now)
  if #spawned == 0 then
    local a = ecs.spawn()
    local b = ecs.spawn()
    spawned = {a, b}
    ecs.attach("pos", a)
    ecs.attach("pos", b)
    ecs.attach("hp", a)
    ok_vec = ecs.set("pos", "xy", a, {1, 2})
    bad_vec = ecs.set("pos", "xy", a, {1, 2, 3})
    ok_hp = ecs.set("hp", "hp", a, 42)
    ok_tag = ecs.set("hp", "tag", a, "hero")
    unknown = ecs.attach("nope", a)
    return
  end
  count = ecs.count()
  both = ecs.query({"pos", "hp"})
  pos_only = ecs.query({"pos"}, {"hp"})
  either = ecs.query({"pos", "hp"}, nil, "any")
  hp = ecs.get("hp", "hp", spawned[1])
  xy = ecs.get("pos", "xy", spawned[1])
  tag = ecs.get("hp", "tag", spawned[1])
  missing = ecs.get("hp", "hp", spawned[2])
end
`)
	s, err := LoadScript(path, tables, nil)
	require.NoError(t, err)
	defer s.Close()

	w := ecs.NewWorld()
	w.AddBehavior(s.Behavior())
	tickN(w, 2) // spawn on the second tick
	tickN(w, 1) // spawned entities become visible, then the script reads

	g := s.vm.GetGlobal
	assert.Equal(t, lua.LTrue, g("ok_vec"))
	assert.Equal(t, lua.LFalse, g("bad_vec"))
	assert.Equal(t, lua.LTrue, g("ok_hp"))
	assert.Equal(t, lua.LTrue, g("ok_tag"))
	assert.Equal(t, lua.LFalse, g("unknown"))

	assert.Equal(t, lua.LNumber(2), g("count"))
	assert.Equal(t, []float64{0}, luaNumbers(t, g("both")))
	assert.Equal(t, []float64{1}, luaNumbers(t, g("pos_only")))
	assert.Equal(t, []float64{0, 1}, luaNumbers(t, g("either")))
	assert.Equal(t, lua.LNumber(42), g("hp"))
	assert.Equal(t, []float64{1, 2}, luaNumbers(t, g("xy")))
	assert.Equal(t, lua.LString("hero"), g("tag"))
	assert.Equal(t, lua.LNil, g("missing"))

	v, ok := tables["hp"].Get("hp", 0)
	require.True(t, ok)
	f, _ := v.Float()
	assert.Equal(t, 42.0, f)
}

func TestScriptDespawn(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "reaper.lua", `
function on_tick()
  removed = ecs.despawn(7)
end
`)
	s, err := LoadScript(path, nil, nil)
	require.NoError(t, err)
	defer s.Close()

	w := ecs.NewWorld()
	w.AddEntity(7)
	w.AddBehavior(s.Behavior())
	tickN(w, 2)
	assert.Equal(t, lua.LTrue, s.vm.GetGlobal("removed"))
	assert.True(t, w.Entities().IsStagedRemove(7))
}

func TestScriptErrorsAreLogged(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "broken.lua", `
function on_tick() error("boom") end
`)
	core, logs := observer.New(zap.ErrorLevel)
	s, err := LoadScript(path, nil, zap.New(core))
	require.NoError(t, err)
	defer s.Close()

	ran := false
	w := ecs.NewWorld()
	w.AddBehavior(s.Behavior())
	w.AddBehavior(ecs.NewBehavior("after", func(*ecs.World, time.Duration, time.Duration, []any) { ran = true }))
	tickN(w, 2)

	assert.True(t, ran, "a failing script does not stop the tick")
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "lua hook error", entry.Message)
	assert.Equal(t, "broken", entry.ContextMap()["script"])
	assert.Equal(t, "on_tick", entry.ContextMap()["hook"])
}

func TestLoadScriptErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadScript(writeScript(t, dir, "syntax.lua", "function ("), nil, nil)
	assert.Error(t, err)

	_, err = LoadScript(writeScript(t, dir, "eager.lua", "ecs.spawn()"), nil, nil)
	assert.ErrorContains(t, err, "outside a hook")
}

func TestNewEngine(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "b.lua", "function on_tick() end")
	writeScript(t, dir, "a.lua", "function on_tick() end")
	writeScript(t, dir, "notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	e, err := NewEngine(dir, newTables(), nil)
	require.NoError(t, err)
	defer e.Close()

	require.Len(t, e.Scripts(), 2)
	assert.Equal(t, "a", e.Scripts()[0].Name())
	bs := e.Behaviors()
	require.Len(t, bs, 2)
	assert.Equal(t, "b", bs[1].Name)

	empty, err := NewEngine(filepath.Join(dir, "missing"), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Scripts())

	writeScript(t, dir, "c.lua", "function (")
	_, err = NewEngine(dir, nil, nil)
	assert.ErrorContains(t, err, "load scripts")
}

func luaNumbers(t *testing.T, v lua.LValue) []float64 {
	t.Helper()
	tbl, ok := v.(*lua.LTable)
	require.True(t, ok, "expected a table, got %s", v.Type())
	out := []float64{}
	for i := 1; i <= tbl.Len(); i++ {
		out = append(out, float64(tbl.RawGetInt(i).(lua.LNumber)))
	}
	return out
}

func TestScriptClear(t *testing.T) {
	dir := t.TempDir()
	tables := newTables()
	path := writeScript(t, dir, "clear.lua", `
function on_tick()
  ecs.set("hp", "hp", 5, 1)
  ecs.set("hp", "tag", 5, true)
  full = ecs.clear("hp", 5)
  again = ecs.clear("hp", 5)
end
`)
	s, err := LoadScript(path, tables, nil)
	require.NoError(t, err)
	defer s.Close()

	w := ecs.NewWorld()
	w.AddBehavior(s.Behavior())
	tickN(w, 2)

	assert.Equal(t, lua.LTrue, s.vm.GetGlobal("full"))
	assert.Equal(t, lua.LFalse, s.vm.GetGlobal("again"))
	assert.Empty(t, tables["hp"].Props(5))
}

func TestScriptRejectsInvalidEntityIDs(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "ids.lua", `
results = {}
local function try(id)
  local ok = pcall(ecs.despawn, id)
  table.insert(results, ok)
end
function on_tick()
  try(1.5)
  try(-1)
  try(4294967296)
  try(4294967295)
  try(1)
end
`)
	s, err := LoadScript(path, nil, nil)
	require.NoError(t, err)
	defer s.Close()

	w := ecs.NewWorld()
	w.AddEntity(1)
	w.AddBehavior(s.Behavior())
	tickN(w, 2)

	results, ok := s.vm.GetGlobal("results").(*lua.LTable)
	require.True(t, ok)
	var got []bool
	for i := 1; i <= results.Len(); i++ {
		got = append(got, results.RawGetInt(i) == lua.LTrue)
	}
	assert.Equal(t, []bool{false, false, false, false, true}, got)
	assert.True(t, w.Entities().IsStagedRemove(1), "only the whole id 1 reached the world")
}
