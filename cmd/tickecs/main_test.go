package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/l1jgo/tickecs/internal/config"
	"github.com/l1jgo/tickecs/internal/data"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestSchemaCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "schema.yaml", `
tables:
  - name: pos
    capacity: 5
    columns:
      - {name: xy, kind: vector, len: 2}
  - name: hp
    columns:
      - {name: hp}
`)
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"schema", "--file", path, "--capacity", "7"})
	require.NoError(t, root.Execute())

	assert.Equal(t, "pos (capacity 5)\n  xy: vector[2]\nhp (capacity 7)\n  hp: scalar\n2 tables\n", out.String())
}

func TestSchemaCommandRejectsBadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "schema.yaml", "tables:\n  - name: a\n    columns:\n      - {name: v, kind: vector}\n")
	root := newRootCmd()
	root.SetArgs([]string{"schema", "--file", path})
	assert.Error(t, root.Execute())
}

func TestRunCommandTicksAndSnapshots(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "schema.yaml", "tables:\n  - name: pos\n")
	scripts := filepath.Join(dir, "scripts")
	require.NoError(t, os.Mkdir(scripts, 0o755))
	writeFile(t, scripts, "spawn.lua", `
function on_tick()
  local id = ecs.spawn()
  ecs.attach("pos", id)
end
`)
	cfgPath := writeFile(t, dir, "tickecs.toml", `
[loop]
tick_rate = "1ms"

[data]
schema_file = "`+filepath.ToSlash(filepath.Join(dir, "schema.yaml"))+`"
scripts_dir = "`+filepath.ToSlash(scripts)+`"

[logging]
level = "error"
`)
	snapPath := filepath.Join(dir, "world.yaml")

	root := newRootCmd()
	root.SetArgs([]string{"run", "--config", cfgPath, "--ticks", "4", "--snapshot", snapPath})
	require.NoError(t, root.Execute())

	snap, err := data.LoadSnapshot(snapPath)
	require.NoError(t, err)
	// the script runs from the second tick on; its last spawn is still pending
	assert.Len(t, snap.Entities.Entries, 2)
	assert.Len(t, snap.Entities.PendingAdd, 1)
	assert.Contains(t, snap.Tables, "pos")
}

func TestNewLogger(t *testing.T) {
	log, err := newLogger(config.LoggingConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))

	log, err = newLogger(config.LoggingConfig{Level: "bogus"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestLoggerConfigFollowsLoggingSection(t *testing.T) {
	c := loggerConfig(config.LoggingConfig{Level: "debug", Format: "console", Caller: true, TimeLayout: "15:04"})
	assert.Equal(t, "console", c.Encoding)
	assert.False(t, c.DisableCaller)
	assert.True(t, c.DisableStacktrace)
	assert.Equal(t, zapcore.DebugLevel, c.Level.Level())
	assert.NotNil(t, c.EncoderConfig.EncodeTime)

	c = loggerConfig(config.LoggingConfig{Level: "error", Format: "json"})
	assert.Equal(t, "json", c.Encoding)
	assert.True(t, c.DisableCaller)
	assert.Equal(t, zapcore.ErrorLevel, c.Level.Level())
}
