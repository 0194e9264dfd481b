package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l1jgo/tickecs/internal/core/ecs"
)

const sampleSchema = `
tables:
  - name: position
    capacity: 50
    columns:
      - {name: xy, kind: vector, len: 2}
  - name: health
    columns:
      - {name: hp}
      - {name: owner, kind: opaque}
  - name: "café"
    note: decomposed accent
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadSchemaTable(t *testing.T) {
	st, err := LoadSchemaTable(writeFile(t, "schema.yaml", sampleSchema), 10)
	require.NoError(t, err)
	require.Equal(t, 3, st.Count())

	pos := st.Get("position")
	require.NotNil(t, pos)
	assert.Equal(t, 50, pos.Capacity())
	assert.Equal(t, []ecs.ColumnDef{{Name: "xy", Kind: ecs.KindVector, Len: 2}}, pos.Columns())

	hp := st.Get("health")
	require.NotNil(t, hp)
	assert.Equal(t, 10, hp.Capacity())
	assert.Equal(t, ecs.KindScalar, hp.Columns()[0].Kind)
	assert.Equal(t, ecs.KindOpaque, hp.Columns()[1].Kind)

	assert.NotNil(t, st.Get("cafe\u0301"), "composed and decomposed names match")
	assert.Nil(t, st.Get("velocity"))

	names := []string{}
	for _, tbl := range st.Tables() {
		names = append(names, tbl.Name())
	}
	assert.Equal(t, []string{"position", "health", "café"}, names)
}

func TestBuildRejectsBadSchemas(t *testing.T) {
	cases := map[string][]TableEntry{
		"missing name":   {{Name: " "}},
		"duplicate name": {{Name: "a"}, {Name: "a"}},
		"unknown kind":   {{Name: "a", Columns: []ColumnEntry{{Name: "c", Kind: "matrix"}}}},
		"vector no len":  {{Name: "a", Columns: []ColumnEntry{{Name: "c", Kind: "vector"}}}},
	}
	for name, entries := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Build(entries, 10)
			require.Error(t, err)
		})
	}

	_, err := Build(cases["unknown kind"], 10)
	assert.ErrorIs(t, err, ecs.ErrInvalidSchema)
}

func TestLoadSchemaTableErrors(t *testing.T) {
	_, err := LoadSchemaTable(filepath.Join(t.TempDir(), "none.yaml"), 10)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadSchemaTable(writeFile(t, "bad.yaml", "tables: [{"), 10)
	assert.ErrorContains(t, err, "parse schema")
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]ecs.ColumnKind{
		"":        ecs.KindScalar,
		"Scalar":  ecs.KindScalar,
		"vector ": ecs.KindVector,
		"OPAQUE":  ecs.KindOpaque,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
