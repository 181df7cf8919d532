package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgschema/viewmig/internal/engine"
	"github.com/pgschema/viewmig/internal/ir"
)

func fixedStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "migrations"))
	s.Now = func() time.Time { return time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC) }
	return s
}

func createBalance(def string) []ir.Operation {
	return []ir.Operation{{
		Table:    "balance",
		Kind:     ir.KindView,
		Strategy: ir.StrategyCreate,
		Forward:  []ir.Action{ir.CreateAction(ir.KindView, "balance", engine.Default, def)},
		Backward: []ir.Action{ir.DropAction(ir.KindView, "balance", engine.Default)},
	}}
}

func TestStoreLoadMissingDir(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "absent"))

	records, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStoreWriteAndLoad(t *testing.T) {
	s := fixedStore(t)

	first, err := s.Write(createBalance("SELECT 1 as id"), "Initial Views")
	require.NoError(t, err)
	assert.Equal(t, "0001_initial_views", first.Name)
	assert.Len(t, first.Checksum, 64)

	second, err := s.Write(createBalance("SELECT 2 as id"), "")
	require.NoError(t, err)
	assert.Equal(t, "0002_auto_20240301_1230", second.Name)

	records, err := s.Load()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first.Name, records[0].Name)
	assert.Equal(t, second.Name, records[1].Name)
	assert.Equal(t, first.Operations, records[0].Operations)
	assert.True(t, records[0].CreatedAt.Equal(first.CreatedAt))
}

func TestStoreIgnoresForeignFiles(t *testing.T) {
	s := fixedStore(t)
	_, err := s.Write(createBalance("SELECT 1"), "initial")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(s.Dir, "README.md"), []byte("notes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir, "draft.json"), []byte("{}"), 0o644))

	records, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestStoreDetectsTampering(t *testing.T) {
	s := fixedStore(t)
	record, err := s.Write(createBalance("SELECT 1 as id"), "initial")
	require.NoError(t, err)

	path := filepath.Join(s.Dir, record.Name+".json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), "SELECT 1 as id", "SELECT 42 as id", 1)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0o644))

	_, err = s.Load()
	var checksumErr *ChecksumError
	require.ErrorAs(t, err, &checksumErr)
	assert.Equal(t, record.Name, checksumErr.Name)
	assert.Equal(t, record.Checksum, checksumErr.Expected)
}

func TestReplay(t *testing.T) {
	idx := ir.IndexSpec{Name: "summary_id_idx", Columns: []string{"id"}}
	records := []*Record{
		{
			Name:       "0001_initial",
			Operations: createBalance("SELECT 1 as id"),
		},
		{
			Name: "0002_summary",
			Operations: []ir.Operation{
				{
					Table:    "summary",
					Engine:   engine.PostgreSQL,
					Kind:     ir.KindMaterializedView,
					Strategy: ir.StrategyCreate,
					Forward: []ir.Action{
						ir.CreateAction(ir.KindMaterializedView, "summary", engine.PostgreSQL, "SELECT 1 AS id"),
						ir.CreateIndexAction("summary", engine.PostgreSQL, idx),
					},
				},
				{
					Table:    "balance",
					Kind:     ir.KindView,
					Strategy: ir.StrategyReplace,
					Forward:  []ir.Action{ir.ReplaceAction("balance", engine.Default, "SELECT 2 as id")},
				},
			},
		},
	}

	states, err := Replay(records)
	require.NoError(t, err)
	assert.Equal(t, 2, states.Len())

	balance, ok := states.Lookup("balance", engine.Default)
	require.True(t, ok)
	assert.Equal(t, "SELECT 2 as id", balance.Definition)

	summary, ok := states.Lookup("summary", engine.PostgreSQL)
	require.True(t, ok)
	assert.Equal(t, ir.KindMaterializedView, summary.Kind)
	assert.Equal(t, map[string]ir.IndexSpec{"summary_id_idx": idx}, summary.Indexes)
}

func TestReplayReportsBrokenHistory(t *testing.T) {
	records := []*Record{{
		Name: "0001_broken",
		Operations: []ir.Operation{{
			Table:   "missing",
			Forward: []ir.Action{ir.CreateIndexAction("missing", engine.Default, ir.IndexSpec{Name: "i", Columns: []string{"a"}})},
		}},
	}}

	_, err := Replay(records)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0001_broken")
}
