package ir

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pgschema/viewmig/internal/engine"
)

func TestStateSetApply(t *testing.T) {
	s := NewStateSet()
	idx := IndexSpec{Name: "mv_id", Columns: []string{"id"}, Unique: true}

	actions := []Action{
		CreateAction(KindMaterializedView, "mv", engine.PostgreSQL, "SELECT 1 AS id"),
		CreateIndexAction("mv", engine.PostgreSQL, idx),
		CreateAction(KindView, "v", engine.Default, "SELECT 2"),
		ReplaceAction("v", engine.Default, "SELECT 3"),
	}
	if err := s.ApplyAll(actions); err != nil {
		t.Fatalf("ApplyAll() error = %v", err)
	}

	want := map[StateKey]RecordedState{
		{Table: "mv", Engine: engine.PostgreSQL}: {
			Table: "mv", Engine: engine.PostgreSQL, Kind: KindMaterializedView,
			Definition: "SELECT 1 AS id", Indexes: map[string]IndexSpec{"mv_id": idx},
		},
		{Table: "v"}: {
			Table: "v", Kind: KindView, Definition: "SELECT 3", Indexes: map[string]IndexSpec{},
		},
	}
	if diff := cmp.Diff(want, s.Snapshot()); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}

	if err := s.Apply(DropAction(KindMaterializedView, "mv", engine.PostgreSQL)); err != nil {
		t.Fatalf("Apply(drop) error = %v", err)
	}
	if _, ok := s.Lookup("mv", engine.PostgreSQL); ok {
		t.Error("dropped materialized view still recorded")
	}
}

func TestStateSetRejectsIndexOnPlainView(t *testing.T) {
	s := NewStateSet()
	if err := s.Apply(CreateAction(KindView, "v", engine.PostgreSQL, "SELECT 1")); err != nil {
		t.Fatal(err)
	}
	err := s.Apply(CreateIndexAction("v", engine.PostgreSQL, IndexSpec{Name: "i", Columns: []string{"a"}}))
	if err == nil {
		t.Error("expected error creating index on plain view")
	}
	if err := s.Apply(CreateIndexAction("missing", engine.PostgreSQL, IndexSpec{Name: "i"})); err == nil {
		t.Error("expected error creating index on unknown view")
	}
}

func TestStateSetLookupReturnsCopy(t *testing.T) {
	s := NewStateSet()
	_ = s.Apply(CreateAction(KindMaterializedView, "mv", engine.PostgreSQL, "SELECT 1"))
	_ = s.Apply(CreateIndexAction("mv", engine.PostgreSQL, IndexSpec{Name: "i", Columns: []string{"a"}}))

	st, _ := s.Lookup("mv", engine.PostgreSQL)
	delete(st.Indexes, "i")

	again, _ := s.Lookup("mv", engine.PostgreSQL)
	if _, ok := again.Indexes["i"]; !ok {
		t.Error("mutating a looked-up state changed the set")
	}
}

func TestIndexSpecEqual(t *testing.T) {
	base := IndexSpec{Name: "a", Columns: []string{"x"}}
	tests := []struct {
		name  string
		other IndexSpec
		want  bool
	}{
		{"identical", IndexSpec{Name: "a", Columns: []string{"x"}}, true},
		{"explicit btree", IndexSpec{Name: "a", Columns: []string{"x"}, Method: "BTREE"}, true},
		{"unique differs", IndexSpec{Name: "a", Columns: []string{"x"}, Unique: true}, false},
		{"column order", IndexSpec{Name: "a", Columns: []string{"x", "y"}}, false},
		{"method differs", IndexSpec{Name: "a", Columns: []string{"x"}, Method: "hash"}, false},
		{"where differs", IndexSpec{Name: "a", Columns: []string{"x"}, Where: "x > 0"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Equal(tt.other); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMigrationIndexesOverride(t *testing.T) {
	view := &View{
		Table: "mv",
		Kind:  KindMaterializedView,
		Indexes: []IndexSpec{
			{Name: "keep", Columns: []string{"a"}},
			{Name: "system_generated_idx", Columns: []string{"b"}},
		},
		IndexOverride: func(e engine.ID, indexes map[string]IndexSpec) map[string]IndexSpec {
			delete(indexes, "system_generated_idx")
			indexes["custom_idx"] = IndexSpec{Name: "custom_idx", Columns: []string{"c"}, Unique: true}
			return indexes
		},
	}

	got := view.MigrationIndexes(engine.PostgreSQL)
	var names []string
	for _, idx := range SortedIndexes(got) {
		names = append(names, idx.Name)
	}
	if diff := cmp.Diff([]string{"custom_idx", "keep"}, names); diff != "" {
		t.Errorf("MigrationIndexes() mismatch (-want +got):\n%s", diff)
	}
	if len(view.Indexes) != 2 {
		t.Error("override mutated declared indexes")
	}
}
