package diff

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pgschema/viewmig/internal/engine"
	"github.com/pgschema/viewmig/internal/ir"
)

var pgOptions = Options{ActiveEngine: engine.PostgreSQL}

func TestDetect(t *testing.T) {
	idxA := ir.IndexSpec{Name: "idx_a", Columns: []string{"a"}}
	idxB := ir.IndexSpec{Name: "idx_b", Columns: []string{"b"}}

	tests := []struct {
		name        string
		view        *ir.View
		current     string
		prior       *ir.RecordedState
		opts        Options
		wantChanged bool
		wantDef     bool
		wantIdx     bool
	}{
		{
			name:        "first creation",
			view:        &ir.View{Table: "balance", Kind: ir.KindView},
			current:     "SELECT 1 as id",
			opts:        pgOptions,
			wantChanged: true,
			wantDef:     true,
		},
		{
			name:    "formatting only",
			view:    &ir.View{Table: "balance", Kind: ir.KindView},
			current: "select a\n  from t",
			prior:   &ir.RecordedState{Table: "balance", Kind: ir.KindView, Definition: "SELECT a FROM t;"},
			opts:    pgOptions,
		},
		{
			name:        "changed column",
			view:        &ir.View{Table: "balance", Kind: ir.KindView},
			current:     "SELECT b FROM t",
			prior:       &ir.RecordedState{Table: "balance", Kind: ir.KindView, Definition: "SELECT a FROM t"},
			opts:        pgOptions,
			wantChanged: true,
			wantDef:     true,
		},
		{
			name:    "materialized view index added",
			view:    &ir.View{Table: "mv", Kind: ir.KindMaterializedView, Indexes: []ir.IndexSpec{idxA, idxB}},
			current: "SELECT a, b FROM t",
			prior: &ir.RecordedState{
				Table: "mv", Kind: ir.KindMaterializedView, Definition: "SELECT a, b FROM t",
				Indexes: map[string]ir.IndexSpec{"idx_a": idxA},
			},
			opts:        pgOptions,
			wantChanged: true,
			wantIdx:     true,
		},
		{
			name:    "indexes ignored on sqlite",
			view:    &ir.View{Table: "mv", Kind: ir.KindMaterializedView, Indexes: []ir.IndexSpec{idxA, idxB}},
			current: "SELECT a, b FROM t",
			prior: &ir.RecordedState{
				Table: "mv", Kind: ir.KindMaterializedView, Definition: "SELECT a, b FROM t",
			},
			opts: Options{ActiveEngine: engine.SQLite},
		},
		{
			name:        "kind switch",
			view:        &ir.View{Table: "balance", Kind: ir.KindMaterializedView},
			current:     "SELECT a FROM t",
			prior:       &ir.RecordedState{Table: "balance", Kind: ir.KindView, Definition: "SELECT a FROM t"},
			opts:        pgOptions,
			wantChanged: true,
			wantDef:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, err := Detect(tt.view, engine.Default, tt.current, tt.prior, tt.opts)
			if err != nil {
				t.Fatalf("Detect() error: %v", err)
			}
			if cs.Changed != tt.wantChanged {
				t.Errorf("Changed = %v, want %v", cs.Changed, tt.wantChanged)
			}
			if cs.DefinitionChanged != tt.wantDef {
				t.Errorf("DefinitionChanged = %v, want %v", cs.DefinitionChanged, tt.wantDef)
			}
			if cs.IndexesChanged != tt.wantIdx {
				t.Errorf("IndexesChanged = %v, want %v", cs.IndexesChanged, tt.wantIdx)
			}
			if cs.NewDefinition != tt.current {
				t.Errorf("NewDefinition = %q, want raw text %q", cs.NewDefinition, tt.current)
			}
		})
	}
}

func TestDetectKeepsRawDefinitions(t *testing.T) {
	prior := &ir.RecordedState{Table: "balance", Kind: ir.KindView, Definition: "SELECT a\nFROM t;"}
	view := &ir.View{Table: "balance", Kind: ir.KindView}

	cs, err := Detect(view, engine.Default, "SELECT   b FROM t", prior, pgOptions)
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	if cs.OldDefinition != "SELECT a\nFROM t;" {
		t.Errorf("OldDefinition = %q", cs.OldDefinition)
	}
	if cs.NewDefinition != "SELECT   b FROM t" {
		t.Errorf("NewDefinition = %q", cs.NewDefinition)
	}
}

func TestDetectIndexesSkipped(t *testing.T) {
	view := &ir.View{
		Table:   "mv",
		Kind:    ir.KindMaterializedView,
		Indexes: []ir.IndexSpec{{Name: "idx_a", Columns: []string{"a"}}},
	}

	cs, err := Detect(view, engine.MySQL, "SELECT a FROM t", nil, Options{ActiveEngine: engine.MySQL})
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	if !cs.IndexesSkipped {
		t.Error("expected IndexesSkipped on mysql")
	}
	if cs.ManageIndexes {
		t.Error("expected ManageIndexes to be false on mysql")
	}
	if len(cs.NewIndexes) != 0 {
		t.Errorf("expected no managed indexes, got %v", cs.NewIndexes)
	}
}

func TestDetectIndexOverride(t *testing.T) {
	view := &ir.View{
		Table: "mv",
		Kind:  ir.KindMaterializedView,
		Indexes: []ir.IndexSpec{
			{Name: "idx_a", Columns: []string{"a"}},
			{Name: "idx_legacy", Columns: []string{"b"}},
		},
		IndexOverride: func(e engine.ID, indexes map[string]ir.IndexSpec) map[string]ir.IndexSpec {
			delete(indexes, "idx_legacy")
			return indexes
		},
	}
	prior := &ir.RecordedState{
		Table: "mv", Kind: ir.KindMaterializedView, Definition: "SELECT a, b FROM t",
		Indexes: map[string]ir.IndexSpec{"idx_a": {Name: "idx_a", Columns: []string{"a"}}},
	}

	cs, err := Detect(view, engine.Default, "SELECT a, b FROM t", prior, pgOptions)
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	if cs.Changed {
		t.Errorf("expected no change once the override stops tracking idx_legacy, got %+v", cs)
	}
}

func TestDetectMalformedDefinition(t *testing.T) {
	view := &ir.View{Table: "broken", Kind: ir.KindView}

	_, err := Detect(view, engine.PostgreSQL, "SELECT 'unterminated", nil, pgOptions)
	var malformed *MalformedDefinitionError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedDefinitionError, got %v", err)
	}
	if malformed.Table != "broken" || malformed.Engine != engine.PostgreSQL {
		t.Errorf("unexpected error target: %+v", malformed)
	}
}

func TestDetectRemoval(t *testing.T) {
	prior := &ir.RecordedState{
		Table:      "old_mv",
		Engine:     engine.PostgreSQL,
		Kind:       ir.KindMaterializedView,
		Definition: "SELECT 1",
		Indexes:    map[string]ir.IndexSpec{"idx_old": {Name: "idx_old", Columns: []string{"id"}}},
	}

	cs := DetectRemoval(prior)
	want := &ChangeSet{
		Table:             "old_mv",
		Engine:            engine.PostgreSQL,
		Kind:              ir.KindMaterializedView,
		Changed:           true,
		DefinitionChanged: true,
		Removed:           true,
		Prior:             prior,
		OldDefinition:     "SELECT 1",
		OldIndexes:        prior.Indexes,
		NewIndexes:        map[string]ir.IndexSpec{},
		ManageIndexes:     true,
	}
	if diff := cmp.Diff(want, cs); diff != "" {
		t.Errorf("DetectRemoval() mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectUsesEngineDialect(t *testing.T) {
	view := &ir.View{Table: "quotes", Kind: ir.KindView}
	prior := &ir.RecordedState{
		Table:      "quotes",
		Engine:     engine.MySQL,
		Kind:       ir.KindView,
		Definition: "SELECT 'it''s' AS x FROM t # old note",
	}

	cs, err := Detect(view, engine.MySQL, `SELECT 'it\'s' AS x FROM t # new note`, prior, pgOptions)
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	if cs.Changed {
		t.Errorf("expected escape and comment edits to be unchanged on mysql, got %+v", cs)
	}

	if _, err := Detect(view, engine.PostgreSQL, `SELECT 'it\'s' AS x`, nil, pgOptions); err == nil {
		t.Error("expected the same literal to be malformed on postgresql")
	}
}
