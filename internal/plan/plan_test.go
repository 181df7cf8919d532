package plan

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/pgschema/viewmig/internal/diff"
	"github.com/pgschema/viewmig/internal/engine"
	"github.com/pgschema/viewmig/internal/fingerprint"
	"github.com/pgschema/viewmig/internal/ir"
)

func samplePlan(t *testing.T, target engine.ID) *Plan {
	t.Helper()

	states := ir.NewStateSet()
	seed := []ir.Action{
		ir.CreateAction(ir.KindView, "balance", engine.Default, "SELECT 1 as id"),
		ir.CreateAction(ir.KindView, "legacy", engine.Default, "SELECT 0"),
	}
	if err := states.ApplyAll(seed); err != nil {
		t.Fatalf("seeding states: %v", err)
	}

	reg := ir.NewRegistry()
	views := []*ir.View{
		{Table: "balance", Kind: ir.KindView, Definition: ir.SQL("SELECT 2 as id")},
		{
			Table:      "summary",
			Kind:       ir.KindMaterializedView,
			Definition: ir.SQL("SELECT id FROM ledger"),
			Indexes:    []ir.IndexSpec{{Name: "summary_id_idx", Columns: []string{"id"}}},
		},
	}
	for _, v := range views {
		if err := reg.Register(v); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	result, err := diff.Run(reg, states, diff.Options{ActiveEngine: target})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return NewPlan(result, target)
}

func TestPlanNoChanges(t *testing.T) {
	p := NewPlan(&diff.Result{}, engine.PostgreSQL)

	if p.HasChanges() {
		t.Error("empty plan should not have changes")
	}
	if got := p.HumanColored(false); got != "No changes detected.\n" {
		t.Errorf("unexpected human output: %q", got)
	}
	if got := p.ToSQL(); got != "" {
		t.Errorf("expected no SQL, got %q", got)
	}
}

func TestPlanHuman(t *testing.T) {
	p := samplePlan(t, engine.PostgreSQL)
	out := p.HumanColored(false)

	expected := []string{
		"Plan: 1 to add, 1 to modify, 1 to drop.",
		"  - view.legacy (drop)",
		"  ~ view.balance (replace)",
		"  + materialized_view.summary (create)",
		"Transaction: true",
		"CREATE OR REPLACE VIEW \"balance\" AS\nSELECT 2 as id;",
		`CREATE INDEX IF NOT EXISTS "summary_id_idx" ON "summary" (id);`,
	}
	for _, want := range expected {
		if !strings.Contains(out, want) {
			t.Errorf("human output should contain %q, got:\n%s", want, out)
		}
	}
}

func TestPlanHumanSQLiteWarnings(t *testing.T) {
	p := samplePlan(t, engine.SQLite)
	out := p.HumanColored(false)

	if !strings.Contains(out, "Warnings:") || !strings.Contains(out, "index management is not supported") {
		t.Errorf("expected unmanaged index warning, got:\n%s", out)
	}
	if !strings.Contains(out, "  ~ view.balance (drop_create)") {
		t.Errorf("expected drop_create on sqlite, got:\n%s", out)
	}
	if strings.Contains(out, "CREATE INDEX") {
		t.Errorf("sqlite plan must not create indexes, got:\n%s", out)
	}
}

func TestPlanToJSON(t *testing.T) {
	p := samplePlan(t, engine.PostgreSQL).WithSourceFingerprint(&fingerprint.Fingerprint{Hash: "abc123"})

	out, err := p.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	var decoded PlanJSON
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if decoded.Summary.Total != 3 || decoded.Summary.Add != 1 || decoded.Summary.Change != 1 || decoded.Summary.Destroy != 1 {
		t.Errorf("unexpected summary: %+v", decoded.Summary)
	}
	if decoded.SourceFingerprint != "abc123" {
		t.Errorf("source fingerprint = %q", decoded.SourceFingerprint)
	}
	if decoded.Engine != engine.PostgreSQL || !decoded.Transaction {
		t.Errorf("unexpected engine fields: %s transaction=%t", decoded.Engine, decoded.Transaction)
	}
	if len(decoded.Steps) != 4 {
		t.Errorf("expected 4 SQL steps, got %d: %+v", len(decoded.Steps), decoded.Steps)
	}
	if decoded.Changes[0].Address != "view.legacy" {
		t.Errorf("removals should be listed first, got %s", decoded.Changes[0].Address)
	}
}

func TestPlanToRollbackSQL(t *testing.T) {
	p := samplePlan(t, engine.PostgreSQL)
	rollback := p.ToRollbackSQL()

	wantOrder := []string{
		`DROP MATERIALIZED VIEW IF EXISTS "summary";`,
		"CREATE OR REPLACE VIEW \"balance\" AS\nSELECT 1 as id;",
		"CREATE VIEW \"legacy\" AS\nSELECT 0;",
	}
	last := -1
	for _, stmt := range wantOrder {
		idx := strings.Index(rollback, stmt)
		if idx < 0 {
			t.Fatalf("rollback SQL missing %q:\n%s", stmt, rollback)
		}
		if idx < last {
			t.Errorf("statement %q out of order:\n%s", stmt, rollback)
		}
		last = idx
	}
}
