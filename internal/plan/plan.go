package plan

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pgschema/viewmig/internal/color"
	"github.com/pgschema/viewmig/internal/diff"
	"github.com/pgschema/viewmig/internal/engine"
	"github.com/pgschema/viewmig/internal/fingerprint"
	"github.com/pgschema/viewmig/internal/ir"
	"github.com/pgschema/viewmig/internal/version"
)

// Plan represents the migration plan produced by one detection pass
type Plan struct {
	// The underlying pass result
	Result *diff.Result `json:"result"`

	// Engine the SQL is rendered for
	Engine engine.ID `json:"engine"`

	// SourceFingerprint identifies the recorded state the plan was computed from
	SourceFingerprint *fingerprint.Fingerprint `json:"source_fingerprint,omitempty"`

	// Plan metadata
	CreatedAt time.Time `json:"created_at"`
}

// ViewChange represents the change of one view on one engine
type ViewChange struct {
	Address  string      `json:"address"`
	Table    string      `json:"table"`
	Kind     ir.Kind     `json:"kind"`
	Engine   engine.ID   `json:"engine,omitempty"`
	Strategy ir.Strategy `json:"strategy"`
	Action   string      `json:"action"`
	Forward  []ir.Action `json:"forward"`
	Backward []ir.Action `json:"backward"`
}

// Omission is a part of a view left unmanaged during the pass
type Omission struct {
	Table   string    `json:"table"`
	Engine  engine.ID `json:"engine,omitempty"`
	Message string    `json:"message"`
}

// PlanJSON represents the structured JSON output format
type PlanJSON struct {
	Version           string          `json:"version"`
	ViewmigVersion    string          `json:"viewmig_version"`
	CreatedAt         time.Time       `json:"created_at"`
	Engine            engine.ID       `json:"engine"`
	Transaction       bool            `json:"transaction"`
	SourceFingerprint string          `json:"source_fingerprint,omitempty"`
	Summary           PlanSummary     `json:"summary"`
	Changes           []ViewChange    `json:"changes"`
	Omissions         []Omission      `json:"omissions,omitempty"`
	Steps             []diff.PlanStep `json:"steps"`
}

// PlanSummary provides counts of changes
type PlanSummary struct {
	Add     int `json:"add"`
	Change  int `json:"change"`
	Destroy int `json:"destroy"`
	Total   int `json:"total"`
}

// NewPlan creates a new plan from a pass result
func NewPlan(result *diff.Result, target engine.ID) *Plan {
	if result == nil {
		result = &diff.Result{}
	}
	return &Plan{
		Result:    result,
		Engine:    target,
		CreatedAt: time.Now(),
	}
}

// WithSourceFingerprint records the fingerprint of the state the plan was computed from
func (p *Plan) WithSourceFingerprint(fp *fingerprint.Fingerprint) *Plan {
	p.SourceFingerprint = fp
	return p
}

// HasChanges reports whether the plan contains any operation
func (p *Plan) HasChanges() bool {
	return p.Result.HasChanges()
}

// Operations returns the operations of the plan
func (p *Plan) Operations() []ir.Operation {
	return p.Result.Operations
}

// HumanColored returns a human-readable summary of the plan with color support
func (p *Plan) HumanColored(enableColor bool) string {
	c := color.New(enableColor)
	var summary strings.Builder

	planJSON := p.convertToStructuredJSON()

	if planJSON.Summary.Total == 0 {
		summary.WriteString("No changes detected.\n")
		p.writeOmissions(&summary, planJSON.Omissions, c)
		return summary.String()
	}

	summary.WriteString(c.FormatPlanHeader(planJSON.Summary.Add, planJSON.Summary.Change, planJSON.Summary.Destroy) + "\n\n")

	summary.WriteString(c.Bold("Views:") + "\n")
	for _, change := range planJSON.Changes {
		detail := string(change.Strategy)
		if change.Engine != "" {
			detail += ", " + string(change.Engine)
		}
		summary.WriteString(c.FormatPlanLine(change.Action, change.Address, detail) + "\n")
	}
	summary.WriteString("\n")

	p.writeOmissions(&summary, planJSON.Omissions, c)

	fmt.Fprintf(&summary, "Transaction: %t\n\n", planJSON.Transaction)

	summary.WriteString(c.Bold("DDL to be executed:") + "\n")
	summary.WriteString(strings.Repeat("-", 50) + "\n\n")
	if migrationSQL := p.ToSQL(); migrationSQL != "" {
		summary.WriteString(migrationSQL)
	} else {
		summary.WriteString("-- No DDL statements generated for " + string(p.Engine) + "\n")
	}

	return summary.String()
}

func (p *Plan) writeOmissions(summary *strings.Builder, omissions []Omission, c *color.Color) {
	if len(omissions) == 0 {
		return
	}
	summary.WriteString(c.Bold("Warnings:") + "\n")
	for _, o := range omissions {
		summary.WriteString("  " + c.Warn("!") + " " + o.Message + "\n")
	}
	summary.WriteString("\n")
}

// ToJSON returns the plan as structured JSON
func (p *Plan) ToJSON() (string, error) {
	planJSON := p.convertToStructuredJSON()

	data, err := json.MarshalIndent(planJSON, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal plan to JSON: %w", err)
	}
	return string(data), nil
}

// ToSQL returns only the forward SQL statements
func (p *Plan) ToSQL() string {
	return diff.GenerateMigrationSQL(p.Result.Operations, p.Engine, diff.Forward)
}

// ToRollbackSQL returns the backward SQL statements, last operation first
func (p *Plan) ToRollbackSQL() string {
	return diff.GenerateMigrationSQL(p.Result.Operations, p.Engine, diff.Backward)
}

func (p *Plan) convertToStructuredJSON() *PlanJSON {
	planJSON := &PlanJSON{
		Version:        version.PlanFormat(),
		ViewmigVersion: version.App(),
		CreatedAt:      p.CreatedAt,
		Engine:         p.Engine,
		Transaction:    engine.TransactionalDDL(p.Engine),
		Changes:        []ViewChange{},
		Steps:          diff.CollectSQL(p.Result.Operations, p.Engine, diff.Forward),
	}
	if p.SourceFingerprint != nil {
		planJSON.SourceFingerprint = p.SourceFingerprint.Hash
	}

	for _, op := range p.Result.Operations {
		action := actionOf(op.Strategy)
		planJSON.Changes = append(planJSON.Changes, ViewChange{
			Address:  fmt.Sprintf("%s.%s", op.Kind, op.Table),
			Table:    op.Table,
			Kind:     op.Kind,
			Engine:   op.Engine,
			Strategy: op.Strategy,
			Action:   action,
			Forward:  op.Forward,
			Backward: op.Backward,
		})
		switch action {
		case "create":
			planJSON.Summary.Add++
		case "delete":
			planJSON.Summary.Destroy++
		default:
			planJSON.Summary.Change++
		}
	}
	planJSON.Summary.Total = planJSON.Summary.Add + planJSON.Summary.Change + planJSON.Summary.Destroy

	for _, o := range p.Result.Omissions {
		planJSON.Omissions = append(planJSON.Omissions, Omission{
			Table:   o.Table,
			Engine:  o.Engine,
			Message: o.Err.Error(),
		})
	}

	return planJSON
}

func actionOf(strategy ir.Strategy) string {
	switch strategy {
	case ir.StrategyCreate:
		return "create"
	case ir.StrategyDrop:
		return "delete"
	default:
		return "update"
	}
}
