package diff

import (
	"strings"

	"github.com/pgschema/viewmig/internal/engine"
	"github.com/pgschema/viewmig/internal/ir"
)

// PlanStep represents a single SQL statement with the action that produced it
type PlanStep struct {
	SQL       string        `json:"sql"`
	Table     string        `json:"table"`
	Engine    engine.ID     `json:"engine,omitempty"`
	Action    ir.ActionType `json:"action"`
	Strategy  ir.Strategy   `json:"strategy"`
	Direction Direction     `json:"direction"`
}

// SQLCollector collects SQL statements with their context information
type SQLCollector struct {
	steps []PlanStep
}

// NewSQLCollector creates a new SQLCollector
func NewSQLCollector() *SQLCollector {
	return &SQLCollector{
		steps: []PlanStep{},
	}
}

// Collect collects a SQL statement rendered from an action of op
func (c *SQLCollector) Collect(op *ir.Operation, a ir.Action, dir Direction, stmt string) {
	if op == nil {
		return
	}
	c.steps = append(c.steps, PlanStep{
		SQL:       strings.TrimSpace(stmt),
		Table:     a.Table,
		Engine:    a.Engine,
		Action:    a.Type,
		Strategy:  op.Strategy,
		Direction: dir,
	})
}

// GetSteps returns all collected plan steps
func (c *SQLCollector) GetSteps() []PlanStep {
	return c.steps
}
