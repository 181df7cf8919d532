package diff

import (
	"strings"

	"github.com/pgschema/viewmig/internal/engine"
	"github.com/pgschema/viewmig/internal/ir"
)

// Direction selects which side of an operation is rendered
type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
)

// AppliesTo reports whether an action recorded for engine e runs on target
func AppliesTo(e, target engine.ID) bool {
	return e.IsDefault() || e == target
}

// GenerateSQL renders a single action for the target engine. It returns no
// statements when the action does not apply to the target, including index
// actions on engines without index management.
func GenerateSQL(a ir.Action, target engine.ID) []string {
	if !AppliesTo(a.Engine, target) {
		return nil
	}

	switch a.Type {
	case ir.ActionCreateView:
		return []string{generateCreateViewSQL(ir.KindView, a.Table, a.Definition, target)}
	case ir.ActionCreateMaterializedView:
		return []string{generateCreateViewSQL(ir.KindMaterializedView, a.Table, a.Definition, target)}
	case ir.ActionReplaceView:
		return generateReplaceViewSQL(a.Table, a.Definition, target)
	case ir.ActionDropView:
		return []string{generateDropViewSQL(ir.KindView, a.Table, target)}
	case ir.ActionDropMaterializedView:
		return []string{generateDropViewSQL(ir.KindMaterializedView, a.Table, target)}
	case ir.ActionCreateIndex:
		if a.Index == nil || !engine.ManagesIndexes(target) {
			return nil
		}
		return []string{generateCreateIndexSQL(a.Table, a.Index, target)}
	case ir.ActionDropIndex:
		if a.Index == nil || !engine.ManagesIndexes(target) {
			return nil
		}
		return []string{generateDropIndexSQL(a.Index, target)}
	default:
		return nil
	}
}

// CollectSQL renders a list of operations for the target engine. Forward
// renders operations in order; Backward renders them in reverse, each with
// its backward actions.
func CollectSQL(ops []ir.Operation, target engine.ID, dir Direction) []PlanStep {
	collector := NewSQLCollector()

	if dir == Backward {
		for i := len(ops) - 1; i >= 0; i-- {
			op := &ops[i]
			for _, a := range op.Backward {
				for _, stmt := range GenerateSQL(a, target) {
					collector.Collect(op, a, dir, stmt)
				}
			}
		}
		return collector.GetSteps()
	}

	for i := range ops {
		op := &ops[i]
		for _, a := range op.Forward {
			for _, stmt := range GenerateSQL(a, target) {
				collector.Collect(op, a, dir, stmt)
			}
		}
	}
	return collector.GetSteps()
}

// GenerateMigrationSQL renders operations as a single SQL script
func GenerateMigrationSQL(ops []ir.Operation, target engine.ID, dir Direction) string {
	steps := CollectSQL(ops, target, dir)
	if len(steps) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, step := range steps {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(step.SQL)
	}
	sb.WriteString("\n")
	return sb.String()
}
