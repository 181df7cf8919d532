package diff

import (
	"github.com/pgschema/viewmig/internal/engine"
	"github.com/pgschema/viewmig/internal/ir"
)

// ChooseStrategy picks how a detected change is carried out
func ChooseStrategy(cs *ChangeSet, replace ir.ReplacePolicy, opts Options) ir.Strategy {
	switch {
	case !cs.Changed:
		return ir.StrategyNoOp
	case cs.Removed:
		return ir.StrategyDrop
	case cs.Prior == nil:
		return ir.StrategyCreate
	case cs.Rekeyed || len(cs.Retired) > 0:
		// the recorded state moves to another engine key
		return ir.StrategyDropCreate
	}

	materialized := cs.Kind == ir.KindMaterializedView || cs.Prior.Kind == ir.KindMaterializedView
	if materialized {
		// materialized views cannot be replaced in place
		if !cs.DefinitionChanged && cs.IndexesChanged {
			return ir.StrategyIndexOnly
		}
		return ir.StrategyDropCreate
	}

	if useReplace(replace, capabilityEngine(cs.Engine, opts)) {
		return ir.StrategyReplace
	}
	return ir.StrategyDropCreate
}

func useReplace(policy ir.ReplacePolicy, e engine.ID) bool {
	switch policy {
	case ir.ReplaceAlways:
		return true
	case ir.ReplaceNever:
		return false
	default:
		return engine.SupportsReplace(e)
	}
}

// Synthesize builds the operation for a change set. It returns nil when
// nothing changed. view may be nil for removed views.
func Synthesize(cs *ChangeSet, view *ir.View, opts Options) *ir.Operation {
	replace := ir.ReplaceEngineDefault
	if view != nil {
		replace = view.Replace
	}

	strategy := ChooseStrategy(cs, replace, opts)
	if strategy == ir.StrategyNoOp {
		return nil
	}

	op := &ir.Operation{
		Table:    cs.Table,
		Engine:   cs.Engine,
		Kind:     cs.Kind,
		Strategy: strategy,
	}
	table, e := cs.Table, cs.Engine

	switch strategy {
	case ir.StrategyCreate:
		op.Forward = append(op.Forward, ir.CreateAction(cs.Kind, table, e, cs.NewDefinition))
		op.Forward = append(op.Forward, createIndexes(table, e, ir.SortedIndexes(cs.NewIndexes))...)
		op.Backward = []ir.Action{ir.DropAction(cs.Kind, table, e)}

	case ir.StrategyReplace:
		op.Forward = []ir.Action{ir.ReplaceAction(table, e, cs.NewDefinition)}
		op.Backward = []ir.Action{ir.ReplaceAction(table, e, cs.OldDefinition)}

	case ir.StrategyIndexOnly:
		toDrop, toCreate := DiffIndexes(cs.OldIndexes, cs.NewIndexes)
		op.Forward = append(dropIndexes(table, e, toDrop), createIndexes(table, e, toCreate)...)
		op.Backward = append(dropIndexes(table, e, toCreate), createIndexes(table, e, toDrop)...)

	case ir.StrategyDropCreate:
		newIndexes := ir.SortedIndexes(cs.NewIndexes)
		replaced := append([]*ir.RecordedState{cs.Prior}, cs.Retired...)

		// drop recorded indexes, recreate the view, then create declared indexes
		for i, old := range replaced {
			indexes := old.Indexes
			if i == 0 {
				indexes = cs.OldIndexes
			}
			op.Forward = append(op.Forward, dropIndexes(table, old.Engine, ir.SortedIndexes(indexes))...)
			op.Forward = append(op.Forward, ir.DropAction(old.Kind, table, old.Engine))
		}
		op.Forward = append(op.Forward, ir.CreateAction(cs.Kind, table, e, cs.NewDefinition))
		op.Forward = append(op.Forward, createIndexes(table, e, newIndexes)...)

		op.Backward = dropIndexes(table, e, newIndexes)
		op.Backward = append(op.Backward, ir.DropAction(cs.Kind, table, e))
		for i := len(replaced) - 1; i >= 0; i-- {
			old := replaced[i]
			indexes := old.Indexes
			if i == 0 {
				indexes = cs.OldIndexes
			}
			op.Backward = append(op.Backward, ir.CreateAction(old.Kind, table, old.Engine, old.Definition))
			op.Backward = append(op.Backward, createIndexes(table, old.Engine, ir.SortedIndexes(indexes))...)
		}

	case ir.StrategyDrop:
		op.Forward = []ir.Action{ir.DropAction(cs.Kind, table, e)}
		op.Backward = append([]ir.Action{ir.CreateAction(cs.Kind, table, e, cs.OldDefinition)},
			createIndexes(table, e, ir.SortedIndexes(cs.OldIndexes))...)
	}

	return op
}

func createIndexes(table string, e engine.ID, indexes []ir.IndexSpec) []ir.Action {
	actions := make([]ir.Action, 0, len(indexes))
	for _, idx := range indexes {
		actions = append(actions, ir.CreateIndexAction(table, e, idx))
	}
	return actions
}

func dropIndexes(table string, e engine.ID, indexes []ir.IndexSpec) []ir.Action {
	actions := make([]ir.Action, 0, len(indexes))
	for _, idx := range indexes {
		actions = append(actions, ir.DropIndexAction(table, e, idx))
	}
	return actions
}
