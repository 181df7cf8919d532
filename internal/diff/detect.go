package diff

import (
	"github.com/pgschema/viewmig/internal/engine"
	"github.com/pgschema/viewmig/internal/ir"
	"github.com/pgschema/viewmig/internal/normalize"
)

// capabilityEngine returns the engine whose capabilities govern e.
// Engine-agnostic definitions follow the active engine.
func capabilityEngine(e engine.ID, opts Options) engine.ID {
	if e.IsDefault() {
		return opts.ActiveEngine
	}
	return e
}

// Detect compares the current definition of a view on an engine with the
// recorded state. A nil prior means the view was never migrated on the engine.
func Detect(view *ir.View, e engine.ID, current string, prior *ir.RecordedState, opts Options) (*ChangeSet, error) {
	capEngine := capabilityEngine(e, opts)
	manage := view.IsMaterialized() && engine.ManagesIndexes(capEngine)

	cs := &ChangeSet{
		Table:          view.Table,
		Engine:         e,
		Kind:           view.Kind,
		NewDefinition:  current,
		OldIndexes:     map[string]ir.IndexSpec{},
		NewIndexes:     map[string]ir.IndexSpec{},
		ManageIndexes:  manage,
		IndexesSkipped: view.IsMaterialized() && !manage && len(view.Indexes) > 0,
	}
	if manage {
		cs.NewIndexes = view.MigrationIndexes(capEngine)
	}

	newNorm, err := normalize.Normalize(current, capEngine.Family())
	if err != nil {
		return nil, &MalformedDefinitionError{Table: view.Table, Engine: e, Err: err}
	}

	if prior == nil {
		cs.Changed = true
		cs.DefinitionChanged = true
		cs.IndexesChanged = len(cs.NewIndexes) > 0
		return cs, nil
	}

	cs.Prior = prior
	cs.OldDefinition = prior.Definition
	if prior.Kind == ir.KindMaterializedView && engine.ManagesIndexes(capEngine) && prior.Indexes != nil {
		cs.OldIndexes = prior.Indexes
	}

	oldNorm, err := normalize.Normalize(prior.Definition, capEngine.Family())
	if err != nil {
		return nil, &MalformedDefinitionError{Table: view.Table, Engine: e, Err: err}
	}

	cs.Rekeyed = prior.Engine != e
	cs.DefinitionChanged = oldNorm != newNorm || prior.Kind != view.Kind
	cs.IndexesChanged = !ir.IndexSetsEqual(cs.OldIndexes, cs.NewIndexes)
	cs.Changed = cs.DefinitionChanged || cs.IndexesChanged || cs.Rekeyed
	return cs, nil
}

// DetectRemoval builds the change set for a view that is recorded in history
// but no longer declared
func DetectRemoval(prior *ir.RecordedState) *ChangeSet {
	indexes := map[string]ir.IndexSpec{}
	if prior.Indexes != nil {
		indexes = prior.Indexes
	}
	return &ChangeSet{
		Table:             prior.Table,
		Engine:            prior.Engine,
		Kind:              prior.Kind,
		Changed:           true,
		DefinitionChanged: true,
		Removed:           true,
		Prior:             prior,
		OldDefinition:     prior.Definition,
		OldIndexes:        indexes,
		NewIndexes:        map[string]ir.IndexSpec{},
		ManageIndexes:     len(indexes) > 0,
	}
}
