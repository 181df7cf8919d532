package diff

import (
	"sort"

	"github.com/pgschema/viewmig/internal/engine"
	"github.com/pgschema/viewmig/internal/ir"
	"github.com/pgschema/viewmig/internal/logger"
)

// Run performs a detection pass over every declared view against the
// recorded states and returns the synthesized operations.
//
// Views that are recorded but no longer declared are dropped first, in
// reverse table order. Declared views follow in dependency order, each
// engine in name order. When a definition switched between a plain string
// and a per-engine mapping, the states recorded under the old shape are
// taken over by the first engine of the new shape that has no state of its
// own. Any structural error aborts the pass and no partial result is
// returned.
func Run(reg *ir.Registry, states *ir.StateSet, opts Options) (*Result, error) {
	log := logger.Get()
	if states == nil {
		states = ir.NewStateSet()
	}

	result := &Result{Operations: []ir.Operation{}}

	for _, op := range removals(reg, states, opts) {
		log.Debug("view no longer declared", "table", op.Table, "engine", op.Engine)
		result.Operations = append(result.Operations, op)
	}

	resolver := ir.NewResolver()
	for _, view := range topologicallySortViews(reg.All()) {
		src, err := resolver.Source(view)
		if err != nil {
			return nil, &DefinitionError{Table: view.Table, Err: err}
		}

		stale := staleStates(view.Table, src, states, opts)
		for _, e := range enginesFor(src, opts) {
			current, ok := ir.Resolve(src, e)
			if !ok {
				log.Debug("definition undefined for engine, skipping", "table", view.Table, "engine", e)
				continue
			}

			prior, found := states.Lookup(view.Table, e)
			var retired []*ir.RecordedState
			if !found && len(stale) > 0 {
				prior, retired = stale[0], stale[1:]
				stale = nil
				log.Debug("taking over state of previous definition shape", "table", view.Table, "engine", e, "from", prior.Engine)
			}

			cs, err := Detect(view, e, current, prior, opts)
			if err != nil {
				return nil, err
			}
			cs.Retired = retired

			if cs.IndexesSkipped {
				omission := Omission{
					Table:  view.Table,
					Engine: e,
					Err:    &UnsupportedIndexEngineError{Table: view.Table, Engine: capabilityEngine(e, opts)},
				}
				log.Warn("indexes left unmanaged", "table", view.Table, "engine", capabilityEngine(e, opts))
				result.Omissions = append(result.Omissions, omission)
			}

			op := Synthesize(cs, view, opts)
			if op == nil {
				continue
			}
			log.Debug("view changed",
				"table", view.Table,
				"engine", e,
				"strategy", op.Strategy,
				"definition_changed", cs.DefinitionChanged,
				"indexes_changed", cs.IndexesChanged,
			)
			result.Operations = append(result.Operations, *op)
		}

		for _, st := range stale {
			log.Warn("recorded state left by a previous definition shape is not tracked by any engine",
				"table", st.Table, "engine", st.Engine)
		}
	}

	return result, nil
}

// staleStates returns the states of a declared table recorded under the
// other definition shape: the engine.Default state for a per-engine mapping,
// or the per-engine states for a plain string. The state of the active
// engine comes first.
func staleStates(table string, src ir.Source, states *ir.StateSet, opts Options) []*ir.RecordedState {
	_, perEngine := src.(ir.PerEngine)

	var stale []*ir.RecordedState
	for _, key := range states.Keys() {
		if key.Table != table || key.Engine.IsDefault() != perEngine {
			continue
		}
		st, ok := states.Lookup(key.Table, key.Engine)
		if !ok {
			continue
		}
		if st.Engine == opts.ActiveEngine {
			stale = append([]*ir.RecordedState{st}, stale...)
			continue
		}
		stale = append(stale, st)
	}
	return stale
}

// enginesFor lists the engines a source is evaluated on. A literal string
// is evaluated once for engine.Default. A mapping is evaluated on the
// configured engines, or on its own keys when none are configured.
func enginesFor(src ir.Source, opts Options) []engine.ID {
	if _, ok := src.(ir.PerEngine); !ok {
		return ir.Engines(src)
	}
	if len(opts.Engines) == 0 {
		return ir.Engines(src)
	}

	seen := make(map[engine.ID]bool, len(opts.Engines))
	ids := make([]engine.ID, 0, len(opts.Engines))
	for _, e := range opts.Engines {
		if seen[e] {
			continue
		}
		seen[e] = true
		ids = append(ids, e)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// removals synthesizes drop operations for recorded tables that are no
// longer declared. States of tables that are still declared are left alone
// even when their engine no longer appears in the definition.
func removals(reg *ir.Registry, states *ir.StateSet, opts Options) []ir.Operation {
	keys := states.Keys()
	var ops []ir.Operation
	for i := len(keys) - 1; i >= 0; i-- {
		key := keys[i]
		if _, declared := reg.Lookup(key.Table); declared {
			continue
		}
		prior, ok := states.Lookup(key.Table, key.Engine)
		if !ok {
			continue
		}
		if op := Synthesize(DetectRemoval(prior), nil, opts); op != nil {
			ops = append(ops, *op)
		}
	}
	return ops
}
