package ir

import (
	"fmt"
	"sort"

	"github.com/pgschema/viewmig/internal/engine"
)

// RecordedState is the last known definition and index set of a view on one
// engine, reconstructed from migration history
type RecordedState struct {
	Table      string               `json:"table"`
	Engine     engine.ID            `json:"engine,omitempty"`
	Kind       Kind                 `json:"kind"`
	Definition string               `json:"definition"`
	Indexes    map[string]IndexSpec `json:"indexes,omitempty"`
}

func (s *RecordedState) clone() *RecordedState {
	c := *s
	c.Indexes = make(map[string]IndexSpec, len(s.Indexes))
	for name, idx := range s.Indexes {
		c.Indexes[name] = idx.Clone()
	}
	return &c
}

// StateKey identifies a recorded state
type StateKey struct {
	Table  string
	Engine engine.ID
}

// StateSet holds recorded states keyed by table and engine
type StateSet struct {
	states map[StateKey]*RecordedState
}

// NewStateSet creates an empty state set
func NewStateSet() *StateSet {
	return &StateSet{states: make(map[StateKey]*RecordedState)}
}

// Lookup returns a copy of the recorded state of a table on an engine
func (s *StateSet) Lookup(table string, e engine.ID) (*RecordedState, bool) {
	st, ok := s.states[StateKey{Table: table, Engine: e}]
	if !ok {
		return nil, false
	}
	return st.clone(), true
}

// Keys returns all recorded keys ordered by table, then engine
func (s *StateSet) Keys() []StateKey {
	keys := make([]StateKey, 0, len(s.states))
	for k := range s.states {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Table != keys[j].Table {
			return keys[i].Table < keys[j].Table
		}
		return keys[i].Engine < keys[j].Engine
	})
	return keys
}

// Len returns the number of recorded states
func (s *StateSet) Len() int {
	return len(s.states)
}

// Snapshot returns a deep copy of every recorded state
func (s *StateSet) Snapshot() map[StateKey]RecordedState {
	out := make(map[StateKey]RecordedState, len(s.states))
	for k, st := range s.states {
		out[k] = *st.clone()
	}
	return out
}

// Clone returns an independent copy of the state set
func (s *StateSet) Clone() *StateSet {
	c := NewStateSet()
	for k, st := range s.states {
		c.states[k] = st.clone()
	}
	return c
}

// ApplyAll applies actions in order
func (s *StateSet) ApplyAll(actions []Action) error {
	for i, a := range actions {
		if err := s.Apply(a); err != nil {
			return fmt.Errorf("action %d (%s %s): %w", i, a.Type, a.Table, err)
		}
	}
	return nil
}

// Apply records the effect of a single action
func (s *StateSet) Apply(a Action) error {
	key := StateKey{Table: a.Table, Engine: a.Engine}

	switch a.Type {
	case ActionCreateView, ActionReplaceView:
		s.states[key] = &RecordedState{
			Table:      a.Table,
			Engine:     a.Engine,
			Kind:       KindView,
			Definition: a.Definition,
			Indexes:    map[string]IndexSpec{},
		}
	case ActionCreateMaterializedView:
		s.states[key] = &RecordedState{
			Table:      a.Table,
			Engine:     a.Engine,
			Kind:       KindMaterializedView,
			Definition: a.Definition,
			Indexes:    map[string]IndexSpec{},
		}
	case ActionDropView, ActionDropMaterializedView:
		// dropping a materialized view drops its indexes too
		delete(s.states, key)
	case ActionCreateIndex:
		if a.Index == nil {
			return fmt.Errorf("index action without index")
		}
		st, ok := s.states[key]
		if !ok {
			return fmt.Errorf("index %s created on unknown view", a.Index.Name)
		}
		if st.Kind != KindMaterializedView {
			return fmt.Errorf("index %s created on plain view", a.Index.Name)
		}
		if st.Indexes == nil {
			st.Indexes = map[string]IndexSpec{}
		}
		st.Indexes[a.Index.Name] = a.Index.Clone()
	case ActionDropIndex:
		if a.Index == nil {
			return fmt.Errorf("index action without index")
		}
		if st, ok := s.states[key]; ok {
			delete(st.Indexes, a.Index.Name)
		}
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	return nil
}

// Equal reports whether two state sets record the same definitions and indexes
func (s *StateSet) Equal(other *StateSet) bool {
	if len(s.states) != len(other.states) {
		return false
	}
	for k, st := range s.states {
		o, ok := other.states[k]
		if !ok {
			return false
		}
		if st.Kind != o.Kind || st.Definition != o.Definition {
			return false
		}
		if !IndexSetsEqual(st.Indexes, o.Indexes) {
			return false
		}
	}
	return true
}
