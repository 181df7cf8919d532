package ir

import (
	"fmt"
	"sort"
)

// DuplicateTableError is returned when two views claim the same table name
// within one planning pass
type DuplicateTableError struct {
	Table string
}

func (e *DuplicateTableError) Error() string {
	return fmt.Sprintf("duplicate view table %q", e.Table)
}

// InvalidViewError is returned when a declared view is structurally invalid
type InvalidViewError struct {
	Table  string
	Reason string
}

func (e *InvalidViewError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("invalid view: %s", e.Reason)
	}
	return fmt.Sprintf("invalid view %q: %s", e.Table, e.Reason)
}

// Registry is the catalog of views declared for one planning pass.
// It is not safe for concurrent registration.
type Registry struct {
	views map[string]*View
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{views: make(map[string]*View)}
}

// Register adds a view to the registry
func (r *Registry) Register(v *View) error {
	if err := validateView(v); err != nil {
		return err
	}
	if _, exists := r.views[v.Table]; exists {
		return &DuplicateTableError{Table: v.Table}
	}
	r.views[v.Table] = v
	return nil
}

// All returns every registered view ordered by table name
func (r *Registry) All() []*View {
	views := make([]*View, 0, len(r.views))
	for _, v := range r.views {
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].Table < views[j].Table
	})
	return views
}

// Lookup returns the view registered for a table
func (r *Registry) Lookup(table string) (*View, bool) {
	v, ok := r.views[table]
	return v, ok
}

// Len returns the number of registered views
func (r *Registry) Len() int {
	return len(r.views)
}

func validateView(v *View) error {
	if v == nil {
		return &InvalidViewError{Reason: "nil view"}
	}
	if v.Table == "" {
		return &InvalidViewError{Reason: "table name is required"}
	}
	if !v.Kind.Valid() {
		return &InvalidViewError{Table: v.Table, Reason: fmt.Sprintf("unknown kind %q", v.Kind)}
	}
	if len(v.Indexes) > 0 && !v.IsMaterialized() {
		return &InvalidViewError{Table: v.Table, Reason: "indexes are only supported on materialized views"}
	}

	seen := make(map[string]bool, len(v.Indexes))
	for _, idx := range v.Indexes {
		if idx.Name == "" {
			return &InvalidViewError{Table: v.Table, Reason: "index name is required"}
		}
		if seen[idx.Name] {
			return &InvalidViewError{Table: v.Table, Reason: fmt.Sprintf("duplicate index %q", idx.Name)}
		}
		seen[idx.Name] = true
		if len(idx.Columns) == 0 {
			return &InvalidViewError{Table: v.Table, Reason: fmt.Sprintf("index %q has no columns", idx.Name)}
		}
		if !validIndexMethods[idx.EffectiveMethod()] {
			return &InvalidViewError{Table: v.Table, Reason: fmt.Sprintf("index %q uses unknown method %q", idx.Name, idx.Method)}
		}
	}

	switch def := v.Definition.(type) {
	case nil:
		return &InvalidViewError{Table: v.Table, Reason: "definition is required"}
	case Deferred:
		if def == nil {
			return &InvalidViewError{Table: v.Table, Reason: "deferred definition is nil"}
		}
	}
	return nil
}
