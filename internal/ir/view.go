package ir

import (
	"maps"

	"github.com/pgschema/viewmig/internal/engine"
)

// Kind distinguishes plain views from materialized views
type Kind string

const (
	KindView             Kind = "view"
	KindMaterializedView Kind = "materialized_view"
)

// Valid reports whether k is a known view kind
func (k Kind) Valid() bool {
	return k == KindView || k == KindMaterializedView
}

// Label returns the SQL object label for the kind
func (k Kind) Label() string {
	if k == KindMaterializedView {
		return "MATERIALIZED VIEW"
	}
	return "VIEW"
}

// ReplacePolicy is the per-view choice between CREATE OR REPLACE and DROP + CREATE
type ReplacePolicy int

const (
	// ReplaceEngineDefault defers to the capability table of the target engine
	ReplaceEngineDefault ReplacePolicy = iota
	ReplaceAlways
	ReplaceNever
)

// ReplacePolicyFrom converts an optional boolean flag into a policy
func ReplacePolicyFrom(flag *bool) ReplacePolicy {
	switch {
	case flag == nil:
		return ReplaceEngineDefault
	case *flag:
		return ReplaceAlways
	default:
		return ReplaceNever
	}
}

func (p ReplacePolicy) String() string {
	switch p {
	case ReplaceAlways:
		return "always"
	case ReplaceNever:
		return "never"
	default:
		return "engine-default"
	}
}

// IndexOverride adjusts the indexes reported for a materialized view on an
// engine before they reach the differ. It may add or remove entries.
type IndexOverride func(e engine.ID, indexes map[string]IndexSpec) map[string]IndexSpec

// View is one declared view or materialized view. Views are built once per
// planning pass and are not modified afterwards.
type View struct {
	Table         string
	Kind          Kind
	Definition    Source
	Replace       ReplacePolicy
	Indexes       []IndexSpec
	IndexOverride IndexOverride
	// Dependencies lists other declared tables the view query reads from
	Dependencies []string
}

// IsMaterialized reports whether the view is a materialized view
func (v *View) IsMaterialized() bool {
	return v.Kind == KindMaterializedView
}

// MigrationIndexes returns the indexes managed in migrations for the view on
// the given engine, keyed by index name. Plain views never have indexes.
func (v *View) MigrationIndexes(e engine.ID) map[string]IndexSpec {
	indexes := make(map[string]IndexSpec, len(v.Indexes))
	if !v.IsMaterialized() {
		return indexes
	}
	for _, idx := range v.Indexes {
		indexes[idx.Name] = idx.Clone()
	}
	if v.IndexOverride != nil {
		overridden := v.IndexOverride(e, maps.Clone(indexes))
		if overridden == nil {
			return map[string]IndexSpec{}
		}
		return overridden
	}
	return indexes
}
