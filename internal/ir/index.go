package ir

import (
	"slices"
	"sort"
	"strings"
)

// Index access methods
const (
	IndexMethodBtree = "btree"
	IndexMethodHash  = "hash"
	IndexMethodGin   = "gin"
	IndexMethodGist  = "gist"
	IndexMethodBrin  = "brin"
)

var validIndexMethods = map[string]bool{
	IndexMethodBtree: true,
	IndexMethodHash:  true,
	IndexMethodGin:   true,
	IndexMethodGist:  true,
	IndexMethodBrin:  true,
}

// IndexSpec describes an index on a materialized view
type IndexSpec struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique,omitempty"`
	Method  string   `json:"method,omitempty"` // btree, hash, gin, gist, brin
	Where   string   `json:"where,omitempty"`  // partial index predicate
}

// EffectiveMethod returns the access method with the btree default applied
func (i IndexSpec) EffectiveMethod() string {
	if i.Method == "" {
		return IndexMethodBtree
	}
	return strings.ToLower(i.Method)
}

// Equal reports whether two specs are structurally identical
func (i IndexSpec) Equal(other IndexSpec) bool {
	return i.Name == other.Name &&
		slices.Equal(i.Columns, other.Columns) &&
		i.Unique == other.Unique &&
		i.EffectiveMethod() == other.EffectiveMethod() &&
		i.Where == other.Where
}

// Clone returns a deep copy of the index
func (i IndexSpec) Clone() IndexSpec {
	i.Columns = slices.Clone(i.Columns)
	return i
}

// IndexSetsEqual compares two index sets keyed by name
func IndexSetsEqual(a, b map[string]IndexSpec) bool {
	if len(a) != len(b) {
		return false
	}
	for name, idx := range a {
		other, ok := b[name]
		if !ok || !idx.Equal(other) {
			return false
		}
	}
	return true
}

// SortedIndexes returns the specs of an index set ordered by name
func SortedIndexes(set map[string]IndexSpec) []IndexSpec {
	result := make([]IndexSpec, 0, len(set))
	for _, idx := range set {
		result = append(result, idx)
	}
	SortIndexes(result)
	return result
}

// SortIndexes orders index specs by name in place
func SortIndexes(indexes []IndexSpec) {
	sort.Slice(indexes, func(i, j int) bool {
		return indexes[i].Name < indexes[j].Name
	})
}
