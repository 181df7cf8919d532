package ir

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pgschema/viewmig/internal/engine"
)

// Source is the definition of a view: a literal SQL string, a per-engine
// mapping, or a deferred computation producing one of the two.
type Source interface {
	isSource()
}

// SQL is a definition that applies to every engine
type SQL string

// PerEngine maps engine identifiers to definitions
type PerEngine map[engine.ID]string

// Deferred computes a definition on demand. It is evaluated at most once per
// planning pass and must return SQL or PerEngine.
type Deferred func() (Source, error)

func (SQL) isSource()       {}
func (PerEngine) isSource() {}
func (Deferred) isSource()  {}

// Engines returns the engines a source is defined for, sorted. A literal
// string is defined for engine.Default only.
func Engines(src Source) []engine.ID {
	switch s := src.(type) {
	case SQL:
		return []engine.ID{engine.Default}
	case PerEngine:
		ids := make([]engine.ID, 0, len(s))
		for id := range s {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return ids
	default:
		return nil
	}
}

// Resolve picks the definition applicable to engine e. The second result is
// false when the source is undefined for e; that is not an error. Deferred
// sources must be evaluated with a Resolver first and resolve as undefined.
func Resolve(src Source, e engine.ID) (string, bool) {
	switch s := src.(type) {
	case SQL:
		if s == "" {
			return "", false
		}
		return string(s), true
	case PerEngine:
		def, ok := s[e]
		if !ok || def == "" {
			return "", false
		}
		return def, true
	default:
		return "", false
	}
}

var (
	errNestedDeferred = errors.New("deferred definition must produce SQL or a per-engine mapping")
	errNoDefinition   = errors.New("no definition")
)

// Resolver evaluates deferred definitions once per pass and remembers the
// result. A Resolver belongs to a single pass and is not safe for concurrent use.
type Resolver struct {
	memo  map[string]Source
	calls int
}

// NewResolver creates an empty resolver
func NewResolver() *Resolver {
	return &Resolver{memo: make(map[string]Source)}
}

// Source returns the concrete definition source of a view, invoking a
// deferred definition on first use only.
func (r *Resolver) Source(v *View) (Source, error) {
	if src, ok := r.memo[v.Table]; ok {
		return src, nil
	}

	src := v.Definition
	if deferred, ok := src.(Deferred); ok {
		r.calls++
		evaluated, err := deferred()
		if err != nil {
			return nil, fmt.Errorf("evaluating definition of %s: %w", v.Table, err)
		}
		if _, nested := evaluated.(Deferred); nested {
			return nil, fmt.Errorf("evaluating definition of %s: %w", v.Table, errNestedDeferred)
		}
		if evaluated == nil {
			return nil, fmt.Errorf("evaluating definition of %s: %w", v.Table, errNoDefinition)
		}
		src = evaluated
	}
	if src == nil {
		return nil, fmt.Errorf("view %s: %w", v.Table, errNoDefinition)
	}

	r.memo[v.Table] = src
	return src, nil
}

// Evaluations returns how many deferred definitions were invoked
func (r *Resolver) Evaluations() int {
	return r.calls
}
