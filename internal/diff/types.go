package diff

import (
	"fmt"

	"github.com/pgschema/viewmig/internal/engine"
	"github.com/pgschema/viewmig/internal/ir"
)

// Options controls a detection pass
type Options struct {
	// ActiveEngine is the engine of the connection running migrations. It
	// decides capabilities for definitions that apply to every engine.
	ActiveEngine engine.ID
	// Engines restricts per-engine definitions to these engines. When empty,
	// every engine named by a definition is considered.
	Engines []engine.ID
}

// ChangeSet is the detector output for one (view, engine) pair
type ChangeSet struct {
	Table  string
	Engine engine.ID
	Kind   ir.Kind

	Changed           bool
	DefinitionChanged bool
	IndexesChanged    bool
	// Removed is set when the view is recorded in history but no longer declared
	Removed bool

	// Prior is nil when the view has no recorded history on the engine. It
	// may be recorded under another engine key when the definition switched
	// between a plain string and a per-engine mapping.
	Prior *ir.RecordedState
	// Rekeyed is set when Prior is recorded under an engine other than Engine
	Rekeyed bool
	// Retired holds further states of the table left by the previous
	// definition shape. They are dropped along with Prior.
	Retired []*ir.RecordedState

	OldDefinition string
	NewDefinition string
	OldIndexes    map[string]ir.IndexSpec
	NewIndexes    map[string]ir.IndexSpec

	// ManageIndexes is true when index operations are emitted for the pair
	ManageIndexes bool
	// IndexesSkipped is true when indexes were declared but the engine does
	// not support index management
	IndexesSkipped bool
}

// Omission records a part of a view that was deliberately left unmanaged
type Omission struct {
	Table  string
	Engine engine.ID
	Err    error
}

// Result is the outcome of a detection pass
type Result struct {
	Operations []ir.Operation
	Omissions  []Omission
}

// HasChanges reports whether the pass produced any operation
func (r *Result) HasChanges() bool {
	return len(r.Operations) > 0
}

// MalformedDefinitionError is returned when a definition cannot be tokenized
type MalformedDefinitionError struct {
	Table  string
	Engine engine.ID
	Err    error
}

func (e *MalformedDefinitionError) Error() string {
	return fmt.Sprintf("malformed definition for %s on engine %s: %v", e.Table, e.Engine, e.Err)
}

func (e *MalformedDefinitionError) Unwrap() error {
	return e.Err
}

// DefinitionError is returned when a deferred definition fails to evaluate
type DefinitionError struct {
	Table string
	Err   error
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("cannot evaluate definition of %s: %v", e.Table, e.Err)
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

// UnsupportedIndexEngineError marks indexes that were declared for an engine
// without index management. It is recorded, never returned from a pass.
type UnsupportedIndexEngineError struct {
	Table  string
	Engine engine.ID
}

func (e *UnsupportedIndexEngineError) Error() string {
	return fmt.Sprintf("index management is not supported on engine %s; indexes of %s are left unmanaged", e.Engine, e.Table)
}
