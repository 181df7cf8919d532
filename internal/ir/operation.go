package ir

import (
	"github.com/pgschema/viewmig/internal/engine"
)

// ActionType is a primitive view or index change
type ActionType string

const (
	ActionCreateView             ActionType = "CreateView"
	ActionDropView               ActionType = "DropView"
	ActionReplaceView            ActionType = "ReplaceView"
	ActionCreateMaterializedView ActionType = "CreateMaterializedView"
	ActionDropMaterializedView   ActionType = "DropMaterializedView"
	ActionCreateIndex            ActionType = "CreateIndex"
	ActionDropIndex              ActionType = "DropIndex"
)

// IsIndex reports whether the action targets an index rather than a view body
func (t ActionType) IsIndex() bool {
	return t == ActionCreateIndex || t == ActionDropIndex
}

// Action is a single primitive change. Definition is the original,
// non-normalized text; Index is set for index actions only.
type Action struct {
	Type       ActionType `json:"type"`
	Table      string     `json:"table"`
	Engine     engine.ID  `json:"engine,omitempty"`
	Definition string     `json:"definition,omitempty"`
	Index      *IndexSpec `json:"index,omitempty"`
}

// Strategy is the way a view change is carried out
type Strategy string

const (
	StrategyNoOp       Strategy = "noop"
	StrategyCreate     Strategy = "create"
	StrategyReplace    Strategy = "replace"
	StrategyDropCreate Strategy = "drop_create"
	StrategyIndexOnly  Strategy = "index_only"
	StrategyDrop       Strategy = "drop"
)

// Operation pairs the ordered forward actions of one (view, engine) change
// with the ordered backward actions that undo it
type Operation struct {
	Table    string    `json:"table"`
	Engine   engine.ID `json:"engine,omitempty"`
	Kind     Kind      `json:"kind"`
	Strategy Strategy  `json:"strategy"`
	Forward  []Action  `json:"forward"`
	Backward []Action  `json:"backward"`
}

// CreateAction returns the action creating a view of the given kind
func CreateAction(kind Kind, table string, e engine.ID, definition string) Action {
	t := ActionCreateView
	if kind == KindMaterializedView {
		t = ActionCreateMaterializedView
	}
	return Action{Type: t, Table: table, Engine: e, Definition: definition}
}

// DropAction returns the action dropping a view of the given kind
func DropAction(kind Kind, table string, e engine.ID) Action {
	t := ActionDropView
	if kind == KindMaterializedView {
		t = ActionDropMaterializedView
	}
	return Action{Type: t, Table: table, Engine: e}
}

// ReplaceAction returns the action replacing a plain view definition in place
func ReplaceAction(table string, e engine.ID, definition string) Action {
	return Action{Type: ActionReplaceView, Table: table, Engine: e, Definition: definition}
}

// CreateIndexAction returns the action creating an index on a materialized view
func CreateIndexAction(table string, e engine.ID, idx IndexSpec) Action {
	spec := idx.Clone()
	return Action{Type: ActionCreateIndex, Table: table, Engine: e, Index: &spec}
}

// DropIndexAction returns the action dropping an index of a materialized view
func DropIndexAction(table string, e engine.ID, idx IndexSpec) Action {
	spec := idx.Clone()
	return Action{Type: ActionDropIndex, Table: table, Engine: e, Index: &spec}
}
