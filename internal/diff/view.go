package diff

import (
	"fmt"
	"strings"

	"github.com/pgschema/viewmig/internal/engine"
	"github.com/pgschema/viewmig/internal/ir"
)

// viewBody trims surrounding whitespace and trailing terminators so the
// definition can be embedded in a larger statement
func viewBody(definition string) string {
	body := strings.TrimSpace(definition)
	for strings.HasSuffix(body, ";") {
		body = strings.TrimSpace(strings.TrimSuffix(body, ";"))
	}
	return body
}

// generateCreateViewSQL generates CREATE [MATERIALIZED] VIEW
func generateCreateViewSQL(kind ir.Kind, table, definition string, target engine.ID) string {
	return fmt.Sprintf("CREATE %s %s AS\n%s;", kind.Label(), quoteName(table, target), viewBody(definition))
}

// generateDropViewSQL generates DROP [MATERIALIZED] VIEW IF EXISTS
func generateDropViewSQL(kind ir.Kind, table string, target engine.ID) string {
	return fmt.Sprintf("DROP %s IF EXISTS %s;", kind.Label(), quoteName(table, target))
}

// generateReplaceViewSQL generates CREATE OR REPLACE VIEW. Engines without
// atomic replace get DROP + CREATE instead.
func generateReplaceViewSQL(table, definition string, target engine.ID) []string {
	if !engine.SupportsReplace(target) {
		return []string{
			generateDropViewSQL(ir.KindView, table, target),
			generateCreateViewSQL(ir.KindView, table, definition, target),
		}
	}
	return []string{
		fmt.Sprintf("CREATE OR REPLACE VIEW %s AS\n%s;", quoteName(table, target), viewBody(definition)),
	}
}
