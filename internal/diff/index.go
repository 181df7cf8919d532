package diff

import (
	"strings"

	"github.com/pgschema/viewmig/internal/engine"
	"github.com/pgschema/viewmig/internal/ir"
)

// DiffIndexes compares two index sets matched by name. An index whose
// content changed appears in both results; indexes are never altered in
// place. Both results are ordered by index name.
func DiffIndexes(old, new map[string]ir.IndexSpec) (toDrop, toCreate []ir.IndexSpec) {
	for name, oldIdx := range old {
		newIdx, exists := new[name]
		if !exists || !oldIdx.Equal(newIdx) {
			toDrop = append(toDrop, oldIdx.Clone())
		}
	}

	for name, newIdx := range new {
		oldIdx, exists := old[name]
		if !exists || !oldIdx.Equal(newIdx) {
			toCreate = append(toCreate, newIdx.Clone())
		}
	}

	ir.SortIndexes(toDrop)
	ir.SortIndexes(toCreate)
	return toDrop, toCreate
}

// generateCreateIndexSQL generates a CREATE INDEX statement for a materialized view
func generateCreateIndexSQL(table string, index *ir.IndexSpec, target engine.ID) string {
	var builder strings.Builder

	// CREATE [UNIQUE] INDEX IF NOT EXISTS
	builder.WriteString("CREATE ")
	if index.Unique {
		builder.WriteString("UNIQUE ")
	}
	builder.WriteString("INDEX IF NOT EXISTS ")

	builder.WriteString(quoteName(index.Name, target))
	builder.WriteString(" ON ")
	builder.WriteString(quoteName(table, target))

	// Index method - only include if not btree (the default)
	if method := index.EffectiveMethod(); method != ir.IndexMethodBtree {
		builder.WriteString(" USING ")
		builder.WriteString(method)
	}

	builder.WriteString(" (")
	for i, col := range index.Columns {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString(formatIndexColumn(col))
	}
	builder.WriteString(")")

	// WHERE clause for partial indexes
	if index.Where != "" {
		builder.WriteString(" WHERE ")
		builder.WriteString(index.Where)
	}

	builder.WriteString(";")
	return builder.String()
}

// generateDropIndexSQL generates a DROP INDEX statement
func generateDropIndexSQL(index *ir.IndexSpec, target engine.ID) string {
	return "DROP INDEX IF EXISTS " + quoteName(index.Name, target) + ";"
}
