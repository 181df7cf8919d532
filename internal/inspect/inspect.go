// Package inspect discovers the indexes that exist on PostgreSQL
// materialized views.
package inspect

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"golang.org/x/sync/errgroup"

	"github.com/pgschema/viewmig/internal/ir"
	"github.com/pgschema/viewmig/internal/logger"
)

const indexQuery = `
SELECT
    i.indexname,
    pg_get_indexdef(idx.indexrelid),
    idx.indisunique,
    am.amname
FROM pg_indexes i
JOIN pg_namespace n ON n.nspname = i.schemaname
JOIN pg_class c ON c.relname = i.tablename AND c.relnamespace = n.oid
JOIN pg_index idx ON idx.indrelid = c.oid
JOIN pg_class ic ON ic.oid = idx.indexrelid AND ic.relname = i.indexname
JOIN pg_am am ON am.oid = ic.relam
WHERE i.schemaname = $1
  AND i.tablename = $2
ORDER BY i.indexname`

// Inspector reads index catalogs over a PostgreSQL connection
type Inspector struct {
	db          *sql.DB
	schema      string
	concurrency int
}

// New creates an inspector for views in schema. concurrency bounds the
// number of tables queried at once.
func New(db *sql.DB, schema string, concurrency int) *Inspector {
	if schema == "" {
		schema = "public"
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Inspector{db: db, schema: schema, concurrency: concurrency}
}

// Indexes returns the indexes of a table or materialized view ordered by name
func (i *Inspector) Indexes(ctx context.Context, table string) ([]ir.IndexSpec, error) {
	rows, err := i.db.QueryContext(ctx, indexQuery, i.schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes of %s: %w", table, err)
	}
	defer rows.Close()

	var indexes []ir.IndexSpec
	for rows.Next() {
		var name, def, method string
		var unique bool
		if err := rows.Scan(&name, &def, &unique, &method); err != nil {
			return nil, fmt.Errorf("failed to scan index of %s: %w", table, err)
		}

		idx, err := ParseIndexDef(def)
		if err != nil {
			return nil, fmt.Errorf("index %s on %s: %w", name, table, err)
		}
		idx.Name = name
		idx.Unique = unique
		idx.Method = method
		indexes = append(indexes, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read indexes of %s: %w", table, err)
	}
	return indexes, nil
}

// Discover queries the indexes of every table concurrently
func (i *Inspector) Discover(ctx context.Context, tables []string) (map[string][]ir.IndexSpec, error) {
	log := logger.Get()

	var mu sync.Mutex
	found := make(map[string][]ir.IndexSpec, len(tables))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)
	for _, table := range tables {
		g.Go(func() error {
			indexes, err := i.Indexes(ctx, table)
			if err != nil {
				return err
			}
			log.Debug("discovered indexes", "table", table, "count", len(indexes))

			mu.Lock()
			defer mu.Unlock()
			found[table] = indexes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return found, nil
}

// ParseIndexDef parses a CREATE INDEX statement as returned by
// pg_get_indexdef. Columns keep their original text, including expressions
// and ordering modifiers.
func ParseIndexDef(def string) (ir.IndexSpec, error) {
	result, err := pg_query.Parse(def)
	if err != nil {
		return ir.IndexSpec{}, fmt.Errorf("failed to parse index definition: %w", err)
	}
	if len(result.Stmts) != 1 {
		return ir.IndexSpec{}, fmt.Errorf("expected a single CREATE INDEX statement, got %d statements", len(result.Stmts))
	}
	stmt := result.Stmts[0].Stmt.GetIndexStmt()
	if stmt == nil {
		return ir.IndexSpec{}, fmt.Errorf("not a CREATE INDEX statement: %s", def)
	}

	columns, rest, err := splitColumnList(def)
	if err != nil {
		return ir.IndexSpec{}, err
	}
	if len(columns) != len(stmt.IndexParams) {
		return ir.IndexSpec{}, fmt.Errorf("index definition has %d columns, parsed %d", len(columns), len(stmt.IndexParams))
	}
	// plain column references use the parser's unquoted name
	for n, param := range stmt.IndexParams {
		elem := param.GetIndexElem()
		if elem == nil || elem.Name == "" {
			continue
		}
		if modifier := trailingModifier(columns[n]); modifier != "" {
			columns[n] = elem.Name + " " + modifier
		} else {
			columns[n] = elem.Name
		}
	}

	idx := ir.IndexSpec{
		Name:    stmt.Idxname,
		Columns: columns,
		Unique:  stmt.Unique,
		Method:  strings.ToLower(stmt.AccessMethod),
	}
	if stmt.WhereClause != nil {
		where := strings.TrimSpace(rest)
		where = strings.TrimSpace(strings.TrimPrefix(where, "WHERE"))
		idx.Where = where
	}
	return idx, nil
}

// splitColumnList extracts the top-level comma separated entries of the
// first parenthesized list after USING, and returns the text following it
func splitColumnList(def string) ([]string, string, error) {
	start := strings.Index(strings.ToUpper(def), " USING ")
	if start < 0 {
		start = 0
	}
	open := strings.Index(def[start:], "(")
	if open < 0 {
		return nil, "", fmt.Errorf("index definition has no column list: %s", def)
	}
	open += start

	var columns []string
	depth := 0
	inQuote := false
	last := open + 1
	for pos := open; pos < len(def); pos++ {
		ch := def[pos]
		switch {
		case ch == '\'' || ch == '"':
			inQuote = !inQuote
		case inQuote:
		case ch == '(':
			depth++
		case ch == ')':
			depth--
			if depth == 0 {
				columns = append(columns, strings.TrimSpace(def[last:pos]))
				return columns, def[pos+1:], nil
			}
		case ch == ',' && depth == 1:
			columns = append(columns, strings.TrimSpace(def[last:pos]))
			last = pos + 1
		}
	}
	return nil, "", fmt.Errorf("unbalanced column list in index definition: %s", def)
}

var modifierWords = map[string]bool{"ASC": true, "DESC": true, "NULLS": true, "FIRST": true, "LAST": true}

// trailingModifier returns the ASC/DESC/NULLS suffix of a column entry
func trailingModifier(column string) string {
	fields := strings.Fields(column)
	n := len(fields)
	for n > 1 && modifierWords[strings.ToUpper(fields[n-1])] {
		n--
	}
	return strings.Join(fields[n:], " ")
}

// Tables returns the keys of a discovery result in name order
func Tables(found map[string][]ir.IndexSpec) []string {
	tables := make([]string, 0, len(found))
	for table := range found {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	return tables
}
