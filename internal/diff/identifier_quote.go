package diff

import (
	"strings"
	"unicode"

	"github.com/lib/pq"
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/pgschema/viewmig/internal/engine"
)

// quoteName quotes a view or index name for the target engine.
// Names are always quoted so that mixed-case table names survive.
func quoteName(name string, target engine.ID) string {
	switch engine.FamilyOf(target) {
	case engine.FamilyPostgreSQL:
		return pq.QuoteIdentifier(name)
	case engine.FamilyMySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// needsQuoting checks if an index column needs to be quoted
func needsQuoting(identifier string) bool {
	if identifier == "" {
		return false
	}

	if isKeyword(identifier) {
		return true
	}

	// PostgreSQL folds unquoted identifiers to lowercase
	for _, r := range identifier {
		if unicode.IsUpper(r) {
			return true
		}
	}

	for i, r := range identifier {
		if i == 0 && !unicode.IsLetter(r) && r != '_' {
			return true
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return true
		}
	}

	return false
}

// formatIndexColumn renders an index column or expression. Plain identifiers
// are quoted when needed; expressions and already quoted names pass through.
func formatIndexColumn(col string) string {
	col = strings.TrimSpace(col)
	if strings.HasPrefix(col, `"`) || isExpression(col) {
		return col
	}
	// trailing ASC/DESC/NULLS modifiers
	if name, rest, found := strings.Cut(col, " "); found {
		if needsQuoting(name) {
			return pq.QuoteIdentifier(name) + " " + rest
		}
		return col
	}
	if needsQuoting(col) {
		return pq.QuoteIdentifier(col)
	}
	return col
}

func isExpression(col string) bool {
	return strings.ContainsAny(col, "()'") ||
		strings.Contains(col, "->") ||
		strings.Contains(col, "::")
}

// isKeyword reports whether the PostgreSQL scanner reads identifier as a
// keyword other than an unreserved one
func isKeyword(identifier string) bool {
	result, err := pg_query.Scan(identifier)
	if err != nil || len(result.Tokens) != 1 {
		return false
	}
	switch result.Tokens[0].KeywordKind {
	case pg_query.KeywordKind_NO_KEYWORD, pg_query.KeywordKind_UNRESERVED_KEYWORD:
		return false
	}
	return true
}
