// Package normalize canonicalizes view definitions so that formatting-only
// edits do not register as changes.
package normalize

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/pgschema/viewmig/internal/engine"
)

// Normalize returns the canonical form of a SQL definition written for an
// engine family.
//
// The definition is split into tokens with the PostgreSQL scanner. Comments
// and whitespace are dropped, keywords are lower-cased, trailing statement
// terminators are removed, and the remaining tokens are joined with a single
// space. Literals and identifiers are kept byte for byte.
//
// Definitions of other families are first rewritten into PostgreSQL quoting:
// their comments are removed and their string literals and quoted
// identifiers are re-encoded. If the scanner still rejects the text, the
// definition is compared with whitespace collapsed.
func Normalize(sql string, family engine.Family) (string, error) {
	if family == engine.FamilyPostgreSQL {
		normalized, err := scan(sql)
		if err != nil {
			return "", fmt.Errorf("failed to tokenize definition: %w", err)
		}
		return normalized, nil
	}

	rewritten, err := rewriteDialect(sql, family)
	if err != nil {
		return "", fmt.Errorf("failed to tokenize %s definition: %w", family, err)
	}
	normalized, err := scan(rewritten)
	if err != nil {
		return collapse(rewritten), nil
	}
	return normalized, nil
}

// Equal reports whether two definitions have the same normalized form
func Equal(a, b string, family engine.Family) (bool, error) {
	na, err := Normalize(a, family)
	if err != nil {
		return false, err
	}
	nb, err := Normalize(b, family)
	if err != nil {
		return false, err
	}
	return na == nb, nil
}

func scan(sql string) (string, error) {
	result, err := pg_query.Scan(sql)
	if err != nil {
		return "", err
	}

	tokens := make([]string, 0, len(result.Tokens))
	for _, tok := range result.Tokens {
		switch tok.Token {
		case pg_query.Token_SQL_COMMENT, pg_query.Token_C_COMMENT:
			continue
		}

		if tok.Start < 0 || int(tok.End) > len(sql) || tok.Start > tok.End {
			return "", fmt.Errorf("token out of range at offset %d", tok.Start)
		}
		text := sql[tok.Start:tok.End]
		if tok.KeywordKind != pg_query.KeywordKind_NO_KEYWORD {
			text = strings.ToLower(text)
		}
		tokens = append(tokens, text)
	}

	return strings.Join(trimTerminators(tokens), " "), nil
}

func collapse(sql string) string {
	return strings.Join(trimTerminators(strings.Fields(sql)), " ")
}

func trimTerminators(tokens []string) []string {
	for len(tokens) > 0 {
		last := strings.TrimRight(tokens[len(tokens)-1], ";")
		if last != "" {
			tokens[len(tokens)-1] = last
			return tokens
		}
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

// rewriteDialect converts MySQL and SQLite quoting into PostgreSQL quoting.
//
// MySQL: '...' and "..." are strings with backslash escapes, `...` is an
// identifier and # starts a comment. SQLite: `...` and [...] are
// identifiers. Comments are replaced with a space.
func rewriteDialect(sql string, family engine.Family) (string, error) {
	mysql := family == engine.FamilyMySQL
	sqlite := family == engine.FamilySQLite

	var sb strings.Builder
	sb.Grow(len(sql))

	for i := 0; i < len(sql); {
		c := sql[i]
		var next byte
		if i+1 < len(sql) {
			next = sql[i+1]
		}

		switch {
		case c == '\'' || (mysql && c == '"'):
			body, n, err := readQuoted(sql[i:], c, mysql)
			if err != nil {
				return "", err
			}
			sb.WriteString(pq.QuoteLiteral(body))
			i += n

		case c == '"':
			body, n, err := readQuoted(sql[i:], c, false)
			if err != nil {
				return "", err
			}
			sb.WriteString(pq.QuoteIdentifier(body))
			i += n

		case c == '`' && (mysql || sqlite):
			body, n, err := readQuoted(sql[i:], c, false)
			if err != nil {
				return "", err
			}
			sb.WriteString(pq.QuoteIdentifier(body))
			i += n

		case c == '[' && sqlite:
			end := strings.IndexByte(sql[i+1:], ']')
			if end < 0 {
				return "", fmt.Errorf("unterminated bracketed identifier at offset %d", i)
			}
			sb.WriteString(pq.QuoteIdentifier(sql[i+1 : i+1+end]))
			i += end + 2

		case (c == '-' && next == '-') || (c == '#' && mysql):
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				end = len(sql) - i
			}
			sb.WriteByte(' ')
			i += end

		case c == '/' && next == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				return "", fmt.Errorf("unterminated comment at offset %d", i)
			}
			sb.WriteByte(' ')
			i += end + 4

		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), nil
}

// readQuoted reads a quoted token starting at s[0] and returns its decoded
// body and the number of bytes consumed. A doubled quote stands for itself.
func readQuoted(s string, quote byte, backslash bool) (string, int, error) {
	var body strings.Builder
	for j := 1; j < len(s); j++ {
		c := s[j]
		switch {
		case backslash && c == '\\' && j+1 < len(s):
			j++
			body.WriteString(mysqlEscape(s[j]))
		case c == quote:
			if j+1 < len(s) && s[j+1] == quote {
				body.WriteByte(quote)
				j++
				continue
			}
			return body.String(), j + 1, nil
		default:
			body.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated quoted string")
}

// mysqlEscape decodes the character following a backslash in a MySQL string
func mysqlEscape(c byte) string {
	switch c {
	case 'n':
		return "\n"
	case 'r':
		return "\r"
	case 't':
		return "\t"
	case 'b':
		return "\b"
	case 'Z':
		return "\x1a"
	case '0', '%', '_':
		// kept escaped: NUL cannot be scanned, \% and \_ stay LIKE escapes
		return `\` + string(c)
	default:
		return string(c)
	}
}
