package normalize

import (
	"testing"

	"github.com/pgschema/viewmig/internal/engine"
)

const pg = engine.FamilyPostgreSQL

func TestNormalizeEquivalence(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
	}{
		{
			name: "keyword case and terminator",
			a:    "SELECT a FROM t;",
			b:    "select a from t",
		},
		{
			name: "whitespace and line breaks",
			a: ` SELECT emp_no,
    max(from_date) AS from_date
   FROM dept_emp
  GROUP BY emp_no;`,
			b: "SELECT emp_no, max(from_date) AS from_date FROM dept_emp GROUP BY emp_no",
		},
		{
			name: "comments are ignored",
			a:    "SELECT 1 AS id -- constant\n",
			b:    "SELECT /* inline */ 1 AS id",
		},
		{
			name: "repeated terminators",
			a:    "SELECT 1 as id;;",
			b:    "SELECT 1 as id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			equal, err := Equal(tt.a, tt.b, pg)
			if err != nil {
				t.Fatalf("Equal() error = %v", err)
			}
			if !equal {
				na, _ := Normalize(tt.a, pg)
				nb, _ := Normalize(tt.b, pg)
				t.Errorf("expected equal normalized forms:\n%q\n%q", na, nb)
			}
		})
	}
}

func TestNormalizePreservesSemanticDifferences(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
	}{
		{"different column", "SELECT a FROM t", "SELECT b FROM t"},
		{"reordered columns", "SELECT emp_no, name FROM users", "SELECT name, emp_no FROM users"},
		{"different function", "SELECT max(x) FROM t", "SELECT min(x) FROM t"},
		{"changed literal", "SELECT 'original' AS name", "SELECT 'changed' AS name"},
		{"literal case", "SELECT 'Abc' AS name", "SELECT 'abc' AS name"},
		{"added clause", "SELECT a FROM t", "SELECT a FROM t WHERE a > 1"},
		{"quoted identifier case", `SELECT "Amount" FROM t`, `SELECT "amount" FROM t`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			equal, err := Equal(tt.a, tt.b, pg)
			if err != nil {
				t.Fatalf("Equal() error = %v", err)
			}
			if equal {
				t.Errorf("expected %q and %q to differ after normalization", tt.a, tt.b)
			}
		})
	}
}

func TestNormalizeOutput(t *testing.T) {
	got, err := Normalize("SELECT  1 AS id;\n", pg)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if want := "select 1 as id"; got != want {
		t.Errorf("Normalize() = %q, want %q", got, want)
	}
}

func TestNormalizeMalformed(t *testing.T) {
	if _, err := Normalize("SELECT 'unterminated FROM t", pg); err == nil {
		t.Fatal("expected error for unterminated literal")
	}
}

func TestNormalizeEmpty(t *testing.T) {
	got, err := Normalize("   ", pg)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got != "" {
		t.Errorf("Normalize() = %q, want empty", got)
	}
}

func TestNormalizeDialects(t *testing.T) {
	tests := []struct {
		name   string
		family engine.Family
		a      string
		b      string
		equal  bool
	}{
		{"mysql backslash escaped quote", engine.FamilyMySQL, `SELECT 'it\'s' AS x`, `SELECT 'it''s' AS x`, true},
		{"mysql double quoted string", engine.FamilyMySQL, `SELECT "it's" AS x`, `SELECT 'it\'s' AS x`, true},
		{"mysql hash comment edit", engine.FamilyMySQL, "SELECT a FROM t # x", "SELECT a FROM t # y", true},
		{"mysql hash comment removed", engine.FamilyMySQL, "SELECT a # first column\nFROM t;", "select a from t", true},
		{"mysql backtick identifiers", engine.FamilyMySQL, "SELECT `order` FROM  `t`", "SELECT `order`\nFROM `t`", true},
		{"mysql comment text with quote", engine.FamilyMySQL, "SELECT a FROM t -- don't\n", "SELECT a FROM t", true},
		{"mysql escaped backslash", engine.FamilyMySQL, `SELECT 'a\\b' AS x`, `SELECT "a\\b" AS x`, true},
		{"mysql changed literal", engine.FamilyMySQL, `SELECT 'it\'s' AS x`, `SELECT 'its' AS x`, false},
		{"mysql changed column", engine.FamilyMySQL, "SELECT `a` FROM t # x", "SELECT `b` FROM t # x", false},
		{"sqlite bracket identifier", engine.FamilySQLite, "SELECT [order] FROM t", `SELECT "order" FROM t`, true},
		{"sqlite backtick identifier", engine.FamilySQLite, "SELECT `order` FROM t", `SELECT "order" FROM t`, true},
		{"sqlite backslash is literal", engine.FamilySQLite, `SELECT 'a\b' AS x`, `SELECT  'a\b'  AS x;`, true},
		{"sqlite changed literal", engine.FamilySQLite, `SELECT 'a' AS x`, `SELECT 'b' AS x`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			equal, err := Equal(tt.a, tt.b, tt.family)
			if err != nil {
				t.Fatalf("Equal() error = %v", err)
			}
			if equal != tt.equal {
				na, _ := Normalize(tt.a, tt.family)
				nb, _ := Normalize(tt.b, tt.family)
				t.Errorf("Equal() = %v, want %v:\n%q\n%q", equal, tt.equal, na, nb)
			}
		})
	}
}

func TestNormalizeDialectMalformed(t *testing.T) {
	for _, def := range []string{`SELECT 'it\'s AS x`, "SELECT `a FROM t", "SELECT a /* open"} {
		if _, err := Normalize(def, engine.FamilyMySQL); err == nil {
			t.Errorf("expected error for %q", def)
		}
	}
	if _, err := Normalize("SELECT [a FROM t", engine.FamilySQLite); err == nil {
		t.Error("expected error for unterminated bracket")
	}
}
