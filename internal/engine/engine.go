// Package engine identifies database backends and the SQL features each one
// offers for view management.
package engine

import (
	"strings"
)

// ID is an opaque engine identifier following the dotted module-path
// convention of database backends, e.g. "db.backends.postgresql".
type ID string

// Default is the engine of definitions that apply to every backend.
const Default ID = ""

// Built-in engine identifiers
const (
	PostgreSQL ID = "db.backends.postgresql"
	PostGIS    ID = "db.backends.postgis"
	MySQL      ID = "db.backends.mysql"
	SQLite     ID = "db.backends.sqlite3"
)

// Family groups engine identifiers that share SQL capabilities
type Family int

const (
	FamilyUnknown Family = iota
	FamilyPostgreSQL
	FamilyMySQL
	FamilySQLite
)

func (f Family) String() string {
	switch f {
	case FamilyPostgreSQL:
		return "postgresql"
	case FamilyMySQL:
		return "mysql"
	case FamilySQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// FamilyOf classifies an engine identifier. Any identifier mentioning
// postgres/postgis, mysql or sqlite belongs to that family.
func FamilyOf(id ID) Family {
	s := strings.ToLower(string(id))
	switch {
	case strings.Contains(s, "postgres"), strings.Contains(s, "postgis"):
		return FamilyPostgreSQL
	case strings.Contains(s, "mysql"):
		return FamilyMySQL
	case strings.Contains(s, "sqlite"):
		return FamilySQLite
	default:
		return FamilyUnknown
	}
}

// Family returns the family of the engine
func (id ID) Family() Family {
	return FamilyOf(id)
}

// IsDefault reports whether id is the engine-agnostic default
func (id ID) IsDefault() bool {
	return id == Default
}

func (id ID) String() string {
	if id == Default {
		return "default"
	}
	return string(id)
}

// Capabilities describes what an engine family supports
type Capabilities struct {
	// AtomicReplace is CREATE OR REPLACE VIEW support for plain views.
	AtomicReplace bool
	// IndexManagement means materialized view indexes are tracked and diffed.
	IndexManagement bool
	// TransactionalDDL means view DDL can be rolled back inside a transaction.
	TransactionalDDL bool
}

var capabilityTable = map[Family]Capabilities{
	FamilyPostgreSQL: {AtomicReplace: true, IndexManagement: true, TransactionalDDL: true},
	FamilyMySQL:      {AtomicReplace: true},
	FamilySQLite:     {TransactionalDDL: true},
	FamilyUnknown:    {},
}

// CapabilitiesOf returns the built-in capabilities of an engine
func CapabilitiesOf(id ID) Capabilities {
	return capabilityTable[FamilyOf(id)]
}

// SupportsReplace reports whether plain views can be replaced atomically
func SupportsReplace(id ID) bool {
	return CapabilitiesOf(id).AtomicReplace
}

// ManagesIndexes reports whether materialized view indexes are managed on id
func ManagesIndexes(id ID) bool {
	return CapabilitiesOf(id).IndexManagement
}

// TransactionalDDL reports whether DDL on id can run inside a transaction
func TransactionalDDL(id ID) bool {
	return CapabilitiesOf(id).TransactionalDDL
}

// Parse maps short names used on the command line to engine identifiers.
// Anything else is returned verbatim as an opaque identifier.
func Parse(s string) ID {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return Default
	case "postgres", "postgresql", "pg":
		return PostgreSQL
	case "postgis":
		return PostGIS
	case "mysql":
		return MySQL
	case "sqlite", "sqlite3":
		return SQLite
	default:
		return ID(strings.TrimSpace(s))
	}
}

// DriverName returns the database/sql driver registered for the engine family
func DriverName(id ID) string {
	switch FamilyOf(id) {
	case FamilyPostgreSQL:
		return "pgx"
	case FamilyMySQL:
		return "mysql"
	case FamilySQLite:
		return "sqlite"
	default:
		return ""
	}
}
