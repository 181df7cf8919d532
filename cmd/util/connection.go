package util

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/pgschema/viewmig/internal/config"
	"github.com/pgschema/viewmig/internal/engine"
	"github.com/pgschema/viewmig/internal/logger"
)

// Connect opens and pings a connection to an engine
func Connect(ctx context.Context, e engine.ID, dsn string) (*sql.DB, error) {
	log := logger.Get()

	driver := engine.DriverName(e)
	if driver == "" {
		return nil, fmt.Errorf("no database driver for engine %q", e)
	}
	if dsn == "" {
		return nil, fmt.Errorf("no connection settings for engine %q (set database.url or --database-url)", e)
	}

	log.Debug("Attempting database connection", "engine", e, "driver", driver)

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		log.Debug("Database connection failed", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		log.Debug("Database ping failed", "error", err)
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// sqlite DDL and the tracking table must share one connection
	if engine.FamilyOf(e) == engine.FamilySQLite {
		conn.SetMaxOpenConns(1)
	}

	log.Debug("Database connection established successfully")
	return conn, nil
}

// BuildDSN derives a connection string for e from the database settings.
// An explicit URL always wins. It returns "" when nothing is configured.
func BuildDSN(db config.DatabaseConfig, e engine.ID) string {
	if db.URL != "" {
		return db.URL
	}

	switch engine.FamilyOf(e) {
	case engine.FamilyPostgreSQL:
		if db.Host == "" && db.Name == "" {
			return ""
		}
		return buildPostgresDSN(db)
	case engine.FamilyMySQL:
		if db.Name == "" {
			return ""
		}
		return buildMySQLDSN(db)
	case engine.FamilySQLite:
		// sqlite takes a file path as its database name
		return db.Name
	default:
		return ""
	}
}

// buildPostgresDSN constructs a libpq key=value connection string
func buildPostgresDSN(db config.DatabaseConfig) string {
	var parts []string

	host := db.Host
	if host == "" {
		host = "localhost"
	}
	port := db.Port
	if port == 0 {
		port = 5432
	}

	parts = append(parts, fmt.Sprintf("host=%s", host))
	parts = append(parts, fmt.Sprintf("port=%d", port))

	if db.Name != "" {
		parts = append(parts, fmt.Sprintf("dbname=%s", db.Name))
	}
	if db.User != "" {
		parts = append(parts, fmt.Sprintf("user=%s", db.User))
	}
	if db.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", db.Password))
	}
	if db.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", db.SSLMode))
	}
	if db.ApplicationName != "" {
		parts = append(parts, fmt.Sprintf("application_name=%s", db.ApplicationName))
	}

	return strings.Join(parts, " ")
}

func buildMySQLDSN(db config.DatabaseConfig) string {
	cfg := mysql.NewConfig()
	cfg.User = db.User
	cfg.Passwd = db.Password
	cfg.DBName = db.Name
	cfg.Net = "tcp"

	host := db.Host
	if host == "" {
		host = "localhost"
	}
	port := db.Port
	if port == 0 {
		port = 3306
	}
	cfg.Addr = fmt.Sprintf("%s:%d", host, port)

	cfg.ParseTime = true
	return cfg.FormatDSN()
}
