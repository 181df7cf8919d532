// Package apply runs migration records against a live database and tracks
// which records have been applied.
package apply

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/lib/pq"

	"github.com/pgschema/viewmig/internal/diff"
	"github.com/pgschema/viewmig/internal/engine"
	"github.com/pgschema/viewmig/internal/history"
	"github.com/pgschema/viewmig/internal/logger"
)

// TrackingTable records applied migrations
const TrackingTable = "viewmig_migrations"

// Zero is the rollback target that reverts every applied record
const Zero = "zero"

const trackingDDL = `CREATE TABLE IF NOT EXISTS viewmig_migrations (
    name VARCHAR(255) NOT NULL PRIMARY KEY,
    checksum VARCHAR(64) NOT NULL,
    applied_at VARCHAR(64) NOT NULL
)`

// ErrRefreshUnsupported is returned when refreshing on an engine without
// materialized views
var ErrRefreshUnsupported = errors.New("materialized view refresh is only supported on PostgreSQL")

// Execer is the minimal interface needed to run migration statements.
// Implemented by *sql.DB, *sql.Tx, and *sql.Conn.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ChecksumMismatchError is returned when an applied record differs from the
// record on disk
type ChecksumMismatchError struct {
	Name    string
	Applied string
	Current string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("migration %s was applied with checksum %s but history has %s", e.Name, e.Applied, e.Current)
}

// AppliedRecord is a row of the tracking table
type AppliedRecord struct {
	Name      string
	Checksum  string
	AppliedAt time.Time
}

// Applier executes records on one connection
type Applier struct {
	db     Execer
	engine engine.ID
	dryRun io.Writer
	now    func() time.Time
}

// Option configures an Applier
type Option func(*Applier)

// WithDryRun writes statements to w instead of executing them. The tracking
// table is still created and read.
func WithDryRun(w io.Writer) Option {
	return func(a *Applier) { a.dryRun = w }
}

// WithClock sets the clock used for applied_at
func WithClock(now func() time.Time) Option {
	return func(a *Applier) { a.now = now }
}

// New creates an applier for a connection to engine e. The Execer is
// typically *sql.DB.
func New(db Execer, e engine.ID, opts ...Option) *Applier {
	a := &Applier{db: db, engine: e, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// EnsureTable creates the tracking table if needed
func (a *Applier) EnsureTable(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, trackingDDL); err != nil {
		return fmt.Errorf("creating %s: %w", TrackingTable, err)
	}
	return nil
}

// Applied returns the applied records ordered by name
func (a *Applier) Applied(ctx context.Context) ([]AppliedRecord, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT name, checksum, applied_at FROM "+TrackingTable+" ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", TrackingTable, err)
	}
	defer rows.Close()

	var applied []AppliedRecord
	for rows.Next() {
		var rec AppliedRecord
		var appliedAt string
		if err := rows.Scan(&rec.Name, &rec.Checksum, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", TrackingTable, err)
		}
		if rec.AppliedAt, err = time.Parse(time.RFC3339Nano, appliedAt); err != nil {
			return nil, fmt.Errorf("invalid applied_at for %s: %w", rec.Name, err)
		}
		applied = append(applied, rec)
	}
	return applied, rows.Err()
}

// Apply runs the forward statements of every record that has not been
// applied yet, in order. It returns the names of the records applied.
func (a *Applier) Apply(ctx context.Context, records []*history.Record) ([]string, error) {
	log := logger.Get()

	appliedByName, err := a.verify(ctx, records)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, record := range records {
		if _, ok := appliedByName[record.Name]; ok {
			continue
		}

		steps := diff.CollectSQL(record.Operations, a.engine, diff.Forward)
		log.Info("applying migration", "name", record.Name, "statements", len(steps), "dry_run", a.dryRun != nil)

		insert := fmt.Sprintf("INSERT INTO %s (name, checksum, applied_at) VALUES (%s, %s, %s)",
			TrackingTable, a.placeholder(1), a.placeholder(2), a.placeholder(3))
		appliedAt := a.now().UTC().Format(time.RFC3339Nano)

		err := a.run(ctx, record.Name, "forward", steps, func(db Execer) error {
			_, err := db.ExecContext(ctx, insert, record.Name, record.Checksum, appliedAt)
			return err
		})
		if err != nil {
			return done, err
		}
		done = append(done, record.Name)
	}
	return done, nil
}

// Rollback runs the backward statements of applied records newer than
// target, newest first. target is a record name or Zero. It returns the
// names of the records reverted.
func (a *Applier) Rollback(ctx context.Context, records []*history.Record, target string) ([]string, error) {
	log := logger.Get()

	appliedByName, err := a.verify(ctx, records)
	if err != nil {
		return nil, err
	}

	cut := 0
	if target != Zero {
		cut = -1
		for i, record := range records {
			if record.Name == target {
				cut = i + 1
				break
			}
		}
		if cut < 0 {
			return nil, fmt.Errorf("unknown rollback target %q", target)
		}
	}

	var done []string
	for i := len(records) - 1; i >= cut; i-- {
		record := records[i]
		if _, ok := appliedByName[record.Name]; !ok {
			continue
		}

		steps := diff.CollectSQL(record.Operations, a.engine, diff.Backward)
		log.Info("reverting migration", "name", record.Name, "statements", len(steps), "dry_run", a.dryRun != nil)

		remove := fmt.Sprintf("DELETE FROM %s WHERE name = %s", TrackingTable, a.placeholder(1))
		err := a.run(ctx, record.Name, "backward", steps, func(db Execer) error {
			_, err := db.ExecContext(ctx, remove, record.Name)
			return err
		})
		if err != nil {
			return done, err
		}
		done = append(done, record.Name)
	}
	return done, nil
}

// Refresh refreshes the data of a materialized view
func (a *Applier) Refresh(ctx context.Context, table string, concurrently bool) error {
	if engine.FamilyOf(a.engine) != engine.FamilyPostgreSQL {
		return ErrRefreshUnsupported
	}
	stmt := "REFRESH MATERIALIZED VIEW "
	if concurrently {
		stmt += "CONCURRENTLY "
	}
	stmt += pq.QuoteIdentifier(table) + ";"

	if a.dryRun != nil {
		_, _ = fmt.Fprintf(a.dryRun, "%s\n", stmt)
		return nil
	}
	if _, err := a.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("refreshing %s: %w", table, err)
	}
	return nil
}

// verify ensures the tracking table exists and that every applied record
// still matches history
func (a *Applier) verify(ctx context.Context, records []*history.Record) (map[string]AppliedRecord, error) {
	if err := a.EnsureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := a.Applied(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]AppliedRecord, len(applied))
	for _, rec := range applied {
		byName[rec.Name] = rec
	}

	known := make(map[string]bool, len(records))
	for _, record := range records {
		known[record.Name] = true
		if rec, ok := byName[record.Name]; ok && rec.Checksum != record.Checksum {
			return nil, &ChecksumMismatchError{Name: record.Name, Applied: rec.Checksum, Current: record.Checksum}
		}
	}
	for _, rec := range applied {
		if !known[rec.Name] {
			logger.Get().Warn("applied migration is missing from history", "name", rec.Name)
		}
	}
	return byName, nil
}

// run executes steps followed by the tracking update, atomically when the
// engine supports transactional DDL
func (a *Applier) run(ctx context.Context, name, direction string, steps []diff.PlanStep, track func(Execer) error) error {
	if a.dryRun != nil {
		_, _ = fmt.Fprintf(a.dryRun, "-- %s (%s)\n", name, direction)
		for _, step := range steps {
			_, _ = fmt.Fprintf(a.dryRun, "%s\n\n", step.SQL)
		}
		return nil
	}

	isDebug := logger.IsDebug()
	exec := func(db Execer) error {
		for i, step := range steps {
			if isDebug {
				logger.Get().Debug("Executing SQL", "migration", name, "table", step.Table, "sql", step.SQL)
			}
			if _, err := db.ExecContext(ctx, step.SQL); err != nil {
				return fmt.Errorf("migration %s: statement %d (%s %s): %w", name, i+1, step.Action, step.Table, err)
			}
		}
		if err := track(db); err != nil {
			return fmt.Errorf("migration %s: updating %s: %w", name, TrackingTable, err)
		}
		return nil
	}

	txer, ok := a.db.(interface {
		BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	})
	if !ok || !engine.TransactionalDDL(a.engine) {
		return exec(a.db)
	}

	tx, err := txer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := exec(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (a *Applier) placeholder(n int) string {
	if engine.FamilyOf(a.engine) == engine.FamilyPostgreSQL {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
