package migration

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// SQLiteExecutor applies migrations to a SQLite database.
type SQLiteExecutor struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteExecutor returns an executor bound to db.
func NewSQLiteExecutor(db *sql.DB) *SQLiteExecutor {
	return &SQLiteExecutor{db: db, now: time.Now}
}

// InitializeVersionTable creates schema_migrations when missing.
func (e *SQLiteExecutor) InitializeVersionTable(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			checksum TEXT NOT NULL DEFAULT '',
			execution_time_ms INTEGER NOT NULL DEFAULT 0
		)`
	if _, err := e.db.ExecContext(ctx, query); err != nil {
		return NewDatabaseError("", query, "create schema_migrations table", err)
	}
	return nil
}

// ExecuteMigration runs every statement of m in a single transaction.
func (e *SQLiteExecutor) ExecuteMigration(ctx context.Context, m Migration) (err error) {
	statements := splitStatements(m.SQL)
	if len(statements) == 0 {
		return NewMigrationError(m.Version, m.FilePath, "parse SQL", fmt.Errorf("%w: no SQL statements", ErrInvalidMigrationFile))
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return NewDatabaseError(m.Version, "", "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return NewDatabaseError(m.Version, stmt, fmt.Sprintf("execute statement %d", i+1), err)
		}
	}
	if err = tx.Commit(); err != nil {
		return NewDatabaseError(m.Version, "", "commit transaction", err)
	}
	return nil
}

// RecordMigration stores m as applied.
func (e *SQLiteExecutor) RecordMigration(ctx context.Context, m Migration, executionTime time.Duration) error {
	const query = `INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`
	appliedAt := e.now().UTC().Format(time.RFC3339)
	if _, err := e.db.ExecContext(ctx, query, m.Version, appliedAt, m.Checksum, executionTime.Milliseconds()); err != nil {
		return NewDatabaseError(m.Version, query, "record migration", err)
	}
	return nil
}

// AppliedMigrations lists recorded migrations ordered by version.
func (e *SQLiteExecutor) AppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	const query = `SELECT version, applied_at, checksum, execution_time_ms FROM schema_migrations`
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, NewDatabaseError("", query, "list applied migrations", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			row       AppliedMigration
			appliedAt string
			elapsedMS int64
		)
		if err := rows.Scan(&row.Version, &appliedAt, &row.Checksum, &elapsedMS); err != nil {
			return nil, NewDatabaseError("", query, "scan applied migration", err)
		}
		if row.AppliedAt, err = time.Parse(time.RFC3339, appliedAt); err != nil {
			return nil, NewDatabaseError(row.Version, query, "parse applied_at", err)
		}
		row.ExecutionTime = time.Duration(elapsedMS) * time.Millisecond
		applied = append(applied, row)
	}
	if err := rows.Err(); err != nil {
		return nil, NewDatabaseError("", query, "iterate applied migrations", err)
	}
	sort.Slice(applied, func(i, j int) bool {
		return versionNumber(applied[i].Version) < versionNumber(applied[j].Version)
	})
	return applied, nil
}
