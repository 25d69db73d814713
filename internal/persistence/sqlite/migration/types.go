package migration

import (
	"context"
	"time"
)

// Migration is one versioned schema change.
type Migration struct {
	Version     string // numeric, e.g. "001"
	Description string
	SQL         string
	FilePath    string
	Checksum    string // sha256 of SQL
}

// Manager orchestrates scanning and applying migrations.
type Manager interface {
	// RunMigrations applies every pending migration in version order.
	RunMigrations(ctx context.Context) error
	// PendingMigrations lists migrations that have not been applied.
	PendingMigrations(ctx context.Context) ([]Migration, error)
	// Status summarizes applied and pending migrations.
	Status(ctx context.Context) (*Status, error)
}

// Scanner loads migration files.
type Scanner interface {
	ScanMigrations() ([]Migration, error)
	ValidateFileName(name string) error
}

// Executor runs migrations against a database and tracks applied versions.
type Executor interface {
	InitializeVersionTable(ctx context.Context) error
	ExecuteMigration(ctx context.Context, m Migration) error
	RecordMigration(ctx context.Context, m Migration, executionTime time.Duration) error
	AppliedMigrations(ctx context.Context) ([]AppliedMigration, error)
}

// Status is the migration state of a database.
type Status struct {
	CurrentVersion    string
	PendingCount      int
	AppliedMigrations []AppliedMigration
	PendingMigrations []Migration
}

// AppliedMigration is a row of the schema_migrations table.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}
