package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/rendez-vous/internal/persistence"
	"github.com/example/rendez-vous/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage bundles every SQLite repository behind one connection pool.
type Storage struct {
	*MemberRepository
	*GroupRepository
	*RendezVousRepository
	*ActivityRepository
	*NotificationRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

var (
	_ persistence.MemberRepository       = (*Storage)(nil)
	_ persistence.GroupRepository        = (*Storage)(nil)
	_ persistence.RendezVousRepository   = (*Storage)(nil)
	_ persistence.ActivityRepository     = (*Storage)(nil)
	_ persistence.NotificationRepository = (*Storage)(nil)
)

// Option configures Storage.
type Option func(*Storage)

// WithLogger sets the logger used for migrations.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Storage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open opens a database file with the default settings. ":memory:" opens a
// private in-memory database.
func Open(dsn string, opts ...Option) (*Storage, error) {
	config := migration.DefaultSQLiteConfig(dsn)
	if dsn == ":memory:" {
		config = migration.InMemoryTestSQLiteConfig()
	}
	return OpenConfig(config, DefaultRetryConfig(), opts...)
}

// OpenConfig opens storage with explicit connection and retry settings.
func OpenConfig(config migration.SQLiteConfig, retry RetryConfig, opts ...Option) (*Storage, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	s := &Storage{pool: pool, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	helper := NewRetryHelper(retry)
	s.MemberRepository = NewMemberRepository(pool, helper)
	s.GroupRepository = NewGroupRepository(pool, helper)
	s.RendezVousRepository = NewRendezVousRepository(pool, helper)
	s.ActivityRepository = NewActivityRepository(pool, helper)
	s.NotificationRepository = NewNotificationRepository(pool, helper)
	return s, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewSQLiteExecutor(s.pool.DB()),
		s.logger,
	)
	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending embedded migrations.
func (s *Storage) MigrationStatus(ctx context.Context) (*migration.Status, error) {
	manager := migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewSQLiteExecutor(s.pool.DB()),
		s.logger,
	)
	return manager.Status(ctx)
}

// Ping checks the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

// repository holds the plumbing shared by the repositories.
type repository struct {
	pool   *ConnectionPool
	retry  *RetryHelper
	mapper *ErrorMapper
}

func newRepository(pool *ConnectionPool, retry *RetryHelper) repository {
	if retry == nil {
		retry = NewRetryHelper(DefaultRetryConfig())
	}
	return repository{pool: pool, retry: retry, mapper: NewErrorMapper()}
}

// write runs fn in a transaction, retrying while the database is busy.
func (r repository) write(ctx context.Context, fn TransactionFunc) error {
	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, fn)
	})
}

func (r repository) db() *sql.DB {
	return r.pool.DB()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}

func formatNullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullableTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullableString(value *string) sql.NullString {
	if value == nil || *value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func stringPointer(value sql.NullString) *string {
	if !value.Valid || value.String == "" {
		return nil
	}
	s := value.String
	return &s
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, 2*n-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}
