package migration

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const memoryDSN = ":memory:"

// SQLiteConfig holds connection and PRAGMA settings.
type SQLiteConfig struct {
	// DSN is a file path or ":memory:".
	DSN               string
	BusyTimeout       time.Duration
	EnableForeignKeys bool
	// JournalMode is one of DELETE, TRUNCATE, PERSIST, MEMORY, WAL, OFF.
	JournalMode string
	// Synchronous is one of OFF, NORMAL, FULL, EXTRA.
	Synchronous     string
	CacheSize       int // negative values are KiB
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

var (
	validJournalModes = map[string]bool{"DELETE": true, "TRUNCATE": true, "PERSIST": true, "MEMORY": true, "WAL": true, "OFF": true}
	validSyncModes    = map[string]bool{"OFF": true, "NORMAL": true, "FULL": true, "EXTRA": true}
)

// Validate checks the configuration before a connection is opened.
func (c SQLiteConfig) Validate() error {
	var problems []string
	if strings.TrimSpace(c.DSN) == "" {
		problems = append(problems, "DSN cannot be empty")
	}
	if c.BusyTimeout < 0 {
		problems = append(problems, "BusyTimeout cannot be negative")
	}
	if c.JournalMode != "" && !validJournalModes[strings.ToUpper(c.JournalMode)] {
		problems = append(problems, "invalid journal mode: "+c.JournalMode)
	}
	if c.Synchronous != "" && !validSyncModes[strings.ToUpper(c.Synchronous)] {
		problems = append(problems, "invalid synchronous mode: "+c.Synchronous)
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 || c.ConnMaxLifetime < 0 {
		problems = append(problems, "connection pool settings cannot be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid SQLite configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// IsMemory reports whether the DSN targets an in-memory database.
func (c SQLiteConfig) IsMemory() bool {
	return c.DSN == memoryDSN || strings.Contains(c.DSN, "mode=memory")
}

// Open validates the configuration, creates the database directory when
// needed and returns a pinged connection with PRAGMAs applied.
func Open(config SQLiteConfig) (*sql.DB, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if !config.IsMemory() {
		if err := os.MkdirAll(filepath.Dir(config.DSN), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", connectionDSN(config))
	if err != nil {
		return nil, fmt.Errorf("open SQLite database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if config.IsMemory() {
		db.SetMaxOpenConns(1)
	} else if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if err := applyPragmas(db, config); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping SQLite database: %w", err)
	}
	return db, nil
}

// connectionDSN adds the PRAGMAs as _pragma parameters so the driver sets
// them on every pooled connection, not only the first one.
func connectionDSN(config SQLiteConfig) string {
	if config.IsMemory() {
		return config.DSN
	}
	params := url.Values{}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", config.BusyTimeout.Milliseconds()))
	if config.EnableForeignKeys {
		params.Add("_pragma", "foreign_keys(1)")
	}
	if config.Synchronous != "" {
		params.Add("_pragma", "synchronous("+strings.ToUpper(config.Synchronous)+")")
	}
	separator := "?"
	if strings.Contains(config.DSN, "?") {
		separator = "&"
	}
	return config.DSN + separator + params.Encode()
}

func applyPragmas(db *sql.DB, config SQLiteConfig) error {
	pragmas := []string{fmt.Sprintf("busy_timeout = %d", config.BusyTimeout.Milliseconds())}
	if config.JournalMode != "" {
		pragmas = append(pragmas, "journal_mode = "+strings.ToUpper(config.JournalMode))
	}
	if config.Synchronous != "" {
		pragmas = append(pragmas, "synchronous = "+strings.ToUpper(config.Synchronous))
	}
	if config.EnableForeignKeys {
		pragmas = append(pragmas, "foreign_keys = ON")
	}
	if config.CacheSize != 0 {
		pragmas = append(pragmas, fmt.Sprintf("cache_size = %d", config.CacheSize))
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec("PRAGMA " + pragma); err != nil {
			return fmt.Errorf("set PRAGMA %s: %w", pragma, err)
		}
	}
	return nil
}

// DefaultSQLiteConfig returns production settings for a database file.
func DefaultSQLiteConfig(databasePath string) SQLiteConfig {
	return SQLiteConfig{
		DSN:               databasePath,
		BusyTimeout:       30 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "WAL",
		Synchronous:       "NORMAL",
		CacheSize:         -2000,
		MaxOpenConns:      25,
		MaxIdleConns:      5,
		ConnMaxLifetime:   5 * time.Minute,
	}
}

// InMemoryTestSQLiteConfig returns settings for a throwaway in-memory database.
func InMemoryTestSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		DSN:               memoryDSN,
		BusyTimeout:       5 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "MEMORY",
		Synchronous:       "OFF",
		MaxOpenConns:      1,
		MaxIdleConns:      1,
	}
}

// TempFileTestSQLiteConfig returns settings for a temporary database file.
func TempFileTestSQLiteConfig(path string) SQLiteConfig {
	return SQLiteConfig{
		DSN:               path,
		BusyTimeout:       5 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "WAL",
		Synchronous:       "OFF",
		MaxOpenConns:      4,
		MaxIdleConns:      2,
		ConnMaxLifetime:   time.Minute,
	}
}
