package migration

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "migrate.db")))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func schemaFiles() fstest.MapFS {
	return fstest.MapFS{
		"001_members.sql": {Data: []byte("CREATE TABLE members (id TEXT PRIMARY KEY, email TEXT NOT NULL);")},
		"002_groups.sql":  {Data: []byte("CREATE TABLE groups (id TEXT PRIMARY KEY);\nCREATE INDEX idx_groups_id ON groups(id);")},
	}
}

func TestManager_RunMigrations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	manager := NewManager(NewScanner(schemaFiles(), "."), NewSQLiteExecutor(db), nil)

	if err := manager.RunMigrations(ctx); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO members (id, email) VALUES ('m1', 'a@example.com')`); err != nil {
		t.Fatalf("expected members table: %v", err)
	}

	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.CurrentVersion != "002" || status.PendingCount != 0 || len(status.AppliedMigrations) != 2 {
		t.Fatalf("unexpected status %+v", status)
	}

	// Running again is a no-op.
	if err := manager.RunMigrations(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
}

func TestManager_RunMigrations_RollsBackFailedFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	files := schemaFiles()
	files["003_broken.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE notes (id TEXT);\nINSERT INTO missing_table VALUES (1);")}
	manager := NewManager(NewScanner(files, "."), NewSQLiteExecutor(db), nil)

	err := manager.RunMigrations(ctx)
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO notes (id) VALUES ('n1')`); err == nil {
		t.Fatalf("failed migration must be rolled back")
	}

	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.CurrentVersion != "002" || status.PendingCount != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestManager_DetectsGapsAndDrift(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	gap := fstest.MapFS{
		"001_members.sql": {Data: []byte("CREATE TABLE members (id TEXT);")},
		"003_votes.sql":   {Data: []byte("CREATE TABLE votes (id TEXT);")},
	}
	if err := NewManager(NewScanner(gap, "."), NewSQLiteExecutor(openTestDB(t)), nil).RunMigrations(ctx); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict for a gap, got %v", err)
	}

	db := openTestDB(t)
	if err := NewManager(NewScanner(schemaFiles(), "."), NewSQLiteExecutor(db), nil).RunMigrations(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	edited := schemaFiles()
	edited["001_members.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE members (id TEXT PRIMARY KEY);")}
	if _, err := NewManager(NewScanner(edited, "."), NewSQLiteExecutor(db), nil).PendingMigrations(ctx); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}

	removed := fstest.MapFS{"001_members.sql": schemaFiles()["001_members.sql"]}
	if _, err := NewManager(NewScanner(removed, "."), NewSQLiteExecutor(db), nil).PendingMigrations(ctx); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict for a missing applied file, got %v", err)
	}
}

func TestOpen_InMemory(t *testing.T) {
	t.Parallel()

	db, err := Open(InMemoryTestSQLiteConfig())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query pragma: %v", err)
	}
	if fk != 1 {
		t.Fatalf("expected foreign keys enabled")
	}
}
