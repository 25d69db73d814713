// Package migration applies versioned SQL schema changes to a SQLite database.
//
// Migration files are read from an fs.FS, usually an embed.FS compiled into
// the binary, and follow the naming convention {version}_{description}.sql
// (for example "001_initial_schema.sql"). Versions must form a continuous
// sequence. Applied versions and their checksums are tracked in the
// schema_migrations table; a file whose checksum no longer matches the
// recorded one is reported as drift.
//
// Example usage:
//
//	manager := migration.NewManager(migration.NewScanner(migrations.FS, "."), migration.NewSQLiteExecutor(db), logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
