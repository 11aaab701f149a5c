// Package migration applies versioned SQL schema changes to a SQLite database.
//
// Migration files live in an fs.FS (normally embedded into the binary) and
// follow the naming convention {version}_{description}.sql, for example
// "001_timer_sessions.sql". Applied versions are tracked in the
// schema_migrations table so every file runs exactly once, inside its own
// transaction.
//
// Example usage:
//
//	manager := NewMigrationManager(NewFileScanner(files), NewSQLiteExecutor(db), ".", logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
