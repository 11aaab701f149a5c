package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/focus-timer/internal/persistence"
	"github.com/example/focus-timer/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsDir = "migrations"

// Storage bundles the SQLite repositories over one connection pool and
// satisfies every persistence repository interface.
type Storage struct {
	*SessionRepository
	*EventRepository
	*ActivityRepository
	*CredentialRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

var (
	_ persistence.SessionRepository    = (*Storage)(nil)
	_ persistence.EventRepository      = (*Storage)(nil)
	_ persistence.ActivityRepository   = (*Storage)(nil)
	_ persistence.CredentialRepository = (*Storage)(nil)
)

// Open opens the database at dsn with the default pool settings.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Storage, error) {
	return OpenWithConfig(ctx, migration.DefaultSQLiteConfig(dsn), logger)
}

// OpenWithConfig opens the database described by config.
func OpenWithConfig(ctx context.Context, config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		return nil, err
	}

	return &Storage{
		SessionRepository:    NewSessionRepository(pool),
		EventRepository:      NewEventRepository(pool),
		ActivityRepository:   NewActivityRepository(pool),
		CredentialRepository: NewCredentialRepository(pool),
		pool:                 pool,
		logger:               logger,
	}, nil
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

// Ping checks that the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies every pending embedded migration.
func (s *Storage) Migrate(ctx context.Context) error {
	if err := s.migrationManager().RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending embedded migrations.
func (s *Storage) MigrationStatus(ctx context.Context) (*migration.MigrationStatus, error) {
	return s.migrationManager().GetMigrationStatus(ctx)
}

func (s *Storage) migrationManager() migration.MigrationManager {
	return migration.NewMigrationManager(
		migration.NewFileScanner(migrationFiles),
		migration.NewSQLiteExecutor(s.pool.DB()),
		migrationsDir,
		s.logger,
	)
}
