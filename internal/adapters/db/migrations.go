// internal/adapters/db/migrations.go
package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// SchemaVersion is the migration version this build expects
const SchemaVersion uint = 2

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// MigrationConfig holds migration configuration
type MigrationConfig struct {
	TableName  string
	ForceDirty bool
}

// Migrator applies the embedded schema migrations
type Migrator struct {
	migrate *migrate.Migrate
	source  source.Driver
	config  *MigrationConfig
	logger  *slog.Logger
}

// NewMigrator creates a migrator bound to an open store handle.
// The handle stays owned by the caller.
func NewMigrator(db *sql.DB, config *MigrationConfig, logger *slog.Logger) (*Migrator, error) {
	if config == nil {
		config = &MigrationConfig{}
	}
	if config.TableName == "" {
		config.TableName = "schema_migrations"
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{
		MigrationsTable: config.TableName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite3 migration driver: %w", err)
	}

	src, err := iofs.New(embeddedMigrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create embedded source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}

	return &Migrator{
		migrate: m,
		source:  src,
		config:  config,
		logger:  logger,
	}, nil
}

// Up runs all available migrations
func (m *Migrator) Up(ctx context.Context) error {
	version, dirty, err := m.migrate.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	if dirty {
		if !m.config.ForceDirty {
			return fmt.Errorf("store schema is dirty at version %d", version)
		}
		m.logger.WarnContext(ctx, "forcing dirty migration",
			slog.Uint64("version", uint64(version)))
		if err := m.migrate.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.DebugContext(ctx, "no migrations to run",
				slog.Uint64("version", uint64(version)))
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	newVersion, _, err := m.migrate.Version()
	if err != nil {
		m.logger.WarnContext(ctx, "failed to get new version", slog.String("error", err.Error()))
	} else {
		m.logger.InfoContext(ctx, "migrations completed",
			slog.Uint64("from_version", uint64(version)),
			slog.Uint64("version", uint64(newVersion)))
	}

	return nil
}

// Down rolls back the last migration
func (m *Migrator) Down(ctx context.Context) error {
	version, dirty, err := m.migrate.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	if dirty {
		return fmt.Errorf("store schema is dirty at version %d", version)
	}

	if err := m.migrate.Steps(-1); err != nil {
		if errors.Is(err, migrate.ErrNoChange) || errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	m.logger.InfoContext(ctx, "migration rolled back",
		slog.Uint64("from_version", uint64(version)))
	return nil
}

// Version returns current migration version
func (m *Migrator) Version(_ context.Context) (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get version: %w", err)
	}
	return version, dirty, nil
}

// Close releases the migration source. The sqlite3 driver would close the
// shared handle, so migrate.Close is not called.
func (m *Migrator) Close() error {
	if m.source != nil {
		if err := m.source.Close(); err != nil {
			return fmt.Errorf("failed to close migration source: %w", err)
		}
	}
	return nil
}

// RunMigrationsWithRetry runs migrations with linear backoff between attempts
func RunMigrationsWithRetry(ctx context.Context, db *sql.DB, config *MigrationConfig, logger *slog.Logger, maxRetries int) error {
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			waitTime := time.Duration(i) * 500 * time.Millisecond
			logger.InfoContext(ctx, "retrying migration",
				slog.Int("attempt", i+1),
				slog.Duration("wait", waitTime))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitTime):
			}
		}

		migrator, err := NewMigrator(db, config, logger)
		if err != nil {
			lastErr = err
			continue
		}

		err = migrator.Up(ctx)
		_ = migrator.Close()
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return fmt.Errorf("migrations failed after %d attempts: %w", maxRetries, lastErr)
}
