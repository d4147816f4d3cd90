// internal/adapters/db/sqlite.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
)

// Config holds local store configuration
type Config struct {
	Path               string
	BusyTimeout        time.Duration
	MaxOpenConns       int
	EnableQueryLogging bool
	MigrationRetries   int
}

// DefaultConfig returns default store configuration
func DefaultConfig() *Config {
	return &Config{
		Path:             "data/portal.db",
		BusyTimeout:      5 * time.Second,
		MaxOpenConns:     1,
		MigrationRetries: 3,
	}
}

// DSN returns the go-sqlite3 connection string for the config
func (c *Config) DSN() string {
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on&_journal_mode=WAL&_txlock=immediate",
		c.Path, c.BusyTimeout.Milliseconds())
}

// queryer is satisfied by *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Database wraps the embedded sqlite handle
type Database struct {
	db     *sql.DB
	config *Config
	logger *slog.Logger
}

// NewDatabase opens (or creates) the store file. Any failure is reported as
// domain.ErrStorageUnavailable and is not retried.
func NewDatabase(ctx context.Context, config *Config, logger *slog.Logger) (*Database, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Path == "" {
		return nil, fmt.Errorf("%w: store path is empty", domain.ErrStorageUnavailable)
	}

	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: failed to create store directory: %v", domain.ErrStorageUnavailable, err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open store: %v", domain.ErrStorageUnavailable, err)
	}

	maxOpen := config.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%w: failed to ping store: %v", domain.ErrStorageUnavailable, err)
	}

	logger.Info("local store opened",
		slog.String("path", config.Path),
		slog.Int("max_open_conns", maxOpen),
	)

	return &Database{
		db:     sqlDB,
		config: config,
		logger: logger,
	}, nil
}

// NewDatabaseFromDB wraps an existing handle
func NewDatabaseFromDB(sqlDB *sql.DB, logger *slog.Logger) *Database {
	return &Database{
		db:     sqlDB,
		config: DefaultConfig(),
		logger: logger,
	}
}

// DB returns the underlying handle
func (d *Database) DB() *sql.DB {
	return d.db
}

// Close closes the store handle
func (d *Database) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	d.logger.Info("local store closed")
	return nil
}

// Ping verifies the store is reachable
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Health returns store health information
func (d *Database) Health(ctx context.Context) map[string]interface{} {
	stats := d.db.Stats()
	health := map[string]interface{}{
		"status":           "healthy",
		"path":             d.config.Path,
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var result int
	if err := d.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		health["status"] = "unhealthy"
		health["error"] = err.Error()
	}

	return health
}

// Transaction executes a function within a database transaction
func (d *Database) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// loggingQueryer logs statements at debug level
type loggingQueryer struct {
	q      queryer
	logger *slog.Logger
}

func (l loggingQueryer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := l.q.ExecContext(ctx, query, args...)
	l.log(ctx, query, start, err)
	return res, err
}

func (l loggingQueryer) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := l.q.QueryContext(ctx, query, args...)
	l.log(ctx, query, start, err)
	return rows, err
}

func (l loggingQueryer) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := l.q.QueryRowContext(ctx, query, args...)
	l.log(ctx, query, start, row.Err())
	return row
}

func (l loggingQueryer) log(ctx context.Context, query string, start time.Time, err error) {
	attrs := []any{
		slog.String("sql", query),
		slog.Duration("duration_ms", time.Since(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.logger.DebugContext(ctx, "store query", attrs...)
}
