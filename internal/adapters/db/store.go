// internal/adapters/db/store.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/ports"
)

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// StoreOption customizes a Store
type StoreOption func(*Store)

// WithSeedData replaces the built-in reference rows
func WithSeedData(seed domain.SeedData) StoreOption {
	return func(s *Store) { s.seed = seed }
}

// WithDatabase uses an already opened handle instead of opening config.Path
func WithDatabase(database *Database) StoreOption {
	return func(s *Store) { s.db = database }
}

// WithoutMigrations skips schema migrations; the schema must already exist
func WithoutMigrations() StoreOption {
	return func(s *Store) { s.skipMigrations = true }
}

// WithNow sets the clock used for seed bookkeeping
func WithNow(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// Store implements ports.Store on the embedded sqlite database
type Store struct {
	config         *Config
	db             *Database
	seed           domain.SeedData
	skipMigrations bool
	now            func() time.Time
	logger         *slog.Logger

	initMu      sync.Mutex
	initialized bool
}

var _ ports.Store = (*Store)(nil)

// NewStore creates a store. Nothing is opened until Initialize.
func NewStore(config *Config, logger *slog.Logger, opts ...StoreOption) *Store {
	if config == nil {
		config = DefaultConfig()
	}
	s := &Store{
		config: config,
		seed:   domain.DefaultSeedData(),
		now:    time.Now,
		logger: logger.With(slog.String("component", "store")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize opens the store, applies migrations and seeds reference
// collections that have never been seeded. Safe to call repeatedly.
func (s *Store) Initialize(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.db == nil {
		database, err := NewDatabase(ctx, s.config, s.logger)
		if err != nil {
			return err
		}
		s.db = database
	}

	if !s.skipMigrations {
		if err := RunMigrationsWithRetry(ctx, s.db.DB(), nil, s.logger, s.config.MigrationRetries); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
		}
	}

	for _, c := range domain.ReferenceCollections() {
		if err := s.seedCollection(ctx, c); err != nil {
			return fmt.Errorf("failed to seed %s: %w", c, err)
		}
	}

	s.initialized = true
	s.logger.InfoContext(ctx, "local store initialized")
	return nil
}

// GetAll returns every record of c in insertion order
func (s *Store) GetAll(ctx context.Context, c domain.Collection) ([]domain.Record, error) {
	q, err := s.queryer()
	if err != nil {
		return nil, err
	}
	return getAll(ctx, q, c)
}

// Get returns the record keyed by key
func (s *Store) Get(ctx context.Context, c domain.Collection, key string) (domain.Record, error) {
	q, err := s.queryer()
	if err != nil {
		return nil, err
	}
	return get(ctx, q, c, key)
}

// Add inserts r into c. Existing keys are never overwritten.
func (s *Store) Add(ctx context.Context, c domain.Collection, r domain.Record) error {
	q, err := s.queryer()
	if err != nil {
		return err
	}
	if err := add(ctx, q, c, r); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "record added",
		slog.String("collection", c.String()),
		slog.String("key", r.Key()))
	return nil
}

// Count returns the number of records in c
func (s *Store) Count(ctx context.Context, c domain.Collection) (int, error) {
	q, err := s.queryer()
	if err != nil {
		return 0, err
	}
	return count(ctx, q, c)
}

// Clear removes every record of c
func (s *Store) Clear(ctx context.Context, c domain.Collection) error {
	q, err := s.queryer()
	if err != nil {
		return err
	}
	return clearAll(ctx, q, c)
}

// Transaction runs fn against a transactional view of the store
func (s *Store) Transaction(ctx context.Context, fn func(tx ports.StoreTx) error) error {
	if s.db == nil {
		return fmt.Errorf("%w: store not initialized", domain.ErrStorageUnavailable)
	}
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		return fn(&storeTx{q: s.wrap(tx)})
	})
}

// SchemaVersion returns the applied migration version
func (s *Store) SchemaVersion(ctx context.Context) (uint, error) {
	if s.db == nil {
		return 0, fmt.Errorf("%w: store not initialized", domain.ErrStorageUnavailable)
	}
	m, err := NewMigrator(s.db.DB(), nil, s.logger)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	version, _, err := m.Version(ctx)
	return version, err
}

// Ping verifies the store is reachable
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("%w: store not initialized", domain.ErrStorageUnavailable)
	}
	return s.db.Ping(ctx)
}

// Health returns store health information
func (s *Store) Health(ctx context.Context) map[string]interface{} {
	if s.db == nil {
		return map[string]interface{}{"status": "unhealthy", "error": "store not initialized"}
	}
	health := s.db.Health(ctx)
	health["initialized"] = s.initialized
	return health
}

// Close closes the store handle
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) queryer() (queryer, error) {
	if s.db == nil {
		return nil, fmt.Errorf("%w: store not initialized", domain.ErrStorageUnavailable)
	}
	return s.wrap(s.db.DB()), nil
}

func (s *Store) wrap(q queryer) queryer {
	if s.config.EnableQueryLogging {
		return loggingQueryer{q: q, logger: s.logger}
	}
	return q
}

// storeTx implements ports.StoreTx inside a sql transaction
type storeTx struct {
	q queryer
}

func (t *storeTx) GetAll(ctx context.Context, c domain.Collection) ([]domain.Record, error) {
	return getAll(ctx, t.q, c)
}

func (t *storeTx) Get(ctx context.Context, c domain.Collection, key string) (domain.Record, error) {
	return get(ctx, t.q, c, key)
}

func (t *storeTx) Add(ctx context.Context, c domain.Collection, r domain.Record) error {
	return add(ctx, t.q, c, r)
}

func (t *storeTx) Count(ctx context.Context, c domain.Collection) (int, error) {
	return count(ctx, t.q, c)
}

func (t *storeTx) Clear(ctx context.Context, c domain.Collection) error {
	return clearAll(ctx, t.q, c)
}

func getAll(ctx context.Context, q queryer, c domain.Collection) ([]domain.Record, error) {
	tbl, err := tableFor(c)
	if err != nil {
		return nil, err
	}

	query, args, err := builder.Select(tbl.columns...).From(tbl.table).OrderBy(tbl.orderBy).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c, err)
	}
	defer rows.Close()

	records := make([]domain.Record, 0)
	for rows.Next() {
		r, err := tbl.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", c, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", c, err)
	}

	return records, nil
}

func get(ctx context.Context, q queryer, c domain.Collection, key string) (domain.Record, error) {
	tbl, err := tableFor(c)
	if err != nil {
		return nil, err
	}

	query, args, err := builder.Select(tbl.columns...).From(tbl.table).Where(sq.Eq{tbl.key: key}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	r, err := tbl.scan(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s %q", domain.ErrNotFound, c, key)
		}
		return nil, fmt.Errorf("failed to get %s %q: %w", c, key, err)
	}
	return r, nil
}

func add(ctx context.Context, q queryer, c domain.Collection, r domain.Record) error {
	tbl, err := tableFor(c)
	if err != nil {
		return err
	}
	if r == nil || r.Collection() != c {
		return fmt.Errorf("%w: record does not belong to %s", domain.ErrValidation, c)
	}
	if err := domain.ValidateRecord(r); err != nil {
		return err
	}
	if tbl.normalize != nil {
		tbl.normalize(r)
	}

	values, err := tbl.values(r)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", c, err)
	}

	columns := tbl.columns
	if tbl.autoKey && r.Key() == "" {
		columns, values = columns[1:], values[1:]
	}

	query, args, err := builder.Insert(tbl.table).Columns(columns...).Values(values...).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s %q", domain.ErrDuplicateKey, c, r.Key())
		}
		return fmt.Errorf("failed to insert into %s: %w", c, err)
	}

	if entry, ok := r.(*domain.SyncQueueEntry); ok && entry.ID == 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read sync entry id: %w", err)
		}
		entry.ID = id
	}

	return nil
}

func count(ctx context.Context, q queryer, c domain.Collection) (int, error) {
	tbl, err := tableFor(c)
	if err != nil {
		return 0, err
	}

	query, args, err := builder.Select("COUNT(*)").From(tbl.table).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count: %w", err)
	}

	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", c, err)
	}
	return n, nil
}

func clearAll(ctx context.Context, q queryer, c domain.Collection) error {
	tbl, err := tableFor(c)
	if err != nil {
		return err
	}
	if c.IsReference() {
		return fmt.Errorf("%w: %s", domain.ErrReadOnlyCollection, c)
	}

	query, args, err := builder.Delete(tbl.table).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to clear %s: %w", c, err)
	}
	return nil
}

func isDuplicateKey(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
