// internal/core/ports/store.go
package ports

import (
	"context"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
)

// CollectionReader reads the fixed store collections
type CollectionReader interface {
	GetAll(ctx context.Context, c domain.Collection) ([]domain.Record, error)
	Get(ctx context.Context, c domain.Collection, key string) (domain.Record, error)
	Count(ctx context.Context, c domain.Collection) (int, error)
}

// CollectionWriter mutates the fixed store collections
type CollectionWriter interface {
	Add(ctx context.Context, c domain.Collection, r domain.Record) error
	Clear(ctx context.Context, c domain.Collection) error
}

// StoreTx is a transactional view of the store
type StoreTx interface {
	CollectionReader
	CollectionWriter
}

// Store is the local transactional store
type Store interface {
	StoreTx

	// Initialize opens the engine, applies the schema and seeds new reference collections.
	Initialize(ctx context.Context) error
	// Transaction runs fn atomically; fn's error or panic rolls back.
	Transaction(ctx context.Context, fn func(tx StoreTx) error) error
	SchemaVersion(ctx context.Context) (uint, error)
	Ping(ctx context.Context) error
	Health(ctx context.Context) map[string]interface{}
	Close() error
}
