// internal/core/ports/sync.go
package ports

import (
	"context"
	"time"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
)

// SyncQueue tracks mutations created while offline
type SyncQueue interface {
	Enqueue(ctx context.Context, action domain.ActionType, payload any) (*domain.SyncQueueEntry, error)
	EnqueueTx(ctx context.Context, tx StoreTx, action domain.ActionType, payload any) (*domain.SyncQueueEntry, error)
	Depth(ctx context.Context) (int, error)
	Pending(ctx context.Context) ([]*domain.SyncQueueEntry, error)
	// Drain replays the pending entries, if a replayer is set, then clears the whole queue.
	Drain(ctx context.Context) (int, error)
}

// Replayer delivers queued entries to the remote side before the queue is cleared
type Replayer interface {
	Replay(ctx context.Context, entries []*domain.SyncQueueEntry) error
}

// ConnectivityProvider reports the platform connectivity signal
type ConnectivityProvider interface {
	IsOnline() bool
	// OnChange registers cb for online/offline edges and returns a function that removes it.
	OnChange(cb func(online bool)) (unsubscribe func())
}

// Clock is the time source for timestamps and sync delays
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// SyncMonitor exposes sync status and manual passes
type SyncMonitor interface {
	Status(ctx context.Context) domain.SyncStatus
	SyncNow(ctx context.Context) (*domain.SyncResult, error)
}
