// internal/core/services/sync_queue.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/ports"
)

// SyncQueueOption customizes a SyncQueueManager
type SyncQueueOption func(*SyncQueueManager)

// WithReplayer delivers pending entries before every drain
func WithReplayer(r ports.Replayer) SyncQueueOption {
	return func(m *SyncQueueManager) { m.replayer = r }
}

// SyncQueueManager owns the sync_queue collection
type SyncQueueManager struct {
	store    ports.Store
	replayer ports.Replayer
	clock    ports.Clock
	logger   *slog.Logger
}

var _ ports.SyncQueue = (*SyncQueueManager)(nil)

// NewSyncQueueManager creates a queue manager over store
func NewSyncQueueManager(store ports.Store, clock ports.Clock, logger *slog.Logger, opts ...SyncQueueOption) *SyncQueueManager {
	if clock == nil {
		clock = SystemClock{}
	}
	m := &SyncQueueManager{
		store:  store,
		clock:  clock,
		logger: logger.With(slog.String("service", "sync_queue")),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enqueue appends an entry for action carrying payload
func (m *SyncQueueManager) Enqueue(ctx context.Context, action domain.ActionType, payload any) (*domain.SyncQueueEntry, error) {
	return m.EnqueueTx(ctx, m.store, action, payload)
}

// EnqueueTx appends an entry through tx, so the caller controls atomicity
func (m *SyncQueueManager) EnqueueTx(ctx context.Context, tx ports.StoreTx, action domain.ActionType, payload any) (*domain.SyncQueueEntry, error) {
	entry, err := domain.NewSyncQueueEntry(action, payload, correlationID(payload), m.clock.Now())
	if err != nil {
		return nil, err
	}

	if err := tx.Add(ctx, domain.CollectionSyncQueue, entry); err != nil {
		return nil, fmt.Errorf("failed to enqueue %s: %w", action, err)
	}

	m.logger.InfoContext(ctx, "mutation queued",
		slog.String("action", string(action)),
		slog.Int64("entry_id", entry.ID),
		slog.String("correlation_id", entry.CorrelationID))

	return entry, nil
}

// Depth returns the number of queued entries
func (m *SyncQueueManager) Depth(ctx context.Context) (int, error) {
	n, err := m.store.Count(ctx, domain.CollectionSyncQueue)
	if err != nil {
		return 0, fmt.Errorf("failed to read queue depth: %w", err)
	}
	return n, nil
}

// Pending lists queued entries in id order
func (m *SyncQueueManager) Pending(ctx context.Context) ([]*domain.SyncQueueEntry, error) {
	return pending(ctx, m.store)
}

// maxReplayRounds bounds how often Drain chases entries queued during a replay
const maxReplayRounds = 3

// errQueueGrew reports entries queued after the last replay was taken
var errQueueGrew = errors.New("queue grew during replay")

// Drain marks the whole queue as delivered. With a replayer set, the entries
// are handed to it first, outside the store transaction, and a replay failure
// leaves the queue intact.
func (m *SyncQueueManager) Drain(ctx context.Context) (int, error) {
	drained, err := m.drain(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "queue drain failed", slog.String("error", err.Error()))
		return 0, err
	}

	m.logger.InfoContext(ctx, "queue drained", slog.Int("entries", drained))
	return drained, nil
}

func (m *SyncQueueManager) drain(ctx context.Context) (int, error) {
	if m.replayer == nil {
		return m.clear(ctx, nil)
	}

	delivered := make(map[int64]struct{})
	for round := 1; ; round++ {
		entries, err := pending(ctx, m.store)
		if err != nil {
			return 0, err
		}

		fresh := make([]*domain.SyncQueueEntry, 0, len(entries))
		for _, e := range entries {
			if _, ok := delivered[e.ID]; !ok {
				fresh = append(fresh, e)
			}
		}
		if len(fresh) > 0 {
			if err := m.replayer.Replay(ctx, fresh); err != nil {
				return 0, fmt.Errorf("failed to replay %d entries: %w", len(fresh), err)
			}
			for _, e := range fresh {
				delivered[e.ID] = struct{}{}
			}
		}

		// a pass cancelled during replay must not clear the queue
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		drained, err := m.clear(ctx, delivered)
		if !errors.Is(err, errQueueGrew) {
			return drained, err
		}
		if round == maxReplayRounds {
			return 0, fmt.Errorf("%w after %d rounds", err, round)
		}
	}
}

// clear empties the queue in one transaction. A non-nil delivered set must
// cover every entry still queued.
func (m *SyncQueueManager) clear(ctx context.Context, delivered map[int64]struct{}) (int, error) {
	var drained int

	err := m.store.Transaction(ctx, func(tx ports.StoreTx) error {
		entries, err := pending(ctx, tx)
		if err != nil {
			return err
		}
		if delivered != nil {
			for _, e := range entries {
				if _, ok := delivered[e.ID]; !ok {
					return errQueueGrew
				}
			}
		}

		if err := tx.Clear(ctx, domain.CollectionSyncQueue); err != nil {
			return fmt.Errorf("failed to clear queue: %w", err)
		}
		drained = len(entries)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return drained, nil
}

func pending(ctx context.Context, r ports.CollectionReader) ([]*domain.SyncQueueEntry, error) {
	records, err := r.GetAll(ctx, domain.CollectionSyncQueue)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}

	entries := make([]*domain.SyncQueueEntry, 0, len(records))
	for _, rec := range records {
		entry, ok := rec.(*domain.SyncQueueEntry)
		if !ok {
			return nil, fmt.Errorf("unexpected %T in sync queue", rec)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// correlationID links an entry to the record it carries
func correlationID(payload any) string {
	if r, ok := payload.(domain.Record); ok && r.Key() != "" {
		return r.Key()
	}
	return uuid.NewString()
}
