// internal/workers/replay.go
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/ports"
)

// TaskEnqueuer is the part of *asynq.Client the replayer uses
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ReplayConfig tunes the tasks the replayer creates
type ReplayConfig struct {
	Queue        string
	MaxRetry     int
	TaskDeadline time.Duration
}

// AsynqReplayer hands drained queue entries to the back-office worker
type AsynqReplayer struct {
	client TaskEnqueuer
	config ReplayConfig
	logger *slog.Logger
}

var _ ports.Replayer = (*AsynqReplayer)(nil)

// NewAsynqReplayer creates a replayer over an asynq client
func NewAsynqReplayer(client TaskEnqueuer, config ReplayConfig, logger *slog.Logger) *AsynqReplayer {
	if config.Queue == "" {
		config.Queue = "default"
	}
	return &AsynqReplayer{
		client: client,
		config: config,
		logger: logger.With(slog.String("component", "replayer")),
	}
}

// Replay enqueues one task per entry, in order. Entries already handed over
// on an earlier attempt are recognised by their task id and skipped, so a
// retried drain never duplicates work.
func (r *AsynqReplayer) Replay(ctx context.Context, entries []*domain.SyncQueueEntry) error {
	var enqueued, duplicates int

	for _, entry := range entries {
		opts := []asynq.Option{
			asynq.Queue(r.config.Queue),
			asynq.MaxRetry(r.config.MaxRetry),
		}
		if entry.CorrelationID != "" {
			opts = append(opts, asynq.TaskID(entry.CorrelationID))
		}
		if r.config.TaskDeadline > 0 {
			opts = append(opts, asynq.Timeout(r.config.TaskDeadline))
		}

		task, err := NewSyncTask(entry)
		if err != nil {
			return fmt.Errorf("failed to build task for entry %d: %w", entry.ID, err)
		}

		info, err := r.client.EnqueueContext(ctx, task, opts...)
		if err != nil {
			if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
				duplicates++
				r.logger.DebugContext(ctx, "task already enqueued",
					slog.Int64("entry_id", entry.ID),
					slog.String("correlation_id", entry.CorrelationID))
				continue
			}
			return fmt.Errorf("failed to enqueue entry %d: %w", entry.ID, err)
		}

		enqueued++
		r.logger.DebugContext(ctx, "task enqueued",
			slog.String("task_id", info.ID),
			slog.String("type", task.Type()),
			slog.String("queue", info.Queue))
	}

	r.logger.InfoContext(ctx, "entries replayed",
		slog.Int("enqueued", enqueued),
		slog.Int("duplicates", duplicates))

	return nil
}
