// internal/workers/tasks.go
package workers

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
)

// Task types
const (
	TypeCreateSale = "sync:create_sale"
)

// TaskTypeFor maps a queued action to its task type
func TaskTypeFor(action domain.ActionType) (string, error) {
	switch action {
	case domain.ActionCreateSale:
		return TypeCreateSale, nil
	default:
		return "", fmt.Errorf("no task type for action %q", action)
	}
}

// NewSyncTask wraps a queue entry in a task. The payload is the entry itself.
func NewSyncTask(entry *domain.SyncQueueEntry, opts ...asynq.Option) (*asynq.Task, error) {
	taskType, err := TaskTypeFor(entry.Action)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}

	return asynq.NewTask(taskType, payload, opts...), nil
}

// decodeEntry reads a queue entry back out of a task payload
func decodeEntry(t *asynq.Task) (*domain.SyncQueueEntry, error) {
	var entry domain.SyncQueueEntry
	if err := json.Unmarshal(t.Payload(), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return &entry, nil
}
