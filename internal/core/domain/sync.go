// internal/core/domain/sync.go
package domain

import "time"

// SyncState is the connectivity monitor state
type SyncState string

// State constants
const (
	SyncStateOnlineIdle    SyncState = "ONLINE_IDLE"
	SyncStateOnlineSyncing SyncState = "ONLINE_SYNCING"
	SyncStateOffline       SyncState = "OFFLINE"
)

// SyncStatus is a read-only snapshot for the UI
type SyncStatus struct {
	State        SyncState  `json:"state"`
	Online       bool       `json:"online"`
	Syncing      bool       `json:"syncing"`
	Queued       int        `json:"queued"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// SyncResult describes one completed synchronization pass
type SyncResult struct {
	Drained    int           `json:"drained"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
}
