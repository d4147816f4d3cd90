// internal/core/domain/errors.go
package domain

import "errors"

// Store and workflow errors. Adapters wrap these with %w so callers can use errors.Is.
var (
	// ErrStorageUnavailable means the local store could not be opened or migrated
	ErrStorageUnavailable = errors.New("local storage unavailable")
	// ErrUnknownCollection is a programming error: the name is not part of the schema
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrDuplicateKey is returned when an insert collides with an existing primary key
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrValidation wraps record and request validation failures
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned by keyed lookups with no matching record
	ErrNotFound = errors.New("record not found")
	// ErrReadOnlyCollection is returned when a caller tries to clear reference data
	ErrReadOnlyCollection = errors.New("collection is read-only")
)

// Sync errors
var (
	// ErrOffline is returned when a sync pass is requested without connectivity
	ErrOffline = errors.New("device is offline")
	// ErrSyncInProgress is returned when a pass is already running
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrSyncInterrupted means connectivity was lost during a pass; the queue is untouched
	ErrSyncInterrupted = errors.New("sync interrupted")
)
