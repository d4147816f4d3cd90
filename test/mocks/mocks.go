// test/mocks/mocks.go

// Package mocks contains generated mocks for the application's interfaces.
// To regenerate mocks, run `go generate ./test/mocks` from the root directory.
package mocks

//go:generate mockgen -source=../../internal/core/ports/store.go -destination=mock_store.go -package=mocks
//go:generate mockgen -source=../../internal/core/ports/sync.go -destination=mock_sync.go -package=mocks
//go:generate mockgen -source=../../internal/core/ports/services.go -destination=mock_services.go -package=mocks
//go:generate mockgen -source=../../internal/core/ports/cache.go -destination=mock_cache.go -package=mocks
//go:generate mockgen -source=../../internal/core/ports/storage.go -destination=mock_storage.go -package=mocks
