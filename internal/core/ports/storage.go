// internal/core/ports/storage.go
package ports

import (
	"context"
	"io"
)

// ObjectStorage stores archived sale documents
type ObjectStorage interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
}
