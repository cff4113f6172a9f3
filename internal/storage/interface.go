// Package storage provides the optional archive backend the garbage
// collector offloads originals to before deleting them locally.
package storage

import (
	"context"
	"io"
)

// ArchiveStore defines the operations the garbage collector needs from an
// archive backend.
type ArchiveStore interface {
	// Upload stores an object under key
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download retrieves an archived object
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks whether an object is already archived
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes an archived object
	Delete(ctx context.Context, key string) error
}
