package blob

import (
	"context"
	"errors"
)

var (
	// ErrKeyNotFound is returned when the requested key does not exist in the bucket.
	ErrKeyNotFound = errors.New("key not found")
)

// Store is the object-store surface the sync engine depends on. The S3
// implementation is the default; tests substitute an in-memory store.
type Store interface {
	// Upload puts the file at filePath under key.
	Upload(ctx context.Context, key string, filePath string) error

	// Download gets the object at key and writes it to filePath,
	// creating parent directories as needed.
	Download(ctx context.Context, key string, filePath string) error

	// GetObject returns the full contents of the object at key.
	// Returns ErrKeyNotFound if the object does not exist.
	GetObject(ctx context.Context, key string) ([]byte, error)

	// PutObject overwrites the object at key with body.
	PutObject(ctx context.Context, key string, body []byte) error

	// List returns all keys under keyPrefix.
	List(ctx context.Context, keyPrefix string) ([]string, error)
}
