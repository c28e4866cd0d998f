package storage

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage defines the interface for object storage operations
type ObjectStorage interface {
	// Put writes an object, replacing any existing one
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get reads a whole object
	Get(ctx context.Context, key string) ([]byte, error)

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// URL returns the URL for accessing an object
	URL(key string) string
}
