// Package blob is the object storage boundary used for bronze, silver and
// gold artifacts and for build records.
//
// Every implementation records the SHA-256 of each object on write, so
// ContentHash is meaningful for change detection.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key does not exist
var ErrNotFound = errors.New("blob: not found")

// Store is an opaque key/value blob store
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	// ContentHash returns the content identity recorded for key
	ContentHash(ctx context.Context, key string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte, contentType string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}
