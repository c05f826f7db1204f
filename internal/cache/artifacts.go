package cache

import (
	"context"
	"fmt"

	"github.com/Norgate-AV/lakefetch/internal/blob"
	"github.com/Norgate-AV/lakefetch/internal/digest"
)

// WriteArtifact stores body at key unless the stored object already has
// the same content. It reports whether a write happened.
func WriteArtifact(ctx context.Context, store blob.Store, key string, body []byte, contentType string) (bool, error) {
	if current, err := store.ContentHash(ctx, key); err == nil && current == digest.Sum(body) {
		return false, nil
	}

	if err := store.Put(ctx, key, body, contentType); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", key, err)
	}

	return true, nil
}
