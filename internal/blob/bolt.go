package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Norgate-AV/lakefetch/internal/digest"
)

const (
	// DefaultBoltPath is the default local store location
	DefaultBoltPath = ".lakefetch-cache/store.db"

	objectsBucket = "objects"
	metaBucket    = "meta"
)

type objectMeta struct {
	Hash        string    `json:"hash"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BoltStore keeps objects in a single BoltDB file
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens or creates a BoltDB backed store
func OpenBolt(path string) (*BoltStore, error) {
	if path == "" {
		path = DefaultBoltPath
	}

	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open store database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{objectsBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create store buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Exists(_ context.Context, key string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket([]byte(objectsBucket)).Get([]byte(key)) != nil
		return nil
	})

	return found, err
}

func (s *BoltStore) ContentHash(_ context.Context, key string) (string, error) {
	var meta objectMeta
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(metaBucket)).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}

		return json.Unmarshal(data, &meta)
	})
	if err != nil {
		return "", err
	}

	return meta.Hash, nil
}

func (s *BoltStore) Get(_ context.Context, key string) ([]byte, error) {
	var body []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(objectsBucket)).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}

		// Values are only valid inside the transaction
		body = bytes.Clone(data)
		return nil
	})

	return body, err
}

func (s *BoltStore) Put(_ context.Context, key string, body []byte, contentType string) error {
	meta, err := json.Marshal(objectMeta{
		Hash:        digest.Sum(body),
		ContentType: contentType,
		Size:        len(body),
		UpdatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(objectsBucket)).Put([]byte(key), body); err != nil {
			return err
		}

		return tx.Bucket([]byte(metaBucket)).Put([]byte(key), meta)
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}

	return nil
}

func (s *BoltStore) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(objectsBucket)).Cursor()
		p := []byte(prefix)

		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})

	return keys, err
}

func (s *BoltStore) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(objectsBucket)).Delete([]byte(key)); err != nil {
			return err
		}

		return tx.Bucket([]byte(metaBucket)).Delete([]byte(key))
	})
}
