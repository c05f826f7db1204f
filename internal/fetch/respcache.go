package fetch

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/Norgate-AV/lakefetch/internal/codes"
)

var entryPrefix = []byte("e:")

// CacheEntry is one stored response
type CacheEntry struct {
	Status      int
	ContentType string
	Body        []byte
	FinalURL    string
	CreatedAt   time.Time
	// OK marks a 200 with a well-formed body. Entries without it are
	// never served.
	OK bool
}

// ResponseCache stores successful responses keyed by request digest
type ResponseCache interface {
	Get(key string) (CacheEntry, bool)
	Put(key string, ent CacheEntry) error
}

// CacheStats summarizes the response cache
type CacheStats struct {
	Entries int
	Expired int
	Bytes   int64
}

// LevelCache is a ResponseCache backed by a goleveldb database
type LevelCache struct {
	db  *leveldb.DB
	ttl time.Duration

	mu  sync.Mutex
	now func() time.Time
}

// OpenLevelCache opens (or creates) a response cache directory
func OpenLevelCache(path string, ttl time.Duration) (*LevelCache, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open response cache %s: %w", path, err)
	}

	return &LevelCache{db: db, ttl: ttl, now: time.Now}, nil
}

// NewMemoryLevelCache returns a response cache that lives only in memory
func NewMemoryLevelCache(ttl time.Duration) (*LevelCache, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}

	return &LevelCache{db: db, ttl: ttl, now: time.Now}, nil
}

// SetClock replaces the time source used for expiry
func (c *LevelCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *LevelCache) clock() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now()
}

// Get returns a fresh successful entry. Anything else, including a
// decode failure, is a miss.
func (c *LevelCache) Get(key string) (CacheEntry, bool) {
	b, err := c.db.Get(entryKey(key), nil)
	if err != nil {
		return CacheEntry{}, false
	}

	var ent CacheEntry
	if err := decodeGob(b, &ent); err != nil {
		return CacheEntry{}, false
	}

	if !ent.OK || !codes.IsCacheable(ent.Status) {
		return CacheEntry{}, false
	}

	if c.expired(ent) {
		return CacheEntry{}, false
	}

	return ent, true
}

// Put stores ent. Entries that are not successful 200s are dropped.
func (c *LevelCache) Put(key string, ent CacheEntry) error {
	if !ent.OK || !codes.IsCacheable(ent.Status) {
		return nil
	}

	if ent.CreatedAt.IsZero() {
		ent.CreatedAt = c.clock()
	}

	b, err := encodeGob(ent)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	return c.db.Put(entryKey(key), b, nil)
}

// Stats walks every entry
func (c *LevelCache) Stats() (CacheStats, error) {
	var st CacheStats

	it := c.db.NewIterator(util.BytesPrefix(entryPrefix), nil)
	defer it.Release()

	for it.Next() {
		st.Entries++
		st.Bytes += int64(len(it.Value()))

		var ent CacheEntry
		if err := decodeGob(it.Value(), &ent); err != nil || c.expired(ent) {
			st.Expired++
		}
	}

	return st, it.Error()
}

// Purge deletes entries. With expiredOnly set only stale or undecodable
// entries go.
func (c *LevelCache) Purge(expiredOnly bool) (int, error) {
	it := c.db.NewIterator(util.BytesPrefix(entryPrefix), nil)
	batch := new(leveldb.Batch)
	n := 0

	for it.Next() {
		if expiredOnly {
			var ent CacheEntry
			if err := decodeGob(it.Value(), &ent); err == nil && !c.expired(ent) {
				continue
			}
		}
		batch.Delete(bytes.Clone(it.Key()))
		n++
	}
	it.Release()

	if err := it.Error(); err != nil {
		return 0, err
	}

	return n, c.db.Write(batch, nil)
}

// Close releases the database
func (c *LevelCache) Close() error {
	return c.db.Close()
}

func (c *LevelCache) expired(ent CacheEntry) bool {
	if c.ttl <= 0 {
		return false
	}

	return c.clock().Sub(ent.CreatedAt) > c.ttl
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}

func entryKey(key string) []byte {
	return []byte("e:" + key)
}
