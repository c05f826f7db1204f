// Package cache provides the incremental build cache shared by every stage.
//
// For each output artifact the cache keeps a BuildRecord in the blob store
// holding the content hash of every input the producer declared. A stage
// may be skipped only when:
//
//  1. The output artifact exists in storage
//  2. A completed BuildRecord exists for it
//  3. Every declared input still has the hash recorded in that BuildRecord
//
// Records are replaced on every successful build and never merged.
// Failures to read storage force a rebuild rather than a stale skip.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Norgate-AV/lakefetch/internal/blob"
)

// Skip decision reasons
const (
	ReasonOutputMissing = "output does not exist"
	ReasonNoRecord      = "no build record"
	ReasonIncomplete    = "build record incomplete"
	ReasonUnchanged     = "no source changed"
)

// DefaultShownChanges is how many changed inputs a reason lists by name
const DefaultShownChanges = 5

// Decision is the outcome of a skip check
type Decision struct {
	Skip    bool
	Reason  string
	Changed []string
	Record  *BuildRecord
}

// Cache manages build records on top of a blob store
type Cache struct {
	store blob.Store
	log   *slog.Logger
	now   func() time.Time
	shown int
}

// Option configures a Cache
type Option func(*Cache)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// WithClock replaces the time source for CompletedAt
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache over store
func New(store blob.Store, opts ...Option) *Cache {
	c := &Cache{
		store: store,
		log:   slog.Default(),
		now:   time.Now,
		shown: DefaultShownChanges,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.log = c.log.With("component", "build-cache")

	return c
}

// Load reads a build record. It returns nil without error when none exists.
func (c *Cache) Load(ctx context.Context, recordKey string) (*BuildRecord, error) {
	data, err := c.store.Get(ctx, recordKey)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read build record %s: %w", recordKey, err)
	}

	var rec BuildRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode build record %s: %w", recordKey, err)
	}

	return &rec, nil
}

// ShouldSkip reports whether the producer of outputKey may be skipped
func (c *Cache) ShouldSkip(ctx context.Context, outputKey, recordKey string, inputKeys []string) (bool, string) {
	d := c.Check(ctx, outputKey, recordKey, inputKeys)
	return d.Skip, d.Reason
}

// Check is ShouldSkip with the full list of changed inputs
func (c *Cache) Check(ctx context.Context, outputKey, recordKey string, inputKeys []string) Decision {
	exists, err := c.store.Exists(ctx, outputKey)
	if err != nil {
		c.log.WarnContext(ctx, "failed to check output, rebuilding", "output", outputKey, "error", err)
		return Decision{Reason: ReasonOutputMissing}
	}
	if !exists {
		return Decision{Reason: ReasonOutputMissing}
	}

	rec, err := c.Load(ctx, recordKey)
	if err != nil {
		c.log.WarnContext(ctx, "unreadable build record, rebuilding", "record", recordKey, "error", err)
		return Decision{Reason: ReasonNoRecord}
	}
	if rec == nil {
		return Decision{Reason: ReasonNoRecord}
	}
	if !rec.Completed {
		return Decision{Reason: ReasonIncomplete, Record: rec}
	}

	var changed []string
	for _, key := range inputKeys {
		current, err := c.store.ContentHash(ctx, key)
		if errors.Is(err, blob.ErrNotFound) {
			// Inputs that no longer exist are ignored
			continue
		}
		if err != nil {
			c.log.WarnContext(ctx, "failed to hash input, assuming changed", "input", key, "error", err)
			changed = append(changed, key)
			continue
		}

		if recorded, ok := rec.SourceHashes[key]; !ok || recorded != current {
			changed = append(changed, key)
		}
	}

	if len(changed) > 0 {
		return Decision{Reason: c.changedReason(changed), Changed: changed, Record: rec}
	}

	return Decision{Skip: true, Reason: ReasonUnchanged, Record: rec}
}

func (c *Cache) changedReason(changed []string) string {
	shown := changed
	if len(shown) > c.shown {
		shown = shown[:c.shown]
	}

	reason := fmt.Sprintf("%d input(s) changed: %s", len(changed), strings.Join(shown, ", "))
	if extra := len(changed) - len(shown); extra > 0 {
		reason += fmt.Sprintf(" and %d more", extra)
	}

	return reason
}

// Commit records the current hashes of inputKeys as a completed build.
// Call it only after the output artifact was written successfully.
// Inputs missing from storage are left out of the record.
func (c *Cache) Commit(ctx context.Context, recordKey string, inputKeys []string, recordCount int) (*BuildRecord, error) {
	hashes, err := c.hashInputs(ctx, inputKeys)
	if err != nil {
		return nil, err
	}

	rec := &BuildRecord{
		SourceHashes: hashes,
		RecordCount:  recordCount,
	}

	if err := c.CommitRecord(ctx, recordKey, rec); err != nil {
		return nil, err
	}

	return rec, nil
}

// CommitRecord replaces the record at recordKey with rec marked completed
func (c *Cache) CommitRecord(ctx context.Context, recordKey string, rec *BuildRecord) error {
	rec.Completed = true
	rec.CompletedAt = c.now().UTC()
	if rec.SourceHashes == nil {
		rec.SourceHashes = map[string]string{}
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode build record: %w", err)
	}

	if err := c.store.Put(ctx, recordKey, data, "application/json"); err != nil {
		return fmt.Errorf("failed to write build record %s: %w", recordKey, err)
	}

	c.log.DebugContext(ctx, "committed build record",
		"record", recordKey,
		"inputs", len(rec.SourceHashes),
		"records", rec.RecordCount)

	return nil
}

func (c *Cache) hashInputs(ctx context.Context, inputKeys []string) (map[string]string, error) {
	hashes := make(map[string]string, len(inputKeys))

	for _, key := range inputKeys {
		h, err := c.store.ContentHash(ctx, key)
		if errors.Is(err, blob.ErrNotFound) {
			c.log.WarnContext(ctx, "input missing at commit, not recorded", "input", key)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to hash input %s: %w", key, err)
		}
		hashes[key] = h
	}

	return hashes, nil
}

// Invalidate marks a record incomplete so the next check rebuilds.
// It returns false when there was no record.
func (c *Cache) Invalidate(ctx context.Context, recordKey string) (bool, error) {
	rec, err := c.Load(ctx, recordKey)
	if err != nil || rec == nil {
		return false, err
	}

	rec.Completed = false

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return false, err
	}

	if err := c.store.Put(ctx, recordKey, data, "application/json"); err != nil {
		return false, fmt.Errorf("failed to write build record %s: %w", recordKey, err)
	}

	return true, nil
}

// RecordInfo pairs a build record with its key
type RecordInfo struct {
	Key    string
	Record *BuildRecord
	Err    error
}

// Records lists the build records under prefix, sorted by key.
// Undecodable records are returned with Err set.
func (c *Cache) Records(ctx context.Context, prefix string) ([]RecordInfo, error) {
	keys, err := c.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	var out []RecordInfo
	for _, key := range keys {
		if !IsRecordKey(key) {
			continue
		}

		rec, err := c.Load(ctx, key)
		out = append(out, RecordInfo{Key: key, Record: rec, Err: err})
	}

	return out, nil
}
