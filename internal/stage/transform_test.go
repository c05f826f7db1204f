package stage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/lakefetch/internal/audit"
	"github.com/Norgate-AV/lakefetch/internal/blob"
	"github.com/Norgate-AV/lakefetch/internal/cache"
	"github.com/Norgate-AV/lakefetch/internal/dataset"
	"github.com/Norgate-AV/lakefetch/internal/digest"
	"github.com/Norgate-AV/lakefetch/internal/memo"
)

const (
	ceisKey = "bronze/transparency/ceis.json"
	cnepKey = "bronze/transparency/cnep.json"
	goldKey = "gold/sanctions_by_state.json"
)

func countByState() Transform {
	return Transform{
		Name:   "sanctions_by_state",
		Stage:  ScopeGold,
		Output: goldKey,
		Inputs: []dataset.Input{
			{Key: ceisKey, Name: "ceis"},
			{Key: cnepKey, Name: "cnep"},
		},
		Build:   dataset.BuildCountBy,
		Options: map[string]string{"field": "uf"},
	}
}

func putInputs(t *testing.T, store blob.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, ceisKey, []byte(`[{"uf":"SP"},{"uf":"RJ"}]`), "application/json"))
	require.NoError(t, store.Put(ctx, cnepKey, []byte(`[{"uf":"SP"}]`), "application/json"))
}

func TestTransform(t *testing.T) {
	ctx := context.Background()

	t.Run("builds output and commits record", func(t *testing.T) {
		h := newHarness(blob.NewMemory())
		putInputs(t, h.store)

		outcome, err := h.runner().Transform(ctx, countByState())
		require.NoError(t, err)
		assert.Equal(t, Committed, outcome)

		assert.Equal(t, `[{"key":"RJ","count":1},{"key":"SP","count":2}]`, h.get(t, goldKey))

		rec := h.record(t, goldKey)
		assert.True(t, rec.Completed)
		assert.Equal(t, 2, rec.RecordCount)
		assert.Equal(t, digest.Sum([]byte(`[{"uf":"SP"},{"uf":"RJ"}]`)), rec.SourceHashes[ceisKey])
		assert.Len(t, rec.SourceHashes, 2)

		e := h.sink.last()
		assert.Equal(t, audit.OutcomeCommitted, e.Outcome)
		assert.Equal(t, "gold", e.Stage)
		assert.Equal(t, cache.ReasonOutputMissing, e.Reason)
	})

	t.Run("unchanged inputs skip", func(t *testing.T) {
		h := newHarness(blob.NewMemory())
		putInputs(t, h.store)
		_, err := h.runner().Transform(ctx, countByState())
		require.NoError(t, err)

		outcome, err := h.runner().Transform(ctx, countByState())
		require.NoError(t, err)
		assert.Equal(t, Skipped, outcome)
		assert.Equal(t, cache.ReasonUnchanged, h.sink.last().Reason)
	})

	t.Run("changed input rebuilds", func(t *testing.T) {
		h := newHarness(blob.NewMemory())
		putInputs(t, h.store)
		_, err := h.runner().Transform(ctx, countByState())
		require.NoError(t, err)

		require.NoError(t, h.store.Put(ctx, cnepKey, []byte(`[{"uf":"MG"}]`), "application/json"))

		outcome, err := h.runner().Transform(ctx, countByState())
		require.NoError(t, err)
		assert.Equal(t, Committed, outcome)
		assert.Equal(t, "1 input(s) changed: "+cnepKey, h.sink.last().Reason)
		assert.Equal(t, `[{"key":"MG","count":1},{"key":"RJ","count":1},{"key":"SP","count":1}]`, h.get(t, goldKey))
	})

	t.Run("memo skip within a run", func(t *testing.T) {
		h := newHarness(blob.NewMemory())
		putInputs(t, h.store)
		_, err := h.runner().Transform(ctx, countByState())
		require.NoError(t, err)

		rn := h.runner()
		_, err = rn.Transform(ctx, countByState())
		require.NoError(t, err)
		entries := h.sink.count()

		outcome, err := rn.Transform(ctx, countByState())
		require.NoError(t, err)
		assert.Equal(t, Skipped, outcome)
		assert.Equal(t, entries, h.sink.count(), "memo hits do not touch storage or the audit log")
	})

	t.Run("expired verdict falls back to the build cache", func(t *testing.T) {
		h := newHarness(blob.NewMemory())
		putInputs(t, h.store)

		now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		memos := memo.NewRegistry(time.Minute, memo.WithClock(func() time.Time { return now }))
		rn := h.runner(WithMemo(memos))

		_, err := rn.Transform(ctx, countByState())
		require.NoError(t, err)
		_, err = rn.Transform(ctx, countByState())
		require.NoError(t, err)
		_, ok := memos.For(ScopeGold).Get(goldKey)
		require.True(t, ok)

		require.NoError(t, h.store.Put(ctx, ceisKey, []byte(`[]`), "application/json"))
		now = now.Add(2 * time.Minute)

		outcome, err := rn.Transform(ctx, countByState())
		require.NoError(t, err)
		assert.Equal(t, Committed, outcome)

		_, ok = memos.For(ScopeGold).Get(goldKey)
		assert.False(t, ok)
	})

	t.Run("missing input is fatal", func(t *testing.T) {
		h := newHarness(blob.NewMemory())
		require.NoError(t, h.store.Put(ctx, ceisKey, []byte(`[]`), "application/json"))

		outcome, err := h.runner().Transform(ctx, countByState())
		require.Error(t, err)
		assert.Equal(t, Failed, outcome)
		assert.True(t, errors.Is(err, ErrInputMissing))
		assert.True(t, IsFatal(err))

		exists, _ := h.store.Exists(ctx, goldKey)
		assert.False(t, exists)
		assert.Equal(t, "input missing", h.sink.last().Reason)
	})

	t.Run("write failure does not commit", func(t *testing.T) {
		store := &failingStore{MemoryStore: blob.NewMemory(), failPut: map[string]bool{goldKey: true}}
		h := newHarness(store)
		putInputs(t, store)

		outcome, err := h.runner().Transform(ctx, countByState())
		require.Error(t, err)
		assert.Equal(t, Failed, outcome)
		assert.False(t, IsFatal(err))

		exists, _ := store.Exists(ctx, cache.RecordKey(goldKey))
		assert.False(t, exists)
	})

	t.Run("builder error fails", func(t *testing.T) {
		h := newHarness(blob.NewMemory())
		putInputs(t, h.store)

		tr := countByState()
		tr.Options = nil

		outcome, err := h.runner().Transform(ctx, tr)
		require.Error(t, err)
		assert.Equal(t, Failed, outcome)
		assert.Contains(t, err.Error(), "field option")
	})

	t.Run("silver is the default stage", func(t *testing.T) {
		h := newHarness(blob.NewMemory())
		putInputs(t, h.store)

		tr := countByState()
		tr.Stage = ""

		_, err := h.runner().Transform(ctx, tr)
		require.NoError(t, err)
		assert.Equal(t, "silver", h.sink.last().Stage)
	})
}
