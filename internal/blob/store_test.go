package blob

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/lakefetch/internal/digest"
)

// exerciseStore runs the behaviour every Store implementation must share
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		ok, err := store.Exists(ctx, "bronze/missing.json")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = store.Get(ctx, "bronze/missing.json")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = store.ContentHash(ctx, "bronze/missing.json")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("put and read back", func(t *testing.T) {
		body := []byte(`[{"id":1}]`)
		require.NoError(t, store.Put(ctx, "bronze/ibge/census.json", body, "application/json"))

		ok, err := store.Exists(ctx, "bronze/ibge/census.json")
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := store.Get(ctx, "bronze/ibge/census.json")
		require.NoError(t, err)
		assert.Equal(t, body, got)

		hash, err := store.ContentHash(ctx, "bronze/ibge/census.json")
		require.NoError(t, err)
		assert.Equal(t, digest.Sum(body), hash)
	})

	t.Run("overwrite changes hash", func(t *testing.T) {
		key := "silver/census.json"
		require.NoError(t, store.Put(ctx, key, []byte(`1`), "application/json"))
		h1, err := store.ContentHash(ctx, key)
		require.NoError(t, err)

		require.NoError(t, store.Put(ctx, key, []byte(`2`), "application/json"))
		h2, err := store.ContentHash(ctx, key)
		require.NoError(t, err)

		assert.NotEqual(t, h1, h2)
	})

	t.Run("list by prefix", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "gold/a.json", []byte(`a`), "application/json"))
		require.NoError(t, store.Put(ctx, "gold/b.json", []byte(`b`), "application/json"))
		require.NoError(t, store.Put(ctx, "golden.json", []byte(`c`), "application/json"))

		keys, err := store.List(ctx, "gold/")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"gold/a.json", "gold/b.json"}, keys)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "tmp/x", []byte(`x`), "text/plain"))
		require.NoError(t, store.Delete(ctx, "tmp/x"))

		ok, err := store.Exists(ctx, "tmp/x")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestBoltStore(t *testing.T) {
	store, err := OpenBolt(filepath.Join(t.TempDir(), "nested", "store.db"))
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
}

func TestBoltStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	ctx := context.Background()

	store, err := OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "k", []byte("v"), "text/plain"))
	require.NoError(t, store.Close())

	store, err = OpenBolt(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}
