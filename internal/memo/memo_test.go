package memo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemo_GetSet(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := New("ibge", 300*time.Second, WithClock(func() time.Time { return now }))

	_, ok := m.Get("bronze/ibge/population.json")
	assert.False(t, ok)

	v := m.Set("bronze/ibge/population.json", StatusSkipped)
	assert.Equal(t, "bronze/ibge/population.json", v.Key)
	assert.Equal(t, now, v.At)

	got, ok := m.Get("bronze/ibge/population.json")
	require.True(t, ok)
	assert.Equal(t, StatusSkipped, got.Status)
	sv, ok := m.Skipped("bronze/ibge/population.json")
	assert.True(t, ok)
	assert.Equal(t, got, sv)
}

func TestMemo_Expiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := New("transparency", 300*time.Second, WithClock(func() time.Time { return now }))

	m.Set("k", StatusUpToDate)

	now = now.Add(300 * time.Second)
	_, ok := m.Skipped("k")
	assert.True(t, ok, "still fresh at the TTL boundary")

	now = now.Add(time.Second)
	_, ok = m.Skipped("k")
	assert.False(t, ok)

	// Expired entries are dropped, so winding the clock back does not revive them
	now = now.Add(-time.Hour)
	_, ok = m.Get("k")
	assert.False(t, ok)
}

func TestMemo_Forget(t *testing.T) {
	m := New("gold", 0)

	m.Set("k", StatusSkipped)
	m.Forget("k")

	_, ok := m.Skipped("k")
	assert.False(t, ok)
	m.Forget("never-set")
}

func TestMemo_OtherStatusIsNotSkip(t *testing.T) {
	m := New("gold", 0)

	m.Set("k", Status("failed"))

	_, ok := m.Get("k")
	assert.True(t, ok)
	_, ok = m.Skipped("k")
	assert.False(t, ok)
}

func TestRegistry_ScopesAreIndependent(t *testing.T) {
	r := NewRegistry(time.Minute)

	ibge := r.For("ibge")
	assert.Same(t, ibge, r.For("ibge"))

	ibge.Set("k", StatusSkipped)
	_, ok := r.For("transparency").Skipped("k")
	assert.False(t, ok)
	assert.Equal(t, "transparency", r.For("transparency").Scope())
}
