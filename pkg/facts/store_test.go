package facts

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anna-project/annad/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "learned_facts.json")
	store, err := New(path, func() string { return "boot-1" })
	require.NoError(t, err)
	return store
}

func TestStore_LearnAndGetFresh(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Learn(models.LearnedFact{
		Category:  "cpu-model",
		Value:     "AMD Ryzen 9",
		LearnedAt: time.Now(),
		BootID:    "boot-1",
	}))

	fact, ok := store.GetFresh("cpu-model")
	require.True(t, ok)
	assert.Equal(t, "AMD Ryzen 9", fact.Value)
}

func TestStore_StaticFactStaleOnBootMismatch(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Learn(models.LearnedFact{
		Category:  "cpu-model",
		Value:     "AMD Ryzen 9",
		LearnedAt: time.Now(),
		BootID:    "boot-0", // stale: store's bootID() resolves to boot-1
	}))

	_, ok := store.GetFresh("cpu-model")
	assert.False(t, ok)
}

func TestStore_VolatileFactExpiresAfterMaxAge(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Learn(models.LearnedFact{
		Category:  "battery-level",
		Value:     "80",
		LearnedAt: time.Now().Add(-10 * time.Minute), // VOLATILE max age is 5m
	}))

	_, ok := store.GetFresh("battery-level")
	assert.False(t, ok)
}

func TestStore_UseFactTracksHitsAndMisses(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Learn(models.LearnedFact{
		Category:  "cpu-model",
		LearnedAt: time.Now(),
		BootID:    "boot-1",
	}))

	_, ok := store.UseFact("cpu-model")
	assert.True(t, ok)

	_, ok = store.UseFact("gpu-model")
	assert.False(t, ok)

	answered, hits, misses := store.Stats()
	assert.Equal(t, int64(2), answered)
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestStore_InvalidatePackages(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Learn(models.LearnedFact{Category: "installed-package:vim", LearnedAt: time.Now()}))
	require.NoError(t, store.Learn(models.LearnedFact{Category: "cpu-model", LearnedAt: time.Now(), BootID: "boot-1"}))

	require.NoError(t, store.InvalidatePackages())

	_, ok := store.doc.Facts["installed-package:vim"]
	assert.False(t, ok)
	_, ok = store.doc.Facts["cpu-model"]
	assert.True(t, ok)
}

func TestStore_InvalidateSession(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Learn(models.LearnedFact{Category: "window-manager", LearnedAt: time.Now()}))
	require.NoError(t, store.InvalidateSession())

	_, ok := store.doc.Facts["window-manager"]
	assert.False(t, ok)
}

func TestStore_PruneOldFacts(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Learn(models.LearnedFact{
		Category:  "disk-usage-root",
		LearnedAt: time.Now().Add(-8 * 24 * time.Hour),
		UsageCount: 0,
	}))
	require.NoError(t, store.Learn(models.LearnedFact{
		Category:  "cpu-model",
		LearnedAt: time.Now().Add(-8 * 24 * time.Hour),
		UsageCount: 5,
	}))

	require.NoError(t, store.PruneOldFacts())

	_, ok := store.doc.Facts["disk-usage-root"]
	assert.False(t, ok, "zero-use fact older than 7 days is pruned")
	_, ok = store.doc.Facts["cpu-model"]
	assert.True(t, ok, "facts with uses survive pruning regardless of age")
}

func TestStore_CheckAndInvalidate_DropsOnNewerLogMtime(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Learn(models.LearnedFact{Category: "installed-package:vim", LearnedAt: time.Now()}))

	dropped, err := store.CheckAndInvalidate(func() (time.Time, error) {
		return time.Now(), nil
	})
	require.NoError(t, err)
	assert.True(t, dropped)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "learned_facts.json")
	store, err := New(path, func() string { return "boot-1" })
	require.NoError(t, err)
	require.NoError(t, store.Learn(models.LearnedFact{Category: "cpu-model", LearnedAt: time.Now(), BootID: "boot-1"}))

	reopened, err := New(path, func() string { return "boot-1" })
	require.NoError(t, err)
	fact, ok := reopened.GetFresh("cpu-model")
	require.True(t, ok)
	assert.Equal(t, models.FactCategory("cpu-model"), fact.Category)
}
