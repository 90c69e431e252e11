package jsonstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Count int `json:"count"`
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "doc.json")

	require.NoError(t, Save(path, &doc{Count: 3}))

	var loaded doc
	require.NoError(t, Load(path, &loaded))
	assert.Equal(t, 3, loaded.Count)
}

func TestLoadMissingFileLeavesZeroValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")

	var loaded doc
	require.NoError(t, Load(path, &loaded))
	assert.Equal(t, 0, loaded.Count)
}

func TestSaveOverwritesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")

	require.NoError(t, Save(path, &doc{Count: 1}))
	require.NoError(t, Save(path, &doc{Count: 2}))

	var loaded doc
	require.NoError(t, Load(path, &loaded))
	assert.Equal(t, 2, loaded.Count)
}
