package prefs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "data", "prefs.db"))
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, "name", store.Get(KeySortField, "name"), "unset key returns the fallback")

	require.NoError(t, store.Set(KeySortField, "memory"))
	assert.Equal(t, "memory", store.Get(KeySortField, "name"))

	require.NoError(t, store.Set(KeySortField, "cpu"))
	assert.Equal(t, "cpu", store.Get(KeySortField, "name"), "second set replaces the value")
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(KeyViewMode, "grouped"))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, "grouped", store.Get(KeyViewMode, "list"))
}
