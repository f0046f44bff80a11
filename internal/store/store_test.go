// ABOUTME: Shared helpers and schema tests for the SQLite store
// ABOUTME: Each test gets its own database file in a temp directory

package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func TestNewSQLiteStore_CreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "ergo.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	assert.FileExists(t, path)
}

func TestNewSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ergo.db")

	first, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(path)
	require.NoError(t, err, "schema creation must be idempotent")
	require.NoError(t, second.Close())
}

func TestNewSQLiteStore_Memory(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	var tables int
	row := store.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('invocations', 'session_events')`)
	require.NoError(t, row.Scan(&tables))
	assert.Equal(t, 2, tables)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, 100, normalizeLimit(0))
	assert.Equal(t, 100, normalizeLimit(-5))
	assert.Equal(t, 25, normalizeLimit(25))
	assert.Equal(t, 1000, normalizeLimit(5000))
}
