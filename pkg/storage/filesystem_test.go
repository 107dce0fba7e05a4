package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "sheets/h1.csv", []byte("a,b\n"), "text/csv"))
	rc, err := store.Open(ctx, "sheets/h1.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "a,b\n", string(data))

	require.NoError(t, store.Delete(ctx, "sheets/h1.csv"))
	_, err = store.Open(ctx, "sheets/h1.csv")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, store.Delete(ctx, "sheets/h1.csv"))
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../outside.csv", "a/../../outside.csv", "/etc/passwd"} {
		assert.ErrorIs(t, store.Save(ctx, key, []byte("x"), ""), ErrInvalidKey, key)
	}
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "old.csv", []byte("old"), ""))
	require.NoError(t, store.Save(ctx, "fresh.csv", []byte("fresh"), ""))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.csv"), past, past))

	deleted, err := store.CleanupOlderThan(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.csv"}, deleted)

	_, err = store.Open(ctx, "fresh.csv")
	assert.NoError(t, err)
}
