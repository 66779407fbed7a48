package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStoreLifecycle(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	// 1. Put
	data := []byte("raw region image")
	require.NoError(t, store.Put(ctx, "daily/nvram_user.img", data))
	require.NoError(t, store.Put(ctx, "daily/nvram_factory.img", []byte("factory")))
	require.NoError(t, store.Put(ctx, "weekly/nvram_user.img", []byte("older")))

	// 2. Get
	got, err := store.Get(ctx, "daily/nvram_user.img")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Returned slices are private copies.
	got[0] = 'X'
	again, err := store.Get(ctx, "daily/nvram_user.img")
	require.NoError(t, err)
	assert.Equal(t, data, again)

	// 3. Overwrite
	require.NoError(t, store.Put(ctx, "weekly/nvram_user.img", []byte("newer")))
	got, err = store.Get(ctx, "weekly/nvram_user.img")
	require.NoError(t, err)
	assert.Equal(t, "newer", string(got))

	// 4. List
	names, err := store.List(ctx, "daily/")
	require.NoError(t, err)
	assert.Equal(t, []string{"daily/nvram_factory.img", "daily/nvram_user.img"}, names)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// 5. Delete
	require.NoError(t, store.Delete(ctx, "daily/nvram_user.img"))
	require.NoError(t, store.Delete(ctx, "daily/nvram_user.img"))

	_, err = store.Get(ctx, "daily/nvram_user.img")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	testStoreLifecycle(t, NewMemoryStore())
}

func TestLocalStore_Lifecycle(t *testing.T) {
	testStoreLifecycle(t, NewLocalStore(t.TempDir()))
}

func TestLocalStore_Layout(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(tmpDir)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "tag/region.img", []byte("x")))

	// Blobs are plain files below the root, no temporaries left behind.
	_, err := os.Stat(filepath.Join(tmpDir, "tag", "region.img"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(tmpDir, "tag"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalStore_MissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "missing"))

	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_CanceledContext(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Put(ctx, "a", []byte("b")), context.Canceled)
	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}
