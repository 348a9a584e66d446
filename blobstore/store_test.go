package blobstore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	local, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"local":  local,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			data := []byte("snapshot payload")
			require.NoError(t, store.Put(ctx, "snapshots/000001", data))

			b, err := store.Open(ctx, "snapshots/000001")
			require.NoError(t, err)
			defer b.Close()

			assert.Equal(t, int64(len(data)), b.Size())
			got, err := ReadAll(ctx, b)
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}
}

func TestStoreRangedRead(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "blob", []byte("0123456789")))

			b, err := store.Open(ctx, "blob")
			require.NoError(t, err)
			defer b.Close()

			p := make([]byte, 4)
			n, err := b.ReadAt(ctx, p, 3)
			require.NoError(t, err)
			assert.Equal(t, 4, n)
			assert.Equal(t, []byte("3456"), p)

			// Short read at the tail.
			n, err = b.ReadAt(ctx, p, 8)
			assert.Equal(t, 2, n)
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestStoreNotFound(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Open(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreOverwriteAndDelete(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "blob", []byte("v1")))
			require.NoError(t, store.Put(ctx, "blob", []byte("v2 is longer")))

			b, err := store.Open(ctx, "blob")
			require.NoError(t, err)
			got, err := ReadAll(ctx, b)
			require.NoError(t, err)
			require.NoError(t, b.Close())
			assert.Equal(t, []byte("v2 is longer"), got)

			require.NoError(t, store.Delete(ctx, "blob"))
			_, err = store.Open(ctx, "blob")
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting again is fine.
			assert.NoError(t, store.Delete(ctx, "blob"))
		})
	}
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "snapshots/000002", []byte("b")))
			require.NoError(t, store.Put(ctx, "snapshots/000001", []byte("a")))
			require.NoError(t, store.Put(ctx, "other/blob", []byte("c")))

			names, err := store.List(ctx, "snapshots/")
			require.NoError(t, err)
			assert.Equal(t, []string{"snapshots/000001", "snapshots/000002"}, names)

			all, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"other/blob", "snapshots/000001", "snapshots/000002"}, all)
		})
	}
}

func TestStoreEmptyBlob(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "empty", nil))
			b, err := store.Open(ctx, "empty")
			require.NoError(t, err)
			defer b.Close()

			assert.Equal(t, int64(0), b.Size())
			got, err := ReadAll(ctx, b)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}
