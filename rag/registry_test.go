package rag

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRegistry_SQLiteDSNCreatesWorkingRegistry(t *testing.T) {
	reg, err := OpenRegistry(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	entry, err := reg.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestSQLRegistry_PutThenGetRoundTripsEntry(t *testing.T) {
	reg, err := OpenRegistry(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	now := time.Now().UTC().Truncate(time.Second)
	ctx := context.Background()
	require.NoError(t, reg.Put(ctx, RegistryEntry{
		DocID:       "doc-1",
		ContentHash: "hash-a",
		ChunkIDs:    []string{"doc-1-chunk-0", "doc-1-chunk-1"},
		UpdatedAt:   now,
	}))

	entry, err := reg.Get(ctx, "doc-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "doc-1", entry.DocID)
	assert.Equal(t, "hash-a", entry.ContentHash)
	assert.Equal(t, []string{"doc-1-chunk-0", "doc-1-chunk-1"}, entry.ChunkIDs)
}

func TestSQLRegistry_PutReplacesExistingEntryOnConflict(t *testing.T) {
	reg, err := OpenRegistry(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, reg.Put(ctx, RegistryEntry{DocID: "doc-1", ContentHash: "hash-a", ChunkIDs: []string{"c0"}, UpdatedAt: now}))
	require.NoError(t, reg.Put(ctx, RegistryEntry{DocID: "doc-1", ContentHash: "hash-b", ChunkIDs: []string{"c0", "c1"}, UpdatedAt: now}))

	entry, err := reg.Get(ctx, "doc-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "hash-b", entry.ContentHash)
	assert.Equal(t, []string{"c0", "c1"}, entry.ChunkIDs)
}

func TestSQLRegistry_DeleteRemovesEntry(t *testing.T) {
	reg, err := OpenRegistry(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	ctx := context.Background()
	require.NoError(t, reg.Put(ctx, RegistryEntry{DocID: "doc-1", ContentHash: "hash-a", ChunkIDs: []string{"c0"}, UpdatedAt: time.Now()}))
	require.NoError(t, reg.Delete(ctx, "doc-1"))

	entry, err := reg.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestSQLRegistry_AllListsEveryEntry(t *testing.T) {
	reg, err := OpenRegistry(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	ctx := context.Background()
	require.NoError(t, reg.Put(ctx, RegistryEntry{DocID: "doc-1", ContentHash: "hash-a", ChunkIDs: []string{"c0"}, UpdatedAt: time.Now()}))
	require.NoError(t, reg.Put(ctx, RegistryEntry{DocID: "doc-2", ContentHash: "hash-b", ChunkIDs: []string{"c1"}, UpdatedAt: time.Now()}))

	entries, err := reg.All(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestMemoryRegistry_PutGetDeleteAllRoundTrip(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	entry, err := reg.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Nil(t, entry)

	require.NoError(t, reg.Put(ctx, RegistryEntry{DocID: "doc-1", ContentHash: "hash-a"}))
	entry, err = reg.Get(ctx, "doc-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "hash-a", entry.ContentHash)

	all, err := reg.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, reg.Delete(ctx, "doc-1"))
	entry, err = reg.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Nil(t, entry)

	assert.NoError(t, reg.Close())
}
