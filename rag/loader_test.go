package rag

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHash_IsDeterministicAndSensitiveToContent(t *testing.T) {
	a := contentHash("hello")
	b := contentHash("hello")
	c := contentHash("world")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestNewDirectoryLoader_BuildsLoaderOverConfiguredPath(t *testing.T) {
	dir := t.TempDir()
	loader, err := NewDirectoryLoader(DefaultDirectorySourceConfig(dir))
	require.NoError(t, err)
	require.NotNil(t, loader)
	assert.NoError(t, loader.Close())
}

func TestDirectoryLoader_LoadAttachesContentHashVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello world"), 0o644))

	loader, err := NewDirectoryLoader(DefaultDirectorySourceConfig(dir))
	require.NoError(t, err)

	resultsCh, err := loader.Load(context.Background())
	require.NoError(t, err)

	var results []LoadResult
	for r := range resultsCh {
		results = append(results, r)
	}
	require.Len(t, results, 1)
	assert.Equal(t, LoadSuccess, results[0].Kind)
	require.NotNil(t, results[0].Doc.Version)
	assert.Equal(t, contentHash("hello world"), results[0].Doc.Version.ContentHash)
}

func TestDirectoryLoader_Load_RespectsContextCancellation(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))

	loader, err := NewDirectoryLoader(DefaultDirectorySourceConfig(dir))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resultsCh, err := loader.Load(ctx)
	require.NoError(t, err)

	select {
	case <-resultsCh:
	case <-time.After(2 * time.Second):
		t.Fatal("Load did not return after context cancellation")
	}
}
