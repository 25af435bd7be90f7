package rag

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflowhq/agentflow/rag/vectorstore"
)

// fakeRegistry is an in-memory Registry for exercising Engine without a
// real SQL backend.
type fakeRegistry struct {
	mu      sync.Mutex
	entries map[string]RegistryEntry
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{entries: map[string]RegistryEntry{}}
}

func (r *fakeRegistry) Get(_ context.Context, docID string) (*RegistryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[docID]; ok {
		cp := e
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeRegistry) Put(_ context.Context, entry RegistryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.DocID] = entry
	return nil
}

func (r *fakeRegistry) Delete(_ context.Context, docID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, docID)
	return nil
}

func (r *fakeRegistry) All(_ context.Context) ([]RegistryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RegistryEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out, nil
}

func (r *fakeRegistry) Close() error { return nil }

var _ Registry = (*fakeRegistry)(nil)

// fakeEmbedder returns a fixed-dimension zero vector per text, enough to
// exercise the sync engine's chunk/embed/upsert wiring without a real model.
type fakeEmbedder struct {
	dim       int
	embedErr  error
	embedCalls int
}

func (e *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, e.dim), nil
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.embedCalls++
	if e.embedErr != nil {
		return nil, e.embedErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, e.dim)
	}
	return out, nil
}

func (e *fakeEmbedder) Dimension() int  { return e.dim }
func (e *fakeEmbedder) Model() string   { return "fake" }
func (e *fakeEmbedder) Close() error    { return nil }

// fakeVectorStore is an in-memory vectorstore.Provider tracking every
// Upsert/Delete call so tests can assert on store mutations directly.
type fakeVectorStore struct {
	mu       sync.Mutex
	upserted map[string]bool
	deleted  []string
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{upserted: map[string]bool{}}
}

func (s *fakeVectorStore) Name() string { return "fake" }

func (s *fakeVectorStore) Upsert(_ context.Context, _ string, id string, _ []float32, _ map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserted[id] = true
	return nil
}

func (s *fakeVectorStore) Search(context.Context, string, []float32, int) ([]vectorstore.Result, error) {
	return nil, nil
}

func (s *fakeVectorStore) SearchWithFilter(context.Context, string, []float32, int, map[string]any) ([]vectorstore.Result, error) {
	return nil, nil
}

func (s *fakeVectorStore) Delete(_ context.Context, _ string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.upserted, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeVectorStore) DeleteByFilter(context.Context, string, map[string]any) error { return nil }
func (s *fakeVectorStore) CreateCollection(context.Context, string, int) error           { return nil }
func (s *fakeVectorStore) DeleteCollection(context.Context, string) error                { return nil }
func (s *fakeVectorStore) Close() error                                                  { return nil }

var _ vectorstore.Provider = (*fakeVectorStore)(nil)

// fakeLoader replays a fixed slice of LoadResult values.
type fakeLoader struct {
	results []LoadResult
	loadErr error
}

func (l *fakeLoader) Load(_ context.Context) (<-chan LoadResult, error) {
	if l.loadErr != nil {
		return nil, l.loadErr
	}
	out := make(chan LoadResult, len(l.results))
	for _, r := range l.results {
		out <- r
	}
	close(out)
	return out, nil
}

func (l *fakeLoader) Close() error { return nil }

func newTestEngine(t *testing.T, registry *fakeRegistry, store *fakeVectorStore) *Engine {
	t.Helper()
	engine, err := NewEngine(SyncEngineConfig{
		Registry: registry,
		Chunker:  NilChunker{},
		Embedder: &fakeEmbedder{dim: 4},
		Store:    store,
	})
	require.NoError(t, err)
	return engine
}

func TestNewEngine_RequiresRegistryChunkerEmbedder(t *testing.T) {
	_, err := NewEngine(SyncEngineConfig{})
	assert.Error(t, err)

	_, err = NewEngine(SyncEngineConfig{Registry: newFakeRegistry()})
	assert.Error(t, err)

	_, err = NewEngine(SyncEngineConfig{Registry: newFakeRegistry(), Chunker: NilChunker{}})
	assert.Error(t, err)
}

func TestNewEngine_DefaultsStoreCollectionAndMetrics(t *testing.T) {
	engine, err := NewEngine(SyncEngineConfig{
		Registry: newFakeRegistry(),
		Chunker:  NilChunker{},
		Embedder: &fakeEmbedder{dim: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, "default", engine.cfg.Collection)
	assert.NotNil(t, engine.cfg.Store)
	assert.NotNil(t, engine.cfg.Metrics)
}

func TestEngine_Ingest_AddsEveryDocument(t *testing.T) {
	registry := newFakeRegistry()
	store := newFakeVectorStore()
	engine := newTestEngine(t, registry, store)

	loader := &fakeLoader{results: []LoadResult{
		Success(Document{ID: "doc-1", Content: "hello world"}),
		Success(Document{ID: "doc-2", Content: "goodbye world"}),
	}}

	stats, err := engine.Ingest(context.Background(), loader)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Added)
	assert.Equal(t, 0, stats.Failed)
	assert.Len(t, store.upserted, 2)
}

func TestEngine_Ingest_SkipsLoadFailuresButKeepsGoingWithoutFailFast(t *testing.T) {
	registry := newFakeRegistry()
	store := newFakeVectorStore()
	engine := newTestEngine(t, registry, store)

	loader := &fakeLoader{results: []LoadResult{
		Failure("bad-source", fmt.Errorf("boom"), false),
		Success(Document{ID: "doc-1", Content: "hello"}),
	}}

	stats, err := engine.Ingest(context.Background(), loader)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Added)
	assert.Equal(t, 1, stats.Failed)
	require.Len(t, stats.Errors, 1)
}

func TestEngine_Ingest_FailFastStopsOnFirstError(t *testing.T) {
	registry := newFakeRegistry()
	store := newFakeVectorStore()
	engine, err := NewEngine(SyncEngineConfig{
		Registry: registry,
		Chunker:  NilChunker{},
		Embedder: &fakeEmbedder{dim: 4},
		Store:    store,
		FailFast: true,
	})
	require.NoError(t, err)

	loader := &fakeLoader{results: []LoadResult{
		Failure("bad-source", fmt.Errorf("boom"), false),
		Success(Document{ID: "doc-1", Content: "hello"}),
	}}

	stats, err := engine.Ingest(context.Background(), loader)
	assert.Error(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Added)
}

func TestEngine_Ingest_SkipsBlankDocumentsWhenConfigured(t *testing.T) {
	registry := newFakeRegistry()
	store := newFakeVectorStore()
	engine, err := NewEngine(SyncEngineConfig{
		Registry:           registry,
		Chunker:            NilChunker{},
		Embedder:           &fakeEmbedder{dim: 4},
		Store:              store,
		SkipEmptyDocuments: true,
	})
	require.NoError(t, err)

	loader := &fakeLoader{results: []LoadResult{
		Success(Document{ID: "blank", Content: "   \n\t"}),
	}}

	stats, err := engine.Ingest(context.Background(), loader)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Added)
	assert.Empty(t, store.upserted)
}

func TestEngine_Sync_AddsAbsentDocument(t *testing.T) {
	registry := newFakeRegistry()
	store := newFakeVectorStore()
	engine := newTestEngine(t, registry, store)

	loader := &fakeLoader{results: []LoadResult{Success(Document{ID: "doc-1", Content: "version one"})}}
	stats, err := engine.Sync(context.Background(), loader)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Added)

	entry, err := registry.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
}

func TestEngine_Sync_LeavesUnchangedDocumentAlone(t *testing.T) {
	registry := newFakeRegistry()
	store := newFakeVectorStore()
	engine := newTestEngine(t, registry, store)

	doc := Document{ID: "doc-1", Content: "stable content"}
	loader := &fakeLoader{results: []LoadResult{Success(doc)}}
	_, err := engine.Sync(context.Background(), loader)
	require.NoError(t, err)

	loader2 := &fakeLoader{results: []LoadResult{Success(doc)}}
	stats, err := engine.Sync(context.Background(), loader2)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Added)
	assert.Equal(t, 0, stats.Updated)
	assert.Equal(t, 1, stats.Unchanged)
}

func TestEngine_Sync_ReingestsChangedDocument(t *testing.T) {
	registry := newFakeRegistry()
	store := newFakeVectorStore()
	engine := newTestEngine(t, registry, store)

	loader1 := &fakeLoader{results: []LoadResult{Success(Document{ID: "doc-1", Content: "version one"})}}
	_, err := engine.Sync(context.Background(), loader1)
	require.NoError(t, err)

	loader2 := &fakeLoader{results: []LoadResult{Success(Document{ID: "doc-1", Content: "version two, different"})}}
	stats, err := engine.Sync(context.Background(), loader2)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 0, stats.Added)
}

func TestEngine_Sync_PrunesDocumentsNotSeenThisRun(t *testing.T) {
	registry := newFakeRegistry()
	store := newFakeVectorStore()
	engine := newTestEngine(t, registry, store)

	loader1 := &fakeLoader{results: []LoadResult{
		Success(Document{ID: "doc-1", Content: "one"}),
		Success(Document{ID: "doc-2", Content: "two"}),
	}}
	_, err := engine.Sync(context.Background(), loader1)
	require.NoError(t, err)

	loader2 := &fakeLoader{results: []LoadResult{Success(Document{ID: "doc-1", Content: "one"})}}
	stats, err := engine.Sync(context.Background(), loader2)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Deleted)

	entry, err := registry.Get(context.Background(), "doc-2")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestEngine_Refresh_ClearsRegistryAndReingestsEverything(t *testing.T) {
	registry := newFakeRegistry()
	store := newFakeVectorStore()
	engine := newTestEngine(t, registry, store)

	loader1 := &fakeLoader{results: []LoadResult{Success(Document{ID: "doc-1", Content: "first version"})}}
	_, err := engine.Sync(context.Background(), loader1)
	require.NoError(t, err)

	loader2 := &fakeLoader{results: []LoadResult{Success(Document{ID: "doc-1", Content: "first version"})}}
	stats, err := engine.Refresh(context.Background(), loader2)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Added)
}

func TestEngine_NeedsUpdate_TrueWhenAbsentOrHashDiffers(t *testing.T) {
	registry := newFakeRegistry()
	store := newFakeVectorStore()
	engine := newTestEngine(t, registry, store)

	needs, err := engine.NeedsUpdate(context.Background(), Document{ID: "doc-1", Content: "x"})
	require.NoError(t, err)
	assert.True(t, needs)

	loader := &fakeLoader{results: []LoadResult{Success(Document{ID: "doc-1", Content: "x"})}}
	_, err = engine.Sync(context.Background(), loader)
	require.NoError(t, err)

	needs, err = engine.NeedsUpdate(context.Background(), Document{ID: "doc-1", Content: "x"})
	require.NoError(t, err)
	assert.False(t, needs)

	needs, err = engine.NeedsUpdate(context.Background(), Document{ID: "doc-1", Content: "y"})
	require.NoError(t, err)
	assert.True(t, needs)
}

func TestEngine_DeleteDocument_RemovesChunksAndRegistryEntry(t *testing.T) {
	registry := newFakeRegistry()
	store := newFakeVectorStore()
	engine := newTestEngine(t, registry, store)

	loader := &fakeLoader{results: []LoadResult{Success(Document{ID: "doc-1", Content: "to be deleted"})}}
	_, err := engine.Sync(context.Background(), loader)
	require.NoError(t, err)
	require.NotEmpty(t, store.upserted)

	err = engine.DeleteDocument(context.Background(), "doc-1")
	require.NoError(t, err)

	entry, err := registry.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Empty(t, store.upserted)
	assert.NotEmpty(t, store.deleted)
}

func TestEngine_DeleteDocument_NoOpWhenUnregistered(t *testing.T) {
	registry := newFakeRegistry()
	store := newFakeVectorStore()
	engine := newTestEngine(t, registry, store)

	err := engine.DeleteDocument(context.Background(), "never-seen")
	assert.NoError(t, err)
}

func TestEngine_SyncAsync_MatchesSyncSemantics(t *testing.T) {
	registry := newFakeRegistry()
	store := newFakeVectorStore()
	engine := newTestEngine(t, registry, store)

	loader := &fakeLoader{results: []LoadResult{
		Success(Document{ID: "doc-1", Content: "one"}),
		Success(Document{ID: "doc-2", Content: "two"}),
		Success(Document{ID: "doc-3", Content: "three"}),
	}}

	stats, err := engine.SyncAsync(context.Background(), loader)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Added)
	assert.Len(t, store.upserted, 3)
}

func TestEngine_IngestAsync_AddsEveryDocument(t *testing.T) {
	registry := newFakeRegistry()
	store := newFakeVectorStore()
	engine := newTestEngine(t, registry, store)

	loader := &fakeLoader{results: []LoadResult{
		Success(Document{ID: "doc-1", Content: "one"}),
		Success(Document{ID: "doc-2", Content: "two"}),
	}}

	stats, err := engine.IngestAsync(context.Background(), loader)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Added)
}

func TestIsBlank_TrueOnlyForWhitespace(t *testing.T) {
	assert.True(t, isBlank(""))
	assert.True(t, isBlank("  \t\n\r "))
	assert.False(t, isBlank("  x "))
}
