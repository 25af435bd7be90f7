package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agentflowhq/agentflow/rag/embedder"
	"github.com/agentflowhq/agentflow/rag/keywordstore"
	"github.com/agentflowhq/agentflow/rag/vectorstore"
)

// SyncEngineConfig wires the components an Engine coordinates during
// ingest/sync/refresh.
type SyncEngineConfig struct {
	Registry     Registry
	Chunker      Chunker
	Embedder     embedder.Embedder
	Store        vectorstore.Provider
	KeywordStore *keywordstore.Store // optional; nil disables the keyword index
	Collection   string
	Metrics      *IndexMetrics

	// SkipEmptyDocuments drops documents whose content is blank after
	// trimming, rather than chunking and embedding nothing useful.
	SkipEmptyDocuments bool

	// UseHints honors Document.Hints.ChunkerStrategy, falling back to the
	// engine's configured Chunker when a document carries no hint.
	UseHints bool

	// EnableVersioning records each document's content hash in the
	// registry after ingest, so later sync runs can detect changes.
	EnableVersioning bool

	// FailFast aborts ingest/sync/refresh on the first document failure
	// instead of recording it and continuing.
	FailFast bool

	// BatchSize bounds how many documents run change-detection and
	// chunk/embed concurrently in the async variants. Vector and keyword
	// store mutations are still applied one document at a time.
	BatchSize int
}

// SyncStats summarizes the outcome of an ingest/sync/refresh run, matching
// the {added, updated, deleted, unchanged} shape sync reports.
type SyncStats struct {
	Added     int
	Updated   int
	Deleted   int
	Unchanged int
	Failed    int
	Errors    []error
	Duration  time.Duration
}

// Engine is the sync/indexing coordinator: it pulls documents from a
// Loader, decides which need (re)embedding via the Registry's content
// hashes, chunks and embeds the ones that do, and keeps the vector store,
// keyword index and registry consistent with what the loader reports.
type Engine struct {
	cfg SyncEngineConfig
}

// NewEngine builds a sync Engine. Registry, Chunker, Embedder and Store
// are required; the rest have usable zero values.
func NewEngine(cfg SyncEngineConfig) (*Engine, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("rag: sync engine requires a Registry")
	}
	if cfg.Chunker == nil {
		return nil, fmt.Errorf("rag: sync engine requires a Chunker")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("rag: sync engine requires an Embedder")
	}
	if cfg.Store == nil {
		cfg.Store = vectorstore.NilProvider{}
	}
	if cfg.Collection == "" {
		cfg.Collection = "default"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewIndexMetrics(cfg.Store.Name())
	}
	return &Engine{cfg: cfg}, nil
}

// Ingest unconditionally chunks, embeds and upserts every document the
// Loader produces, registering its version if EnableVersioning is set.
// Every successfully indexed document counts as Added.
func (e *Engine) Ingest(ctx context.Context, loader Loader) (SyncStats, error) {
	start := time.Now()
	e.cfg.Metrics.SetStartTime(start)
	defer func() { e.cfg.Metrics.SetEndTime(time.Now()) }()

	results, err := loader.Load(ctx)
	if err != nil {
		return SyncStats{}, fmt.Errorf("rag: load documents: %w", err)
	}

	var stats SyncStats
	for result := range results {
		if err := e.applyIngest(ctx, result, &stats); err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, err)
			e.cfg.Metrics.IncrementErrors()
			if e.cfg.FailFast {
				stats.Duration = time.Since(start)
				return stats, err
			}
		}
	}
	stats.Duration = time.Since(start)
	return stats, nil
}

func (e *Engine) applyIngest(ctx context.Context, result LoadResult, stats *SyncStats) error {
	switch result.Kind {
	case LoadSkipped:
		slog.Debug("document skipped by loader", "source", result.Source, "reason", result.Reason)
		return nil
	case LoadFailure:
		return fmt.Errorf("rag: load %q: %w", result.Source, result.Err)
	case LoadSuccess:
		e.cfg.Metrics.IncrementTotal()
		doc := result.Doc
		if e.cfg.SkipEmptyDocuments && isBlank(doc.Content) {
			e.cfg.Metrics.IncrementSkipped()
			return nil
		}
		chunkIDs, err := e.indexDocument(ctx, doc)
		if err != nil {
			return fmt.Errorf("rag: ingest %q: %w", doc.ID, err)
		}
		if e.cfg.EnableVersioning {
			if err := e.cfg.Registry.Put(ctx, RegistryEntry{
				DocID:       doc.ID,
				ContentHash: versionHash(doc),
				ChunkIDs:    chunkIDs,
				UpdatedAt:   time.Now(),
			}); err != nil {
				return fmt.Errorf("rag: register %q: %w", doc.ID, err)
			}
		}
		stats.Added++
		e.cfg.Metrics.IncrementIndexed()
		return nil
	default:
		return fmt.Errorf("rag: unknown load result kind %q", result.Kind)
	}
}

// Sync compares each loaded document's content hash to the registry:
// absent entries are ingested and registered (Added), changed hashes have
// their existing chunks deleted and are re-ingested (Updated), matching
// hashes are left alone (Unchanged). After the pass, any registry entry
// not seen this run has its chunks deleted and is unregistered (Deleted).
func (e *Engine) Sync(ctx context.Context, loader Loader) (SyncStats, error) {
	start := time.Now()
	e.cfg.Metrics.SetStartTime(start)
	defer func() { e.cfg.Metrics.SetEndTime(time.Now()) }()

	results, err := loader.Load(ctx)
	if err != nil {
		return SyncStats{}, fmt.Errorf("rag: load documents: %w", err)
	}

	seen := make(map[string]struct{})
	var stats SyncStats
	for result := range results {
		if err := e.applySync(ctx, result, &stats, seen); err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, err)
			e.cfg.Metrics.IncrementErrors()
			if e.cfg.FailFast {
				stats.Duration = time.Since(start)
				return stats, err
			}
		}
	}

	if err := e.pruneUnseen(ctx, seen, &stats); err != nil {
		stats.Errors = append(stats.Errors, err)
		if e.cfg.FailFast {
			stats.Duration = time.Since(start)
			return stats, err
		}
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

func (e *Engine) applySync(ctx context.Context, result LoadResult, stats *SyncStats, seen map[string]struct{}) error {
	switch result.Kind {
	case LoadSkipped:
		slog.Debug("document skipped by loader", "source", result.Source, "reason", result.Reason)
		return nil
	case LoadFailure:
		return fmt.Errorf("rag: load %q: %w", result.Source, result.Err)
	case LoadSuccess:
		doc := result.Doc
		seen[doc.ID] = struct{}{}
		e.cfg.Metrics.IncrementTotal()
		if e.cfg.SkipEmptyDocuments && isBlank(doc.Content) {
			e.cfg.Metrics.IncrementSkipped()
			return nil
		}

		entry, err := e.cfg.Registry.Get(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("rag: registry lookup %q: %w", doc.ID, err)
		}

		hash := versionHash(doc)
		switch {
		case entry == nil:
			chunkIDs, err := e.indexDocument(ctx, doc)
			if err != nil {
				return fmt.Errorf("rag: ingest %q: %w", doc.ID, err)
			}
			if err := e.cfg.Registry.Put(ctx, RegistryEntry{DocID: doc.ID, ContentHash: hash, ChunkIDs: chunkIDs, UpdatedAt: time.Now()}); err != nil {
				return fmt.Errorf("rag: register %q: %w", doc.ID, err)
			}
			stats.Added++
			e.cfg.Metrics.IncrementIndexed()
			return nil

		case entry.ContentHash != hash:
			if err := e.removeChunks(ctx, entry.ChunkIDs); err != nil {
				return fmt.Errorf("rag: remove stale chunks for %q: %w", doc.ID, err)
			}
			chunkIDs, err := e.indexDocument(ctx, doc)
			if err != nil {
				return fmt.Errorf("rag: re-ingest %q: %w", doc.ID, err)
			}
			if err := e.cfg.Registry.Put(ctx, RegistryEntry{DocID: doc.ID, ContentHash: hash, ChunkIDs: chunkIDs, UpdatedAt: time.Now()}); err != nil {
				return fmt.Errorf("rag: re-register %q: %w", doc.ID, err)
			}
			stats.Updated++
			e.cfg.Metrics.IncrementIndexed()
			return nil

		default:
			stats.Unchanged++
			return nil
		}
	default:
		return fmt.Errorf("rag: unknown load result kind %q", result.Kind)
	}
}

func (e *Engine) pruneUnseen(ctx context.Context, seen map[string]struct{}, stats *SyncStats) error {
	entries, err := e.cfg.Registry.All(ctx)
	if err != nil {
		return fmt.Errorf("rag: list registry entries: %w", err)
	}
	for _, entry := range entries {
		if _, ok := seen[entry.DocID]; ok {
			continue
		}
		if err := e.removeChunks(ctx, entry.ChunkIDs); err != nil {
			return fmt.Errorf("rag: prune chunks for %q: %w", entry.DocID, err)
		}
		if err := e.cfg.Registry.Delete(ctx, entry.DocID); err != nil {
			return fmt.Errorf("rag: unregister %q: %w", entry.DocID, err)
		}
		stats.Deleted++
	}
	return nil
}

// Refresh clears the registry and both stores, then ingests every
// document the Loader produces from a clean slate. All indexed documents
// count as Added.
func (e *Engine) Refresh(ctx context.Context, loader Loader) (SyncStats, error) {
	entries, err := e.cfg.Registry.All(ctx)
	if err != nil {
		return SyncStats{}, fmt.Errorf("rag: refresh: list registry: %w", err)
	}
	for _, entry := range entries {
		if err := e.removeChunks(ctx, entry.ChunkIDs); err != nil {
			return SyncStats{}, fmt.Errorf("rag: refresh: clear chunks for %q: %w", entry.DocID, err)
		}
		if err := e.cfg.Registry.Delete(ctx, entry.DocID); err != nil {
			return SyncStats{}, fmt.Errorf("rag: refresh: unregister %q: %w", entry.DocID, err)
		}
	}

	prevVersioning := e.cfg.EnableVersioning
	e.cfg.EnableVersioning = true
	defer func() { e.cfg.EnableVersioning = prevVersioning }()

	return e.Ingest(ctx, loader)
}

// NeedsUpdate reports whether doc's content hash differs from what the
// registry has recorded, without performing any indexing.
func (e *Engine) NeedsUpdate(ctx context.Context, doc Document) (bool, error) {
	entry, err := e.cfg.Registry.Get(ctx, doc.ID)
	if err != nil {
		return false, fmt.Errorf("rag: registry lookup %q: %w", doc.ID, err)
	}
	if entry == nil {
		return true, nil
	}
	return entry.ContentHash != versionHash(doc), nil
}

// DeleteDocument removes a document's chunks from the vector and keyword
// stores and drops its registry entry.
func (e *Engine) DeleteDocument(ctx context.Context, docID string) error {
	entry, err := e.cfg.Registry.Get(ctx, docID)
	if err != nil {
		return fmt.Errorf("rag: registry lookup %q: %w", docID, err)
	}
	if entry == nil {
		return nil
	}
	if err := e.removeChunks(ctx, entry.ChunkIDs); err != nil {
		return err
	}
	if err := e.cfg.Registry.Delete(ctx, docID); err != nil {
		return fmt.Errorf("rag: delete registry entry %q: %w", docID, err)
	}
	return nil
}

func (e *Engine) removeChunks(ctx context.Context, chunkIDs []string) error {
	for _, chunkID := range chunkIDs {
		if err := e.cfg.Store.Delete(ctx, e.cfg.Collection, chunkID); err != nil {
			return fmt.Errorf("rag: delete vector chunk %q: %w", chunkID, err)
		}
		if e.cfg.KeywordStore != nil {
			if err := e.cfg.KeywordStore.Delete(ctx, chunkID); err != nil {
				return fmt.Errorf("rag: delete keyword chunk %q: %w", chunkID, err)
			}
		}
	}
	return nil
}

// indexDocument chunks, embeds and upserts doc, returning the chunk ids it
// wrote. It does not touch the registry; callers decide when to record a
// version.
func (e *Engine) indexDocument(ctx context.Context, doc Document) ([]string, error) {
	chunks, err := e.chunkDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := e.cfg.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	if err := e.cfg.Store.CreateCollection(ctx, e.cfg.Collection, e.cfg.Embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("ensure collection %q: %w", e.cfg.Collection, err)
	}

	chunkIDs := make([]string, len(chunks))
	for i, chunk := range chunks {
		id := ChunkID(doc.ID, i)
		chunkIDs[i] = id
		metadata := chunkMetadata(doc, chunk)
		if err := e.cfg.Store.Upsert(ctx, e.cfg.Collection, id, vectors[i], metadata); err != nil {
			return nil, fmt.Errorf("upsert chunk %q: %w", id, err)
		}
		if e.cfg.KeywordStore != nil {
			if err := e.cfg.KeywordStore.Index(ctx, id, doc.ID, chunk.Content, ""); err != nil {
				return nil, fmt.Errorf("index chunk %q: %w", id, err)
			}
		}
	}
	return chunkIDs, nil
}

func (e *Engine) chunkDocument(doc Document) ([]Chunk, error) {
	chunker := e.cfg.Chunker
	if e.cfg.UseHints && doc.Hints != nil && doc.Hints.ChunkerStrategy != "" && doc.Hints.ChunkerStrategy != chunker.Strategy() {
		if hinted, err := NewChunker(ChunkerConfig{Strategy: doc.Hints.ChunkerStrategy}); err == nil {
			chunker = hinted
		}
	}
	var chunkCtx *ChunkContext
	if doc.SourcePath != "" {
		chunkCtx = &ChunkContext{FilePath: doc.SourcePath}
	}
	return chunker.Chunk(doc.Content, chunkCtx)
}

// IngestAsync runs change-detection-free chunk/embed work for up to
// BatchSize documents concurrently, applying vector/keyword store
// mutations for each document sequentially as its work completes so two
// documents never interleave writes.
func (e *Engine) IngestAsync(ctx context.Context, loader Loader) (SyncStats, error) {
	return e.runAsync(ctx, loader, false)
}

// SyncAsync is the concurrent counterpart to Sync: hash comparisons run in
// parallel across up to BatchSize documents, but each document's
// delete/ingest/register sequence still runs atomically with respect to
// other documents.
func (e *Engine) SyncAsync(ctx context.Context, loader Loader) (SyncStats, error) {
	return e.runAsync(ctx, loader, true)
}

type asyncUnit struct {
	doc   Document
	entry *RegistryEntry
	err   error
}

func (e *Engine) runAsync(ctx context.Context, loader Loader, checkVersion bool) (SyncStats, error) {
	start := time.Now()
	e.cfg.Metrics.SetStartTime(start)
	defer func() { e.cfg.Metrics.SetEndTime(time.Now()) }()

	results, err := loader.Load(ctx)
	if err != nil {
		return SyncStats{}, fmt.Errorf("rag: load documents: %w", err)
	}

	batchSize := e.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 4
	}

	units := make(chan asyncUnit)
	prepared := make(chan asyncUnit, batchSize)

	var wg sync.WaitGroup
	wg.Add(batchSize)
	for i := 0; i < batchSize; i++ {
		go func() {
			defer wg.Done()
			for u := range units {
				if u.err != nil {
					prepared <- u
					continue
				}
				if checkVersion {
					entry, err := e.cfg.Registry.Get(ctx, u.doc.ID)
					if err != nil {
						u.err = fmt.Errorf("rag: registry lookup %q: %w", u.doc.ID, err)
					} else {
						u.entry = entry
					}
				}
				prepared <- u
			}
		}()
	}

	go func() {
		defer close(units)
		for result := range results {
			var u asyncUnit
			switch result.Kind {
			case LoadSkipped:
				continue
			case LoadFailure:
				u.err = fmt.Errorf("rag: load %q: %w", result.Source, result.Err)
			case LoadSuccess:
				u.doc = result.Doc
			}
			select {
			case units <- u:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(prepared)
	}()

	seen := make(map[string]struct{})
	var stats SyncStats
	for u := range prepared {
		if u.err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, u.err)
			e.cfg.Metrics.IncrementErrors()
			if e.cfg.FailFast {
				stats.Duration = time.Since(start)
				return stats, u.err
			}
			continue
		}

		doc := u.doc
		seen[doc.ID] = struct{}{}
		e.cfg.Metrics.IncrementTotal()
		if e.cfg.SkipEmptyDocuments && isBlank(doc.Content) {
			e.cfg.Metrics.IncrementSkipped()
			continue
		}

		if err := e.applyAsyncUnit(ctx, doc, u.entry, checkVersion, &stats); err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, err)
			e.cfg.Metrics.IncrementErrors()
			if e.cfg.FailFast {
				stats.Duration = time.Since(start)
				return stats, err
			}
		}
	}

	if checkVersion {
		if err := e.pruneUnseen(ctx, seen, &stats); err != nil {
			stats.Errors = append(stats.Errors, err)
		}
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

func (e *Engine) applyAsyncUnit(ctx context.Context, doc Document, entry *RegistryEntry, checkVersion bool, stats *SyncStats) error {
	hash := versionHash(doc)

	if checkVersion && entry != nil && entry.ContentHash == hash {
		stats.Unchanged++
		return nil
	}

	if checkVersion && entry != nil {
		if err := e.removeChunks(ctx, entry.ChunkIDs); err != nil {
			return fmt.Errorf("rag: remove stale chunks for %q: %w", doc.ID, err)
		}
	}

	chunkIDs, err := e.indexDocument(ctx, doc)
	if err != nil {
		return fmt.Errorf("rag: index %q: %w", doc.ID, err)
	}
	if e.cfg.EnableVersioning || checkVersion {
		if err := e.cfg.Registry.Put(ctx, RegistryEntry{DocID: doc.ID, ContentHash: hash, ChunkIDs: chunkIDs, UpdatedAt: time.Now()}); err != nil {
			return fmt.Errorf("rag: register %q: %w", doc.ID, err)
		}
	}
	e.cfg.Metrics.IncrementIndexed()
	if entry == nil {
		stats.Added++
	} else {
		stats.Updated++
	}
	return nil
}

func chunkMetadata(doc Document, chunk Chunk) map[string]any {
	metadata := map[string]any{
		"doc_id":      doc.ID,
		"title":       doc.Title,
		"source":      doc.SourcePath,
		"mime_type":   doc.MimeType,
		"chunk_index": chunk.Index,
		"chunk_total": chunk.Total,
	}
	for k, v := range doc.Metadata {
		if _, exists := metadata[k]; !exists {
			metadata[k] = v
		}
	}
	return metadata
}

func versionHash(doc Document) string {
	if doc.Version != nil && doc.Version.ContentHash != "" {
		return doc.Version.ContentHash
	}
	return contentHash(doc.Content)
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
