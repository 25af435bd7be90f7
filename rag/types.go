// Package rag implements the RAG Sync Engine (C8) and Hybrid Search (C9):
// version-aware document ingestion into a paired vector/keyword index, and
// fused retrieval across both.
package rag

import (
	"strconv"
	"time"
)

// Document is a unit of content to be indexed: a source id, its content,
// free-form metadata and an optional version used for change detection.
type Document struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Title    string            `json:"title,omitempty"`
	Metadata map[string]any    `json:"metadata,omitempty"`
	Version  *DocumentVersion  `json:"version,omitempty"`
	Hints    *DocumentHints    `json:"hints,omitempty"`

	// SourcePath is the loader-specific location (file path, table row id)
	// used for re-reads and relative-path display; not part of ID identity.
	SourcePath string `json:"-"`

	// MimeType and Size drive extractor selection and size-limit checks.
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// SearchResult is one retrieval hit surfaced to a caller of Search, fused
// from the vector and keyword stores per spec §4.9.
type SearchResult struct {
	ID       string
	DocID    string
	Content  string
	Score    float32
	Metadata map[string]any
}

// DocumentVersion identifies a document's content for change detection.
// ContentHash is the canonical identity spec §3 calls out: two reads of the
// same document with equal ContentHash are considered unchanged.
type DocumentVersion struct {
	ContentHash string    `json:"content_hash"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DocumentHints lets a loader suggest how ingest should treat a document,
// consulted when the pipeline is configured with useHints.
type DocumentHints struct {
	ChunkerStrategy ChunkerStrategy `json:"chunker_strategy,omitempty"`
}

// LoadResultKind discriminates the closed LoadResult sum type from spec §4.8.
type LoadResultKind string

const (
	LoadSuccess LoadResultKind = "Success"
	LoadFailure LoadResultKind = "Failure"
	LoadSkipped LoadResultKind = "Skipped"
)

// LoadResult is the tagged variant a Loader emits per document: exactly one
// of Document, Err/Retryable, or Reason is meaningful, selected by Kind.
type LoadResult struct {
	Kind   LoadResultKind
	Doc    Document
	Source string
	Err    error
	Retryable bool
	Reason string
}

func Success(doc Document) LoadResult {
	return LoadResult{Kind: LoadSuccess, Doc: doc, Source: doc.ID}
}

func Failure(source string, err error, retryable bool) LoadResult {
	return LoadResult{Kind: LoadFailure, Source: source, Err: err, Retryable: retryable}
}

func Skipped(source string, reason string) LoadResult {
	return LoadResult{Kind: LoadSkipped, Source: source, Reason: reason}
}

// Chunk is one piece of a chunked document, with position information for
// source mapping back to the original content.
//
// Derived from legacy pkg/context/chunking/chunker.go:Chunk
type Chunk struct {
	Content   string
	StartLine int
	EndLine   int
	StartByte int
	EndByte   int
	Index     int
	Total     int
	Context   *ChunkContext
}

// ChunkContext carries optional structural hints a chunker may use to avoid
// splitting mid-function or mid-type when chunking source code.
type ChunkContext struct {
	FilePath     string
	FunctionName string
	TypeName     string
}

// ChunkID returns the vector/keyword index id for the N-th chunk of a
// document, per spec §4.8's "<docId>-chunk-<N>" scheme.
func ChunkID(docID string, n int) string {
	return docID + "-chunk-" + strconv.Itoa(n)
}
