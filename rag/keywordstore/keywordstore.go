// Package keywordstore implements the keyword half of hybrid search: a
// BM25-ranked full-text index over chunk content, backed by SQLite's FTS5
// virtual table so ranking logic lives in the database rather than a
// hand-rolled inverted index.
package keywordstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Hit is one keyword search result.
type Hit struct {
	ChunkID  string
	DocID    string
	Content  string
	Score    float32
	Metadata map[string]any
}

// Store is a full-text keyword index over chunk content.
type Store struct {
	db *sql.DB
}

const schemaSQL = `
CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
    chunk_id UNINDEXED,
    doc_id UNINDEXED,
    content
);
CREATE TABLE IF NOT EXISTS chunks_meta (
    chunk_id TEXT PRIMARY KEY,
    doc_id   TEXT NOT NULL,
    metadata TEXT NOT NULL
);`

// Open opens (or creates) a keyword store at dsn, a SQLite file path or
// ":memory:" for an ephemeral index.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("keywordstore: open: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("keywordstore: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Index inserts or replaces a chunk's content and metadata.
func (s *Store) Index(ctx context.Context, chunkID, docID, content string, metadataJSON string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("keywordstore: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks_fts WHERE chunk_id = ?`, chunkID); err != nil {
		return fmt.Errorf("keywordstore: clear existing entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chunks_fts(chunk_id, doc_id, content) VALUES (?, ?, ?)`,
		chunkID, docID, content); err != nil {
		return fmt.Errorf("keywordstore: index chunk: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chunks_meta(chunk_id, doc_id, metadata) VALUES (?, ?, ?)
		 ON CONFLICT(chunk_id) DO UPDATE SET doc_id = excluded.doc_id, metadata = excluded.metadata`,
		chunkID, docID, metadataJSON); err != nil {
		return fmt.Errorf("keywordstore: store metadata: %w", err)
	}
	return tx.Commit()
}

// Delete removes a chunk from the index.
func (s *Store) Delete(ctx context.Context, chunkID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks_fts WHERE chunk_id = ?`, chunkID); err != nil {
		return fmt.Errorf("keywordstore: delete chunk %q: %w", chunkID, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks_meta WHERE chunk_id = ?`, chunkID); err != nil {
		return fmt.Errorf("keywordstore: delete metadata %q: %w", chunkID, err)
	}
	return nil
}

// DeleteByDocID removes every chunk belonging to a document.
func (s *Store) DeleteByDocID(ctx context.Context, docID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks_fts WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("keywordstore: delete doc %q: %w", docID, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks_meta WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("keywordstore: delete doc metadata %q: %w", docID, err)
	}
	return nil
}

// Search runs a BM25-ranked FTS query and returns the topK hits. FTS5's
// bm25() is negative-is-better; scores are inverted so higher is better,
// matching the vector store's convention.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Hit, error) {
	if topK <= 0 {
		topK = 10
	}
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT f.chunk_id, f.doc_id, f.content, bm25(chunks_fts), m.metadata
		FROM chunks_fts f
		LEFT JOIN chunks_meta m ON m.chunk_id = f.chunk_id
		WHERE chunks_fts MATCH ?
		ORDER BY bm25(chunks_fts)
		LIMIT ?`, sanitized, topK)
	if err != nil {
		return nil, fmt.Errorf("keywordstore: search: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var bm25Score float64
		var metadataJSON sql.NullString
		if err := rows.Scan(&h.ChunkID, &h.DocID, &h.Content, &bm25Score, &metadataJSON); err != nil {
			return nil, fmt.Errorf("keywordstore: scan hit: %w", err)
		}
		h.Score = float32(-bm25Score)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// sanitizeFTSQuery strips FTS5 operator characters from free-text user
// queries so a query containing e.g. a bare '"' or '*' doesn't produce a
// syntax error from the MATCH clause.
func sanitizeFTSQuery(query string) string {
	replacer := strings.NewReplacer(`"`, " ", "*", " ", "^", " ", ":", " ", "(", " ", ")", " ")
	fields := strings.Fields(replacer.Replace(query))
	return strings.Join(fields, " ")
}
