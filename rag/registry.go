// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rag

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	// SQL drivers registered for dialect selection by DSN scheme.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// RegistryEntry is what a Registry tracks per document: its last-seen
// content hash and the chunk ids produced from it, so sync can tell an
// unchanged document from one that needs re-embedding, and deleteDocument
// knows exactly which vectors/keyword postings to remove.
type RegistryEntry struct {
	DocID       string
	ContentHash string
	ChunkIDs    []string
	UpdatedAt   time.Time
}

// Registry persists the (doc_id, content_hash, chunk_ids, updated_at)
// tuples the sync engine uses for change detection, per spec §4.8.
type Registry interface {
	Get(ctx context.Context, docID string) (*RegistryEntry, error)
	Put(ctx context.Context, entry RegistryEntry) error
	Delete(ctx context.Context, docID string) error
	All(ctx context.Context) ([]RegistryEntry, error)
	Close() error
}

// sqlRegistry implements Registry over database/sql. It targets either
// SQLite (modernc.org/sqlite, the default, zero-dependency at runtime) or
// Postgres (jackc/pgx/v5, for multi-instance server deployments), selected
// by the driver name passed to OpenRegistry.
type sqlRegistry struct {
	db      *sql.DB
	dialect string
}

const createRegistrySchemaSQL = `
CREATE TABLE IF NOT EXISTS rag_documents (
    doc_id       TEXT PRIMARY KEY,
    content_hash TEXT NOT NULL,
    chunk_ids    TEXT NOT NULL,
    updated_at   TIMESTAMP NOT NULL
)`

// OpenRegistry opens a sync registry against a SQLite file or Postgres DSN.
// dsn is passed straight to the driver: a file path (or ":memory:") selects
// SQLite, a "postgres://" URL selects Postgres.
func OpenRegistry(dsn string) (Registry, error) {
	dialect := "sqlite"
	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialect = "postgres"
		driver = "pgx"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("rag: open registry database: %w", err)
	}

	r := &sqlRegistry{db: db, dialect: dialect}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *sqlRegistry) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, createRegistrySchemaSQL)
	if err != nil {
		return fmt.Errorf("rag: create registry schema: %w", err)
	}
	return nil
}

func (r *sqlRegistry) placeholders(query string) string {
	if r.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 1
	for _, c := range query {
		if c == '?' {
			fmt.Fprintf(&b, "$%d", n)
			n++
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *sqlRegistry) Get(ctx context.Context, docID string) (*RegistryEntry, error) {
	query := r.placeholders(`SELECT doc_id, content_hash, chunk_ids, updated_at FROM rag_documents WHERE doc_id = ?`)

	var entry RegistryEntry
	var chunkIDsJSON string
	err := r.db.QueryRowContext(ctx, query, docID).Scan(&entry.DocID, &entry.ContentHash, &chunkIDsJSON, &entry.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rag: get registry entry %q: %w", docID, err)
	}
	if err := json.Unmarshal([]byte(chunkIDsJSON), &entry.ChunkIDs); err != nil {
		return nil, fmt.Errorf("rag: decode chunk ids for %q: %w", docID, err)
	}
	return &entry, nil
}

func (r *sqlRegistry) Put(ctx context.Context, entry RegistryEntry) error {
	chunkIDsJSON, err := json.Marshal(entry.ChunkIDs)
	if err != nil {
		return fmt.Errorf("rag: encode chunk ids for %q: %w", entry.DocID, err)
	}

	var query string
	switch r.dialect {
	case "postgres":
		query = `INSERT INTO rag_documents (doc_id, content_hash, chunk_ids, updated_at)
                  VALUES ($1, $2, $3, $4)
                  ON CONFLICT (doc_id) DO UPDATE SET content_hash = $2, chunk_ids = $3, updated_at = $4`
	default:
		query = `INSERT INTO rag_documents (doc_id, content_hash, chunk_ids, updated_at)
                  VALUES (?, ?, ?, ?)
                  ON CONFLICT (doc_id) DO UPDATE SET content_hash = excluded.content_hash, chunk_ids = excluded.chunk_ids, updated_at = excluded.updated_at`
	}

	if _, err := r.db.ExecContext(ctx, query, entry.DocID, entry.ContentHash, string(chunkIDsJSON), entry.UpdatedAt); err != nil {
		return fmt.Errorf("rag: put registry entry %q: %w", entry.DocID, err)
	}
	return nil
}

func (r *sqlRegistry) Delete(ctx context.Context, docID string) error {
	query := r.placeholders(`DELETE FROM rag_documents WHERE doc_id = ?`)
	if _, err := r.db.ExecContext(ctx, query, docID); err != nil {
		return fmt.Errorf("rag: delete registry entry %q: %w", docID, err)
	}
	return nil
}

func (r *sqlRegistry) All(ctx context.Context) ([]RegistryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT doc_id, content_hash, chunk_ids, updated_at FROM rag_documents`)
	if err != nil {
		return nil, fmt.Errorf("rag: list registry entries: %w", err)
	}
	defer rows.Close()

	var entries []RegistryEntry
	for rows.Next() {
		var entry RegistryEntry
		var chunkIDsJSON string
		if err := rows.Scan(&entry.DocID, &entry.ContentHash, &chunkIDsJSON, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("rag: scan registry entry: %w", err)
		}
		if err := json.Unmarshal([]byte(chunkIDsJSON), &entry.ChunkIDs); err != nil {
			return nil, fmt.Errorf("rag: decode chunk ids for %q: %w", entry.DocID, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *sqlRegistry) Close() error {
	return r.db.Close()
}

var _ Registry = (*sqlRegistry)(nil)

// MemoryRegistry is an in-process Registry for tests and ephemeral
// single-run indexing where no persistent change tracking is needed.
type MemoryRegistry struct {
	entries map[string]RegistryEntry
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{entries: make(map[string]RegistryEntry)}
}

func (m *MemoryRegistry) Get(ctx context.Context, docID string) (*RegistryEntry, error) {
	entry, ok := m.entries[docID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (m *MemoryRegistry) Put(ctx context.Context, entry RegistryEntry) error {
	m.entries[entry.DocID] = entry
	return nil
}

func (m *MemoryRegistry) Delete(ctx context.Context, docID string) error {
	delete(m.entries, docID)
	return nil
}

func (m *MemoryRegistry) All(ctx context.Context) ([]RegistryEntry, error) {
	entries := make([]RegistryEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		entries = append(entries, entry)
	}
	return entries, nil
}

func (m *MemoryRegistry) Close() error { return nil }

var _ Registry = (*MemoryRegistry)(nil)
