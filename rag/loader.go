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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// Loader produces documents for ingest/sync/refresh as a stream of
// LoadResult, so a single bad file or row doesn't abort the whole run.
type Loader interface {
	Load(ctx context.Context) (<-chan LoadResult, error)
	Close() error
}

// DirectoryLoader adapts a DirectorySource into a Loader, computing each
// document's content hash since filesystem sources don't carry one natively.
type DirectoryLoader struct {
	source *DirectorySource
}

// NewDirectoryLoader creates a Loader over a local directory.
func NewDirectoryLoader(cfg DirectorySourceConfig) (*DirectoryLoader, error) {
	source, err := NewDirectorySourceFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("rag: create directory loader: %w", err)
	}
	ds, ok := source.(*DirectorySource)
	if !ok {
		return nil, fmt.Errorf("rag: unexpected data source type %T", source)
	}
	return &DirectoryLoader{source: ds}, nil
}

// Load discovers documents under the configured directory, computing a
// content hash for each before emitting it as a Success LoadResult.
func (l *DirectoryLoader) Load(ctx context.Context) (<-chan LoadResult, error) {
	docs, errs := l.source.DiscoverDocuments(ctx)
	out := make(chan LoadResult, 100)

	go func() {
		defer close(out)
		for {
			select {
			case doc, ok := <-docs:
				if !ok {
					docs = nil
				} else {
					doc.Version = &DocumentVersion{ContentHash: contentHash(doc.Content)}
					select {
					case out <- Success(doc):
					case <-ctx.Done():
						return
					}
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
				} else if err != nil {
					slog.Warn("directory loader read error", "error", err)
					select {
					case out <- Failure("", err, true):
					case <-ctx.Done():
						return
					}
				}
			case <-ctx.Done():
				return
			}
			if docs == nil && errs == nil {
				return
			}
		}
	}()

	return out, nil
}

// Close releases the underlying data source.
func (l *DirectoryLoader) Close() error {
	return l.source.Close()
}

// contentHash is the canonical change-detection hash spec §3 calls out as
// the identity carried by DocumentVersion.ContentHash.
func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

var _ Loader = (*DirectoryLoader)(nil)
