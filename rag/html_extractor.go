package rag

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// HTMLExtractor pulls readable article content out of HTML files using
// Mozilla's Readability algorithm (via go-shiori/go-readability), the
// same approach browsers use for reader mode.
type HTMLExtractor struct{}

// NewHTMLExtractor creates a new HTML extractor.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

// Name returns the extractor name.
func (h *HTMLExtractor) Name() string { return "HTMLExtractor" }

// CanExtract checks if the file is HTML.
func (h *HTMLExtractor) CanExtract(path string, mimeType string) bool {
	if mimeType == "text/html" {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".html" || ext == ".htm"
}

// Extract parses the document's main content, discarding navigation,
// ads and boilerplate.
func (h *HTMLExtractor) Extract(ctx context.Context, path string, fileSize int64) (*ExtractedContent, error) {
	startTime := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open html file: %w", err)
	}
	defer f.Close()

	pageURL, err := url.Parse("file://" + filepath.ToSlash(path))
	if err != nil {
		return nil, fmt.Errorf("parse file url: %w", err)
	}

	article, err := readability.FromReader(f, pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	content := strings.TrimSpace(article.TextContent)
	if content == "" {
		return nil, nil
	}

	metadata := map[string]string{}
	if article.Excerpt != "" {
		metadata["excerpt"] = article.Excerpt
	}
	if article.SiteName != "" {
		metadata["site_name"] = article.SiteName
	}

	return &ExtractedContent{
		Content:          content,
		Title:            article.Title,
		Author:           article.Byline,
		Metadata:         metadata,
		ProcessingTimeMs: time.Since(startTime).Milliseconds(),
	}, nil
}

// Priority ranks above the generic TextExtractor since HTML needs
// boilerplate stripped before it's useful for retrieval.
func (h *HTMLExtractor) Priority() int { return 5 }

var _ ContentExtractor = (*HTMLExtractor)(nil)
