package rag

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHTMLDoc = `<!DOCTYPE html>
<html>
<head><title>My Article</title></head>
<body>
<article>
<h1>My Article</h1>
<p>This is the main body of a reasonably long article used to exercise the
readability extractor so that it reliably identifies this as the primary
content block instead of boilerplate navigation chrome.</p>
</article>
</body>
</html>`

func TestHTMLExtractor_CanExtractDetectsByMimeTypeAndExtension(t *testing.T) {
	h := NewHTMLExtractor()
	assert.True(t, h.CanExtract("anything", "text/html"))
	assert.True(t, h.CanExtract("page.html", ""))
	assert.True(t, h.CanExtract("page.HTM", ""))
	assert.False(t, h.CanExtract("page.txt", "text/plain"))
}

func TestHTMLExtractor_ExtractReturnsReadableArticleText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "article.html")
	require.NoError(t, os.WriteFile(path, []byte(testHTMLDoc), 0o644))

	h := NewHTMLExtractor()
	content, err := h.Extract(context.Background(), path, int64(len(testHTMLDoc)))
	require.NoError(t, err)
	require.NotNil(t, content)
	assert.Contains(t, content.Content, "main body of a reasonably long article")
}

func TestHTMLExtractor_ExtractErrorsWhenFileMissing(t *testing.T) {
	h := NewHTMLExtractor()
	_, err := h.Extract(context.Background(), "/nonexistent/page.html", 0)
	assert.Error(t, err)
}

func TestHTMLExtractor_PriorityRanksAboveTextExtractor(t *testing.T) {
	assert.Greater(t, NewHTMLExtractor().Priority(), NewTextExtractor().Priority())
}
