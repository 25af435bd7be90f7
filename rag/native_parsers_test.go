package rag

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestColumnLetter_ConvertsIndexToExcelColumnName(t *testing.T) {
	assert.Equal(t, "A", columnLetter(0))
	assert.Equal(t, "Z", columnLetter(25))
	assert.Equal(t, "AA", columnLetter(26))
	assert.Equal(t, "AB", columnLetter(27))
}

func TestNativeParserRegistry_GetSupportedExtensionsListsAllRegisteredExtensions(t *testing.T) {
	reg := NewNativeParserRegistry()
	exts := reg.GetSupportedExtensions()
	assert.Contains(t, exts, ".pdf")
	assert.Contains(t, exts, ".docx")
	assert.Contains(t, exts, ".xlsx")
}

func TestNativeParserRegistry_ParseDocumentReturnsFailureForUnsupportedExtension(t *testing.T) {
	reg := NewNativeParserRegistry()
	result, err := reg.ParseDocument(context.Background(), "/data/archive.zip", 10)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no native parser available")
}

func TestPdfParser_ParseHandlesMissingFileWithoutHardError(t *testing.T) {
	p := &pdfParser{}
	result, err := p.Parse(context.Background(), "/nonexistent/file.pdf", 0)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "failed to open PDF file")
}

func TestPdfParser_CanParseMatchesExtensionCaseInsensitively(t *testing.T) {
	p := &pdfParser{}
	assert.True(t, p.CanParse("report.PDF"))
	assert.False(t, p.CanParse("report.docx"))
}

func TestOfficeParser_CanParseMatchesDocxAndXlsx(t *testing.T) {
	p := &officeParser{}
	assert.True(t, p.CanParse("a.docx"))
	assert.True(t, p.CanParse("a.xlsx"))
	assert.False(t, p.CanParse("a.pdf"))
}

func TestOfficeParser_ParseWordDocumentHandlesMissingFileWithoutHardError(t *testing.T) {
	p := &officeParser{}
	result, err := p.Parse(context.Background(), "/nonexistent/file.docx", 0)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Content, "Error parsing Word document")
}

func TestOfficeParser_ParseExcelDocumentExtractsCellContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "hello"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "world"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	p := &officeParser{}
	result, err := p.Parse(context.Background(), path, 0)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Contains(t, result.Content, "hello")
	assert.Contains(t, result.Content, "world")
	assert.Equal(t, "1", result.Metadata["sheets"])
}
