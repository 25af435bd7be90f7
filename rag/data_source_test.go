package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilDataSource_DiscoverDocumentsYieldsClosedEmptyChannels(t *testing.T) {
	var ds NilDataSource
	docs, errs := ds.DiscoverDocuments(context.Background())

	_, docsOpen := <-docs
	_, errsOpen := <-errs
	assert.False(t, docsOpen)
	assert.False(t, errsOpen)
}

func TestNilDataSource_ReadDocumentReturnsNilWithoutError(t *testing.T) {
	var ds NilDataSource
	doc, err := ds.ReadDocument(context.Background(), "anything")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestNilDataSource_ReportsTypeAndCapabilities(t *testing.T) {
	var ds NilDataSource
	assert.Equal(t, "nil", ds.Type())
	assert.False(t, ds.SupportsIncrementalIndexing())
	assert.NoError(t, ds.Close())
}

func TestNilDataSource_GetLastModifiedReturnsZeroTime(t *testing.T) {
	var ds NilDataSource
	ts, err := ds.GetLastModified(context.Background(), "anything")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
}
