package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTraceWriter_CreatesParentDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "trace.md")

	tw, err := NewTraceWriter(path)
	require.NoError(t, err)
	require.NotNil(t, tw)
	assert.NoError(t, tw.Close())

	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err)
}

func TestTraceWriter_WriteHeaderProducesWellFormedMarkdown(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.md")

	tw, err := NewTraceWriter(path)
	require.NoError(t, err)

	tools := stubToolRegistry{defs: []ToolDefinitionSpec{{Name: "search"}}}
	s := NewState("hello", tools, DefaultCompletionOptions(), nil, "")
	tw.WriteHeader(s)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := string(contents)
	assert.Contains(t, doc, "# Agent Execution Trace")
	assert.Contains(t, doc, "## Conversation Flow")
	assert.Contains(t, doc, "## Execution Logs")
	assert.Contains(t, doc, "hello")
	assert.Contains(t, doc, "search")
}

func TestTraceWriter_WriteTransitionIncludesToolCallsAndResults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.md")

	tw, err := NewTraceWriter(path)
	require.NoError(t, err)

	tools := stubToolRegistry{}
	s := NewState("hello", tools, DefaultCompletionOptions(), nil, "")
	s = s.AddMessage(NewAssistantMessage("", []ToolCall{{ID: "call-1", Name: "search", Arguments: []byte(`{"q":"cats"}`)}}))
	s = s.AddMessage(NewToolResultMessage("call-1", `{"result":"ok"}`, false))
	s = s.Log("ran search")

	tw.WriteTransition(s)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := string(contents)
	assert.Contains(t, doc, "**Tool call:** `search`")
	assert.Contains(t, doc, `{"q":"cats"}`)
	assert.Contains(t, doc, `{"result":"ok"}`)
	assert.Contains(t, doc, "ran search")
}

func TestTraceWriter_WriteFinalOverwritesPreviousContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.md")

	tw, err := NewTraceWriter(path)
	require.NoError(t, err)

	tools := stubToolRegistry{}
	s := NewState("hello", tools, DefaultCompletionOptions(), nil, "")
	tw.WriteHeader(s)

	final := s.WithStatus(Complete())
	tw.WriteFinal(final)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "**Status:** complete")
}

func TestRenderTrace_TitleCasesRole(t *testing.T) {
	tools := stubToolRegistry{}
	s := NewState("hello", tools, DefaultCompletionOptions(), nil, "")
	doc := renderTrace(s)
	assert.Contains(t, doc, "Step 1: User")
}

func TestValidateMarkdown_MissingSectionErrors(t *testing.T) {
	err := validateMarkdown("# Just A Title\n\nsome text\n")
	assert.Error(t, err)
}

func TestValidateMarkdown_WellFormedDocumentPasses(t *testing.T) {
	doc := "# Agent Execution Trace\n\n## Conversation Flow\n\n## Execution Logs\n"
	assert.NoError(t, validateMarkdown(doc))
}

func TestAtomicWriteFile_WritesContentAndCleansUpTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	require.NoError(t, atomicWriteFile(path, []byte("hello world")))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(contents))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
