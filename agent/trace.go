package agent

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	gast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/agentflowhq/agentflow/logger"
)

// TraceWriter renders a run's progress as the Markdown document described
// in spec §6 "Trace log format", rewriting it atomically after every
// transition. It is grounded on the section layout the spec names
// verbatim; goldmark is used only to validate that what was written
// actually parses as well-formed Markdown (SPEC_FULL §3 C5), not to
// drive rendering decisions.
type TraceWriter struct {
	path string
}

// NewTraceWriter opens (creating if necessary) the directory containing
// path; the file itself is written wholesale on each call, never appended
// to, so the document is always a complete, consistent snapshot.
func NewTraceWriter(path string) (*TraceWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("agent: create trace directory: %w", err)
		}
	}
	return &TraceWriter{path: path}, nil
}

func (t *TraceWriter) Close() error { return nil }

// WriteHeader renders the initial document: header block plus whatever of
// the conversation already exists (normally just the first user message).
func (t *TraceWriter) WriteHeader(state State) {
	t.write(state)
}

// WriteTransition re-renders the full document after a state-machine
// transition.
func (t *TraceWriter) WriteTransition(state State) {
	t.write(state)
}

// WriteFinal re-renders the document one last time at run completion.
func (t *TraceWriter) WriteFinal(state State) {
	t.write(state)
}

func (t *TraceWriter) write(state State) {
	doc := renderTrace(state)
	if err := validateMarkdown(doc); err != nil {
		logger.Get(nil).Warn("trace document failed markdown validation", "error", err, "path", t.path)
	}
	if err := atomicWriteFile(t.path, []byte(doc)); err != nil {
		logger.Get(nil).Warn("failed to write trace file", "error", err, "path", t.path)
	}
}

func renderTrace(state State) string {
	var b strings.Builder

	b.WriteString("# Agent Execution Trace\n\n")

	query, _ := state.InitialQuery()
	b.WriteString(fmt.Sprintf("- **Initial query:** %s\n", query))
	b.WriteString(fmt.Sprintf("- **Status:** %s\n", state.Status()))
	toolNames := make([]string, 0)
	for _, td := range state.tools.Definitions() {
		toolNames = append(toolNames, td.Name)
	}
	b.WriteString(fmt.Sprintf("- **Tools:** %s\n\n", strings.Join(toolNames, ", ")))

	b.WriteString("## Conversation Flow\n\n")
	for i, msg := range state.conversation {
		b.WriteString(fmt.Sprintf("### Step %d: %s\n\n", i+1, titleCase(string(msg.Role))))
		switch msg.Role {
		case RoleTool:
			b.WriteString("```json\n")
			b.WriteString(msg.Content)
			b.WriteString("\n```\n\n")
		default:
			if msg.Content != "" {
				b.WriteString(msg.Content)
				b.WriteString("\n\n")
			}
			for _, tc := range msg.ToolCalls {
				b.WriteString(fmt.Sprintf("**Tool call:** `%s` (id=`%s`)\n\n", tc.Name, tc.ID))
				b.WriteString("```json\n")
				b.WriteString(string(tc.Arguments))
				b.WriteString("\n```\n\n")
			}
		}
	}

	b.WriteString("## Execution Logs\n\n")
	for _, line := range state.logs {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	return b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// validateMarkdown parses doc with goldmark and reports a shallow
// structural error if the expected top-level sections are missing —
// enough to catch a rendering regression without goldmark dictating the
// document's actual shape.
func validateMarkdown(doc string) error {
	md := goldmark.New()
	reader := text.NewReader([]byte(doc))
	root := md.Parser().Parse(reader)

	var headings []string
	err := gast.Walk(root, func(n gast.Node, entering bool) (gast.WalkStatus, error) {
		if !entering {
			return gast.WalkContinue, nil
		}
		if h, ok := n.(*gast.Heading); ok {
			var buf bytes.Buffer
			for c := h.FirstChild(); c != nil; c = c.NextSibling() {
				buf.Write(c.Text([]byte(doc)))
			}
			headings = append(headings, buf.String())
		}
		return gast.WalkContinue, nil
	})
	if err != nil {
		return err
	}
	required := []string{"Agent Execution Trace", "Conversation Flow", "Execution Logs"}
	for _, req := range required {
		found := false
		for _, h := range headings {
			if strings.Contains(h, req) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("trace document missing expected section %q", req)
		}
	}
	return nil
}

// atomicWriteFile writes data to a temp file in the same directory as path
// and renames it into place, so a concurrent reader never observes a
// partially written trace.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".trace-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
