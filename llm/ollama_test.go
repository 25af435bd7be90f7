package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflowhq/agentflow/agent"
)

func newTestOllamaClient(t *testing.T, handler http.HandlerFunc) *ollamaClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL})
	oc, ok := client.(*ollamaClient)
	require.True(t, ok)
	return oc
}

func TestNewOllamaClient_AppliesDefaults(t *testing.T) {
	client := NewOllamaClient(OllamaConfig{})
	oc, ok := client.(*ollamaClient)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:11434", oc.baseURL)
	assert.Equal(t, 8192, oc.ContextWindow())
}

func TestNewOllamaClient_TrimsTrailingSlashFromBaseURL(t *testing.T) {
	client := NewOllamaClient(OllamaConfig{BaseURL: "http://example.com:11434/"})
	oc, ok := client.(*ollamaClient)
	require.True(t, ok)
	assert.Equal(t, "http://example.com:11434", oc.baseURL)
}

func TestOllamaClient_CompleteParsesSuccessfulResponse(t *testing.T) {
	oc := newTestOllamaClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)

		_ = json.NewEncoder(w).Encode(ollamaChatResponse{
			Message:         &ollamaChatMessage{Role: "assistant", Content: "hi there"},
			Done:            true,
			EvalCount:       5,
			PromptEvalCount: 10,
		})
	})

	conversation := agent.Conversation{{Role: agent.RoleUser, Content: "hello"}}
	resp, err := oc.Complete(context.Background(), conversation, agent.CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 10, resp.Usage.PromptTokens)
	assert.Equal(t, 5, resp.Usage.CompletionTokens)
}

func TestOllamaClient_CompleteReturnsErrorOnAPIErrorField(t *testing.T) {
	oc := newTestOllamaClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{Error: "model not found"})
	})

	_, err := oc.Complete(context.Background(), agent.Conversation{{Role: agent.RoleUser, Content: "hi"}}, agent.CompletionOptions{})
	assert.Error(t, err)
	assert.ErrorContains(t, err, "model not found")
}

func TestOllamaClient_CompleteMapsHTTPStatusToErrorKind(t *testing.T) {
	oc := newTestOllamaClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	})

	_, err := oc.Complete(context.Background(), agent.Conversation{{Role: agent.RoleUser, Content: "hi"}}, agent.CompletionOptions{})
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, string(KindRateLimit), e.Kind())
}

func TestOllamaClient_StreamCompleteEmitsChunksAndAccumulatesUsage(t *testing.T) {
	oc := newTestOllamaClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		lines := []ollamaChatResponse{
			{Message: &ollamaChatMessage{Role: "assistant", Content: "hel"}},
			{Message: &ollamaChatMessage{Role: "assistant", Content: "lo"}},
			{Done: true, EvalCount: 2, PromptEvalCount: 3},
		}
		var buf bytes.Buffer
		for _, l := range lines {
			b, _ := json.Marshal(l)
			buf.Write(b)
			buf.WriteByte('\n')
		}
		_, _ = w.Write(buf.Bytes())
	})

	var chunks []agent.StreamedChunk
	resp, err := oc.StreamComplete(context.Background(), agent.Conversation{{Role: agent.RoleUser, Content: "hi"}}, agent.CompletionOptions{}, func(c agent.StreamedChunk) {
		chunks = append(chunks, c)
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 3, resp.Usage.PromptTokens)
	assert.Equal(t, 2, resp.Usage.CompletionTokens)

	var sawFinish bool
	for _, c := range chunks {
		if c.FinishReason == "stop" {
			sawFinish = true
		}
	}
	assert.True(t, sawFinish)
}

func TestOllamaClient_BuildRequestTranslatesRolesAndToolCalls(t *testing.T) {
	oc := NewOllamaClient(OllamaConfig{}).(*ollamaClient)
	conversation := agent.Conversation{
		{Role: agent.RoleSystem, Content: "be nice"},
		{Role: agent.RoleUser, Content: "search for cats"},
		{Role: agent.RoleAssistant, Content: "", ToolCalls: []agent.ToolCall{{ID: "call-1", Name: "search"}}},
		{Role: agent.RoleTool, Content: "results", ToolCallID: "call-1"},
	}

	req := oc.buildRequest(conversation, agent.CompletionOptions{}, false)
	require.Len(t, req.Messages, 4)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "user", req.Messages[1].Role)
	assert.Equal(t, "assistant", req.Messages[2].Role)
	require.Len(t, req.Messages[2].ToolCalls, 1)
	assert.Equal(t, "search", req.Messages[2].ToolCalls[0].Function.Name)
	assert.Equal(t, "tool", req.Messages[3].Role)
	assert.Equal(t, "search", req.Messages[3].ToolName)
}
