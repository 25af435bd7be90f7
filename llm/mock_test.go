package llm

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflowhq/agentflow/agent"
)

func TestMockClient_CompleteReturnsScriptedResponsesInOrder(t *testing.T) {
	client := NewMockClient(
		agent.Completion{Message: agent.Message{Content: "first"}},
		agent.Completion{Message: agent.Message{Content: "second"}},
	)

	first, err := client.Complete(context.Background(), nil, agent.CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "first", first.Message.Content)

	second, err := client.Complete(context.Background(), nil, agent.CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "second", second.Message.Content)

	assert.Equal(t, 2, client.CallCount())
}

func TestMockClient_CompleteErrorsOnceResponsesExhausted(t *testing.T) {
	client := NewMockClient(agent.Completion{})
	_, err := client.Complete(context.Background(), nil, agent.CompletionOptions{})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), nil, agent.CompletionOptions{})
	assert.Error(t, err)
	assert.ErrorContains(t, err, "exhausted")
}

func TestMockClient_CompleteReturnsScriptedError(t *testing.T) {
	client := NewMockClient(agent.Completion{})
	client.Errors = []error{fmt.Errorf("boom")}

	_, err := client.Complete(context.Background(), nil, agent.CompletionOptions{})
	assert.Error(t, err)
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, 1, client.CallCount())
}

func TestMockClient_StreamCompleteRequiresOnChunk(t *testing.T) {
	client := NewMockClient(agent.Completion{})
	_, err := client.StreamComplete(context.Background(), nil, agent.CompletionOptions{}, nil)
	assert.Error(t, err)
}

func TestMockClient_StreamCompleteEmitsContentToolCallsAndFinishReason(t *testing.T) {
	client := NewMockClient(agent.Completion{
		ID:        "resp-1",
		Content:   "hello",
		ToolCalls: []agent.ToolCall{{ID: "call-1", Name: "search"}},
	})

	var chunks []agent.StreamedChunk
	resp, err := client.StreamComplete(context.Background(), nil, agent.CompletionOptions{}, func(c agent.StreamedChunk) {
		chunks = append(chunks, c)
	})
	require.NoError(t, err)
	assert.Equal(t, "resp-1", resp.ID)

	require.Len(t, chunks, 3)
	assert.Equal(t, "hello", chunks[0].Content)
	require.NotNil(t, chunks[1].ToolCall)
	assert.Equal(t, "call-1", chunks[1].ToolCall.ID)
	assert.Equal(t, "stop", chunks[2].FinishReason)
}

func TestNewMockClient_HasSaneDefaultBaseClient(t *testing.T) {
	client := NewMockClient()
	assert.Equal(t, 128000, client.ContextWindow())
	assert.Equal(t, 1024, client.ReserveCompletion())
}
