package llm

import (
	"context"
	"fmt"

	"github.com/agentflowhq/agentflow/agent"
)

// MockClient is a deterministic, scripted Client for tests exercising the
// agent loop without a live provider. Each call to Complete/StreamComplete
// consumes the next scripted Completion in order.
type MockClient struct {
	baseClient
	Responses []agent.Completion
	Errors    []error
	calls     int
}

func NewMockClient(responses ...agent.Completion) *MockClient {
	return &MockClient{
		baseClient: baseClient{model: "mock", contextWindow: 128000, reserveCompletion: 1024},
		Responses:  responses,
	}
}

func (m *MockClient) next() (agent.Completion, error) {
	if m.calls < len(m.Errors) && m.Errors[m.calls] != nil {
		err := m.Errors[m.calls]
		m.calls++
		return agent.Completion{}, err
	}
	if m.calls >= len(m.Responses) {
		return agent.Completion{}, fmt.Errorf("llm: mock client exhausted after %d calls", m.calls)
	}
	resp := m.Responses[m.calls]
	m.calls++
	return resp, nil
}

func (m *MockClient) Complete(_ context.Context, _ agent.Conversation, _ agent.CompletionOptions) (agent.Completion, error) {
	return m.next()
}

func (m *MockClient) StreamComplete(_ context.Context, _ agent.Conversation, _ agent.CompletionOptions, onChunk func(agent.StreamedChunk)) (agent.Completion, error) {
	if err := requireCallback(onChunk); err != nil {
		return agent.Completion{}, err
	}
	resp, err := m.next()
	if err != nil {
		return agent.Completion{}, err
	}
	if resp.Content != "" {
		onChunk(agent.StreamedChunk{ID: resp.ID, Content: resp.Content})
	}
	for i := range resp.ToolCalls {
		onChunk(agent.StreamedChunk{ID: resp.ID, ToolCall: &resp.ToolCalls[i]})
	}
	onChunk(agent.StreamedChunk{ID: resp.ID, FinishReason: "stop"})
	return resp, nil
}

// CallCount reports how many completions have been consumed so far.
func (m *MockClient) CallCount() int { return m.calls }

var _ Client = (*MockClient)(nil)
