package agent_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflowhq/agentflow/agent"
	"github.com/agentflowhq/agentflow/guardrail"
	"github.com/agentflowhq/agentflow/llm"
)

type fakeTools struct {
	defs    []agent.ToolDefinitionSpec
	execute func(name string, args json.RawMessage) (json.RawMessage, *agent.ToolError)
}

func (f *fakeTools) Definitions() []agent.ToolDefinitionSpec { return f.defs }

func (f *fakeTools) Execute(_ context.Context, name string, args json.RawMessage) (json.RawMessage, *agent.ToolError) {
	return f.execute(name, args)
}

func TestRun_SingleTurnCompletes(t *testing.T) {
	client := llm.NewMockClient(agent.Completion{Content: "hello there"})
	runner := agent.NewRunner("assistant", client, nil, nil)
	state := agent.NewState("hi", nil, agent.DefaultCompletionOptions(), nil, "")

	final, err := runner.Run(context.Background(), state, agent.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, agent.StatusComplete, final.Status().Kind)
	assert.Equal(t, 1, client.CallCount())
}

func TestRun_ToolCallThenComplete(t *testing.T) {
	toolArgs := json.RawMessage(`{"x":1}`)
	tools := &fakeTools{
		defs: []agent.ToolDefinitionSpec{{Name: "add_one", Description: "adds one"}},
		execute: func(name string, args json.RawMessage) (json.RawMessage, *agent.ToolError) {
			assert.Equal(t, "add_one", name)
			assert.JSONEq(t, string(toolArgs), string(args))
			return json.RawMessage(`{"result":2}`), nil
		},
	}

	client := llm.NewMockClient(
		agent.Completion{ToolCalls: []agent.ToolCall{{ID: "call-1", Name: "add_one", Arguments: toolArgs}}},
		agent.Completion{Content: "the answer is 2"},
	)
	runner := agent.NewRunner("assistant", client, tools, nil)
	state := agent.NewState("what is one plus one", tools, agent.DefaultCompletionOptions(), nil, "")

	final, err := runner.Run(context.Background(), state, agent.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, agent.StatusComplete, final.Status().Kind)
	assert.Equal(t, 2, client.CallCount())

	conv := final.Conversation()
	require.Len(t, conv, 4)
	assert.Equal(t, agent.RoleTool, conv[2].Role)
	assert.Equal(t, "call-1", conv[2].ToolCallID)
}

func TestRun_UnknownToolYieldsNotFoundWithoutPanicking(t *testing.T) {
	tools := &fakeTools{
		execute: func(name string, args json.RawMessage) (json.RawMessage, *agent.ToolError) {
			return nil, &agent.ToolError{Type: agent.ToolErrorNotFound, Message: "no such tool"}
		},
	}
	client := llm.NewMockClient(
		agent.Completion{ToolCalls: []agent.ToolCall{{ID: "call-1", Name: "missing", Arguments: json.RawMessage(`{}`)}}},
		agent.Completion{Content: "sorry, couldn't find that tool"},
	)
	runner := agent.NewRunner("assistant", client, tools, nil)
	state := agent.NewState("do something", tools, agent.DefaultCompletionOptions(), nil, "")

	final, err := runner.Run(context.Background(), state, agent.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, agent.StatusComplete, final.Status().Kind)

	conv := final.Conversation()
	require.Len(t, conv, 4)
	assert.True(t, conv[2].IsError)
}

func TestRun_StepBudgetExhaustionFails(t *testing.T) {
	toolCall := agent.ToolCall{ID: "call-1", Name: "loop", Arguments: json.RawMessage(`{}`)}
	tools := &fakeTools{
		execute: func(string, json.RawMessage) (json.RawMessage, *agent.ToolError) {
			return json.RawMessage(`{}`), nil
		},
	}

	responses := make([]agent.Completion, 0, 10)
	for i := 0; i < 10; i++ {
		responses = append(responses, agent.Completion{ToolCalls: []agent.ToolCall{toolCall}})
	}
	client := llm.NewMockClient(responses...)
	runner := agent.NewRunner("assistant", client, tools, nil)
	state := agent.NewState("loop forever", tools, agent.DefaultCompletionOptions(), nil, "")

	final, err := runner.Run(context.Background(), state, agent.RunOptions{MaxSteps: 3})
	require.NoError(t, err)
	assert.Equal(t, agent.StatusFailed, final.Status().Kind)
	assert.Equal(t, 3, client.CallCount())

	toolMessages := 0
	for _, msg := range final.Conversation() {
		if msg.Role == agent.RoleTool {
			toolMessages++
		}
	}
	assert.Equal(t, 3, toolMessages, "MaxSteps=3 should yield exactly three tool round trips")
}

func TestRunWithEvents_EmitsStartedAndCompleted(t *testing.T) {
	client := llm.NewMockClient(agent.Completion{Content: "done"})
	runner := agent.NewRunner("assistant", client, nil, nil)
	state := agent.NewState("hi", nil, agent.DefaultCompletionOptions(), nil, "")

	var kinds []agent.EventKind
	_, err := runner.RunWithEvents(context.Background(), state, agent.RunOptions{}, func(ev agent.Event) {
		kinds = append(kinds, ev.Kind)
	})
	require.NoError(t, err)
	assert.Contains(t, kinds, agent.EventAgentStarted)
	assert.Contains(t, kinds, agent.EventAgentCompleted)
}

func TestRun_InputGuardrailBlocksBeforeFirstModelCall(t *testing.T) {
	client := llm.NewMockClient(agent.Completion{Content: "should never be reached"})
	runner := agent.NewRunner("assistant", client, nil, nil)
	state := agent.NewState("tell me a secret: sk-abcdefghijklmnopqrstuvwx", nil, agent.DefaultCompletionOptions(), nil, "")

	blockAlways := agent.Guardrail{Name: "deny", Action: guardrail.Block, Check: func(string) guardrail.CheckResult {
		return guardrail.CheckResult{Violated: true, Reason: "blocked for test"}
	}}

	_, err := runner.Run(context.Background(), state, agent.RunOptions{InputGuardrails: []agent.Guardrail{blockAlways}})
	require.Error(t, err)
	assert.Equal(t, 0, client.CallCount())
}
