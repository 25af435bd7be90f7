package builder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflowhq/agentflow/agent"
	"github.com/agentflowhq/agentflow/config"
)

func singleAgentFile() *config.File {
	return &config.File{
		LLMs: map[string]config.LLMConfig{
			"local": {Provider: "ollama"},
		},
		Agents: map[string]config.AgentConfig{
			"assistant": {
				LLM:           "local",
				SystemMessage: "be helpful",
				MaxSteps:      5,
			},
		},
	}
}

func TestBuildAgents_BuildsRunnerPerConfiguredAgent(t *testing.T) {
	rs, err := BuildAgents(context.Background(), singleAgentFile())
	require.NoError(t, err)

	runner, ok := rs.Runners.Get("assistant")
	require.True(t, ok)
	assert.NotNil(t, runner)
	assert.Contains(t, rs.Tools, "assistant")
	assert.Equal(t, 5, rs.RunOpts["assistant"].MaxSteps)
}

func TestBuildAgents_UnknownLLMReferenceErrors(t *testing.T) {
	file := &config.File{
		Agents: map[string]config.AgentConfig{
			"assistant": {LLM: "missing"},
		},
	}
	_, err := BuildAgents(context.Background(), file)
	assert.Error(t, err)
	assert.ErrorContains(t, err, "unknown llm")
}

func TestBuildAgents_UnknownToolReferenceErrors(t *testing.T) {
	file := singleAgentFile()
	cfg := file.Agents["assistant"]
	cfg.Tools = []string{"nonexistent"}
	file.Agents["assistant"] = cfg

	_, err := BuildAgents(context.Background(), file)
	assert.Error(t, err)
}

func TestRunnerSet_InitialStateBuildsStateForKnownAgent(t *testing.T) {
	file := singleAgentFile()
	rs, err := BuildAgents(context.Background(), file)
	require.NoError(t, err)

	state, err := rs.InitialState(file, "assistant", "hello there")
	require.NoError(t, err)
	require.Len(t, state.Conversation(), 1)
	assert.Equal(t, "hello there", state.Conversation()[0].Content)
}

func TestRunnerSet_InitialStateUnknownAgentErrors(t *testing.T) {
	file := singleAgentFile()
	rs, err := BuildAgents(context.Background(), file)
	require.NoError(t, err)

	_, err = rs.InitialState(file, "nonexistent", "hi")
	assert.Error(t, err)
}

func TestHandoffs_ConvertsEveryField(t *testing.T) {
	out := Handoffs([]config.HandoffConfig{{
		TargetAgent:           "escalation",
		TransferReason:        "needs a human",
		PreserveContext:       true,
		TransferSystemMessage: true,
	}})
	require.Len(t, out, 1)
	assert.Equal(t, agent.Handoff{
		TargetAgent:           "escalation",
		TransferReason:        "needs a human",
		PreserveContext:       true,
		TransferSystemMessage: true,
	}, out[0])
}

func TestContextWindowFromConfig_LeavesMaxFieldsNilWhenUnset(t *testing.T) {
	out := contextWindowFromConfig(config.ContextWindowConfig{})
	assert.Nil(t, out.MaxTokens)
	assert.Nil(t, out.MaxMessages)
}

func TestContextWindowFromConfig_SetsMaxFieldsWhenPositive(t *testing.T) {
	out := contextWindowFromConfig(config.ContextWindowConfig{MaxTokens: 1000, MaxMessages: 20})
	require.NotNil(t, out.MaxTokens)
	require.NotNil(t, out.MaxMessages)
	assert.Equal(t, 1000, *out.MaxTokens)
	assert.Equal(t, 20, *out.MaxMessages)
}
