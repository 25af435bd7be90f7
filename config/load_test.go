package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
version: "1"
llms:
  claude:
    provider: anthropic
    api_key_env: AGENTFLOW_TEST_ANTHROPIC_KEY
    model: claude-sonnet-4-5
    context_window: 200000
    reserve_completion: 4096
agents:
  researcher:
    llm: claude
    system_message: "You are a careful researcher."
    tools: ["read_file", "write_file"]
    max_steps: ${AGENTFLOW_TEST_MAX_STEPS:-25}
    context_window:
      max_messages: 200
      strategy: oldest_first
server:
  addr: ":${AGENTFLOW_TEST_PORT:-8080}"
`

func TestLoadFromString_YAML(t *testing.T) {
	require.NoError(t, os.Setenv("AGENTFLOW_TEST_ANTHROPIC_KEY", "sk-test-123"))
	t.Cleanup(func() { os.Unsetenv("AGENTFLOW_TEST_ANTHROPIC_KEY") })

	file, err := LoadFromString(sampleYAML, "yaml")
	require.NoError(t, err)

	require.Contains(t, file.LLMs, "claude")
	claude := file.LLMs["claude"]
	assert.Equal(t, "anthropic", claude.Provider)
	assert.Equal(t, 200000, claude.ContextWindow)

	require.Contains(t, file.Agents, "researcher")
	researcher := file.Agents["researcher"]
	assert.Equal(t, "claude", researcher.LLM)
	assert.Equal(t, []string{"read_file", "write_file"}, researcher.Tools)
	assert.Equal(t, 25, researcher.MaxSteps)
	assert.Equal(t, "oldest_first", researcher.ContextWindow.Strategy)

	assert.Equal(t, ":8080", file.Server.Addr)

	key, err := ResolveAPIKey(claude)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", key)
}

const sampleTOML = `
version = "1"

[llms.local]
provider = "ollama"
model = "llama3"
base_url = "http://localhost:11434"
`

func TestLoadFromString_TOML(t *testing.T) {
	file, err := LoadFromString(sampleTOML, "toml")
	require.NoError(t, err)

	require.Contains(t, file.LLMs, "local")
	assert.Equal(t, "ollama", file.LLMs["local"].Provider)
	assert.Equal(t, "http://localhost:11434", file.LLMs["local"].BaseURL)
}

func TestResolveAPIKey_MissingKeyErrors(t *testing.T) {
	_, err := ResolveAPIKey(LLMConfig{Provider: "anthropic"})
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/agentflow.yaml")
	assert.Error(t, err)
}
