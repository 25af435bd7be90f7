// Package builder wires config.File sections into runnable agent.Runner
// instances: an llm.Client per named LLM, a tool.Registry per agent, and a
// registry.Registry[*agent.Runner] resolving handoff targets by name.
// Grounded on the teacher's pkg/builder fluent builders, flattened into
// plain functions over this workspace's config/agent/llm/tool types.
package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/agentflowhq/agentflow/config"
	"github.com/agentflowhq/agentflow/llm"
)

// BuildLLM constructs an llm.Client from one named LLMConfig entry. ctx is
// only used by providers whose SDK requires one at construction time
// (currently gemini).
func BuildLLM(ctx context.Context, cfg config.LLMConfig) (llm.Client, error) {
	apiKey, err := config.ResolveAPIKey(cfg)
	if err != nil && cfg.Provider != "ollama" {
		return nil, err
	}

	switch cfg.Provider {
	case "anthropic":
		return llm.NewAnthropicClient(llm.AnthropicConfig{
			APIKey:            apiKey,
			BaseURL:           cfg.BaseURL,
			Model:             valueOr(cfg.Model, "claude-sonnet-4-20250514"),
			ContextWindow:     cfg.ContextWindow,
			ReserveCompletion: cfg.ReserveCompletion,
			MaxTokens:         cfg.MaxTokens,
		})
	case "openai":
		return llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:            apiKey,
			BaseURL:           cfg.BaseURL,
			Model:             valueOr(cfg.Model, "gpt-4o-mini"),
			ContextWindow:     cfg.ContextWindow,
			ReserveCompletion: cfg.ReserveCompletion,
		})
	case "gemini":
		return llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:            apiKey,
			Model:             valueOr(cfg.Model, "gemini-2.0-flash"),
			ContextWindow:     cfg.ContextWindow,
			ReserveCompletion: cfg.ReserveCompletion,
		})
	case "ollama":
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		return llm.NewOllamaClient(llm.OllamaConfig{
			BaseURL:           valueOr(cfg.BaseURL, "http://localhost:11434"),
			Model:             valueOr(cfg.Model, "qwen3"),
			ContextWindow:     cfg.ContextWindow,
			ReserveCompletion: cfg.ReserveCompletion,
			Timeout:           timeout,
		}), nil
	default:
		return nil, fmt.Errorf("builder: unknown LLM provider %q", cfg.Provider)
	}
}

// BuildLLMs constructs every named LLMConfig in file, returning a
// name-keyed map of the clients.
func BuildLLMs(ctx context.Context, file *config.File) (map[string]llm.Client, error) {
	clients := make(map[string]llm.Client, len(file.LLMs))
	for name, cfg := range file.LLMs {
		client, err := BuildLLM(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("builder: llm %q: %w", name, err)
		}
		clients[name] = client
	}
	return clients, nil
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
