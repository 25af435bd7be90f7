package builder

import (
	"context"
	"fmt"

	"github.com/agentflowhq/agentflow/agent"
	"github.com/agentflowhq/agentflow/config"
	"github.com/agentflowhq/agentflow/registry"
)

// RunnerSet is every agent.Runner built from a config.File, keyed by name,
// plus the per-agent RunOptions (guardrails, step budget, context window)
// BuildAgents resolved from config.
type RunnerSet struct {
	Runners registry.Registry[*agent.Runner]
	Tools   map[string]agent.ToolRegistry
	RunOpts map[string]agent.RunOptions
	Pruning map[string]agent.ContextWindowConfig
}

// BuildAgents constructs every named AgentConfig in file into an
// agent.Runner, wiring its LLM, its own tool subset and its guardrail
// chain. Runners may reference each other by name via Handoffs; since
// construction order is otherwise arbitrary, each Runner's resolveTarget
// closes over the shared registry rather than a fixed peer map, so forward
// references resolve once every agent has been registered.
func BuildAgents(ctx context.Context, file *config.File) (*RunnerSet, error) {
	llmClients, err := BuildLLMs(ctx, file)
	if err != nil {
		return nil, err
	}
	toolDefs, err := BuildTools(ctx, file)
	if err != nil {
		return nil, err
	}
	guardrails := DefaultGuardrails()

	runners := registry.NewBaseRegistry[*agent.Runner]()
	resolveTarget := func(name string) (*agent.Runner, bool) {
		return runners.Get(name)
	}

	runOpts := make(map[string]agent.RunOptions, len(file.Agents))
	pruning := make(map[string]agent.ContextWindowConfig, len(file.Agents))
	agentTools := make(map[string]agent.ToolRegistry, len(file.Agents))

	for name, cfg := range file.Agents {
		client, ok := llmClients[cfg.LLM]
		if !ok {
			return nil, fmt.Errorf("builder: agent %q references unknown llm %q", name, cfg.LLM)
		}

		tools, err := SelectTools(toolDefs, cfg.Tools)
		if err != nil {
			return nil, fmt.Errorf("builder: agent %q: %w", name, err)
		}

		input, output, err := SplitGuardrails(cfg.Guardrails, guardrails)
		if err != nil {
			return nil, fmt.Errorf("builder: agent %q: %w", name, err)
		}

		runner := agent.NewRunner(name, client, tools, resolveTarget)
		if err := runners.Register(name, runner); err != nil {
			return nil, fmt.Errorf("builder: agent %q: %w", name, err)
		}
		agentTools[name] = tools

		runOpts[name] = agent.RunOptions{
			MaxSteps:         cfg.MaxSteps,
			InputGuardrails:  input,
			OutputGuardrails: output,
		}
		pruning[name] = contextWindowFromConfig(cfg.ContextWindow)
	}

	return &RunnerSet{Runners: runners, Tools: agentTools, RunOpts: runOpts, Pruning: pruning}, nil
}

// InitialState builds the starting agent.State for a named agent's run:
// query as the user turn, its own tool registry, its configured system
// message, completion options and handoffs.
func (rs *RunnerSet) InitialState(file *config.File, name string, query string) (agent.State, error) {
	cfg, ok := file.Agents[name]
	if !ok {
		return agent.State{}, fmt.Errorf("builder: unknown agent %q", name)
	}
	tools, ok := rs.Tools[name]
	if !ok {
		return agent.State{}, fmt.Errorf("builder: agent %q was not built by BuildAgents", name)
	}
	opts := agent.DefaultCompletionOptions()
	if cfg.Temperature != 0 {
		opts.Temperature = cfg.Temperature
	}
	if cfg.TopP != 0 {
		opts.TopP = cfg.TopP
	}
	return agent.NewState(query, tools, opts, Handoffs(cfg.Handoffs), cfg.SystemMessage), nil
}

// Handoffs converts config.HandoffConfig entries into agent.Handoff values.
func Handoffs(cfgs []config.HandoffConfig) []agent.Handoff {
	out := make([]agent.Handoff, len(cfgs))
	for i, c := range cfgs {
		out[i] = agent.Handoff{
			TargetAgent:           c.TargetAgent,
			TransferReason:        c.TransferReason,
			PreserveContext:       c.PreserveContext,
			TransferSystemMessage: c.TransferSystemMessage,
		}
	}
	return out
}

func contextWindowFromConfig(cfg config.ContextWindowConfig) agent.ContextWindowConfig {
	out := agent.ContextWindowConfig{
		PreserveSystemMessage: cfg.PreserveSystemMessage,
		MinRecentTurns:        cfg.MinRecentTurns,
		Strategy:              agent.PruningStrategyKind(cfg.Strategy),
		RecentTurnsN:          cfg.RecentTurnsN,
		Headroom:              cfg.Headroom,
	}
	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		out.MaxTokens = &maxTokens
	}
	if cfg.MaxMessages > 0 {
		maxMessages := cfg.MaxMessages
		out.MaxMessages = &maxMessages
	}
	return out
}
