package main

import (
	"context"
	"fmt"
	"os"

	"github.com/agentflowhq/agentflow/agent"
	"github.com/agentflowhq/agentflow/builder"
	"github.com/agentflowhq/agentflow/config"
)

// RunCmd loads a config file, builds its agents and runs one of them once,
// printing its final reply to stdout.
type RunCmd struct {
	Agent    string `arg:"" help:"Name of the agent to run, as declared under 'agents' in the config file."`
	Query    string `arg:"" help:"The user message to send."`
	MaxSteps int    `name:"max-steps" help:"Override the agent's configured step budget (0 = use config)."`
	Debug    bool   `help:"Print one line per step to stderr as the run progresses."`
	Trace    string `help:"Write a Markdown execution trace to this path." type:"path"`
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx := context.Background()

	file, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runners, err := builder.BuildAgents(ctx, file)
	if err != nil {
		return fmt.Errorf("build agents: %w", err)
	}

	runner, ok := runners.Runners.Get(c.Agent)
	if !ok {
		return fmt.Errorf("unknown agent %q", c.Agent)
	}

	state, err := runners.InitialState(file, c.Agent, c.Query)
	if err != nil {
		return err
	}

	opts := runners.RunOpts[c.Agent]
	if c.MaxSteps > 0 {
		opts.MaxSteps = c.MaxSteps
	}
	if c.Trace != "" {
		opts.TracePath = c.Trace
	}

	var final agent.State
	if c.Debug {
		final, err = runner.RunWithEvents(ctx, state, opts, func(ev agent.Event) {
			if line := debugSummary(ev); line != "" {
				fmt.Fprintf(os.Stderr, "[%s] %s\n", ev.Kind, line)
			}
		})
	} else {
		final, err = runner.Run(ctx, state, opts)
	}
	if err != nil {
		return err
	}

	reply, ok := lastAssistantText(final)
	if !ok {
		return fmt.Errorf("agent %q produced no reply (status %s)", c.Agent, final.Status())
	}
	fmt.Println(reply)
	return nil
}
