// Command agentflow is the CLI for the agentflow library: run a configured
// agent once, serve configured agents over HTTP/WebSocket, watch a run live
// in a terminal UI, or render a completed run's trace file.
//
// Usage:
//
//	agentflow run --config agentflow.yaml assistant "summarize this repo"
//	agentflow serve --config agentflow.yaml
//	agentflow watch --config agentflow.yaml assistant "summarize this repo"
//	agentflow trace ./run.trace.md
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/agentflowhq/agentflow/config"
	"github.com/agentflowhq/agentflow/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Run     RunCmd     `cmd:"" help:"Run one agent from a config file and print its reply."`
	Serve   ServeCmd   `cmd:"" help:"Serve configured agents over HTTP/WebSocket."`
	Watch   WatchCmd   `cmd:"" help:"Run one agent and watch its steps live in a terminal UI."`
	Trace   TraceCmd   `cmd:"" help:"Render a run's Markdown trace file."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to config file (YAML or TOML)." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

func main() {
	_ = config.LoadDotEnv()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("agentflow"),
		kong.Description("agentflow - run and serve composable LLM agents"),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}

	output := os.Stderr
	if cli.LogFile != "" {
		f, cleanup, openErr := logger.OpenLogFile(cli.LogFile)
		if openErr != nil {
			fmt.Fprintf(os.Stderr, "agentflow: open log file: %v\n", openErr)
			os.Exit(1)
		}
		defer cleanup()
		output = f
	}
	logger.Init(level, output, cli.LogFormat)

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
