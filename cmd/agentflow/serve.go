package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentflowhq/agentflow/builder"
	"github.com/agentflowhq/agentflow/config"
	"github.com/agentflowhq/agentflow/server"
)

// ServeCmd loads a config file, builds every configured agent and serves
// them over HTTP (SSE) and, if enabled, WebSocket, until interrupted.
type ServeCmd struct {
	Addr string `help:"Listen address, overriding the config file's server.addr." placeholder:"HOST:PORT"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	file, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runners, err := builder.BuildAgents(ctx, file)
	if err != nil {
		return fmt.Errorf("build agents: %w", err)
	}

	srv := builder.BuildServer(file, runners)

	addr := file.Server.Addr
	if c.Addr != "" {
		addr = c.Addr
	}
	if addr == "" {
		addr = ":8080"
	}

	slog.Info("serving agents", "addr", addr, "agents", runners.Runners.Count(), "websocket", file.Server.EnableWS)
	return server.ListenAndServe(ctx, addr, srv)
}
