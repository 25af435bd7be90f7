// Package mcptool adapts an MCP (Model Context Protocol) server's tools into
// tool.Definitions that can be registered with a tool.Registry. Connection
// is established lazily on the first call to Load.
package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/agentflowhq/agentflow/tool"
)

// Transport selects how Load connects to the MCP server.
type Transport string

const (
	TransportStdio          Transport = "stdio"
	TransportSSE            Transport = "sse"
	TransportStreamableHTTP Transport = "streamable-http"
)

// Config configures one MCP server connection.
type Config struct {
	Name      string
	Transport Transport

	// URL is required for TransportSSE/TransportStreamableHTTP.
	URL string

	// Command/Args/Env are required for TransportStdio.
	Command string
	Args    []string
	Env     map[string]string

	// Filter limits which server-advertised tools get registered; empty
	// means all of them.
	Filter []string

	// InitTimeout bounds the initialize+list-tools handshake.
	InitTimeout time.Duration
}

// Source lazily connects to one MCP server and exposes its tools as
// tool.Definitions. A Source is safe for concurrent use; the connection is
// established at most once.
type Source struct {
	cfg Config

	mu        sync.Mutex
	client    *client.Client
	connected bool
}

// NewSource validates cfg and returns an unconnected Source.
func NewSource(cfg Config) (*Source, error) {
	switch cfg.Transport {
	case TransportStdio:
		if cfg.Command == "" {
			return nil, fmt.Errorf("mcptool: command is required for stdio transport")
		}
	case TransportSSE, TransportStreamableHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("mcptool: url is required for %s transport", cfg.Transport)
		}
	default:
		return nil, fmt.Errorf("mcptool: unknown transport %q", cfg.Transport)
	}
	if cfg.InitTimeout == 0 {
		cfg.InitTimeout = 30 * time.Second
	}
	return &Source{cfg: cfg}, nil
}

// Load connects (if not already connected) and returns a tool.Definition
// per server-advertised tool, filtered by cfg.Filter.
func (s *Source) Load(ctx context.Context) ([]tool.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		if err := s.connect(ctx); err != nil {
			return nil, fmt.Errorf("mcptool: connect to %q: %w", s.cfg.Name, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.InitTimeout)
	defer cancel()

	listResp, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("mcptool: list tools on %q: %w", s.cfg.Name, err)
	}

	filter := filterSet(s.cfg.Filter)
	defs := make([]tool.Definition, 0, len(listResp.Tools))
	for _, t := range listResp.Tools {
		if filter != nil && !filter[t.Name] {
			continue
		}
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("mcptool: marshal schema for %q: %w", t.Name, err)
		}
		defs = append(defs, tool.Definition{
			Name:        t.Name,
			Description: t.Description,
			Schema:      schema,
			Handler:     s.handlerFor(t.Name),
		})
	}

	slog.Info("mcptool: loaded server", "name", s.cfg.Name, "transport", s.cfg.Transport, "tools", len(defs))
	return defs, nil
}

func (s *Source) connect(ctx context.Context) error {
	var c *client.Client
	var err error
	switch s.cfg.Transport {
	case TransportStdio:
		c, err = client.NewStdioMCPClient(s.cfg.Command, envSlice(s.cfg.Env), s.cfg.Args...)
	case TransportSSE:
		c, err = client.NewSSEMCPClient(s.cfg.URL)
	case TransportStreamableHTTP:
		c, err = client.NewStreamableHttpClient(s.cfg.URL)
	}
	if err != nil {
		return err
	}

	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, s.cfg.InitTimeout)
	defer cancel()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "agentflow", Version: "0.1.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := c.Initialize(initCtx, initReq); err != nil {
		c.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	s.client = c
	s.connected = true
	return nil
}

// handlerFor returns a tool.Handler that calls name on the connected MCP
// server, flattening the first text content block into the result (MCP
// tool results may carry multiple content blocks; agentflow tools return a
// single JSON value, so non-text blocks are dropped).
func (s *Source) handlerFor(name string) tool.Handler {
	return func(ctx context.Context, arguments json.RawMessage) (json.RawMessage, error) {
		var args map[string]any
		if len(arguments) > 0 {
			if err := json.Unmarshal(arguments, &args); err != nil {
				return nil, fmt.Errorf("mcptool: decode arguments for %q: %w", name, err)
			}
		}

		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = args

		resp, err := s.client.CallTool(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("mcptool: call %q: %w", name, err)
		}
		if resp.IsError {
			return nil, fmt.Errorf("mcptool: %q reported an error: %s", name, contentText(resp.Content))
		}
		return json.Marshal(map[string]any{"text": contentText(resp.Content)})
	}
}

// Close tears down the underlying connection, if one was established.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func contentText(content []mcp.Content) string {
	for _, c := range content {
		if tc, ok := mcp.AsTextContent(c); ok {
			return tc.Text
		}
	}
	return ""
}

func filterSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
