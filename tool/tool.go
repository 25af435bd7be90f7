// Package tool implements the Tool Registry (C2): a name-keyed collection
// of callable tools with JSON-schema validated arguments, dispatched
// sequentially or in parallel while preserving caller-supplied order.
package tool

import (
	"context"
	"encoding/json"

	"github.com/agentflowhq/agentflow/agent"
)

// Handler executes a tool's action. The arguments are passed through
// exactly as the LLM emitted them, never pre-parsed into a language-level
// type, matching spec §3's ToolCall.arguments contract.
type Handler func(ctx context.Context, arguments json.RawMessage) (json.RawMessage, error)

// Definition is one entry in a Registry: a name, an LLM-facing description,
// an optional JSON schema for its arguments, and the handler that runs it.
type Definition struct {
	Name        string
	Description string
	Schema      json.RawMessage
	Handler     Handler
}

func (d Definition) spec() agent.ToolDefinitionSpec {
	return agent.ToolDefinitionSpec{Name: d.Name, Description: d.Description, Schema: d.Schema}
}

// Request is a single tool invocation as dispatched by the agent loop.
type Request struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Response pairs a Request's ID with its outcome. Exactly one of Result or
// Err is set.
type Response struct {
	ID     string
	Result json.RawMessage
	Err    *agent.ToolError
}
