package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Handoff declares that an agent may transfer control to targetAgent. The
// synthesized tool name is handoff_to_agent_<targetAgent>, matching the
// wire contract in spec §6; identity is derived purely from TargetAgent.
type Handoff struct {
	TargetAgent           string `json:"targetAgent"`
	TransferReason         string `json:"transferReason,omitempty"`
	PreserveContext        bool   `json:"preserveContext"`
	TransferSystemMessage  bool   `json:"transferSystemMessage"`
}

const handoffToolPrefix = "handoff_to_agent_"

// ToolName returns the synthesized tool name an LLM must emit to request
// this handoff.
func (h Handoff) ToolName() string {
	return handoffToolPrefix + h.TargetAgent
}

// IsHandoffToolName reports whether name looks like a synthesized handoff
// tool call, independent of whether it matches any configured Handoff.
func IsHandoffToolName(name string) bool {
	return strings.HasPrefix(name, handoffToolPrefix)
}

// ToolDefinition builds the ToolDefinition the registry sees for this
// handoff: a single required "reason" string field, per spec §6.
func (h Handoff) ToolDefinition() ToolDefinitionSpec {
	desc := "Hand off this query to a specialist agent."
	if h.TransferReason != "" {
		desc += " " + h.TransferReason
	}
	schema := json.RawMessage(`{
		"type": "object",
		"properties": { "reason": { "type": "string" } },
		"required": ["reason"]
	}`)
	return ToolDefinitionSpec{Name: h.ToolName(), Description: desc, Schema: schema}
}

// ToolDefinitionSpec is the subset of tool.Definition the agent package
// needs to describe a synthesized handoff tool without importing the tool
// package (which would create an import cycle: tool registries are
// supplied to the agent, not the reverse).
type ToolDefinitionSpec struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// findHandoff looks up the Handoff matching a tool call name among the
// available handoffs, returning ok=false if name isn't a recognized handoff
// tool.
func findHandoff(available []Handoff, name string) (Handoff, bool) {
	for _, h := range available {
		if h.ToolName() == name {
			return h, true
		}
	}
	return Handoff{}, false
}

// parseHandoffReason extracts the "reason" argument from a handoff tool
// call's raw JSON arguments, falling back to the documented default.
func parseHandoffReason(args json.RawMessage) string {
	const defaultReason = "No reason provided"
	if len(args) == 0 {
		return defaultReason
	}
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(args, &payload); err != nil || payload.Reason == "" {
		return defaultReason
	}
	return payload.Reason
}

// buildHandoffState constructs the target agent's initial state per spec
// §4.5 "Handoff execution": a fresh log trail seeded with the line
// describing why the handoff happened, prepended ahead of anything the
// target agent logs as it runs.
func buildHandoffState(source State, h Handoff, reason string, targetTools ToolRegistry) State {
	var conv Conversation
	if h.PreserveContext {
		conv = source.conversation
	} else if last, ok := lastUserMessage(source.conversation); ok {
		conv = Conversation{last}
	}

	var sysMsg *string
	if h.TransferSystemMessage {
		sysMsg = source.systemMessage
	}

	return State{
		conversation:      conv,
		tools:             targetTools,
		initialQuery:       source.initialQuery,
		status:            InProgress(),
		logs:              []string{handoffLogLine(h, reason)},
		systemMessage:     sysMsg,
		completionOptions: source.completionOptions,
		availableHandoffs: nil,
	}
}

func lastUserMessage(c Conversation) (Message, bool) {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].Role == RoleUser {
			return c[i], true
		}
	}
	return Message{}, false
}

func handoffLogLine(h Handoff, reason string) string {
	return fmt.Sprintf("[system] Handoff to agent %q requested, reason: %s", h.TargetAgent, reason)
}
