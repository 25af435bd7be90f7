package main

import (
	"fmt"

	"github.com/agentflowhq/agentflow/agent"
)

// lastAssistantText returns the most recent assistant message's content, if
// any, in a finished run's conversation.
func lastAssistantText(state agent.State) (string, bool) {
	conv := state.Conversation()
	for i := len(conv) - 1; i >= 0; i-- {
		if conv[i].Role == agent.RoleAssistant && conv[i].Content != "" {
			return conv[i].Content, true
		}
	}
	return "", false
}

// debugSummary renders one event as a single human-readable line, for the
// --debug/watch-less progress trail.
func debugSummary(ev agent.Event) string {
	switch ev.Kind {
	case agent.EventTextDelta:
		return ""
	case agent.EventTextComplete:
		return ev.Content
	case agent.EventToolCallStarted:
		return fmt.Sprintf("%s(%s)", ev.ToolName, ev.Arguments)
	case agent.EventToolCallCompleted:
		return fmt.Sprintf("%s -> %s (%dms)", ev.ToolName, ev.Result, ev.DurationMs)
	case agent.EventToolCallFailed:
		return fmt.Sprintf("%s failed: %s", ev.ToolName, ev.Result)
	case agent.EventHandoffStarted:
		return ev.Reason
	case agent.EventAgentFailed:
		return ev.Error
	case agent.EventInputGuardrailCompleted, agent.EventOutputGuardrailCompleted:
		return fmt.Sprintf("%s passed=%v", ev.GuardrailName, ev.Passed)
	default:
		return ""
	}
}
