package agent

// EventKind enumerates every event RunWithEvents may emit, per spec §4.5
// "Streaming variant".
type EventKind string

const (
	EventAgentStarted   EventKind = "AgentStarted"
	EventAgentCompleted EventKind = "AgentCompleted"
	EventAgentFailed    EventKind = "AgentFailed"

	EventStepStarted   EventKind = "StepStarted"
	EventStepCompleted EventKind = "StepCompleted"

	EventTextDelta    EventKind = "TextDelta"
	EventTextComplete EventKind = "TextComplete"

	EventToolCallStarted   EventKind = "ToolCallStarted"
	EventToolCallCompleted EventKind = "ToolCallCompleted"
	EventToolCallFailed    EventKind = "ToolCallFailed"

	EventInputGuardrailStarted    EventKind = "InputGuardrailStarted"
	EventInputGuardrailCompleted  EventKind = "InputGuardrailCompleted"
	EventOutputGuardrailStarted   EventKind = "OutputGuardrailStarted"
	EventOutputGuardrailCompleted EventKind = "OutputGuardrailCompleted"

	EventHandoffStarted   EventKind = "HandoffStarted"
	EventHandoffCompleted EventKind = "HandoffCompleted"
)

// Event is a single, totally-ordered notification from a run. Only the
// fields relevant to Kind are populated; the rest are zero.
type Event struct {
	Kind    EventKind
	AgentID string

	// StepCompleted
	HasToolCalls bool

	// TextDelta / TextComplete
	Delta   string
	Content string

	// ToolCall*
	ToolCallID string
	ToolName   string
	Arguments  string
	Result     string
	Success    bool
	DurationMs int64

	// *Guardrail*
	GuardrailName string
	Passed        bool

	// Handoff*
	Reason          string
	PreserveContext bool

	// AgentFailed
	Error string
}
