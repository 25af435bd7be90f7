package agent

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolRegistry is the subset of the tool package's registry that the agent
// loop depends on. Declaring it here (rather than importing package tool)
// keeps agent free of a dependency on tool's schema/execution machinery;
// the concrete *tool.Registry satisfies it.
type ToolRegistry interface {
	Definitions() []ToolDefinitionSpec
	Execute(ctx context.Context, name string, arguments json.RawMessage) (json.RawMessage, *ToolError)
}

// ToolDispatchStrategy selects how a BatchToolRegistry executes the tool
// calls of a single step, per spec §4.2's executeAll(requests, strategy).
// The zero value is sequential dispatch.
type ToolDispatchStrategy struct {
	Parallel bool
	Limit    int // 0 with Parallel true => unbounded parallel
}

// ToolResult pairs a ToolCall's ID with its outcome from a BatchToolRegistry.
type ToolResult struct {
	ID     string
	Result json.RawMessage
	Err    *ToolError
}

// BatchToolRegistry is an optional capability a ToolRegistry may implement
// to dispatch every pending tool call of a step together, honoring a
// sequential/parallel/parallel-with-limit strategy, instead of looping over
// Execute one call at a time. runToolStep type-asserts for it and falls
// back to sequential Execute calls when a registry doesn't implement it.
// Output order always matches the input calls order regardless of strategy.
type BatchToolRegistry interface {
	ToolRegistry
	ExecuteBatch(ctx context.Context, calls []ToolCall, strategy ToolDispatchStrategy) []ToolResult
}

// ToolError mirrors the wire shape in spec §6:
// {"isError":true,"type":<kind>,"message":<string>}.
type ToolError struct {
	Type    ToolErrorKind `json:"type"`
	Message string        `json:"message"`
}

type ToolErrorKind string

const (
	ToolErrorNotFound     ToolErrorKind = "NotFound"
	ToolErrorBadArguments ToolErrorKind = "BadArguments"
	ToolErrorHandler      ToolErrorKind = "Handler"
	ToolErrorTimeout      ToolErrorKind = "Timeout"
)

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ToJSON renders the stable wire shape described in spec §6.
func (e *ToolError) ToJSON() json.RawMessage {
	out, _ := json.Marshal(struct {
		IsError bool          `json:"isError"`
		Type    ToolErrorKind `json:"type"`
		Message string        `json:"message"`
	}{true, e.Type, e.Message})
	return out
}

// Reasoning is the four-valued effort hint from CompletionOptions.
type Reasoning string

const (
	ReasoningNone   Reasoning = "none"
	ReasoningLow    Reasoning = "low"
	ReasoningMedium Reasoning = "medium"
	ReasoningHigh   Reasoning = "high"
)

// CompletionOptions configures an LLM completion request, per spec §3.
// Optional numeric fields use pointers so "unset" survives a JSON
// round-trip distinctly from zero, matching C4's serialization invariant.
type CompletionOptions struct {
	Temperature      float64          `json:"temperature"`
	TopP             float64          `json:"topP"`
	MaxTokens        *int             `json:"maxTokens,omitempty"`
	PresencePenalty  float64          `json:"presencePenalty"`
	FrequencyPenalty float64          `json:"frequencyPenalty"`
	Reasoning        *Reasoning       `json:"reasoning,omitempty"`
	BudgetTokens     *int             `json:"budgetTokens,omitempty"`
	Tools            []ToolDefinitionSpec `json:"-"`
}

// DefaultCompletionOptions matches the teacher's provider defaults.
func DefaultCompletionOptions() CompletionOptions {
	return CompletionOptions{Temperature: 0.7, TopP: 1.0}
}

// State is the immutable value described in spec §3/§4.4. Every mutator
// returns a new State; the receiver is never modified. Fields are
// unexported so construction always goes through NewState/the mutators,
// keeping the invariants (append-only conversation, single owner per run)
// enforceable.
type State struct {
	conversation      Conversation
	tools             ToolRegistry
	initialQuery      *string
	status            AgentStatus
	logs              []string
	systemMessage     *string
	completionOptions CompletionOptions
	availableHandoffs []Handoff
}

// NewState builds the initial state for a fresh run: the system message (if
// any) is NOT added to the conversation directly — it is materialized by
// ToAPIConversation — and the conversation starts with a single user
// message carrying query.
func NewState(query string, tools ToolRegistry, opts CompletionOptions, handoffs []Handoff, systemMessage string) State {
	var sysPtr *string
	if systemMessage != "" {
		sysPtr = &systemMessage
	}
	q := query
	return State{
		conversation:      Conversation{NewUserMessage(query)},
		tools:             tools,
		initialQuery:      &q,
		status:            InProgress(),
		completionOptions: opts,
		availableHandoffs: handoffs,
		systemMessage:     sysPtr,
	}
}

func (s State) Conversation() Conversation          { return s.conversation }
func (s State) Tools() ToolRegistry                 { return s.tools }
func (s State) Status() AgentStatus                 { return s.status }
func (s State) Logs() []string                      { return append([]string(nil), s.logs...) }
func (s State) SystemMessage() (string, bool) {
	if s.systemMessage == nil {
		return "", false
	}
	return *s.systemMessage, true
}
func (s State) CompletionOptions() CompletionOptions { return s.completionOptions }
func (s State) AvailableHandoffs() []Handoff         { return append([]Handoff(nil), s.availableHandoffs...) }
func (s State) InitialQuery() (string, bool) {
	if s.initialQuery == nil {
		return "", false
	}
	return *s.initialQuery, true
}

// AddMessage returns a new State with msg appended to the conversation.
func (s State) AddMessage(msg Message) State {
	next := s
	next.conversation = s.conversation.WithAppended(msg)
	return next
}

// AddMessages returns a new State with msgs appended, in order.
func (s State) AddMessages(msgs ...Message) State {
	next := s
	next.conversation = s.conversation.WithAppended(msgs...)
	return next
}

// WithStatus returns a new State with status replaced.
func (s State) WithStatus(status AgentStatus) State {
	next := s
	next.status = status
	return next
}

// Log returns a new State with line appended to the log.
func (s State) Log(line string) State {
	next := s
	next.logs = append(append([]string(nil), s.logs...), line)
	return next
}

// WithConversation returns a new State whose conversation is replaced
// wholesale; used by the pruner (C6), which must be able to rewrite
// history rather than only append to it.
func (s State) WithConversation(c Conversation) State {
	next := s
	next.conversation = c
	return next
}

// ClearLogs returns a new State with an empty log, used by
// continueConversation per spec §4.5.
func (s State) ClearLogs() State {
	next := s
	next.logs = nil
	return next
}

// Clone deep-copies s so a caller may branch a conversation without
// aliasing the receiver's slices (SPEC_FULL §3, C4).
func (s State) Clone() State {
	next := s
	next.conversation = append(Conversation(nil), s.conversation...)
	next.logs = append([]string(nil), s.logs...)
	next.availableHandoffs = append([]Handoff(nil), s.availableHandoffs...)
	if s.initialQuery != nil {
		q := *s.initialQuery
		next.initialQuery = &q
	}
	if s.systemMessage != nil {
		m := *s.systemMessage
		next.systemMessage = &m
	}
	return next
}

// ToAPIConversation materializes the conversation with the optional system
// message prepended as the first element, the shape an LLM Client expects.
func (s State) ToAPIConversation() Conversation {
	if s.systemMessage == nil {
		return append(Conversation(nil), s.conversation...)
	}
	out := make(Conversation, 0, len(s.conversation)+1)
	out = append(out, NewSystemMessage(*s.systemMessage))
	out = append(out, s.conversation...)
	return out
}

// stateWire is the JSON projection of State. Tools is intentionally
// omitted: a ToolRegistry is runtime wiring, not serializable state, and
// the spec's round-trip invariant (§8 property 4) is scoped to
// conversation/status/logs/options, which this struct covers exactly.
type stateWire struct {
	Conversation      Conversation        `json:"conversation"`
	InitialQuery      *string             `json:"initialQuery,omitempty"`
	Status            AgentStatus         `json:"status"`
	Logs              []string            `json:"logs"`
	SystemMessage     *string             `json:"systemMessage,omitempty"`
	CompletionOptions CompletionOptions   `json:"completionOptions"`
	AvailableHandoffs []Handoff           `json:"availableHandoffs"`
}

// ToJSON serializes s per spec §4.4. The ToolRegistry is not part of the
// wire format (see stateWire); FromJSON requires the caller to supply it
// back on restore, the same way a caller constructs the initial State.
func (s State) ToJSON() ([]byte, error) {
	w := stateWire{
		Conversation:      s.conversation,
		InitialQuery:      s.initialQuery,
		Status:            s.status,
		Logs:              s.logs,
		SystemMessage:     s.systemMessage,
		CompletionOptions: s.completionOptions,
		AvailableHandoffs: s.availableHandoffs,
	}
	if w.Conversation == nil {
		w.Conversation = Conversation{}
	}
	if w.Logs == nil {
		w.Logs = []string{}
	}
	if w.AvailableHandoffs == nil {
		w.AvailableHandoffs = []Handoff{}
	}
	return json.Marshal(w)
}

// FromJSON deserializes the wire shape produced by ToJSON, reattaching
// tools (which is never part of the wire format). Unknown fields in data
// are tolerated by encoding/json's default decode behavior; missing
// optional fields (reasoning, budgetTokens) deserialize as nil pointers,
// i.e. "unset", matching spec §4.4.
func FromJSON(data []byte, tools ToolRegistry) (State, error) {
	var w stateWire
	if err := json.Unmarshal(data, &w); err != nil {
		return State{}, fmt.Errorf("agent: decode state: %w", err)
	}
	return State{
		conversation:      w.Conversation,
		tools:             tools,
		initialQuery:      w.InitialQuery,
		status:            w.Status,
		logs:              w.Logs,
		systemMessage:     w.SystemMessage,
		completionOptions: w.CompletionOptions,
		availableHandoffs: w.AvailableHandoffs,
	}, nil
}
