package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/agentflowhq/agentflow/logger"
)

// Completion is the blocking LLM response shape from spec §4.1/§6.
type Completion struct {
	ID       string
	Created  int64
	Content  string
	Message  Message
	ToolCalls []ToolCall
	Usage    *Usage
}

// Usage mirrors the token accounting an LLM Client may report.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// StreamedChunk is one piece of a streamed completion, per spec §6.
type StreamedChunk struct {
	ID           string
	Content      string
	ToolCall     *ToolCall
	FinishReason string
}

// Client is the LLM Client contract (C1). It is declared here, not in
// package llm, so that agent has no import-time dependency on any concrete
// provider SDK — package llm's Client implementations satisfy this.
type Client interface {
	Complete(ctx context.Context, conversation Conversation, opts CompletionOptions) (Completion, error)
	StreamComplete(ctx context.Context, conversation Conversation, opts CompletionOptions, onChunk func(StreamedChunk)) (Completion, error)
	ContextWindow() int
	ReserveCompletion() int
}

// DefaultMaxSteps is the step budget used when a Run call passes zero,
// matching spec §4.5 ("Default budget: 50 steps").
const DefaultMaxSteps = 50

// Unlimited, passed as maxSteps, disables the step budget entirely
// ("None means unlimited").
const Unlimited = -1

// RunOptions configures a single Run/RunWithEvents/ContinueConversation
// invocation.
type RunOptions struct {
	MaxSteps     int // 0 => DefaultMaxSteps, Unlimited => no budget
	TracePath    string
	Debug        bool
	InputGuardrails  []Guardrail
	OutputGuardrails []Guardrail
	// ToolStrategy selects how a step's tool calls are dispatched when
	// state.Tools() implements BatchToolRegistry. Ignored for a plain
	// ToolRegistry, which is always called sequentially.
	ToolStrategy ToolDispatchStrategy
}

func (o RunOptions) maxSteps() int {
	if o.MaxSteps == 0 {
		return DefaultMaxSteps
	}
	return o.MaxSteps
}

// Runner drives the Agent Loop state machine (C5) for one agent identity.
// A Runner is stateless and safe to reuse across runs; all mutable state
// lives in the State values it threads through Run.
type Runner struct {
	name   string
	client Client
	tools  ToolRegistry
	// resolveTarget looks up the Runner for a handoff target agent by name.
	// Supplied by the caller that owns the full agent registry (this
	// package does not itself maintain one, matching spec's framing of
	// Handoff as referencing "the target agent's identity", not a
	// registry this package owns).
	resolveTarget func(agentID string) (*Runner, bool)
	metrics       *Metrics
}

// NewRunner builds a Runner. tools is this agent's own registry, used when
// another agent hands off to it. resolveTarget may be nil if this agent
// never declares handoffs.
func NewRunner(name string, client Client, tools ToolRegistry, resolveTarget func(string) (*Runner, bool)) *Runner {
	return &Runner{name: name, client: client, tools: tools, resolveTarget: resolveTarget, metrics: newMetrics(name)}
}

// Name returns this Runner's agent identity.
func (r *Runner) Name() string { return r.name }

// Tools returns the ToolRegistry this Runner was constructed with, for
// callers building a State to pass to Run/RunWithEvents directly.
func (r *Runner) Tools() ToolRegistry { return r.tools }

// Run executes the state machine to a terminal state and returns the final
// State. It never returns a non-terminal State except when ctx is
// cancelled mid-step, in which case it returns the partial state with
// status Failed and a wrapped context error, per §5 "Cancellation".
func (r *Runner) Run(ctx context.Context, state State, opts RunOptions) (State, error) {
	return r.run(ctx, state, opts, nil)
}

// RunWithEvents behaves like Run but additionally emits ordered lifecycle
// events to onEvent, per spec §4.5 "Streaming variant". onEvent is called
// synchronously on the same goroutine driving the loop; it must not block
// indefinitely.
func (r *Runner) RunWithEvents(ctx context.Context, state State, opts RunOptions, onEvent func(Event)) (State, error) {
	return r.run(ctx, state, opts, onEvent)
}

// ContinueConversation appends newUserMessage to a terminal prevState,
// resets it to InProgress with cleared logs, optionally prunes it, and
// runs. Per spec §4.5, calling this on a non-terminal state is an error.
func (r *Runner) ContinueConversation(ctx context.Context, prevState State, newUserMessage string, pruneConfig *ContextWindowConfig, opts RunOptions) (State, error) {
	if !prevState.status.Terminal() {
		return State{}, &ValidationError{Field: "agentState", Message: fmt.Sprintf("cannot continue a non-terminal state (status=%s)", prevState.status)}
	}
	next := prevState.
		AddMessage(NewUserMessage(newUserMessage)).
		WithStatus(InProgress()).
		ClearLogs()
	if pruneConfig != nil {
		pruned, err := Prune(next, *pruneConfig, r.client)
		if err != nil {
			return State{}, fmt.Errorf("agent: prune before continuation: %w", err)
		}
		next = pruned
	}
	return r.run(ctx, next, opts, nil)
}

// ValidationError mirrors spec §7's ValidationError(field, message).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

func (r *Runner) run(ctx context.Context, state State, opts RunOptions, onEvent func(Event)) (State, error) {
	emit := onEvent
	if emit == nil {
		emit = func(Event) {}
	}

	var tracer *TraceWriter
	if opts.TracePath != "" {
		tw, err := NewTraceWriter(opts.TracePath)
		if err != nil {
			return state, fmt.Errorf("agent: open trace file: %w", err)
		}
		defer tw.Close()
		tracer = tw
	}

	remaining := opts.maxSteps()

	if state.status.Kind == StatusInProgress && len(state.conversation) > 0 {
		guarded, failed := applyInputGuardrails(state, opts.InputGuardrails, emit)
		if failed {
			return guarded, fmt.Errorf("agent: input guardrail blocked the run")
		}
		state = guarded
	}

	emit(Event{Kind: EventAgentStarted, AgentID: r.name})
	if tracer != nil {
		tracer.WriteHeader(state)
	}

	for {
		if ctx.Err() != nil {
			state = state.WithStatus(Failed(ctx.Err().Error())).Log("[system] Run cancelled")
			emit(Event{Kind: EventAgentFailed, AgentID: r.name, Error: ctx.Err().Error()})
			return state, ctx.Err()
		}

		if state.status.Terminal() {
			break
		}

		if state.status.Kind == StatusHandoffRequested {
			next, err := r.runHandoff(ctx, state, remaining, opts, emit, tracer)
			return next, err
		}

		if state.status.Kind == StatusInProgress && remaining != Unlimited && remaining <= 0 {
			state = state.WithStatus(Failed("Maximum step limit reached")).Log("[system] Step limit reached")
			emit(Event{Kind: EventAgentFailed, AgentID: r.name, Error: "Maximum step limit reached"})
			break
		}

		stepStart := time.Now()
		emit(Event{Kind: EventStepStarted, AgentID: r.name})
		if opts.Debug {
			logger.Get(ctx).Debug("agent step starting", "agent_id", r.name, "status", state.status.Kind, "remaining_steps", remaining)
		}

		switch state.status.Kind {
		case StatusInProgress:
			newState, consumed, err := r.runModelStep(ctx, state, onEvent != nil, emit, tracer)
			if err != nil {
				// Per spec §7: the streaming variant transitions to Failed
				// and emits AgentFailed; the non-streaming variant returns
				// the error directly, leaving status untouched.
				if onEvent == nil {
					r.metrics.observeStep(time.Since(stepStart), false)
					return state, err
				}
				newState = newState.WithStatus(Failed(err.Error()))
				emit(Event{Kind: EventAgentFailed, AgentID: r.name, Error: err.Error()})
				r.metrics.observeStep(time.Since(stepStart), false)
				if tracer != nil {
					tracer.WriteTransition(newState)
				}
				return newState, nil
			}
			if consumed {
				remaining = decrementBudget(remaining)
			}
			state = newState

		case StatusWaitingForTools:
			newState, err := r.runToolStep(ctx, state, opts.ToolStrategy, emit, tracer)
			if err != nil {
				newState = newState.WithStatus(Failed(err.Error()))
				emit(Event{Kind: EventAgentFailed, AgentID: r.name, Error: err.Error()})
				r.metrics.observeStep(time.Since(stepStart), false)
				if tracer != nil {
					tracer.WriteTransition(newState)
				}
				return newState, nil
			}
			state = newState

		default:
			panic(fmt.Sprintf("agent: unreachable loop status %s", state.status.Kind))
		}

		emit(Event{Kind: EventStepCompleted, AgentID: r.name, HasToolCalls: state.status.Kind == StatusWaitingForTools})
		r.metrics.observeStep(time.Since(stepStart), true)
		if tracer != nil {
			tracer.WriteTransition(state)
		}
	}

	if state.status.Kind == StatusComplete {
		guarded, failed := applyOutputGuardrails(state, opts.OutputGuardrails, emit)
		if failed {
			state = guarded.WithStatus(Failed("output guardrail blocked the response"))
			emit(Event{Kind: EventAgentFailed, AgentID: r.name, Error: "output guardrail blocked the response"})
		} else {
			state = guarded
		}
	}

	if state.status.Kind == StatusComplete {
		emit(Event{Kind: EventAgentCompleted, AgentID: r.name})
	}
	if tracer != nil {
		tracer.WriteFinal(state)
	}
	r.metrics.observeTerminal(state.status.Kind)
	return state, nil
}

// decrementBudget applies one step-budget decrement, leaving Unlimited
// untouched.
func decrementBudget(remaining int) int {
	if remaining == Unlimited {
		return Unlimited
	}
	return remaining - 1
}

// runModelStep performs the InProgress -> {WaitingForTools, Complete,
// Failed} transition: one LLM call, possibly streamed.
func (r *Runner) runModelStep(ctx context.Context, state State, streaming bool, emit func(Event), tracer *TraceWriter) (State, bool, error) {
	conv := state.ToAPIConversation()
	opts := state.completionOptions
	opts.Tools = state.tools.Definitions()
	for _, h := range state.availableHandoffs {
		opts.Tools = append(opts.Tools, h.ToolDefinition())
	}

	var completion Completion
	var err error
	if !streaming {
		completion, err = r.client.Complete(ctx, conv, opts)
	} else {
		var textBuf []byte
		completion, err = r.client.StreamComplete(ctx, conv, opts, func(chunk StreamedChunk) {
			if chunk.Content != "" {
				textBuf = append(textBuf, chunk.Content...)
				emit(Event{Kind: EventTextDelta, AgentID: r.name, Delta: chunk.Content})
			}
			if chunk.FinishReason != "" && len(textBuf) > 0 {
				emit(Event{Kind: EventTextComplete, AgentID: r.name, Content: string(textBuf)})
			}
		})
	}
	if err != nil {
		return state, false, err
	}

	assistantMsg := NewAssistantMessage(completion.Content, completion.ToolCalls)
	next := state.AddMessage(assistantMsg)

	if len(completion.ToolCalls) == 0 {
		return next.WithStatus(Complete()), true, nil
	}
	return next.WithStatus(WaitingForTools()), true, nil
}

// runToolStep performs the WaitingForTools -> {HandoffRequested, InProgress,
// Failed} transition: dispatch every pending tool call and append the
// results. When state.Tools() implements BatchToolRegistry, strategy
// selects sequential/parallel/parallel-with-limit dispatch (spec §4.2
// executeAll); a plain ToolRegistry is always called one call at a time.
// Either way the result messages are appended in the same order as calls.
func (r *Runner) runToolStep(ctx context.Context, state State, strategy ToolDispatchStrategy, emit func(Event), tracer *TraceWriter) (State, error) {
	assistantIdx := -1
	for i := len(state.conversation) - 1; i >= 0; i-- {
		if state.conversation[i].Role == RoleAssistant {
			assistantIdx = i
			break
		}
	}
	if assistantIdx == -1 {
		return state, fmt.Errorf("agent: waiting for tools but no assistant message found")
	}
	calls := state.conversation[assistantIdx].ToolCalls

	for _, tc := range calls {
		emit(Event{Kind: EventToolCallStarted, AgentID: r.name, ToolCallID: tc.ID, ToolName: tc.Name, Arguments: string(tc.Arguments)})
	}

	start := time.Now()
	results := make([]Message, len(calls))
	if batch, ok := state.tools.(BatchToolRegistry); ok && strategy.Parallel {
		for i, res := range batch.ExecuteBatch(ctx, calls, strategy) {
			tc := calls[i]
			if res.Err != nil {
				emit(Event{Kind: EventToolCallFailed, AgentID: r.name, ToolCallID: tc.ID, ToolName: tc.Name, Error: string(res.Err.ToJSON())})
				results[i] = NewToolResultMessage(tc.ID, string(res.Err.ToJSON()), true)
				continue
			}
			emit(Event{Kind: EventToolCallCompleted, AgentID: r.name, ToolCallID: tc.ID, ToolName: tc.Name, Result: string(res.Result), Success: true, DurationMs: time.Since(start).Milliseconds()})
			results[i] = NewToolResultMessage(tc.ID, string(res.Result), false)
		}
	} else {
		for i, tc := range calls {
			callStart := time.Now()
			result, toolErr := state.tools.Execute(ctx, tc.Name, tc.Arguments)
			durationMs := time.Since(callStart).Milliseconds()
			if toolErr != nil {
				emit(Event{Kind: EventToolCallFailed, AgentID: r.name, ToolCallID: tc.ID, ToolName: tc.Name, Error: string(toolErr.ToJSON())})
				results[i] = NewToolResultMessage(tc.ID, string(toolErr.ToJSON()), true)
				continue
			}
			emit(Event{Kind: EventToolCallCompleted, AgentID: r.name, ToolCallID: tc.ID, ToolName: tc.Name, Result: string(result), Success: true, DurationMs: durationMs})
			results[i] = NewToolResultMessage(tc.ID, string(result), false)
		}
	}

	next := state.AddMessages(results...)

	if h, reason, ok := detectHandoff(calls, state.availableHandoffs); ok {
		return next.WithStatus(HandoffRequested(h, reason)), nil
	}
	return next.WithStatus(InProgress()), nil
}

// detectHandoff scans calls (in order) for the first one whose name
// matches a configured Handoff, per spec §4.5 "Handoff detection".
func detectHandoff(calls []ToolCall, available []Handoff) (Handoff, string, bool) {
	for _, tc := range calls {
		if !IsHandoffToolName(tc.Name) {
			continue
		}
		if h, ok := findHandoff(available, tc.Name); ok {
			return h, parseHandoffReason(tc.Arguments), true
		}
	}
	return Handoff{}, "", false
}

// runHandoff implements "Handoff execution" (spec §4.5), unifying the
// step-budget accounting per the Open Question decision in DESIGN.md:
// the target always receives the *remaining* budget, in both the
// streaming and non-streaming paths.
func (r *Runner) runHandoff(ctx context.Context, state State, remaining int, opts RunOptions, emit func(Event), tracer *TraceWriter) (State, error) {
	h := state.status.Handoff
	reason := state.status.Reason

	emit(Event{Kind: EventHandoffStarted, AgentID: r.name, ToolName: h.TargetAgent, Reason: reason, PreserveContext: h.PreserveContext})

	if r.resolveTarget == nil {
		err := fmt.Errorf("agent: handoff to %q requested but no target resolver is configured", h.TargetAgent)
		failed := state.WithStatus(Failed(err.Error())).Log(handoffLogLine(h, reason))
		emit(Event{Kind: EventHandoffCompleted, AgentID: r.name, ToolName: h.TargetAgent, Success: false})
		return failed, err
	}
	target, ok := r.resolveTarget(h.TargetAgent)
	if !ok {
		err := fmt.Errorf("agent: handoff target %q not found", h.TargetAgent)
		failed := state.WithStatus(Failed(err.Error())).Log(handoffLogLine(h, reason))
		emit(Event{Kind: EventHandoffCompleted, AgentID: r.name, ToolName: h.TargetAgent, Success: false})
		return failed, err
	}

	targetState := buildHandoffState(state, h, reason, target.defaultTools())

	targetOpts := opts
	targetOpts.MaxSteps = remaining
	if remaining == Unlimited {
		targetOpts.MaxSteps = Unlimited
	}

	result, err := target.run(ctx, targetState, targetOpts, emit)
	emit(Event{Kind: EventHandoffCompleted, AgentID: r.name, ToolName: h.TargetAgent, Success: err == nil && result.status.Kind == StatusComplete})
	return result, err
}

// defaultTools exposes the tools a Runner's own agent exposes when it is
// itself a handoff target and the caller built targetState without an
// explicit registry override. In practice callers construct the target's
// initial State via buildHandoffState with the target's own registry
// already attached through NewState at agent-construction time; this
// accessor exists so runHandoff can thread that registry through without
// requiring callers to pass it twice.
func (r *Runner) defaultTools() ToolRegistry {
	return r.tools
}
