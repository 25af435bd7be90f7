package agent

import "github.com/agentflowhq/agentflow/guardrail"

// Guardrail is re-exported from package guardrail so RunOptions callers
// don't need a second import for the common case; the agent loop only
// ever applies guardrails to the first/last message content, never to
// tool payloads.
type Guardrail = guardrail.Guardrail

// applyInputGuardrails runs opts' input guardrails over the first user
// message's content before the loop starts, per spec §4.3 ("Input
// guardrails run before the loop"). On Block failure it returns the
// original state unmodified and failed=true; the caller surfaces the
// error to the run's result per §7 ("Guardrail failure: short-circuits
// the whole run").
func applyInputGuardrails(state State, rails []Guardrail, emit func(Event)) (State, bool) {
	if len(rails) == 0 {
		return state, false
	}
	idx := -1
	for i, m := range state.conversation {
		if m.Role == RoleUser {
			idx = i
		}
	}
	if idx == -1 {
		return state, false
	}
	content := state.conversation[idx].Content
	for _, g := range rails {
		emit(Event{Kind: EventInputGuardrailStarted, GuardrailName: g.Name})
		res, err := guardrail.Apply(g, content)
		if err != nil {
			emit(Event{Kind: EventInputGuardrailCompleted, GuardrailName: g.Name, Passed: false})
			return state, true
		}
		content = res.Value
		emit(Event{Kind: EventInputGuardrailCompleted, GuardrailName: g.Name, Passed: true})
	}
	next := state
	msg := next.conversation[idx]
	msg.Content = content
	conv := append(Conversation(nil), next.conversation...)
	conv[idx] = msg
	next.conversation = conv
	return next, false
}

// applyOutputGuardrails runs opts' output guardrails over the last
// assistant message after the loop reaches Complete, per spec §4.3
// ("Output guardrails run on the last assistant message after the loop
// completes").
func applyOutputGuardrails(state State, rails []Guardrail, emit func(Event)) (State, bool) {
	if len(rails) == 0 {
		return state, false
	}
	idx := -1
	for i := len(state.conversation) - 1; i >= 0; i-- {
		if state.conversation[i].Role == RoleAssistant {
			idx = i
			break
		}
	}
	if idx == -1 {
		return state, false
	}
	content := state.conversation[idx].Content
	for _, g := range rails {
		emit(Event{Kind: EventOutputGuardrailStarted, GuardrailName: g.Name})
		res, err := guardrail.Apply(g, content)
		if err != nil {
			emit(Event{Kind: EventOutputGuardrailCompleted, GuardrailName: g.Name, Passed: false})
			return state, true
		}
		content = res.Value
		emit(Event{Kind: EventOutputGuardrailCompleted, GuardrailName: g.Name, Passed: true})
	}
	next := state
	msg := next.conversation[idx]
	msg.Content = content
	conv := append(Conversation(nil), next.conversation...)
	conv[idx] = msg
	next.conversation = conv
	return next, false
}
