package agent

import (
	"encoding/json"
	"fmt"
)

// StatusKind discriminates the AgentStatus sum type on the wire and in
// switch statements.
type StatusKind string

const (
	StatusInProgress       StatusKind = "in_progress"
	StatusWaitingForTools  StatusKind = "waiting_for_tools"
	StatusComplete         StatusKind = "complete"
	StatusFailed           StatusKind = "failed"
	StatusHandoffRequested StatusKind = "handoff_requested"
)

// Terminal reports whether k admits no further transitions.
func (k StatusKind) Terminal() bool {
	return k == StatusComplete || k == StatusFailed
}

// AgentStatus is the closed tagged-sum status of an AgentState. Exactly one
// of the payload fields is populated, matching Kind; the zero value is
// StatusInProgress.
type AgentStatus struct {
	Kind StatusKind

	// Failed payload.
	Err string

	// HandoffRequested payload.
	Handoff Handoff
	Reason  string
}

func InProgress() AgentStatus      { return AgentStatus{Kind: StatusInProgress} }
func WaitingForTools() AgentStatus { return AgentStatus{Kind: StatusWaitingForTools} }
func Complete() AgentStatus        { return AgentStatus{Kind: StatusComplete} }

func Failed(message string) AgentStatus {
	return AgentStatus{Kind: StatusFailed, Err: message}
}

func HandoffRequested(h Handoff, reason string) AgentStatus {
	return AgentStatus{Kind: StatusHandoffRequested, Handoff: h, Reason: reason}
}

// Terminal reports whether this status admits no further transitions.
func (s AgentStatus) Terminal() bool { return s.Kind.Terminal() }

// statusWire is the JSON projection described in spec §9: a "type"
// discriminator field, plus only the fields relevant to that variant.
type statusWire struct {
	Type    StatusKind `json:"type"`
	Error   string     `json:"error,omitempty"`
	Handoff *Handoff   `json:"handoff,omitempty"`
	Reason  string     `json:"reason,omitempty"`
}

func (s AgentStatus) MarshalJSON() ([]byte, error) {
	w := statusWire{Type: s.Kind}
	switch s.Kind {
	case StatusFailed:
		w.Error = s.Err
	case StatusHandoffRequested:
		h := s.Handoff
		w.Handoff = &h
		w.Reason = s.Reason
	}
	return json.Marshal(w)
}

func (s *AgentStatus) UnmarshalJSON(data []byte) error {
	var w statusWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case StatusInProgress, StatusWaitingForTools, StatusComplete:
		*s = AgentStatus{Kind: w.Type}
	case StatusFailed:
		*s = AgentStatus{Kind: w.Type, Err: w.Error}
	case StatusHandoffRequested:
		if w.Handoff == nil {
			return fmt.Errorf("agent: handoff_requested status missing handoff payload")
		}
		*s = AgentStatus{Kind: w.Type, Handoff: *w.Handoff, Reason: w.Reason}
	case "":
		*s = AgentStatus{Kind: StatusInProgress}
	default:
		return fmt.Errorf("agent: unknown status type %q", w.Type)
	}
	return nil
}

func (s AgentStatus) String() string {
	switch s.Kind {
	case StatusFailed:
		return fmt.Sprintf("failed(%s)", s.Err)
	case StatusHandoffRequested:
		return fmt.Sprintf("handoff_requested(%s, %s)", s.Handoff.TargetAgent, s.Reason)
	default:
		return string(s.Kind)
	}
}
