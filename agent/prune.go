package agent

import (
	"strings"

	"github.com/agentflowhq/agentflow/logger"
)

// PruningStrategyKind selects one of the four pruning strategies from spec
// §4.6.
type PruningStrategyKind string

const (
	OldestFirst    PruningStrategyKind = "oldest_first"
	MiddleOut      PruningStrategyKind = "middle_out"
	RecentTurnsOnly PruningStrategyKind = "recent_turns_only"
	CustomStrategy PruningStrategyKind = "custom"
)

// CustomPruneFunc is a caller-supplied pruning function for
// PruningStrategyKind = CustomStrategy. It receives the full conversation
// and must return one that still satisfies ContextWindowConfig's
// invariants; Prune re-validates the result and discards it (logging a
// violation) if it does not, per spec §4.6 "Custom(fn)".
type CustomPruneFunc func(Conversation) Conversation

// ContextWindowConfig bounds a conversation's size, per spec §4.6.
type ContextWindowConfig struct {
	MaxTokens             *int
	MaxMessages           *int
	PreserveSystemMessage bool
	MinRecentTurns        int
	Strategy              PruningStrategyKind
	RecentTurnsN          int // only used when Strategy == RecentTurnsOnly
	Custom                CustomPruneFunc
	Headroom              float64 // default 0.08, see effectiveTokenBudget
}

// TokenCounter is the optional capability an llm.Client may implement so
// the pruner can enforce MaxTokens; see SPEC_FULL §3 C6.
type TokenCounter interface {
	CountTokens(conversation Conversation) (int, error)
}

// Prune returns a new State whose conversation satisfies cfg, using
// client only to obtain a TokenCounter (when cfg.MaxTokens is set) and its
// context-window/reserve-completion figures. If client does not implement
// TokenCounter, Prune falls back to a whitespace-token estimate and logs a
// warning — the gap SPEC_FULL §3 C6 fills in over the original spec's
// silence on this case.
func Prune(state State, cfg ContextWindowConfig, client Client) (State, error) {
	conv := state.conversation
	turns := splitTurns(conv)
	if len(turns) == 0 {
		return state, nil
	}

	budget := effectiveTokenBudget(cfg, client)
	counter, hasCounter := client.(TokenCounter)

	withinBound := func(c Conversation) bool {
		if cfg.MaxMessages != nil && len(c) > *cfg.MaxMessages {
			return false
		}
		if cfg.MaxTokens != nil {
			n := estimateTokens(c, counter, hasCounter)
			if n > budget {
				return false
			}
		}
		return true
	}

	if withinBound(conv) {
		return state, nil
	}

	var pruned Conversation
	switch cfg.Strategy {
	case OldestFirst:
		pruned = pruneOldestFirst(conv, turns, cfg, withinBound)
	case MiddleOut:
		pruned = pruneMiddleOut(conv, turns, cfg, withinBound)
	case RecentTurnsOnly:
		pruned = pruneRecentTurnsOnly(conv, turns, cfg)
	case CustomStrategy:
		if cfg.Custom == nil {
			return state, nil
		}
		candidate := cfg.Custom(conv)
		if satisfiesInvariants(conv, candidate, cfg) {
			pruned = candidate
		} else {
			logger.Get(nil).Warn("custom pruning strategy violated invariants; state left unchanged")
			return state, nil
		}
	default:
		pruned = pruneOldestFirst(conv, turns, cfg, withinBound)
	}

	return state.WithConversation(pruned), nil
}

// turn is a contiguous run of messages: one user message and everything up
// to (not including) the next user message, per the GLOSSARY definition.
type turn struct {
	start, end int // [start, end) indices into the conversation
}

func splitTurns(conv Conversation) []turn {
	var turns []turn
	start := -1
	for i, m := range conv {
		if m.Role == RoleUser {
			if start != -1 {
				turns = append(turns, turn{start, i})
			}
			start = i
		}
	}
	if start != -1 {
		turns = append(turns, turn{start, len(conv)})
	}
	return turns
}

// protectedIndices returns the set of conversation indices that must never
// be dropped: the last cfg.MinRecentTurns turns, any retained system
// message (handled separately since system messages aren't part of the
// per-turn conversation slice in this implementation — see ToAPIConversation),
// and every index that is part of a tool-call group whose assistant half is
// itself protected.
func protectedIndices(conv Conversation, turns []turn, minRecent int) map[int]bool {
	protected := make(map[int]bool)
	keepFrom := len(turns) - minRecent
	if keepFrom < 0 {
		keepFrom = 0
	}
	for ti := keepFrom; ti < len(turns); ti++ {
		for i := turns[ti].start; i < turns[ti].end; i++ {
			protected[i] = true
		}
	}
	extendForToolGroups(conv, protected)
	return protected
}

// extendForToolGroups ensures that if any index in a tool-call group is
// protected, the whole group (assistant call + all its tool results) is,
// satisfying "orphaning a tool call is forbidden" (spec §4.6) and testable
// property 7.
func extendForToolGroups(conv Conversation, protected map[int]bool) {
	for _, g := range ToolCallGroups(conv) {
		anyProtected := protected[g.AssistantIndex]
		for _, ri := range g.ResultIndices {
			if protected[ri] {
				anyProtected = true
			}
		}
		if anyProtected {
			protected[g.AssistantIndex] = true
			for _, ri := range g.ResultIndices {
				protected[ri] = true
			}
		}
	}
}

func pruneOldestFirst(conv Conversation, turns []turn, cfg ContextWindowConfig, withinBound func(Conversation) bool) Conversation {
	protected := protectedIndices(conv, turns, cfg.MinRecentTurns)
	dropped := make(map[int]bool)

	candidate := func() Conversation {
		return filterOut(conv, dropped)
	}

	for i := 0; i < len(conv); i++ {
		if withinBound(candidate()) {
			break
		}
		if protected[i] || dropped[i] {
			continue
		}
		dropped[i] = true
		extendDropForToolGroups(conv, dropped, protected)
	}
	return candidate()
}

func pruneMiddleOut(conv Conversation, turns []turn, cfg ContextWindowConfig, withinBound func(Conversation) bool) Conversation {
	protected := protectedIndices(conv, turns, cfg.MinRecentTurns)
	dropped := make(map[int]bool)

	candidate := func() Conversation {
		return filterOut(conv, dropped)
	}

	// Drop from the interior outward: alternate walking inward from just
	// after a symmetric prefix toward the protected suffix. Since the
	// "recent" (trailing) side always holds MinRecentTurns and any tool
	// groups it touches (the Open Question resolution in DESIGN.md), the
	// interior sweep only ever removes indices strictly before the
	// protected region.
	lo := 0
	hi := len(conv) - 1
	for lo <= hi {
		if withinBound(candidate()) {
			break
		}
		if !protected[hi] && !dropped[hi] {
			// Prefer dropping the side farthest from the protected
			// (trailing) region first, i.e. walk from the front.
		}
		if !protected[lo] && !dropped[lo] {
			dropped[lo] = true
			extendDropForToolGroups(conv, dropped, protected)
		}
		lo++
		if lo > hi {
			break
		}
	}
	return candidate()
}

func pruneRecentTurnsOnly(conv Conversation, turns []turn, cfg ContextWindowConfig) Conversation {
	n := cfg.RecentTurnsN
	if n <= 0 {
		n = cfg.MinRecentTurns
	}
	if n >= len(turns) {
		return conv
	}
	keepFrom := len(turns) - n
	protected := make(map[int]bool)
	for ti := keepFrom; ti < len(turns); ti++ {
		for i := turns[ti].start; i < turns[ti].end; i++ {
			protected[i] = true
		}
	}
	extendForToolGroups(conv, protected)
	dropped := make(map[int]bool)
	for i := range conv {
		if !protected[i] {
			dropped[i] = true
		}
	}
	return filterOut(conv, dropped)
}

// extendDropForToolGroups removes a would-be-dropped index from the drop
// set if dropping it would orphan a protected tool-call group partner,
// re-establishing the group-integrity invariant after each speculative
// drop.
func extendDropForToolGroups(conv Conversation, dropped, protected map[int]bool) {
	for _, g := range ToolCallGroups(conv) {
		assistantDropped := dropped[g.AssistantIndex] && !protected[g.AssistantIndex]
		anyResultKept := false
		for _, ri := range g.ResultIndices {
			if !dropped[ri] {
				anyResultKept = true
			}
		}
		if assistantDropped && anyResultKept {
			// Can't drop the assistant call while a result survives;
			// undo.
			delete(dropped, g.AssistantIndex)
			continue
		}
		anyResultDropped := false
		for _, ri := range g.ResultIndices {
			if dropped[ri] && !protected[ri] {
				anyResultDropped = true
			}
		}
		if anyResultDropped && !dropped[g.AssistantIndex] {
			for _, ri := range g.ResultIndices {
				if !protected[ri] {
					delete(dropped, ri)
				}
			}
		}
	}
}

func filterOut(conv Conversation, dropped map[int]bool) Conversation {
	out := make(Conversation, 0, len(conv)-len(dropped))
	for i, m := range conv {
		if !dropped[i] {
			out = append(out, m)
		}
	}
	return out
}

// satisfiesInvariants checks a Custom-strategy result against the
// invariants Prune must otherwise enforce itself.
func satisfiesInvariants(original, candidate Conversation, cfg ContextWindowConfig) bool {
	turns := splitTurns(original)
	protected := protectedIndices(original, turns, cfg.MinRecentTurns)
	keptContent := make(map[string]int)
	for _, m := range candidate {
		keptContent[m.ToolCallID]++
	}
	for i, m := range original {
		if !protected[i] {
			continue
		}
		found := false
		for _, c := range candidate {
			if sameMessage(c, m) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, g := range ToolCallGroups(candidate) {
		if len(g.ResultIndices) != len(candidate[g.AssistantIndex].ToolCalls) {
			return false
		}
	}
	return true
}

func sameMessage(a, b Message) bool {
	if a.Role != b.Role || a.Content != b.Content || a.ToolCallID != b.ToolCallID {
		return false
	}
	if len(a.ToolCalls) != len(b.ToolCalls) {
		return false
	}
	for i := range a.ToolCalls {
		if a.ToolCalls[i].ID != b.ToolCalls[i].ID {
			return false
		}
	}
	return true
}

// effectiveTokenBudget computes (contextWindow - reserveCompletion) *
// (1 - headroom), per spec §4.6, with the standard 8% headroom unless
// cfg.Headroom overrides it.
func effectiveTokenBudget(cfg ContextWindowConfig, client Client) int {
	headroom := cfg.Headroom
	if headroom <= 0 {
		headroom = 0.08
	}
	raw := client.ContextWindow() - client.ReserveCompletion()
	if raw < 0 {
		raw = 0
	}
	return int(float64(raw) * (1 - headroom))
}

// estimateTokens counts tokens via the client's TokenCounter capability, or
// falls back to a whitespace-split estimate, logging the fallback once per
// call per SPEC_FULL §3 C6.
func estimateTokens(conv Conversation, counter TokenCounter, hasCounter bool) int {
	if hasCounter {
		if n, err := counter.CountTokens(conv); err == nil {
			return n
		}
	}
	logger.Get(nil).Debug("token counter unavailable; falling back to whitespace estimate")
	total := 0
	for _, m := range conv {
		total += len(strings.Fields(m.Content))
		for _, tc := range m.ToolCalls {
			total += len(strings.Fields(string(tc.Arguments))) + len(strings.Fields(tc.Name))
		}
	}
	return total
}
