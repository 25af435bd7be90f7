package llm

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/agentflowhq/agentflow/agent"
)

// TiktokenCounter implements agent.TokenCounter (SPEC_FULL §3 C6) over
// pkoukk/tiktoken-go, the token counting library the teacher's go.mod
// already carries for context-budget estimation.
type TiktokenCounter struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter builds a counter for the named encoding (e.g.
// "cl100k_base" for GPT-3.5/4-era models, "o200k_base" for newer OpenAI
// models). Anthropic and Gemini have no public tokenizer; callers use the
// nearest compatible encoding as an estimate, same as the teacher does for
// non-OpenAI providers.
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("llm: load tiktoken encoding %q: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

// CountTokens sums the token count of every message's content and tool
// call payload in conversation.
func (c *TiktokenCounter) CountTokens(conversation agent.Conversation) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, msg := range conversation {
		total += len(c.enc.Encode(msg.Content, nil, nil))
		for _, tc := range msg.ToolCalls {
			total += len(c.enc.Encode(tc.Name, nil, nil))
			total += len(c.enc.Encode(string(tc.Arguments), nil, nil))
		}
		// Every message carries a small fixed overhead in the wire format
		// (role framing, message boundaries); tiktoken-go doesn't model
		// this for arbitrary providers, so add a conservative per-message
		// constant the way OpenAI's own cookbook recommends.
		total += 4
	}
	return total, nil
}

var _ agent.TokenCounter = (*TiktokenCounter)(nil)
