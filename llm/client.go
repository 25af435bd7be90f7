// Package llm implements the LLM Client contract (C1): a provider-agnostic
// completion/streaming interface plus thin adapters over real provider
// SDKs. Concrete provider wire protocols are explicitly out of scope for
// this library (spec §1) — each adapter here only translates between
// agent.Message/agent.ToolCall and its SDK's native request/response types.
package llm

import (
	"fmt"

	"github.com/agentflowhq/agentflow/agent"
)

// Client satisfies agent.Client; declared here as a type alias so callers
// importing package llm see the same interface the agent loop consumes.
type Client = agent.Client

// Kind discriminates the LLM error taxonomy from spec §4.1/§7.
type Kind string

const (
	KindAuth       Kind = "AuthError"
	KindRateLimit  Kind = "RateLimitError"
	KindValidation Kind = "ValidationError"
	KindService    Kind = "ServiceError"
	KindNetwork    Kind = "NetworkError"
	KindLLM        Kind = "LLMError" // catch-all
)

// Error is the common shape every provider adapter normalizes its failures
// into, so callers can type-switch on Kind() regardless of which provider
// raised it.
type Error struct {
	kind       Kind
	message    string
	statusCode int
	cause      error
}

func (e *Error) Kind() string { return string(e.kind) }

func (e *Error) Error() string {
	if e.statusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.kind, e.statusCode, e.message)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) StatusCode() int { return e.statusCode }

func AuthError(message string, cause error) error {
	return &Error{kind: KindAuth, message: message, cause: cause}
}

func RateLimitError(message string, cause error) error {
	return &Error{kind: KindRateLimit, message: message, cause: cause}
}

func ValidationError(message string, cause error) error {
	return &Error{kind: KindValidation, message: message, cause: cause}
}

func ServiceError(statusCode int, message string, cause error) error {
	return &Error{kind: KindService, message: message, statusCode: statusCode, cause: cause}
}

func NetworkError(message string, cause error) error {
	return &Error{kind: KindNetwork, message: message, cause: cause}
}

func LLMError(message string, cause error) error {
	return &Error{kind: KindLLM, message: message, cause: cause}
}

// TokenCounter is the optional capability interface a Client may satisfy
// so package agent's pruner (C6) can enforce token-based bounds; see
// SPEC_FULL §3 C6.
type TokenCounter = agent.TokenCounter

// baseClient bundles the fields every provider adapter needs and
// implements the parts of the Client contract that don't vary by
// provider (context window bookkeeping), matching the teacher's pattern
// of small provider structs embedding shared config.
type baseClient struct {
	model             string
	contextWindow     int
	reserveCompletion int
}

func (b baseClient) ContextWindow() int     { return b.contextWindow }
func (b baseClient) ReserveCompletion() int { return b.reserveCompletion }

// requireCallback enforces spec §4.1's "no concurrent callbacks"
// requirement at the one place every adapter can check it cheaply: a nil
// onChunk can never be invoked synchronously in the caller's control flow.
func requireCallback(onChunk func(agent.StreamedChunk)) error {
	if onChunk == nil {
		return fmt.Errorf("llm: streamComplete requires a non-nil onChunk callback")
	}
	return nil
}
