package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/agentflowhq/agentflow/agent"
)

// Registry is a name-keyed, order-preserving collection of Definitions. It
// satisfies agent.ToolRegistry so it can be handed directly to an
// agent.State. Registry is read-only after construction is finished (spec
// §5: "Tool Registry read-only after construction").
type Registry struct {
	mu      sync.RWMutex
	order   []string
	defs    map[string]Definition
	schemas *schemaCache
}

func NewRegistry() *Registry {
	return &Registry{
		defs:    make(map[string]Definition),
		schemas: newSchemaCache(),
	}
}

// Register adds a tool definition. Returns an error if the name is already
// registered or its schema fails to compile.
func (r *Registry) Register(def Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("tool: %q is already registered", def.Name)
	}
	if def.Handler == nil {
		return fmt.Errorf("tool: %q has a nil handler", def.Name)
	}
	if len(def.Schema) > 0 {
		if _, err := r.schemas.compile(def.Name, def.Schema); err != nil {
			return err
		}
	}

	r.defs[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

// Definitions returns every registered tool in registration order.
func (r *Registry) Definitions() []agent.ToolDefinitionSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]agent.ToolDefinitionSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name].spec())
	}
	return out
}

func (r *Registry) lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Execute dispatches a single tool call. Per spec §4.2: a missing tool
// yields NotFound, a schema validation failure yields BadArguments, and a
// handler error is wrapped as Handler — none of these ever propagate as a
// Go panic/error across the registry boundary.
func (r *Registry) Execute(ctx context.Context, name string, arguments json.RawMessage) (json.RawMessage, *agent.ToolError) {
	def, ok := r.lookup(name)
	if !ok {
		return nil, &agent.ToolError{Type: agent.ToolErrorNotFound, Message: fmt.Sprintf("tool %q is not registered", name)}
	}

	if len(def.Schema) > 0 {
		schema, err := r.schemas.compile(def.Name, def.Schema)
		if err != nil {
			return nil, &agent.ToolError{Type: agent.ToolErrorBadArguments, Message: err.Error()}
		}
		if err := validateArguments(schema, arguments); err != nil {
			return nil, &agent.ToolError{Type: agent.ToolErrorBadArguments, Message: err.Error()}
		}
	}

	result, err := def.Handler(ctx, arguments)
	if err != nil {
		return nil, &agent.ToolError{Type: agent.ToolErrorHandler, Message: err.Error()}
	}
	return result, nil
}

// Strategy controls how ExecuteAll dispatches a batch of requests.
type Strategy struct {
	kind  strategyKind
	limit int
}

type strategyKind int

const (
	kindSequential strategyKind = iota
	kindParallel
	kindParallelWithLimit
)

func Sequential() Strategy { return Strategy{kind: kindSequential} }
func Parallel() Strategy   { return Strategy{kind: kindParallel} }
func ParallelWithLimit(n int) Strategy {
	if n < 1 {
		n = 1
	}
	return Strategy{kind: kindParallelWithLimit, limit: n}
}

// DefaultAggregateTimeout is the spec §5 default aggregate timeout across a
// batch of parallel tool calls; exceeding it aborts outstanding handlers and
// fails the step with a Timeout tool error.
const DefaultAggregateTimeout = 5 * time.Minute

// ExecuteAll dispatches every request according to strategy and returns
// responses in the same order as requests, regardless of dispatch order or
// completion order (spec §4.2/§5).
func (r *Registry) ExecuteAll(ctx context.Context, requests []Request, strategy Strategy) []Response {
	if strategy.kind == kindSequential || len(requests) <= 1 {
		return r.executeSequential(ctx, requests)
	}
	return r.executeConcurrent(ctx, requests, strategy)
}

func (r *Registry) executeSequential(ctx context.Context, requests []Request) []Response {
	out := make([]Response, len(requests))
	for i, req := range requests {
		result, err := r.Execute(ctx, req.Name, req.Arguments)
		out[i] = Response{ID: req.ID, Result: result, Err: err}
	}
	return out
}

func (r *Registry) executeConcurrent(ctx context.Context, requests []Request, strategy Strategy) []Response {
	ctx, cancel := context.WithTimeout(ctx, DefaultAggregateTimeout)
	defer cancel()

	out := make([]Response, len(requests))
	var sem *semaphore.Weighted
	if strategy.kind == kindParallelWithLimit {
		sem = semaphore.NewWeighted(int64(strategy.limit))
	}

	var wg sync.WaitGroup
	for i, req := range requests {
		i, req := i, req
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sem != nil {
				if err := sem.Acquire(ctx, 1); err != nil {
					out[i] = Response{ID: req.ID, Err: &agent.ToolError{Type: agent.ToolErrorTimeout, Message: "aggregate tool timeout exceeded before dispatch"}}
					return
				}
				defer sem.Release(1)
			}
			if ctx.Err() != nil {
				out[i] = Response{ID: req.ID, Err: &agent.ToolError{Type: agent.ToolErrorTimeout, Message: "aggregate tool timeout exceeded"}}
				return
			}
			result, err := r.Execute(ctx, req.Name, req.Arguments)
			if err == nil && ctx.Err() != nil {
				err = &agent.ToolError{Type: agent.ToolErrorTimeout, Message: "aggregate tool timeout exceeded"}
				result = nil
			}
			out[i] = Response{ID: req.ID, Result: result, Err: err}
		}()
	}
	wg.Wait()
	return out
}

// ExecuteBatch adapts ExecuteAll to agent.BatchToolRegistry: calls carry no
// strategy of their own, so the agent loop's ToolDispatchStrategy picks
// Parallel or ParallelWithLimit(n) on its behalf.
func (r *Registry) ExecuteBatch(ctx context.Context, calls []agent.ToolCall, strategy agent.ToolDispatchStrategy) []agent.ToolResult {
	requests := make([]Request, len(calls))
	for i, tc := range calls {
		requests[i] = Request{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}
	}

	toolStrategy := Parallel()
	if strategy.Limit > 0 {
		toolStrategy = ParallelWithLimit(strategy.Limit)
	}

	responses := r.ExecuteAll(ctx, requests, toolStrategy)
	out := make([]agent.ToolResult, len(responses))
	for i, resp := range responses {
		out[i] = agent.ToolResult{ID: resp.ID, Result: resp.Result, Err: resp.Err}
	}
	return out
}

var _ agent.ToolRegistry = (*Registry)(nil)
var _ agent.BatchToolRegistry = (*Registry)(nil)
