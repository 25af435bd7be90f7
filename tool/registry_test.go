package tool

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflowhq/agentflow/agent"
)

func echoHandler(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
	return args, nil
}

func TestRegister_RejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "echo", Handler: echoHandler}))
	err := r.Register(Definition{Name: "echo", Handler: echoHandler})
	assert.Error(t, err)
}

func TestRegister_RejectsNilHandler(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Definition{Name: "broken"})
	assert.Error(t, err)
}

func TestRegister_RejectsInvalidSchema(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Definition{Name: "bad_schema", Handler: echoHandler, Schema: json.RawMessage(`not json`)})
	assert.Error(t, err)
}

func TestDefinitions_PreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "b", Handler: echoHandler}))
	require.NoError(t, r.Register(Definition{Name: "a", Handler: echoHandler}))

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "b", defs[0].Name)
	assert.Equal(t, "a", defs[1].Name)
}

func TestExecute_NotFoundForUnregisteredTool(t *testing.T) {
	r := NewRegistry()
	_, toolErr := r.Execute(context.Background(), "missing", json.RawMessage(`{}`))
	require.NotNil(t, toolErr)
	assert.Equal(t, agent.ToolErrorNotFound, toolErr.Type)
}

func TestExecute_BadArgumentsWhenSchemaRejectsInput(t *testing.T) {
	r := NewRegistry()
	schema := json.RawMessage(`{"type":"object","properties":{"x":{"type":"integer"}},"required":["x"]}`)
	require.NoError(t, r.Register(Definition{Name: "needs_x", Handler: echoHandler, Schema: schema}))

	_, toolErr := r.Execute(context.Background(), "needs_x", json.RawMessage(`{}`))
	require.NotNil(t, toolErr)
	assert.Equal(t, agent.ToolErrorBadArguments, toolErr.Type)
}

func TestExecute_HandlerErrorWrapped(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{
		Name: "always_fails",
		Handler: func(context.Context, json.RawMessage) (json.RawMessage, error) {
			return nil, errors.New("boom")
		},
	}))

	_, toolErr := r.Execute(context.Background(), "always_fails", json.RawMessage(`{}`))
	require.NotNil(t, toolErr)
	assert.Equal(t, agent.ToolErrorHandler, toolErr.Type)
	assert.Contains(t, toolErr.Message, "boom")
}

func TestExecute_SucceedsAndReturnsRawResult(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "echo", Handler: echoHandler}))

	result, toolErr := r.Execute(context.Background(), "echo", json.RawMessage(`{"a":1}`))
	require.Nil(t, toolErr)
	assert.JSONEq(t, `{"a":1}`, string(result))
}

func TestExecuteAll_SequentialPreservesOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "echo", Handler: echoHandler}))

	reqs := []Request{
		{ID: "1", Name: "echo", Arguments: json.RawMessage(`1`)},
		{ID: "2", Name: "echo", Arguments: json.RawMessage(`2`)},
		{ID: "3", Name: "echo", Arguments: json.RawMessage(`3`)},
	}
	responses := r.ExecuteAll(context.Background(), reqs, Sequential())
	require.Len(t, responses, 3)
	for i, resp := range responses {
		assert.Equal(t, reqs[i].ID, resp.ID)
		assert.JSONEq(t, string(reqs[i].Arguments), string(resp.Result))
	}
}

func TestExecuteAll_ParallelPreservesResponseOrderDespiteCompletionOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{
		Name: "variable_delay",
		Handler: func(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
			var delayMs int
			_ = json.Unmarshal(args, &delayMs)
			time.Sleep(time.Duration(delayMs) * time.Millisecond)
			return args, nil
		},
	}))

	reqs := []Request{
		{ID: "slow", Name: "variable_delay", Arguments: json.RawMessage(`20`)},
		{ID: "fast", Name: "variable_delay", Arguments: json.RawMessage(`0`)},
	}
	responses := r.ExecuteAll(context.Background(), reqs, Parallel())
	require.Len(t, responses, 2)
	assert.Equal(t, "slow", responses[0].ID)
	assert.Equal(t, "fast", responses[1].ID)
}

func TestExecuteAll_ParallelWithLimitCapsConcurrency(t *testing.T) {
	r := NewRegistry()
	var concurrent, maxConcurrent int64
	require.NoError(t, r.Register(Definition{
		Name: "tracked",
		Handler: func(context.Context, json.RawMessage) (json.RawMessage, error) {
			cur := atomic.AddInt64(&concurrent, 1)
			for {
				prev := atomic.LoadInt64(&maxConcurrent)
				if cur <= prev || atomic.CompareAndSwapInt64(&maxConcurrent, prev, cur) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&concurrent, -1)
			return json.RawMessage(`{}`), nil
		},
	}))

	reqs := make([]Request, 6)
	for i := range reqs {
		reqs[i] = Request{ID: string(rune('a' + i)), Name: "tracked", Arguments: json.RawMessage(`{}`)}
	}
	responses := r.ExecuteAll(context.Background(), reqs, ParallelWithLimit(2))
	require.Len(t, responses, 6)
	assert.LessOrEqual(t, atomic.LoadInt64(&maxConcurrent), int64(2))
}

func TestExecuteBatch_AdaptsToolCallsThroughExecuteAll(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "echo", Handler: echoHandler}))

	calls := []agent.ToolCall{
		{ID: "1", Name: "echo", Arguments: json.RawMessage(`{"n":1}`)},
		{ID: "2", Name: "echo", Arguments: json.RawMessage(`{"n":2}`)},
	}
	results := r.ExecuteBatch(context.Background(), calls, agent.ToolDispatchStrategy{Parallel: true})
	require.Len(t, results, 2)
	assert.Equal(t, "1", results[0].ID)
	assert.Nil(t, results[0].Err)
	assert.JSONEq(t, `{"n":2}`, string(results[1].Result))
}
