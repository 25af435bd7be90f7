package dag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upper(_ context.Context, s string) (string, error) { return s, nil }
func length(_ context.Context, s string) (int, error)   { return len(s), nil }

func TestBuild_SimpleChain(t *testing.T) {
	b := NewBuilder()
	AddNode(b, NodeID("a"), FromInput[string]("text"), upper)
	AddNode(b, NodeID("b"), FromNode[string]("a"), length)

	plan, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, []NodeID{"a"}, plan.roots())
}

func TestBuild_DuplicateID(t *testing.T) {
	b := NewBuilder()
	AddNode(b, NodeID("a"), FromInput[string]("text"), upper)
	AddNode(b, NodeID("a"), FromInput[string]("text"), upper)

	_, err := b.Build()
	assert.Error(t, err)
}

func TestBuild_UnknownPredecessor(t *testing.T) {
	b := NewBuilder()
	AddNode(b, NodeID("a"), FromNode[string]("missing"), upper)

	_, err := b.Build()
	assert.Error(t, err)
}

func TestBuild_TypeMismatch(t *testing.T) {
	b := NewBuilder()
	AddNode(b, NodeID("a"), FromInput[string]("text"), length) // string -> int
	AddNode(b, NodeID("b"), FromNode[string]("a"), upper)      // expects string, gets int

	_, err := b.Build()
	assert.Error(t, err)
}

func TestBuild_Cycle(t *testing.T) {
	b := NewBuilder()
	AddNode(b, NodeID("a"), FromNode[string]("b"), upper)
	AddNode(b, NodeID("b"), FromNode[string]("a"), upper)

	_, err := b.Build()
	assert.ErrorContains(t, err, "cycle")
}

func TestBuild_EmptyPlan(t *testing.T) {
	_, err := NewBuilder().Build()
	assert.Error(t, err)
}

func TestBuild_NilAgent(t *testing.T) {
	b := NewBuilder()
	AddNode[string, string](b, NodeID("a"), FromInput[string]("text"), nil)
	_, err := b.Build()
	assert.Error(t, err)
}
