package builder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflowhq/agentflow/config"
	"github.com/agentflowhq/agentflow/tool"
)

func TestSelectTools_BuildsRegistryFromNamedSubset(t *testing.T) {
	file := &config.File{
		Tools: map[string]config.ToolConfig{
			"reader": {Kind: "read_file"},
			"writer": {Kind: "write_file"},
		},
	}
	all, err := BuildTools(context.Background(), file)
	require.NoError(t, err)

	reg, err := SelectTools(all, []string{"reader"})
	require.NoError(t, err)
	defs := reg.Definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "read_file", defs[0].Name)
}

func TestSelectTools_UnknownNameErrors(t *testing.T) {
	all := map[string][]tool.Definition{}
	_, err := SelectTools(all, []string{"nonexistent"})
	assert.Error(t, err)
}

func TestBuildTool_ReadFile(t *testing.T) {
	defs, err := BuildTool(context.Background(), "reader", config.ToolConfig{
		Kind: "read_file",
		Params: map[string]interface{}{
			"WorkingDirectory": "./testdata",
		},
	})
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "read_file", defs[0].Name)
	assert.NotNil(t, defs[0].Handler)
}

func TestBuildTool_UnknownKindErrors(t *testing.T) {
	_, err := BuildTool(context.Background(), "mystery", config.ToolConfig{Kind: "nonexistent"})
	assert.Error(t, err)
}

func TestBuildTools_KeysResultByConfigName(t *testing.T) {
	file := &config.File{
		Tools: map[string]config.ToolConfig{
			"reader": {Kind: "read_file"},
			"writer": {Kind: "write_file"},
		},
	}
	out, err := BuildTools(context.Background(), file)
	require.NoError(t, err)
	require.Contains(t, out, "reader")
	require.Contains(t, out, "writer")
	assert.Equal(t, "read_file", out["reader"][0].Name)
	assert.Equal(t, "write_file", out["writer"][0].Name)
}
