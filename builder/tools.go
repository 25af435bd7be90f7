package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/agentflowhq/agentflow/config"
	"github.com/agentflowhq/agentflow/tool"
	"github.com/agentflowhq/agentflow/tool/filetool"
	"github.com/agentflowhq/agentflow/tool/mcptool"
)

// BuildTool constructs one tool.Definition from a ToolConfig, dispatching
// on Kind. Params is decoded with mapstructure into the constructor's
// config struct, matching how config.ToolConfig documents the field is
// meant to be used.
func BuildTool(ctx context.Context, name string, cfg config.ToolConfig) ([]tool.Definition, error) {
	switch cfg.Kind {
	case "read_file":
		var params filetool.ReadFileConfig
		if err := decodeParams(cfg.Params, &params); err != nil {
			return nil, fmt.Errorf("builder: tool %q params: %w", name, err)
		}
		def, err := filetool.NewReadFile(&params)
		if err != nil {
			return nil, err
		}
		return []tool.Definition{def}, nil

	case "write_file":
		var params filetool.WriteFileConfig
		if err := decodeParams(cfg.Params, &params); err != nil {
			return nil, fmt.Errorf("builder: tool %q params: %w", name, err)
		}
		def, err := filetool.NewWriteFile(&params)
		if err != nil {
			return nil, err
		}
		return []tool.Definition{def}, nil

	case "mcp":
		var params mcpToolParams
		if err := decodeParams(cfg.Params, &params); err != nil {
			return nil, fmt.Errorf("builder: tool %q params: %w", name, err)
		}
		source, err := mcptool.NewSource(mcptool.Config{
			Name:        name,
			Transport:   mcptool.Transport(params.Transport),
			URL:         params.URL,
			Command:     params.Command,
			Args:        params.Args,
			Env:         params.Env,
			Filter:      params.Filter,
			InitTimeout: time.Duration(params.InitTimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return source.Load(ctx)

	default:
		return nil, fmt.Errorf("builder: unknown tool kind %q for %q", cfg.Kind, name)
	}
}

// mcpToolParams is the Params shape a "mcp"-kind ToolConfig decodes into.
type mcpToolParams struct {
	Transport          string            `mapstructure:"transport"`
	URL                string            `mapstructure:"url"`
	Command            string            `mapstructure:"command"`
	Args               []string          `mapstructure:"args"`
	Env                map[string]string `mapstructure:"env"`
	Filter             []string          `mapstructure:"filter"`
	InitTimeoutSeconds int               `mapstructure:"init_timeout_seconds"`
}

// BuildTools constructs every named ToolConfig in file, returning the
// resulting tool.Definitions keyed by config name. Agents select a subset
// of these by name (AgentConfig.Tools) via SelectTools, since a single
// ToolConfig entry (e.g. "mcp") may expand into several Definitions.
func BuildTools(ctx context.Context, file *config.File) (map[string][]tool.Definition, error) {
	out := make(map[string][]tool.Definition, len(file.Tools))
	for name, cfg := range file.Tools {
		defs, err := BuildTool(ctx, name, cfg)
		if err != nil {
			return nil, err
		}
		out[name] = defs
	}
	return out, nil
}

// SelectTools builds a fresh tool.Registry containing only the named tool
// configs, in the order names lists them.
func SelectTools(all map[string][]tool.Definition, names []string) (*tool.Registry, error) {
	reg := tool.NewRegistry()
	for _, name := range names {
		defs, ok := all[name]
		if !ok {
			return nil, fmt.Errorf("builder: agent references unknown tool %q", name)
		}
		for _, def := range defs {
			if err := reg.Register(def); err != nil {
				return nil, fmt.Errorf("builder: register tool %q: %w", name, err)
			}
		}
	}
	return reg, nil
}

func decodeParams(params map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(params)
}
