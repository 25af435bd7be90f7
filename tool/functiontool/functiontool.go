// Package functiontool generates a tool.Definition from a typed Go function,
// deriving the JSON schema from the argument struct's tags instead of
// requiring callers to hand-write one.
//
// # Basic usage
//
//	type GetWeatherArgs struct {
//	    City  string `json:"city" jsonschema:"required,description=City name"`
//	    Units string `json:"units,omitempty" jsonschema:"description=Temperature units,default=celsius,enum=celsius|fahrenheit"`
//	}
//
//	weatherTool, err := functiontool.New(
//	    functiontool.Config{Name: "get_weather", Description: "Get current weather for a city"},
//	    func(ctx context.Context, args GetWeatherArgs) (map[string]any, error) {
//	        return map[string]any{"temp": 22, "condition": "sunny"}, nil
//	    },
//	)
package functiontool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentflowhq/agentflow/tool"
)

// Config names and describes the tool being generated. Both fields are
// shown to the LLM via tool.Definition.Description / the schema, so
// Description should explain what the tool does and when to use it.
type Config struct {
	Name        string
	Description string
}

// New builds a tool.Definition whose Schema is reflected from Args and
// whose Handler unmarshals arguments into Args before calling fn. Args
// should be a plain struct tagged with json/jsonschema tags; see the
// package doc for the supported tag vocabulary.
func New[Args any](cfg Config, fn func(ctx context.Context, args Args) (map[string]any, error)) (tool.Definition, error) {
	return NewWithValidation(cfg, fn, nil)
}

// NewWithValidation behaves like New but runs validate against the decoded
// Args before fn is called, letting callers express constraints a JSON
// schema cannot (cross-field checks, path traversal guards, and so on).
func NewWithValidation[Args any](
	cfg Config,
	fn func(ctx context.Context, args Args) (map[string]any, error),
	validate func(Args) error,
) (tool.Definition, error) {
	if cfg.Name == "" {
		return tool.Definition{}, fmt.Errorf("functiontool: name is required")
	}
	if cfg.Description == "" {
		return tool.Definition{}, fmt.Errorf("functiontool: description is required")
	}

	schema, err := generateSchema[Args]()
	if err != nil {
		return tool.Definition{}, fmt.Errorf("functiontool: generate schema for %s: %w", cfg.Name, err)
	}
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return tool.Definition{}, fmt.Errorf("functiontool: marshal schema for %s: %w", cfg.Name, err)
	}

	handler := func(ctx context.Context, arguments json.RawMessage) (json.RawMessage, error) {
		var args Args
		if err := unmarshalArguments(arguments, &args); err != nil {
			return nil, fmt.Errorf("invalid arguments for %s: %w", cfg.Name, err)
		}
		if validate != nil {
			if err := validate(args); err != nil {
				return nil, fmt.Errorf("validation failed for %s: %w", cfg.Name, err)
			}
		}
		result, err := fn(ctx, args)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	}

	return tool.Definition{
		Name:        cfg.Name,
		Description: cfg.Description,
		Schema:      schemaJSON,
		Handler:     handler,
	}, nil
}
