package tool

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaCache compiles each tool's schema once and reuses it across
// executions, grounded on the pack's pluginsdk.compileSchema pattern.
type schemaCache struct {
	mu    sync.RWMutex
	byKey map[string]*jsonschema.Schema
}

func newSchemaCache() *schemaCache {
	return &schemaCache{byKey: make(map[string]*jsonschema.Schema)}
}

func (c *schemaCache) compile(toolName string, schema json.RawMessage) (*jsonschema.Schema, error) {
	key := toolName + ":" + string(schema)

	c.mu.RLock()
	compiled, ok := c.byKey[key]
	c.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	compiled, err := jsonschema.CompileString(toolName+".schema.json", string(schema))
	if err != nil {
		return nil, fmt.Errorf("tool: compile schema for %q: %w", toolName, err)
	}

	c.mu.Lock()
	c.byKey[key] = compiled
	c.mu.Unlock()
	return compiled, nil
}

func validateArguments(schema *jsonschema.Schema, arguments json.RawMessage) error {
	if schema == nil {
		return nil
	}
	var decoded any
	if len(arguments) == 0 {
		decoded = map[string]any{}
	} else if err := json.Unmarshal(arguments, &decoded); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	return schema.Validate(decoded)
}
