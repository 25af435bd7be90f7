package functiontool

import (
	"encoding/json"
	"fmt"
)

// unmarshalArguments decodes a tool call's raw JSON arguments into target,
// leaving target at its zero value when arguments is empty (no-arg tools).
func unmarshalArguments(arguments json.RawMessage, target any) error {
	if len(arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(arguments, target); err != nil {
		return fmt.Errorf("unmarshal arguments: %w", err)
	}
	return nil
}
