package builder

import (
	"fmt"

	"github.com/agentflowhq/agentflow/config"
	"github.com/agentflowhq/agentflow/guardrail"
)

// DefaultGuardrails returns the small set of built-in guardrails a
// GuardrailConfig's Name can reference. Config carries only a name and
// chain position, not a guardrail's parameters (guardrail.Guardrail.Check
// is a function, not a serializable value), so this fixed registry is the
// builder's answer to that gap rather than a fully data-driven guardrail
// DSL.
func DefaultGuardrails() map[string]guardrail.Guardrail {
	return map[string]guardrail.Guardrail{
		"no_secrets": guardrail.NoSecrets(guardrail.Block),
		"max_length": guardrail.MaxLength(4000, guardrail.Warn),
	}
}

// SplitGuardrails resolves cfgs against available by name, returning the
// input-side and output-side chains in config order.
func SplitGuardrails(cfgs []config.GuardrailConfig, available map[string]guardrail.Guardrail) (input, output []guardrail.Guardrail, err error) {
	for _, cfg := range cfgs {
		g, ok := available[cfg.Name]
		if !ok {
			return nil, nil, fmt.Errorf("builder: unknown guardrail %q", cfg.Name)
		}
		switch cfg.When {
		case "input":
			input = append(input, g)
		case "output":
			output = append(output, g)
		default:
			return nil, nil, fmt.Errorf("builder: guardrail %q has invalid when %q (want input/output)", cfg.Name, cfg.When)
		}
	}
	return input, output, nil
}
