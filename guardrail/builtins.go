package guardrail

import (
	"fmt"
	"regexp"
)

// MaxLength blocks (by default) any input longer than n runes. It is
// Warn-by-default in spec usage examples; callers pick the Action.
func MaxLength(n int, action Action) Guardrail {
	return Guardrail{
		Name:   fmt.Sprintf("max_length(%d)", n),
		Action: action,
		Check: func(input string) CheckResult {
			runes := []rune(input)
			if len(runes) <= n {
				return CheckResult{}
			}
			return CheckResult{
				Violated: true,
				Fixable:  true,
				Fixed:    string(runes[:n]),
				Reason:   fmt.Sprintf("input is %d runes, exceeds limit of %d", len(runes), n),
			}
		},
	}
}

// defaultSecretPatterns catches the common API-key-shaped token families;
// callers may pass their own instead.
var defaultSecretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[A-Za-z0-9]{16,}`),
	regexp.MustCompile(`(?i)api[_-]?key["':=\s]+[A-Za-z0-9_\-]{16,}`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`ghp_[A-Za-z0-9]{36}`),
}

// NoSecrets redacts (Fix) or rejects (Block) input containing
// API-key-shaped tokens. With no patterns supplied, defaultSecretPatterns
// is used.
func NoSecrets(action Action, patterns ...*regexp.Regexp) Guardrail {
	if len(patterns) == 0 {
		patterns = defaultSecretPatterns
	}
	return Guardrail{
		Name:   "no_secrets",
		Action: action,
		Check: func(input string) CheckResult {
			matched := false
			fixed := input
			for _, p := range patterns {
				if p.MatchString(fixed) {
					matched = true
					fixed = p.ReplaceAllString(fixed, "[REDACTED]")
				}
			}
			if !matched {
				return CheckResult{}
			}
			return CheckResult{
				Violated: true,
				Fixable:  true,
				Fixed:    fixed,
				Reason:   "input contains a value resembling an API key or secret token",
			}
		},
	}
}
