package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// ErrMissingEnvVar is returned when strict expansion hits an unset
// variable.
var ErrMissingEnvVar = fmt.Errorf("missing environment variable")

var envBracketPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*)?\}`)

// envExpander expands environment variables in configuration strings.
type envExpander struct {
	// strict fails if a referenced variable is not set.
	strict bool
	// missing tracks missing environment variables.
	missing []string
}

// Expand expands environment variables in the input string.
// Supported patterns:
//   - ${VAR} - expands to the value of VAR
//   - ${VAR:-default} - expands to VAR or "default" if not set
func (e *envExpander) Expand(input string) (string, error) {
	e.missing = nil

	result := envBracketPattern.ReplaceAllStringFunc(input, func(match string) string {
		inner := match[2 : len(match)-1]

		name, fallback, hasFallback := strings.Cut(inner, ":-")
		value, exists := os.LookupEnv(name)

		if hasFallback {
			if !exists || value == "" {
				return fallback
			}
			return value
		}

		if !exists {
			if e.strict {
				e.missing = append(e.missing, name)
			}
			return ""
		}
		return value
	})

	if len(e.missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingEnvVar, strings.Join(e.missing, ", "))
	}
	return result, nil
}

// ExpandEnv expands environment variables in input, leaving unset
// variables empty.
func ExpandEnv(input string) string {
	e := &envExpander{strict: false}
	result, _ := e.Expand(input)
	return result
}
