// Package config loads agentflow's layered YAML/TOML configuration:
// environment-variable expansion, .env loading, and decoding into the
// typed structs in types.go.
package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var (
	reDefaulted = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*):-([^}]*)\}`)
	reBraced    = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	reBare      = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// expandEnvVars resolves ${VAR:-default}, ${VAR} and $VAR references in s
// against the process environment, in that order so a defaulted reference
// is never double-substituted by the plain-braced pass.
func expandEnvVars(s string) string {
	s = reDefaulted.ReplaceAllStringFunc(s, func(m string) string {
		parts := reDefaulted.FindStringSubmatch(m)
		if v, ok := os.LookupEnv(parts[1]); ok {
			return v
		}
		return parts[2]
	})
	s = reBraced.ReplaceAllStringFunc(s, func(m string) string {
		name := reBraced.FindStringSubmatch(m)[1]
		return os.Getenv(name)
	})
	s = reBare.ReplaceAllStringFunc(s, func(m string) string {
		name := reBare.FindStringSubmatch(m)[1]
		return os.Getenv(name)
	})
	return s
}

// parseValue infers a bool/int/float from a string left over after
// expansion, falling back to the string itself. Used so a YAML/TOML value
// that was originally e.g. `${PORT}` still decodes as a number once PORT
// is substituted.
func parseValue(s string) interface{} {
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// expandEnvVarsInData walks a loosely-typed map/slice tree (as produced by
// yaml.v3 or BurntSushi/toml decoding into interface{}) expanding every
// string leaf and reinferring its type, so downstream mapstructure
// decoding sees a bool/int/float where the raw file had an env reference.
func expandEnvVarsInData(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[k] = expandEnvVarsInData(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[strOf(k)] = expandEnvVarsInData(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = expandEnvVarsInData(val)
		}
		return out
	case string:
		expanded := expandEnvVars(v)
		if expanded != v {
			return parseValue(expanded)
		}
		return v
	default:
		return v
	}
}

func strOf(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// loadEnvFiles loads .env.local then .env from dir (in that precedence
// order, lowest priority file loaded last so it never overrides values the
// former already set) into the process environment, tolerating either file
// being absent.
func loadEnvFiles(dir string) error {
	for _, name := range []string{".env.local", ".env"} {
		path := name
		if dir != "" {
			path = dir + string(os.PathSeparator) + name
		}
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
