package config

import (
	"os"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// GetEnvObject returns a cty object holding every environment variable, for
// use as the env variable of an evaluation context.
func GetEnvObject() cty.Value {
	return envObject(os.Environ())
}

func envObject(environ []string) cty.Value {
	envMap := make(map[string]cty.Value, len(environ))

	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		envMap[sanitizeEnvVarName(key)] = cty.StringVal(value)
	}

	return cty.ObjectVal(envMap)
}

// sanitizeEnvVarName maps name to a valid HCL identifier by replacing
// invalid characters with underscores.
func sanitizeEnvVarName(name string) string {
	if name == "" {
		return "_"
	}

	var result strings.Builder
	for i, r := range name {
		if isValidChar(r) && (i > 0 || isValidFirstChar(r)) {
			result.WriteRune(r)
		} else {
			result.WriteRune('_')
		}
	}

	return result.String()
}

func isValidFirstChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func isValidChar(r rune) bool {
	return isValidFirstChar(r) || (r >= '0' && r <= '9') || r == '-'
}
