package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)(?::-(.*?))?\}`)

// expandEnvVars resolves "${VAR}" and "${VAR:-default}" references in a
// string value of the parsed YAML, before it is decoded into Config.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		name, def := parts[1], parts[2]
		if val := os.Getenv(name); val != "" {
			return val
		}
		return def
	})
}

// LoadEnvFiles loads ".env.local" then ".env" into the process environment,
// ignoring a missing file.
func LoadEnvFiles() error {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}
