package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ExpandsEnvVarsAndAppliesDefaults(t *testing.T) {
	t.Setenv("PINNOKIO_LLM_MODEL", "claude-sonnet")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  model: "${PINNOKIO_LLM_MODEL}"
  endpoint: "${PINNOKIO_LLM_ENDPOINT:-http://localhost:9000}"
agent_loop:
  max_iterations: 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet", cfg.LLM.Model)
	assert.Equal(t, "http://localhost:9000", cfg.LLM.Endpoint)
	assert.Equal(t, 5, cfg.AgentLoop.MaxIterations)
	// untouched defaults survive partial YAML
	assert.Equal(t, 12, cfg.AgentLoop.MaxTurns)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}
