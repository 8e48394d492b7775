// Package config implements the ambient configuration layer: YAML config
// plus .env overlay plus "${VAR}" expansion, decoded via mapstructure,
// covering the settings read at startup (server, LLM provider, worker,
// timeouts, TTLs, token budgets, JWT, store backends). The scheduler's
// tick interval is not a config setting.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the WS/HTTP server.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LLMConfig configures the provider-agnostic LLM client.
type LLMConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// WorkerConfig configures the long-process worker fleet.
type WorkerConfig struct {
	BaseURL string `yaml:"base_url"`
	// Paths maps a task_type to its endpoint path under BaseURL.
	Paths map[string]string `yaml:"paths"`
	// CallbackURL is where workers report task resolutions back to.
	CallbackURL string        `yaml:"callback_url"`
	Timeout     time.Duration `yaml:"timeout"`
}

// VectorConfig configures the external semantic-search service.
type VectorConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SessionConfig configures the Session Registry's cache and eviction
// timing.
type SessionConfig struct {
	ContextTTL    time.Duration `yaml:"context_ttl"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// AgentLoopConfig configures the Agent Loop's iteration/turn ceilings and
// token budgets.
type AgentLoopConfig struct {
	MaxIterations       int `yaml:"max_iterations"`
	MaxTurns            int `yaml:"max_turns"`
	TokenBudget         int `yaml:"token_budget"`
	SubAgentTokenBudget int `yaml:"sub_agent_token_budget"`
}

// AuthConfig configures Firebase token verification.
type AuthConfig struct {
	JWKSURL  string `yaml:"jwks_url"`
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
}

// StoreConfig configures the structured document store backend.
type StoreConfig struct {
	Dialect  string `yaml:"dialect"`
	DSNEnv   string `yaml:"dsn_env"`
	MaxConns int    `yaml:"max_conns"`
	MaxIdle  int    `yaml:"max_idle"`
}

// Config is the full process configuration loaded at startup.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Worker    WorkerConfig    `yaml:"worker"`
	Vector    VectorConfig    `yaml:"vector"`
	Session   SessionConfig   `yaml:"session"`
	AgentLoop AgentLoopConfig `yaml:"agent_loop"`
	Auth      AuthConfig      `yaml:"auth"`
	Store     StoreConfig     `yaml:"store"`
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		LLM: LLMConfig{
			MaxTokens:   4096,
			Temperature: 0.2,
			Timeout:     60 * time.Second,
		},
		Worker: WorkerConfig{Timeout: 10 * time.Second},
		Vector: VectorConfig{Timeout: 5 * time.Second},
		Session: SessionConfig{
			ContextTTL:    300 * time.Second,
			IdleTimeout:   30 * time.Minute,
			SweepInterval: time.Minute,
		},
		AgentLoop: AgentLoopConfig{
			MaxIterations:       3,
			MaxTurns:            12,
			TokenBudget:         80_000,
			SubAgentTokenBudget: 15_000,
		},
		Store:     StoreConfig{Dialect: "sqlite", MaxConns: 10, MaxIdle: 5},
		LogLevel:  "info",
		LogFormat: "verbose",
	}
}

// Load reads .env files, then a YAML config file, expands "${VAR}"
// references against the resulting environment, and decodes into Config
// via a mapstructure.DecoderConfig with TagName "yaml" and a duration
// decode hook.
func Load(path string) (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	raw = expandMap(raw)

	cfg := defaults()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("build config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, nil
}

func expandMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = expandValue(v)
	}
	return out
}

func expandValue(v any) any {
	switch t := v.(type) {
	case string:
		return expandEnvVars(t)
	case map[string]any:
		return expandMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = expandValue(item)
		}
		return out
	default:
		return v
	}
}

// ResolveAPIKey reads the LLM API key from the configured environment
// variable name (never stored in the YAML file itself).
func (c *Config) ResolveAPIKey() string {
	if c.LLM.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.LLM.APIKeyEnv)
}

// ResolveDSN reads the store DSN from the configured environment
// variable name.
func (c *Config) ResolveDSN() string {
	if c.Store.DSNEnv == "" {
		return ""
	}
	return os.Getenv(c.Store.DSNEnv)
}
