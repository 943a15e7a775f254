// Package config loads viewsmith configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all viewsmith configuration.
type Config struct {
	// Identity, mostly informational
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// HTTP server
	Server ServerConfig `yaml:"server"`

	// Model provider
	Model ModelConfig `yaml:"model"`

	// Agent loop limits
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`

	// SQLite database and chat history
	Storage StorageConfig `yaml:"storage"`

	// File logging switches
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ReadTimeout     string   `yaml:"read_timeout"`
	IdleTimeout     string   `yaml:"idle_timeout"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// ModelConfig configures the model provider.
type ModelConfig struct {
	Provider    string  `yaml:"provider"` // ollama, openai, openrouter
	Endpoint    string  `yaml:"endpoint"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	Timeout     string  `yaml:"timeout"`
	MaxRetries  int     `yaml:"max_retries"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// OrchestratorConfig bounds the agent loop.
type OrchestratorConfig struct {
	MaxTurns      int    `yaml:"max_turns"`      // Model round trips per request
	MaxToolSteps  int    `yaml:"max_tool_steps"` // Tool executions per request
	HistoryWindow int    `yaml:"history_window"` // Prior messages sent to the model
	PreviewLimit  int    `yaml:"preview_limit"`  // Truncation length for trace previews
	SystemPrompt  string `yaml:"system_prompt"`  // Empty means the built-in prompt
}

// StorageConfig configures the SQLite store and the chat history log.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	HistoryPath  string `yaml:"history_path"`
	MirrorLimit  int    `yaml:"mirror_limit"` // In-memory records kept per session
	Seed         bool   `yaml:"seed"`         // Seed demo data on first open
}

// LoggingConfig selects what the logging package writes and where.
type LoggingConfig struct {
	Enabled    bool            `yaml:"enabled"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Dir        string          `yaml:"dir"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Name:    "viewsmith",
		Version: "0.3.0",

		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     "30s",
			IdleTimeout:     "120s",
			ShutdownTimeout: "10s",
			AllowedOrigins:  []string{"*"},
		},

		Model: ModelConfig{
			Provider:    "ollama",
			Endpoint:    "http://localhost:11434/v1",
			Model:       "qwen3:8b",
			Timeout:     "120s",
			MaxRetries:  3,
			Temperature: 0.2,
			MaxTokens:   4096,
		},

		Orchestrator: OrchestratorConfig{
			MaxTurns:      20,
			MaxToolSteps:  8,
			HistoryWindow: 20,
			PreviewLimit:  400,
		},

		Storage: StorageConfig{
			DatabasePath: "data/viewsmith.db",
			HistoryPath:  "data/chat_history.jsonl",
			MirrorLimit:  256,
			Seed:         true,
		},

		Logging: LoggingConfig{
			Enabled: false,
			Level:   "info",
			Dir:     "logs",
		},
	}
}

// Load loads configuration from a YAML file. A missing file is not an
// error; defaults plus environment overrides apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to path as YAML, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides lets environment variables win over file values.
func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("VIEWSMITH_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if path := os.Getenv("VIEWSMITH_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
	if path := os.Getenv("VIEWSMITH_HISTORY"); path != "" {
		c.Storage.HistoryPath = path
	}
	if model := os.Getenv("VIEWSMITH_MODEL"); model != "" {
		c.Model.Model = model
	}
	if endpoint := os.Getenv("OLLAMA_ENDPOINT"); endpoint != "" {
		c.Model.Endpoint = endpoint
		if c.Model.Provider == "" {
			c.Model.Provider = "ollama"
		}
	}

	// API keys in priority order; the last match wins
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Model.APIKey = key
		c.Model.Provider = "openai"
	}
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		c.Model.APIKey = key
		c.Model.Provider = "openrouter"
	}
}

// GetModelTimeout returns the model call timeout as a duration.
func (c *Config) GetModelTimeout() time.Duration {
	d, err := time.ParseDuration(c.Model.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetReadTimeout returns the server read timeout as a duration.
func (c *Config) GetReadTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ReadTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetIdleTimeout returns the server idle timeout as a duration.
func (c *Config) GetIdleTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.IdleTimeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetShutdownTimeout returns the graceful shutdown deadline.
func (c *Config) GetShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// ValidProviders lists all supported model providers.
var ValidProviders = []string{"ollama", "openai", "openrouter"}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server address not configured")
	}

	validProvider := false
	for _, p := range ValidProviders {
		if c.Model.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid model provider: %s (valid: %v)", c.Model.Provider, ValidProviders)
	}

	// Ollama runs locally without a key; hosted providers need one.
	if c.Model.Provider != "ollama" && c.Model.APIKey == "" {
		return fmt.Errorf("model API key not configured (set OPENAI_API_KEY or OPENROUTER_API_KEY)")
	}

	if c.Orchestrator.MaxTurns <= 0 {
		return fmt.Errorf("orchestrator max_turns must be positive")
	}
	if c.Orchestrator.MaxToolSteps <= 0 {
		return fmt.Errorf("orchestrator max_tool_steps must be positive")
	}
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage database_path not configured")
	}
	if c.Storage.HistoryPath == "" {
		return fmt.Errorf("storage history_path not configured")
	}

	return nil
}
