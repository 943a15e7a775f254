package model

import (
	"fmt"
	"strings"
	"time"

	"viewsmith/internal/config"
)

// Default endpoints per provider, used when the config leaves the endpoint
// empty.
const (
	ollamaEndpoint     = "http://localhost:11434/v1"
	openAIEndpoint     = "https://api.openai.com/v1"
	openRouterEndpoint = "https://openrouter.ai/api/v1"
)

// New builds a client from the model section of the config. Provider presets
// fill in the endpoint; openai and openrouter require an API key, ollama does
// not.
func New(cfg config.ModelConfig) (Client, error) {
	timeout := defaultTimeout
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid model timeout %q: %w", cfg.Timeout, err)
		}
		timeout = d
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	endpoint := cfg.Endpoint
	var name string

	switch provider {
	case "", "ollama":
		name = "Ollama"
		if endpoint == "" {
			endpoint = ollamaEndpoint
		}

	case "openai":
		name = "OpenAI"
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		if endpoint == "" {
			endpoint = openAIEndpoint
		}

	case "openrouter":
		name = "OpenRouter"
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openrouter provider requires an API key")
		}
		if endpoint == "" {
			endpoint = openRouterEndpoint
		}

	default:
		return nil, fmt.Errorf("unknown provider: %s (valid: ollama, openai, openrouter)", cfg.Provider)
	}

	client := NewChatClient(name, endpoint, cfg.APIKey, cfg.Model, timeout)
	client.temperature = cfg.Temperature
	client.maxTokens = cfg.MaxTokens
	if cfg.MaxRetries > 0 {
		client.maxRetries = cfg.MaxRetries
	}
	return client, nil
}
