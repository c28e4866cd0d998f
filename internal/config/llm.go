package config

import (
	"fmt"
	"os"
	"time"
)

// LLMConfig defines the model provider used to score profiles.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`     // "openai" (any OpenAI-compatible API) or "gemini"
	Model       string        `mapstructure:"model"`        // Model name/ID
	APIKey      string        `mapstructure:"api_key"`      // API key (can be set directly or via env var)
	APIKeyEnv   string        `mapstructure:"api_key_env"`  // Environment variable name for API key
	BaseURL     string        `mapstructure:"base_url"`     // Base URL for OpenAI-compatible APIs
	BaseURLEnv  string        `mapstructure:"base_url_env"` // Environment variable name for base URL
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"` // Hard deadline per model call
	JSONMode    bool          `mapstructure:"json_mode"`
}

// ResolveEnvVars resolves environment variable references in the configuration.
// Direct values (APIKey, BaseURL) take precedence if already set. Without an
// explicit APIKeyEnv the provider's conventional variable is consulted.
func (c *LLMConfig) ResolveEnvVars() {
	keyEnv := c.APIKeyEnv
	if keyEnv == "" {
		keyEnv = c.defaultKeyEnv()
	}
	if c.APIKey == "" && keyEnv != "" {
		c.APIKey = os.Getenv(keyEnv)
	}

	if c.BaseURLEnv != "" && c.BaseURL == "" {
		if val := os.Getenv(c.BaseURLEnv); val != "" {
			c.BaseURL = val
		}
	}
}

func (c *LLMConfig) defaultKeyEnv() string {
	switch c.Provider {
	case "gemini":
		return "GEMINI_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	}
	return ""
}

// Validate checks that the LLM configuration has all required fields.
// A missing API key is not an error here: calls then fail with auth_error.
func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("llm: unknown provider %q", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("llm %q: model is required", c.Provider)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("llm %q: max_tokens must be positive", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("llm %q: temperature must be within [0, 2]", c.Provider)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("llm %q: timeout must be positive", c.Provider)
	}
	return nil
}
