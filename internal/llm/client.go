// Package llm calls hosted language models to score profiles and classifies
// their failures into the error kinds stored on jobs.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultMaxTokens   = 1024
	DefaultTemperature = 0.2
	DefaultTimeout     = 45 * time.Second
)

// Client sends one scoring prompt to a model. Implementations never retry;
// the caller owns the retry budget.
type Client interface {
	Score(ctx context.Context, req *Request) (*Response, error)
	Model() string
	Provider() string
}

// ModelOptions overrides the configured model parameters for one call.
// Zero values fall back to the client defaults.
type ModelOptions struct {
	Model       string
	MaxTokens   int
	Temperature float32
}

// Request is a fully resolved prompt. The profile is already serialized into Prompt.
type Request struct {
	Prompt    string
	ProfileID string
	Options   ModelOptions
}

// Response is the raw model output and its token accounting.
type Response struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Config selects and configures a provider.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	JSONMode    bool
}

func (c Config) withDefaults() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Temperature <= 0 {
		c.Temperature = DefaultTemperature
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	c.APIKey = strings.TrimSpace(c.APIKey)
	return c
}

// New builds the client for cfg.Provider.
// Parameters:
//   - ctx: context used while constructing SDK clients.
//   - cfg: provider configuration.
// Returns:
//   - Client: ready client; a missing API key yields a client whose calls fail with auth_error.
//   - error: non-nil for unknown providers or SDK setup failures.
func New(ctx context.Context, cfg Config) (Client, error) {
	cfg = cfg.withDefaults()
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIClient(cfg), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// resolve merges per-call options with client defaults.
func (c Config) resolve(opts ModelOptions) ModelOptions {
	if opts.Model == "" {
		opts.Model = c.Model
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = c.MaxTokens
	}
	if opts.Temperature <= 0 {
		opts.Temperature = c.Temperature
	}
	return opts
}
