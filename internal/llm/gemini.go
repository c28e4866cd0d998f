package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/timmy/talentscore/internal/domain"
	"github.com/timmy/talentscore/internal/prompts"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// contentGenerator is the slice of *genai.Models the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient scores profiles through the Google GenAI SDK.
type GeminiClient struct {
	models contentGenerator
	cfg    Config
}

// NewGeminiClient creates a client for the Gemini API backend.
// Without an API key the client is still returned and every call fails with auth_error.
func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultGeminiModel
	}
	if cfg.APIKey == "" {
		return &GeminiClient{cfg: cfg}, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{models: client.Models, cfg: cfg}, nil
}

func (c *GeminiClient) Model() string    { return c.cfg.Model }
func (c *GeminiClient) Provider() string { return "gemini" }

// Score sends the prompt with the scoring system instruction and JSON output.
func (c *GeminiClient) Score(ctx context.Context, req *Request) (*Response, error) {
	if c.models == nil {
		return nil, missingKeyError("gemini")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	opts := c.cfg.resolve(req.Options)
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: prompts.ScoringSystemPrompt}}},
		Temperature:       genai.Ptr(opts.Temperature),
		MaxOutputTokens:   int32(opts.MaxTokens),
	}
	if c.cfg.JSONMode {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := c.models.GenerateContent(ctx, opts.Model, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	text := joinCandidateText(resp)
	if text == "" {
		return nil, malformed("gemini api returned empty response")
	}

	out := &Response{Text: text, Model: opts.Model}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		out.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	return out, nil
}

func joinCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}
	return strings.TrimSpace(builder.String())
}

// classifyGeminiError maps SDK errors onto the shared error kinds.
func classifyGeminiError(err error) *Error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return geminiAPIError(apiErr, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return geminiAPIError(*apiErrPtr, err)
	}
	return transportError(err)
}

func geminiAPIError(apiErr genai.APIError, cause error) *Error {
	kind := kindForStatus(apiErr.Code)
	switch apiErr.Status {
	case "RESOURCE_EXHAUSTED":
		kind = domain.ErrorKindRateLimited
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		kind = domain.ErrorKindAuth
	case "DEADLINE_EXCEEDED":
		kind = domain.ErrorKindTimeout
	}
	msg := apiErr.Message
	if msg == "" {
		msg = http.StatusText(apiErr.Code)
	}
	return &Error{Kind: kind, StatusCode: apiErr.Code, Message: msg, Err: cause}
}

var _ Client = (*GeminiClient)(nil)
