package llm

import (
	"context"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/talentscore/internal/prompts"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client   *resty.Client
	cfg      Config
	endpoint string
}

// NewOpenAIClient creates a chat completions client.
// Parameters:
//   - cfg: provider configuration; BaseURL defaults to the public OpenAI API.
// Returns:
//   - *OpenAIClient: initialized client.
func NewOpenAIClient(cfg Config) *OpenAIClient {
	cfg = cfg.withDefaults()

	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(cfg.Timeout)

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	return &OpenAIClient{
		client:   client,
		cfg:      cfg,
		endpoint: baseURL + "/chat/completions",
	}
}

func (c *OpenAIClient) Model() string    { return c.cfg.Model }
func (c *OpenAIClient) Provider() string { return "openai" }

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    float32         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type chatErrorResponse struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Score sends the prompt as a single user turn behind the scoring system prompt.
// Parameters:
//   - ctx: context for cancellation; a per-call deadline of cfg.Timeout is added.
//   - req: resolved prompt and model options.
// Returns:
//   - *Response: raw text and token usage.
//   - error: *Error classified by HTTP status or transport failure.
func (c *OpenAIClient) Score(ctx context.Context, req *Request) (*Response, error) {
	if c.cfg.APIKey == "" {
		return nil, missingKeyError("openai")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	opts := c.cfg.resolve(req.Options)
	body := chatRequest{
		Model: opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: prompts.ScoringSystemPrompt},
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	if c.cfg.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var result chatResponse
	var apiErr chatErrorResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&apiErr).
		Post(c.endpoint)
	if err != nil {
		if httpResp == nil || httpResp.StatusCode() == 0 {
			return nil, transportError(err)
		}
		if httpResp.IsSuccess() {
			return nil, malformed("decode response: %v", err)
		}
	}

	if !httpResp.IsSuccess() {
		msg := strings.TrimSpace(string(httpResp.Body()))
		if apiErr.Error != nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return nil, statusError(httpResp.StatusCode(), msg)
	}

	if len(result.Choices) == 0 {
		return nil, malformed("no choices in response (status: %d)", httpResp.StatusCode())
	}
	text := strings.TrimSpace(result.Choices[0].Message.Content)
	if text == "" {
		return nil, malformed("empty message content (finish_reason: %s)", result.Choices[0].FinishReason)
	}

	model := result.Model
	if model == "" {
		model = opts.Model
	}
	return &Response{
		Text:             text,
		Model:            model,
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
		TotalTokens:      result.Usage.TotalTokens,
	}, nil
}

var _ Client = (*OpenAIClient)(nil)
