package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/timmy/talentscore/internal/domain"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	resp   *genai.GenerateContentResponse
	err    error
	model  string
	config *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, _ []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	return f.resp, f.err
}

func newTestGeminiClient(gen *fakeGenerator) *GeminiClient {
	return &GeminiClient{
		models: gen,
		cfg:    Config{Model: "gemini-2.5-flash", MaxTokens: 512, Temperature: 0.3, Timeout: time.Second, JSONMode: true},
	}
}

func TestGeminiScoreSuccess(t *testing.T) {
	gen := &fakeGenerator{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: `{"overall_score": 64,`}, {Text: `"fit": false}`}}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     300,
			CandidatesTokenCount: 40,
			TotalTokenCount:      340,
		},
	}}

	resp, err := newTestGeminiClient(gen).Score(context.Background(), &Request{Prompt: "p"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if resp.TotalTokens != 340 || resp.PromptTokens != 300 {
		t.Errorf("usage = %+v", resp)
	}
	if gen.model != "gemini-2.5-flash" || gen.config.MaxOutputTokens != 512 || gen.config.ResponseMIMEType != "application/json" {
		t.Errorf("request config = model %s %+v", gen.model, gen.config)
	}
	if _, err := ParseResult(resp.Text); err != nil {
		t.Errorf("joined parts should form valid JSON: %v (%q)", err, resp.Text)
	}
}

func TestGeminiErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{"resource exhausted", genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED"}, domain.ErrorKindRateLimited},
		{"unauthenticated", genai.APIError{Code: http.StatusUnauthorized, Status: "UNAUTHENTICATED"}, domain.ErrorKindAuth},
		{"permission denied", genai.APIError{Code: http.StatusForbidden, Status: "PERMISSION_DENIED"}, domain.ErrorKindAuth},
		{"internal", genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}, domain.ErrorKindProvider},
		{"deadline", context.DeadlineExceeded, domain.ErrorKindTimeout},
		{"transport", errors.New("connection reset"), domain.ErrorKindProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestGeminiClient(&fakeGenerator{err: tt.err}).Score(context.Background(), &Request{Prompt: "p"})
			if got := KindOf(err); got != tt.want {
				t.Errorf("kind = %s, want %s (%v)", got, tt.want, err)
			}
		})
	}
}

func TestGeminiEmptyResponse(t *testing.T) {
	_, err := newTestGeminiClient(&fakeGenerator{resp: &genai.GenerateContentResponse{}}).Score(context.Background(), &Request{Prompt: "p"})
	if KindOf(err) != domain.ErrorKindMalformedResponse {
		t.Fatalf("got %v, want malformed_response", err)
	}
}

func TestGeminiMissingKey(t *testing.T) {
	c, err := NewGeminiClient(context.Background(), Config{})
	if err != nil {
		t.Fatalf("NewGeminiClient: %v", err)
	}
	if _, err := c.Score(context.Background(), &Request{Prompt: "p"}); KindOf(err) != domain.ErrorKindAuth {
		t.Fatalf("got %v, want auth_error", err)
	}
}
