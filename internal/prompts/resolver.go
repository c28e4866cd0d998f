package prompts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/timmy/talentscore/internal/domain"
)

// TemplateStore looks up stored prompt templates by ID.
type TemplateStore interface {
	GetTemplate(ctx context.Context, id string) (*domain.PromptTemplate, error)
}

// Resolver turns a job's prompt source and profile into the final prompt text.
type Resolver struct {
	stores []TemplateStore
}

// NewResolver creates a Resolver that consults stores in order.
// A store answering ErrTemplateNotFound passes the lookup to the next one.
func NewResolver(stores ...TemplateStore) *Resolver {
	return &Resolver{stores: stores}
}

// Resolve builds the prompt sent to the model.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - src: template reference or raw prompt text.
//   - profile: profile to serialize into the prompt.
// Returns:
//   - string: the fully resolved prompt; it contains the profile.
//   - error: wraps ErrResolution on any failure.
func (r *Resolver) Resolve(ctx context.Context, src domain.PromptSource, profile *domain.Profile) (string, error) {
	if profile == nil {
		return "", fmt.Errorf("%w: profile is required", domain.ErrResolution)
	}

	payload, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: serialize profile %s: %v", domain.ErrResolution, profile.ID, err)
	}

	switch src.Kind {
	case domain.PromptSourceTemplate:
		tmpl, err := r.lookup(ctx, src.Ref)
		if err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrResolution, err)
		}
		return render(tmpl, profile, string(payload)), nil
	case domain.PromptSourceRaw:
		text := strings.TrimSpace(src.Ref)
		if text == "" {
			return "", fmt.Errorf("%w: raw prompt is empty", domain.ErrResolution)
		}
		if strings.Contains(text, PlaceholderProfileJSON) {
			return strings.ReplaceAll(text, PlaceholderProfileJSON, string(payload)), nil
		}
		return text + RawPromptProfileHeader + string(payload), nil
	default:
		return "", fmt.Errorf("%w: unknown prompt source kind %q", domain.ErrResolution, src.Kind)
	}
}

func (r *Resolver) lookup(ctx context.Context, id string) (*domain.PromptTemplate, error) {
	for _, store := range r.stores {
		tmpl, err := store.GetTemplate(ctx, id)
		if err == nil {
			return tmpl, nil
		}
		if !errors.Is(err, domain.ErrTemplateNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, id)
}

func render(tmpl *domain.PromptTemplate, profile *domain.Profile, payload string) string {
	out := strings.ReplaceAll(tmpl.Body, PlaceholderRole, strings.ToUpper(tmpl.Role))
	out = strings.ReplaceAll(out, PlaceholderProfileName, profile.FullName)
	out = strings.ReplaceAll(out, PlaceholderProfileJSON, payload)
	if !strings.Contains(tmpl.Body, PlaceholderProfileJSON) {
		out += RawPromptProfileHeader + payload
	}
	return out
}
