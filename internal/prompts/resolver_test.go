package prompts

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/timmy/talentscore/internal/domain"
)

type stubStore struct {
	templates map[string]*domain.PromptTemplate
	err       error
}

func (s *stubStore) GetTemplate(_ context.Context, id string) (*domain.PromptTemplate, error) {
	if s.err != nil {
		return nil, s.err
	}
	if tmpl, ok := s.templates[id]; ok {
		return tmpl, nil
	}
	return nil, domain.ErrTemplateNotFound
}

func testProfile() *domain.Profile {
	return &domain.Profile{
		ID:       "grace",
		FullName: "Grace Hopper",
		Headline: "Rear Admiral, Computing Pioneer",
		Skills:   domain.StringArray{"compilers", "leadership"},
	}
}

func TestResolveBuiltinTemplate(t *testing.T) {
	r := NewResolver(NewBuiltinTemplates())

	prompt, err := r.Resolve(context.Background(), domain.PromptSource{Kind: domain.PromptSourceTemplate, Ref: "cto"}, testProfile())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	for _, want := range []string{"role of CTO", "Candidate: Grace Hopper", `"full_name": "Grace Hopper"`, "technical_vision"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "{{") {
		t.Errorf("unresolved placeholder in prompt:\n%s", prompt)
	}
}

func TestResolveStoreOrder(t *testing.T) {
	custom := &stubStore{templates: map[string]*domain.PromptTemplate{
		"cto": {ID: "cto", Role: "cto", Body: "custom rubric for {{PROFILE_NAME}}"},
	}}
	r := NewResolver(custom, NewBuiltinTemplates())

	prompt, err := r.Resolve(context.Background(), domain.PromptSource{Kind: domain.PromptSourceTemplate, Ref: "cto"}, testProfile())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.HasPrefix(prompt, "custom rubric for Grace Hopper") {
		t.Errorf("stored template should win, got %q", prompt)
	}
	if !strings.Contains(prompt, RawPromptProfileHeader) {
		t.Error("template without profile placeholder should get the profile appended")
	}

	// ciso is only built in, so the lookup falls through.
	if _, err := r.Resolve(context.Background(), domain.PromptSource{Kind: domain.PromptSourceTemplate, Ref: "ciso"}, testProfile()); err != nil {
		t.Errorf("fallback to builtin failed: %v", err)
	}
}

func TestResolveRawPrompt(t *testing.T) {
	r := NewResolver()

	prompt, err := r.Resolve(context.Background(), domain.PromptSource{Kind: domain.PromptSourceRaw, Ref: "Rate this candidate as a VP Data."}, testProfile())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.HasPrefix(prompt, "Rate this candidate as a VP Data.") || !strings.Contains(prompt, `"id": "grace"`) {
		t.Errorf("raw prompt not combined with profile:\n%s", prompt)
	}

	inline, err := r.Resolve(context.Background(), domain.PromptSource{Kind: domain.PromptSourceRaw, Ref: "Profile: {{PROFILE_JSON}} END"}, testProfile())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.HasSuffix(inline, "END") || strings.Contains(inline, RawPromptProfileHeader) {
		t.Errorf("inline placeholder not substituted in place:\n%s", inline)
	}
}

func TestResolveErrors(t *testing.T) {
	failing := &stubStore{err: errors.New("db down")}

	tests := []struct {
		name     string
		resolver *Resolver
		src      domain.PromptSource
		profile  *domain.Profile
	}{
		{"unknown template", NewResolver(NewBuiltinTemplates()), domain.PromptSource{Kind: domain.PromptSourceTemplate, Ref: "cfo"}, testProfile()},
		{"store failure", NewResolver(failing, NewBuiltinTemplates()), domain.PromptSource{Kind: domain.PromptSourceTemplate, Ref: "cto"}, testProfile()},
		{"empty raw", NewResolver(), domain.PromptSource{Kind: domain.PromptSourceRaw, Ref: "   "}, testProfile()},
		{"unknown kind", NewResolver(), domain.PromptSource{Kind: "file", Ref: "x"}, testProfile()},
		{"nil profile", NewResolver(), domain.PromptSource{Kind: domain.PromptSourceRaw, Ref: "x"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.resolver.Resolve(context.Background(), tt.src, tt.profile)
			if !errors.Is(err, domain.ErrResolution) {
				t.Errorf("got %v, want ErrResolution", err)
			}
		})
	}
}

func TestBuiltinTemplateIDs(t *testing.T) {
	ids := NewBuiltinTemplates().IDs()
	if strings.Join(ids, ",") != "cio,ciso,cto" {
		t.Errorf("IDs = %v", ids)
	}
}
