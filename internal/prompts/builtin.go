package prompts

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/timmy/talentscore/internal/domain"
)

// BuiltinTemplates serves the role rubrics shipped with the service.
type BuiltinTemplates struct {
	templates map[string]domain.PromptTemplate
}

// NewBuiltinTemplates returns the cto, cio and ciso templates.
func NewBuiltinTemplates() *BuiltinTemplates {
	return &BuiltinTemplates{templates: map[string]domain.PromptTemplate{
		"cto":  {ID: "cto", Role: "cto", Description: "Chief Technology Officer", Body: CTOTemplate, IsEnabled: true},
		"cio":  {ID: "cio", Role: "cio", Description: "Chief Information Officer", Body: CIOTemplate, IsEnabled: true},
		"ciso": {ID: "ciso", Role: "ciso", Description: "Chief Information Security Officer", Body: CISOTemplate, IsEnabled: true},
	}}
}

func (b *BuiltinTemplates) GetTemplate(_ context.Context, id string) (*domain.PromptTemplate, error) {
	tmpl, ok := b.templates[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, id)
	}
	return &tmpl, nil
}

// IDs lists the built-in template IDs in sorted order.
func (b *BuiltinTemplates) IDs() []string {
	ids := make([]string, 0, len(b.templates))
	for id := range b.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
