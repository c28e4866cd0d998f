package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/talentscore/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PromptTemplateRepository handles stored prompt templates.
type PromptTemplateRepository struct {
	db *gorm.DB
}

// NewPromptTemplateRepository creates a new PromptTemplateRepository.
func NewPromptTemplateRepository(db *gorm.DB) *PromptTemplateRepository {
	return &PromptTemplateRepository{db: db}
}

// GetTemplate retrieves an enabled template by ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: template ID.
// Returns:
//   - *domain.PromptTemplate: template if found and enabled.
//   - error: ErrTemplateNotFound when absent or disabled.
func (r *PromptTemplateRepository) GetTemplate(ctx context.Context, id string) (*domain.PromptTemplate, error) {
	var tmpl domain.PromptTemplate
	err := r.db.WithContext(ctx).First(&tmpl, "id = ? AND is_enabled = ?", id, true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, id)
		}
		return nil, fmt.Errorf("failed to load prompt template %s: %w", id, err)
	}
	return &tmpl, nil
}

// Upsert creates or replaces a template keyed by ID.
func (r *PromptTemplateRepository) Upsert(ctx context.Context, tmpl *domain.PromptTemplate) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(tmpl).Error
}
