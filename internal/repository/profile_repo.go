package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/talentscore/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepository handles profile data operations.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new ProfileRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ProfileRepository: repository instance bound to db.
func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetProfile retrieves a profile by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: profile ID.
// Returns:
//   - *domain.Profile: profile if found.
//   - error: ErrProfileNotFound when absent.
func (r *ProfileRepository) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	var profile domain.Profile
	if err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, id)
		}
		return nil, fmt.Errorf("failed to load profile %s: %w", id, err)
	}
	return &profile, nil
}

// Upsert creates or replaces a profile keyed by ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - profile: profile to create or update.
// Returns:
//   - error: non-nil if the upsert fails.
func (r *ProfileRepository) Upsert(ctx context.Context, profile *domain.Profile) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(profile).Error
}

// Count returns the number of stored profiles.
func (r *ProfileRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Profile{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
