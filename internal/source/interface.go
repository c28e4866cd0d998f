package source

import (
	"context"

	"github.com/timmy/talentscore/internal/domain"
)

// ProfileSource resolves the profile a scoring job refers to.
type ProfileSource interface {
	// GetProfile returns the profile with the given ID.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - id: profile identifier.
	// Returns:
	//   - *domain.Profile: the profile.
	//   - error: wraps domain.ErrProfileNotFound when the ID is unknown.
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
}

// BatchSource is a ProfileSource that can also be enumerated, used for bulk imports.
type BatchSource interface {
	ProfileSource

	// GetSourceID returns the unique identifier for this source.
	GetSourceID() string

	// FetchBatch fetches profiles starting from the given cursor.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - cursor: pagination cursor or empty for first page.
	//   - limit: maximum number of profiles to fetch.
	// Returns:
	//   - profiles: batch of profiles.
	//   - nextCursor: cursor for the next batch or empty if done.
	//   - err: non-nil if fetching fails.
	FetchBatch(ctx context.Context, cursor string, limit int) (profiles []domain.Profile, nextCursor string, err error)
}
