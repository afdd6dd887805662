package ports

import (
	"context"

	"github.com/fleetwise/fleet-api/internal/core/domain"
)

// UpdateProfileInput lists the profile fields a user may change. Nil fields
// are left untouched.
type UpdateProfileInput struct {
	Name  *string
	Phone *string
}

// ProfileService serves cached profile reads and profile updates.
type ProfileService interface {
	GetProfile(ctx context.Context, accountID string) (*domain.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, accountID string, input UpdateProfileInput) (*domain.Profile, error)
}
