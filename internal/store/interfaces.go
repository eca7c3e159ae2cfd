package store

import (
	"context"

	"github.com/kraabmod/profiles-service/internal/domain"
)

// ListProfilesParams holds the filters for listing profiles.
type ListProfilesParams struct {
	Locale     string
	CategoryID *string // optional category filter
}

// ProfileStorer defines the database operations for profiles.
type ProfileStorer interface {
	ListProfiles(ctx context.Context, params ListProfilesParams) ([]domain.ProfileView, error)
	GetProfileByID(ctx context.Context, id, locale string) (*domain.ProfileView, error)
	GetProfileBySlug(ctx context.Context, slug, locale string) (*domain.ProfileView, error)
	CreateProfile(ctx context.Context, profile *domain.NewProfile) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, id string, patch *domain.ProfilePatch) error
	DeleteProfile(ctx context.Context, id string) error
}
