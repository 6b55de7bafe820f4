package profile

import (
	"context"
	"errors"

	"applypilot/pkg/models"
)

// ErrProfileNotFound is returned when the profile service has no profile for
// the requested user
var ErrProfileNotFound = errors.New("profile not found")

// Provider resolves the applicant profile used to fill application forms
type Provider interface {
	// GetProfile fetches the profile for the given user. Returns
	// ErrProfileNotFound when the user has no stored profile.
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
}
