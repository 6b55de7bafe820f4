package profile

import (
	"context"
	"sync"

	"applypilot/pkg/models"
)

// StaticProvider serves profiles from memory. Used in tests and in
// deployments without a profile service.
type StaticProvider struct {
	mu       sync.RWMutex
	profiles map[string]models.UserProfile
}

// NewStaticProvider creates an empty in-memory profile provider
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		profiles: make(map[string]models.UserProfile),
	}
}

// Put stores or replaces the profile for a user
func (p *StaticProvider) Put(prof models.UserProfile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[prof.UserID] = prof
}

// GetProfile returns the stored profile for the given user
func (p *StaticProvider) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	prof, ok := p.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	out := prof
	return &out, nil
}
