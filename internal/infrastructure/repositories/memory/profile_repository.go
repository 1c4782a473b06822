package memory

import (
	"context"
	"sort"
	"sync"

	"streamgate/internal/core/domain"
)

// MemoryProfileRepository holds profiles created by the identity provider. The service
// only changes roles; Put exists for seeding and tests.
type MemoryProfileRepository struct {
	profiles map[domain.UserID]domain.Profile
	mu       sync.RWMutex
}

func NewMemoryProfileRepository() *MemoryProfileRepository {
	return &MemoryProfileRepository{
		profiles: make(map[domain.UserID]domain.Profile),
	}
}

func (r *MemoryProfileRepository) Put(profile domain.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[profile.ID] = profile
}

func (r *MemoryProfileRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, exists := r.profiles[id]
	if !exists {
		return nil, domain.ErrProfileNotFound
	}
	return &profile, nil
}

func (r *MemoryProfileRepository) Exists(ctx context.Context, id domain.UserID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.profiles[id]
	return exists, nil
}

// List returns profiles oldest first.
func (r *MemoryProfileRepository) List(ctx context.Context) ([]*domain.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profiles := make([]*domain.Profile, 0, len(r.profiles))
	for _, profile := range r.profiles {
		p := profile
		profiles = append(profiles, &p)
	}
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].CreatedAt.Equal(profiles[j].CreatedAt) {
			return profiles[i].ID < profiles[j].ID
		}
		return profiles[i].CreatedAt.Before(profiles[j].CreatedAt)
	})
	return profiles, nil
}

func (r *MemoryProfileRepository) UpdateRole(ctx context.Context, id domain.UserID, role domain.Role) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile, exists := r.profiles[id]
	if !exists {
		return nil, domain.ErrProfileNotFound
	}
	profile.Role = role
	r.profiles[id] = profile
	return &profile, nil
}
