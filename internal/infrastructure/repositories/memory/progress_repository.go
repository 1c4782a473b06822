package memory

import (
	"context"
	"sync"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
)

type progressKey struct {
	user  domain.UserID
	video domain.VideoID
}

type MemoryProgressRepository struct {
	progress map[progressKey]domain.WatchProgress
	mu       sync.RWMutex
}

func NewMemoryProgressRepository() ports.ProgressRepository {
	return &MemoryProgressRepository{
		progress: make(map[progressKey]domain.WatchProgress),
	}
}

func (r *MemoryProgressRepository) Get(ctx context.Context, userID domain.UserID, videoID domain.VideoID) (*domain.WatchProgress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.progress[progressKey{userID, videoID}]
	if !exists {
		return nil, domain.ErrProgressNotFound
	}
	return &p, nil
}

// Upsert keeps one row per (user, video).
func (r *MemoryProgressRepository) Upsert(ctx context.Context, progress *domain.WatchProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.progress[progressKey{progress.UserID, progress.VideoID}] = *progress
	return nil
}

func (r *MemoryProgressRepository) DeleteByVideo(ctx context.Context, videoID domain.VideoID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.progress {
		if key.video == videoID {
			delete(r.progress, key)
		}
	}
	return nil
}
