package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
)

type MemoryVideoRepository struct {
	videos map[domain.VideoID]domain.Video
	mu     sync.RWMutex
}

func NewMemoryVideoRepository() ports.VideoRepository {
	return &MemoryVideoRepository{
		videos: make(map[domain.VideoID]domain.Video),
	}
}

func (r *MemoryVideoRepository) Create(ctx context.Context, video *domain.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.videos[video.ID]; exists {
		return fmt.Errorf("%w: video already exists: %s", domain.ErrConflict, video.ID)
	}

	r.videos[video.ID] = *video
	return nil
}

func (r *MemoryVideoRepository) GetByID(ctx context.Context, id domain.VideoID) (*domain.Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	video, exists := r.videos[id]
	if !exists {
		return nil, domain.ErrVideoNotFound
	}
	return &video, nil
}

// ListByCourse returns the course's videos in playback order.
func (r *MemoryVideoRepository) ListByCourse(ctx context.Context, courseID domain.CourseID) ([]*domain.Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var videos []*domain.Video
	for _, video := range r.videos {
		if video.CourseID == courseID {
			v := video
			videos = append(videos, &v)
		}
	}
	sort.Slice(videos, func(i, j int) bool {
		return videos[i].OrderIndex < videos[j].OrderIndex
	})
	return videos, nil
}

// List returns every video newest first.
func (r *MemoryVideoRepository) List(ctx context.Context) ([]*domain.Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	videos := make([]*domain.Video, 0, len(r.videos))
	for _, video := range r.videos {
		v := video
		videos = append(videos, &v)
	}
	sort.Slice(videos, func(i, j int) bool {
		return videos[i].CreatedAt.After(videos[j].CreatedAt)
	})
	return videos, nil
}

// Update replaces the editable fields. The course, content ref and creation time of a
// video never change.
func (r *MemoryVideoRepository) Update(ctx context.Context, video *domain.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.videos[video.ID]
	if !exists {
		return domain.ErrVideoNotFound
	}
	updated := *video
	updated.CourseID = existing.CourseID
	updated.ContentRef = existing.ContentRef
	updated.CreatedAt = existing.CreatedAt
	r.videos[video.ID] = updated
	return nil
}

func (r *MemoryVideoRepository) Delete(ctx context.Context, id domain.VideoID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.videos[id]; !exists {
		return domain.ErrVideoNotFound
	}
	delete(r.videos, id)
	return nil
}
