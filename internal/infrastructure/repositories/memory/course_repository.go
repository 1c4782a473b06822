package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
)

type MemoryCourseRepository struct {
	courses map[domain.CourseID]domain.Course
	mu      sync.RWMutex
}

func NewMemoryCourseRepository() ports.CourseRepository {
	return &MemoryCourseRepository{
		courses: make(map[domain.CourseID]domain.Course),
	}
}

func (r *MemoryCourseRepository) Create(ctx context.Context, course *domain.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.courses[course.ID]; exists {
		return fmt.Errorf("%w: course already exists: %s", domain.ErrConflict, course.ID)
	}

	r.courses[course.ID] = *course
	return nil
}

func (r *MemoryCourseRepository) GetByID(ctx context.Context, id domain.CourseID) (*domain.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	course, exists := r.courses[id]
	if !exists {
		return nil, domain.ErrCourseNotFound
	}
	return &course, nil
}

// List returns courses newest first.
func (r *MemoryCourseRepository) List(ctx context.Context) ([]*domain.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	courses := make([]*domain.Course, 0, len(r.courses))
	for _, course := range r.courses {
		c := course
		courses = append(courses, &c)
	}
	sort.Slice(courses, func(i, j int) bool {
		return courses[i].CreatedAt.After(courses[j].CreatedAt)
	})
	return courses, nil
}

func (r *MemoryCourseRepository) Update(ctx context.Context, course *domain.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.courses[course.ID]
	if !exists {
		return domain.ErrCourseNotFound
	}
	updated := *course
	updated.CreatedAt = existing.CreatedAt
	r.courses[course.ID] = updated
	return nil
}

func (r *MemoryCourseRepository) Delete(ctx context.Context, id domain.CourseID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.courses[id]; !exists {
		return domain.ErrCourseNotFound
	}
	delete(r.courses, id)
	return nil
}
