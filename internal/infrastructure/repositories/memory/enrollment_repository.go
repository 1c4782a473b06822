package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
)

type MemoryEnrollmentRepository struct {
	enrollments map[domain.EnrollmentID]domain.Enrollment
	mu          sync.RWMutex
}

func NewMemoryEnrollmentRepository() ports.EnrollmentRepository {
	return &MemoryEnrollmentRepository{
		enrollments: make(map[domain.EnrollmentID]domain.Enrollment),
	}
}

func (r *MemoryEnrollmentRepository) Create(ctx context.Context, enrollment *domain.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.enrollments[enrollment.ID]; exists {
		return fmt.Errorf("%w: enrollment already exists: %s", domain.ErrConflict, enrollment.ID)
	}

	r.enrollments[enrollment.ID] = cloneEnrollment(*enrollment)
	return nil
}

func (r *MemoryEnrollmentRepository) CreateUnlessActive(ctx context.Context, enrollment *domain.Enrollment, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.enrollments {
		if existing.UserID == enrollment.UserID && existing.CourseID == enrollment.CourseID && existing.ActiveAt(now) {
			return domain.ErrAlreadyEnrolled
		}
	}
	if _, exists := r.enrollments[enrollment.ID]; exists {
		return fmt.Errorf("%w: enrollment already exists: %s", domain.ErrConflict, enrollment.ID)
	}

	r.enrollments[enrollment.ID] = cloneEnrollment(*enrollment)
	return nil
}

func (r *MemoryEnrollmentRepository) GetByID(ctx context.Context, id domain.EnrollmentID) (*domain.Enrollment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	enrollment, exists := r.enrollments[id]
	if !exists {
		return nil, domain.ErrEnrollmentNotFound
	}
	e := cloneEnrollment(enrollment)
	return &e, nil
}

// FindByUserAndCourse returns every matching enrollment, expired ones included.
// Callers decide activity, so an empty result is not an error.
func (r *MemoryEnrollmentRepository) FindByUserAndCourse(ctx context.Context, userID domain.UserID, courseID domain.CourseID) ([]*domain.Enrollment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*domain.Enrollment
	for _, enrollment := range r.enrollments {
		if enrollment.UserID == userID && enrollment.CourseID == courseID {
			e := cloneEnrollment(enrollment)
			matches = append(matches, &e)
		}
	}
	return matches, nil
}

// ListByUser returns the user's enrollments newest first, expired ones included.
func (r *MemoryEnrollmentRepository) ListByUser(ctx context.Context, userID domain.UserID) ([]*domain.Enrollment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*domain.Enrollment
	for _, enrollment := range r.enrollments {
		if enrollment.UserID == userID {
			e := cloneEnrollment(enrollment)
			matches = append(matches, &e)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].EnrolledAt.After(matches[j].EnrolledAt)
	})
	return matches, nil
}

func (r *MemoryEnrollmentRepository) List(ctx context.Context) ([]*domain.Enrollment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	enrollments := make([]*domain.Enrollment, 0, len(r.enrollments))
	for _, enrollment := range r.enrollments {
		e := cloneEnrollment(enrollment)
		enrollments = append(enrollments, &e)
	}
	sort.Slice(enrollments, func(i, j int) bool {
		return enrollments[i].EnrolledAt.After(enrollments[j].EnrolledAt)
	})
	return enrollments, nil
}

func (r *MemoryEnrollmentRepository) Delete(ctx context.Context, id domain.EnrollmentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.enrollments[id]; !exists {
		return domain.ErrEnrollmentNotFound
	}
	delete(r.enrollments, id)
	return nil
}

func (r *MemoryEnrollmentRepository) DeleteByCourse(ctx context.Context, courseID domain.CourseID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, enrollment := range r.enrollments {
		if enrollment.CourseID == courseID {
			delete(r.enrollments, id)
		}
	}
	return nil
}

// DeleteExpiredBefore removes enrollments whose expiry is earlier than cutoff.
func (r *MemoryEnrollmentRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, enrollment := range r.enrollments {
		if enrollment.ExpiresAt != nil && enrollment.ExpiresAt.Before(cutoff) {
			delete(r.enrollments, id)
			removed++
		}
	}
	return removed, nil
}

func cloneEnrollment(e domain.Enrollment) domain.Enrollment {
	if e.ExpiresAt != nil {
		exp := *e.ExpiresAt
		e.ExpiresAt = &exp
	}
	return e
}
