package ports

import (
	"context"
	"time"

	"streamgate/internal/core/domain"
)

// The record store only needs exact-match lookups; no joins are expressed here.

type CourseRepository interface {
	Create(ctx context.Context, course *domain.Course) error
	GetByID(ctx context.Context, id domain.CourseID) (*domain.Course, error)
	List(ctx context.Context) ([]*domain.Course, error)
	Update(ctx context.Context, course *domain.Course) error
	Delete(ctx context.Context, id domain.CourseID) error
}

type VideoRepository interface {
	Create(ctx context.Context, video *domain.Video) error
	GetByID(ctx context.Context, id domain.VideoID) (*domain.Video, error)
	ListByCourse(ctx context.Context, courseID domain.CourseID) ([]*domain.Video, error)
	List(ctx context.Context) ([]*domain.Video, error)
	Update(ctx context.Context, video *domain.Video) error
	Delete(ctx context.Context, id domain.VideoID) error
}

type EnrollmentRepository interface {
	Create(ctx context.Context, enrollment *domain.Enrollment) error
	// CreateUnlessActive inserts enrollment unless the same user already holds an
	// enrollment in the course that is active at now, in which case it returns
	// domain.ErrAlreadyEnrolled. The check and the insert are atomic.
	CreateUnlessActive(ctx context.Context, enrollment *domain.Enrollment, now time.Time) error
	GetByID(ctx context.Context, id domain.EnrollmentID) (*domain.Enrollment, error)
	FindByUserAndCourse(ctx context.Context, userID domain.UserID, courseID domain.CourseID) ([]*domain.Enrollment, error)
	ListByUser(ctx context.Context, userID domain.UserID) ([]*domain.Enrollment, error)
	List(ctx context.Context) ([]*domain.Enrollment, error)
	Delete(ctx context.Context, id domain.EnrollmentID) error
	DeleteByCourse(ctx context.Context, courseID domain.CourseID) error
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type ProgressRepository interface {
	Get(ctx context.Context, userID domain.UserID, videoID domain.VideoID) (*domain.WatchProgress, error)
	Upsert(ctx context.Context, progress *domain.WatchProgress) error
	DeleteByVideo(ctx context.Context, videoID domain.VideoID) error
}

type ProfileRepository interface {
	GetByID(ctx context.Context, id domain.UserID) (*domain.Profile, error)
	Exists(ctx context.Context, id domain.UserID) (bool, error)
	List(ctx context.Context) ([]*domain.Profile, error)
	UpdateRole(ctx context.Context, id domain.UserID, role domain.Role) (*domain.Profile, error)
}

// RecordStore bundles the repositories so they can be constructed once and injected together.
type RecordStore struct {
	Courses     CourseRepository
	Videos      VideoRepository
	Enrollments EnrollmentRepository
	Progress    ProgressRepository
	Profiles    ProfileRepository
}
