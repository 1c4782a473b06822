package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
)

// CourseDetail is a course together with its videos in playback order.
type CourseDetail struct {
	*domain.Course
	Videos []*domain.Video `json:"videos"`
}

// LibraryService serves the viewer's read side of the catalog. Course contents and
// video records are only shown to callers the entitlement checker lets through.
type LibraryService struct {
	store        *ports.RecordStore
	entitlements *EntitlementService
	lookup       storeLookup
	logger       *zap.SugaredLogger
}

func NewLibraryService(store *ports.RecordStore, entitlements *EntitlementService, lookupTimeout time.Duration, logger *zap.SugaredLogger) *LibraryService {
	return &LibraryService{
		store:        store,
		entitlements: entitlements,
		lookup:       newStoreLookup(lookupTimeout),
		logger:       logger,
	}
}

// ListCourses returns the published courses the caller is actively enrolled in.
func (s *LibraryService) ListCourses(ctx context.Context, identity *domain.Identity) ([]*domain.Course, error) {
	if identity == nil || identity.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}

	enrolled, err := s.entitlements.ActiveCourses(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}
	if len(enrolled) == 0 {
		return []*domain.Course{}, nil
	}

	courses, err := s.ListPublishedCourses(ctx)
	if err != nil {
		return nil, err
	}
	mine := make([]*domain.Course, 0, len(enrolled))
	for _, course := range courses {
		if enrolled[course.ID] {
			mine = append(mine, course)
		}
	}
	return mine, nil
}

// ListPublishedCourses is the public catalog; no enrollment is needed to browse it.
func (s *LibraryService) ListPublishedCourses(ctx context.Context) ([]*domain.Course, error) {
	courses, err := lookup(ctx, s.lookup, "list courses", s.store.Courses.List)
	if err != nil {
		return nil, err
	}
	published := make([]*domain.Course, 0, len(courses))
	for _, course := range courses {
		if course.Published {
			published = append(published, course)
		}
	}
	return published, nil
}

// GetCourse returns a course with its videos. Unpublished courses are hidden from
// everyone but admins.
func (s *LibraryService) GetCourse(ctx context.Context, identity *domain.Identity, id domain.CourseID) (*CourseDetail, error) {
	if identity == nil || identity.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}

	course, err := lookup(ctx, s.lookup, "get course", func(ctx context.Context) (*domain.Course, error) {
		return s.store.Courses.GetByID(ctx, id)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCourseNotFound
		}
		return nil, err
	}
	if !course.Published && !identity.IsAdmin() {
		return nil, domain.ErrCourseNotFound
	}

	if _, err := s.entitlements.CheckCourse(ctx, identity, id); err != nil {
		return nil, err
	}

	videos, err := lookup(ctx, s.lookup, "list course videos", func(ctx context.Context) ([]*domain.Video, error) {
		return s.store.Videos.ListByCourse(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if videos == nil {
		videos = []*domain.Video{}
	}
	return &CourseDetail{Course: course, Videos: videos}, nil
}

// GetVideo returns the video record after the same entitlement check playback runs.
func (s *LibraryService) GetVideo(ctx context.Context, identity *domain.Identity, id domain.VideoID) (*domain.Video, error) {
	decision, err := s.entitlements.Check(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	return decision.Video, nil
}
