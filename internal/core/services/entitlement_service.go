package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
)

// AccessReason records why an entitlement check allowed access.
type AccessReason string

const (
	ReasonGranted       AccessReason = "granted"
	ReasonAdminOverride AccessReason = "admin_override"
)

// Decision is a positive entitlement answer. Denials are returned as errors.
type Decision struct {
	Video        *domain.Video
	Reason       AccessReason
	EnrollmentID domain.EnrollmentID
}

// EntitlementService answers whether a caller may watch a video right now. Answers are
// computed fresh on every call so a revoked or expired enrollment takes effect immediately.
type EntitlementService struct {
	videos      ports.VideoRepository
	enrollments ports.EnrollmentRepository
	lookup      storeLookup
	now         func() time.Time
	logger      *zap.SugaredLogger
}

func NewEntitlementService(store *ports.RecordStore, lookupTimeout time.Duration, logger *zap.SugaredLogger) *EntitlementService {
	return &EntitlementService{
		videos:      store.Videos,
		enrollments: store.Enrollments,
		lookup:      newStoreLookup(lookupTimeout),
		now:         time.Now,
		logger:      logger,
	}
}

// Check resolves the video and authorizes the caller against it. It fails with
// ErrNotFound for an unknown video, ErrForbidden without an active enrollment and
// ErrUpstreamUnavailable when the record store cannot answer.
func (s *EntitlementService) Check(ctx context.Context, identity *domain.Identity, videoID domain.VideoID) (*Decision, error) {
	if identity == nil || identity.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}

	video, err := lookup(ctx, s.lookup, "get video", func(ctx context.Context) (*domain.Video, error) {
		return s.videos.GetByID(ctx, videoID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrVideoNotFound
		}
		return nil, err
	}

	if identity.IsAdmin() {
		s.logger.Infow("entitlement granted by admin override",
			"user_id", identity.UserID,
			"video_id", videoID,
			"course_id", video.CourseID,
			"reason", string(ReasonAdminOverride),
		)
		return &Decision{Video: video, Reason: ReasonAdminOverride}, nil
	}

	active, seen, err := s.activeEnrollment(ctx, identity.UserID, video.CourseID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return &Decision{Video: video, Reason: ReasonGranted, EnrollmentID: active.ID}, nil
	}

	s.logger.Infow("entitlement denied",
		"user_id", identity.UserID,
		"video_id", videoID,
		"course_id", video.CourseID,
		"enrollments_seen", seen,
	)
	return nil, domain.ErrNotEnrolled
}

// CheckCourse authorizes the caller against a whole course. The course itself is not
// resolved here.
func (s *EntitlementService) CheckCourse(ctx context.Context, identity *domain.Identity, courseID domain.CourseID) (AccessReason, error) {
	if identity == nil || identity.UserID == "" {
		return "", domain.ErrUnauthenticated
	}
	if identity.IsAdmin() {
		return ReasonAdminOverride, nil
	}

	active, seen, err := s.activeEnrollment(ctx, identity.UserID, courseID)
	if err != nil {
		return "", err
	}
	if active == nil {
		s.logger.Infow("course entitlement denied", "user_id", identity.UserID, "course_id", courseID, "enrollments_seen", seen)
		return "", domain.ErrNotEnrolled
	}
	return ReasonGranted, nil
}

// ActiveCourses returns the ids of the courses the user holds an active enrollment in.
func (s *EntitlementService) ActiveCourses(ctx context.Context, userID domain.UserID) (map[domain.CourseID]bool, error) {
	enrollments, err := lookup(ctx, s.lookup, "list user enrollments", func(ctx context.Context) ([]*domain.Enrollment, error) {
		return s.enrollments.ListByUser(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	courses := make(map[domain.CourseID]bool, len(enrollments))
	for _, enrollment := range enrollments {
		if enrollment.ActiveAt(now) {
			courses[enrollment.CourseID] = true
		}
	}
	return courses, nil
}

func (s *EntitlementService) activeEnrollment(ctx context.Context, userID domain.UserID, courseID domain.CourseID) (*domain.Enrollment, int, error) {
	enrollments, err := lookup(ctx, s.lookup, "find enrollments", func(ctx context.Context) ([]*domain.Enrollment, error) {
		return s.enrollments.FindByUserAndCourse(ctx, userID, courseID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	now := s.now()
	for _, enrollment := range enrollments {
		if enrollment.ActiveAt(now) {
			return enrollment, len(enrollments), nil
		}
	}
	return nil, len(enrollments), nil
}
