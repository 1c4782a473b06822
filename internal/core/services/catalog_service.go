package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
	"streamgate/pkg/utils"
	"streamgate/pkg/validation"
)

type CreateCourseInput struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnail_url"`
	Published    bool   `json:"is_published"`
}

// UpdateCourseInput carries a partial update; nil fields keep their stored value.
type UpdateCourseInput struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	ThumbnailURL *string `json:"thumbnail_url"`
	Published    *bool   `json:"is_published"`
}

// CreateVideoInput records a video whose content object already exists at the CDN.
type CreateVideoInput struct {
	CourseID         domain.CourseID   `json:"course_id"`
	ContentRef       domain.ContentRef `json:"content_ref"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	ThumbnailURL     string            `json:"thumbnail_url"`
	DurationSeconds  int               `json:"duration_seconds"`
	OrderIndex       int               `json:"order_index"`
	RequireSignedURL *bool             `json:"require_signed_url"`
}

type UpdateVideoInput struct {
	Title            *string `json:"title"`
	Description      *string `json:"description"`
	ThumbnailURL     *string `json:"thumbnail_url"`
	DurationSeconds  *int    `json:"duration_seconds"`
	OrderIndex       *int    `json:"order_index"`
	RequireSignedURL *bool   `json:"require_signed_url"`
}

type CreateUploadInput struct {
	CourseID domain.CourseID `json:"course_id"`
	Title    string          `json:"title"`
}

// UploadTicket is handed to the uploader; the media bytes go straight to the CDN.
type UploadTicket struct {
	domain.UploadTarget
	CourseID domain.CourseID `json:"course_id"`
	Title    string          `json:"title"`
}

type CompleteUploadInput struct {
	CourseID         domain.CourseID   `json:"course_id"`
	ContentRef       domain.ContentRef `json:"content_ref"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	DurationSeconds  int               `json:"duration_seconds"`
	OrderIndex       int               `json:"order_index"`
	RequireSignedURL *bool             `json:"require_signed_url"`
}

// CompleteUploadResult carries the stored video. CDNLookupError is set when the CDN
// could not be asked for metadata; the video is recorded either way.
type CompleteUploadResult struct {
	Video          *domain.Video `json:"video"`
	CDNLookupError string        `json:"cdn_lookup_error,omitempty"`
}

type DeleteVideoResult struct {
	VideoID    domain.VideoID `json:"video_id"`
	CDNDeleted bool           `json:"cdn_deleted"`
	CDNError   string         `json:"cdn_error,omitempty"`
}

type CreateEnrollmentInput struct {
	UserID    domain.UserID   `json:"user_id"`
	CourseID  domain.CourseID `json:"course_id"`
	ExpiresAt *time.Time      `json:"expires_at"`
}

// CatalogService backs the admin surface: courses, videos, uploads and enrollments.
// Callers are expected to have checked the admin role already.
type CatalogService struct {
	store  *ports.RecordStore
	cdn    ports.CDNAdmin
	urls   *URLBuilder
	lookup storeLookup
	now    func() time.Time
	logger *zap.SugaredLogger
}

func NewCatalogService(store *ports.RecordStore, cdn ports.CDNAdmin, urls *URLBuilder, lookupTimeout time.Duration, logger *zap.SugaredLogger) *CatalogService {
	return &CatalogService{
		store:  store,
		cdn:    cdn,
		urls:   urls,
		lookup: newStoreLookup(lookupTimeout),
		now:    utils.Now,
		logger: logger,
	}
}

func (s *CatalogService) ListCourses(ctx context.Context) ([]*domain.Course, error) {
	return lookup(ctx, s.lookup, "list courses", s.store.Courses.List)
}

func (s *CatalogService) CreateCourse(ctx context.Context, in CreateCourseInput) (*domain.Course, error) {
	if err := validation.ValidateTitle(in.Title); err != nil {
		return nil, err
	}
	if err := validation.ValidateDescription(in.Description); err != nil {
		return nil, err
	}
	if in.ThumbnailURL != "" {
		if err := validation.ValidateURL(in.ThumbnailURL); err != nil {
			return nil, err
		}
	}

	course := &domain.Course{
		ID:           domain.CourseID(utils.NewRecordID()),
		Title:        utils.SanitizeString(in.Title),
		Description:  in.Description,
		ThumbnailURL: in.ThumbnailURL,
		Published:    in.Published,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Courses.Create(ctx, course); err != nil {
		return nil, storeWriteError("create course", err)
	}

	s.logger.Infow("course created", "course_id", course.ID)
	return course, nil
}

// DeleteCourse removes a course with its videos, their watch progress and its
// enrollments. CDN objects are left in place.
func (s *CatalogService) DeleteCourse(ctx context.Context, id domain.CourseID) error {
	if _, err := s.getCourse(ctx, id); err != nil {
		return err
	}

	videos, err := lookup(ctx, s.lookup, "list course videos", func(ctx context.Context) ([]*domain.Video, error) {
		return s.store.Videos.ListByCourse(ctx, id)
	})
	if err != nil {
		return err
	}
	for _, video := range videos {
		if err := s.deleteVideoRecords(ctx, video.ID); err != nil {
			return err
		}
	}

	if err := s.store.Enrollments.DeleteByCourse(ctx, id); err != nil {
		return storeWriteError("delete course enrollments", err)
	}
	if err := s.store.Courses.Delete(ctx, id); err != nil {
		return storeWriteError("delete course", err)
	}

	s.logger.Infow("course deleted", "course_id", id, "videos_removed", len(videos))
	return nil
}

// UpdateCourse applies the non-nil fields of in to an existing course.
func (s *CatalogService) UpdateCourse(ctx context.Context, id domain.CourseID, in UpdateCourseInput) (*domain.Course, error) {
	course, err := s.getCourse(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		if err := validation.ValidateTitle(*in.Title); err != nil {
			return nil, err
		}
		course.Title = utils.SanitizeString(*in.Title)
	}
	if in.Description != nil {
		if err := validation.ValidateDescription(*in.Description); err != nil {
			return nil, err
		}
		course.Description = *in.Description
	}
	if in.ThumbnailURL != nil {
		if *in.ThumbnailURL != "" {
			if err := validation.ValidateURL(*in.ThumbnailURL); err != nil {
				return nil, err
			}
		}
		course.ThumbnailURL = *in.ThumbnailURL
	}
	if in.Published != nil {
		course.Published = *in.Published
	}

	if err := s.store.Courses.Update(ctx, course); err != nil {
		return nil, storeWriteError("update course", err)
	}

	s.logger.Infow("course updated", "course_id", id, "published", course.Published)
	return course, nil
}

func (s *CatalogService) ListVideos(ctx context.Context) ([]*domain.Video, error) {
	return lookup(ctx, s.lookup, "list videos", s.store.Videos.List)
}

// CreateUpload registers a placeholder at the CDN for a course that exists locally.
func (s *CatalogService) CreateUpload(ctx context.Context, in CreateUploadInput) (*UploadTicket, error) {
	if err := validation.ValidateID(string(in.CourseID), "course_id"); err != nil {
		return nil, err
	}
	if err := validation.ValidateTitle(in.Title); err != nil {
		return nil, err
	}
	if _, err := s.getCourse(ctx, in.CourseID); err != nil {
		return nil, err
	}

	target, err := s.cdn.CreateVideo(ctx, utils.SanitizeString(in.Title))
	if err != nil {
		s.logger.Errorw("cdn upload creation failed", "course_id", in.CourseID, "provider", s.cdn.Provider(), "error", err)
		return nil, err
	}

	s.logger.Infow("upload created", "course_id", in.CourseID, "content_ref", target.Ref, "provider", s.cdn.Provider())
	return &UploadTicket{UploadTarget: *target, CourseID: in.CourseID, Title: utils.SanitizeString(in.Title)}, nil
}

// CompleteUpload records a video for an uploaded content object. CDN metadata is always
// requested; a failed lookup is reported in the result instead of blocking the record.
func (s *CatalogService) CompleteUpload(ctx context.Context, in CompleteUploadInput) (*CompleteUploadResult, error) {
	if err := s.validateCompleteUpload(in); err != nil {
		return nil, err
	}
	if _, err := s.getCourse(ctx, in.CourseID); err != nil {
		return nil, err
	}

	requireSigned := true
	if in.RequireSignedURL != nil {
		requireSigned = *in.RequireSignedURL
	}
	video := &domain.Video{
		ID:               domain.VideoID(utils.NewRecordID()),
		CourseID:         in.CourseID,
		Title:            utils.SanitizeString(in.Title),
		Description:      in.Description,
		ContentRef:       in.ContentRef,
		ThumbnailURL:     s.thumbnail(in.ContentRef),
		DurationSeconds:  in.DurationSeconds,
		OrderIndex:       in.OrderIndex,
		RequireSignedURL: requireSigned,
		CreatedAt:        s.now().UTC(),
	}

	result := &CompleteUploadResult{Video: video}
	meta, err := s.cdn.GetVideo(ctx, in.ContentRef)
	if err != nil {
		result.CDNLookupError = err.Error()
		s.logger.Warnw("cdn metadata lookup failed, recording video without it",
			"content_ref", in.ContentRef, "provider", s.cdn.Provider(), "error", err)
	} else {
		if meta.DurationSeconds > 0 {
			video.DurationSeconds = meta.DurationSeconds
		}
		if meta.ThumbnailURL != "" {
			video.ThumbnailURL = meta.ThumbnailURL
		}
	}

	if err := s.store.Videos.Create(ctx, video); err != nil {
		return nil, storeWriteError("create video", err)
	}

	s.logger.Infow("video recorded",
		"video_id", video.ID,
		"course_id", video.CourseID,
		"content_ref", video.ContentRef,
		"cdn_lookup_failed", result.CDNLookupError != "",
	)
	return result, nil
}

// CreateVideo records a video for a content ref registered at the CDN out of band. The
// CDN is not consulted.
func (s *CatalogService) CreateVideo(ctx context.Context, in CreateVideoInput) (*domain.Video, error) {
	if err := s.validateCompleteUpload(CompleteUploadInput{
		CourseID:        in.CourseID,
		ContentRef:      in.ContentRef,
		Title:           in.Title,
		Description:     in.Description,
		DurationSeconds: in.DurationSeconds,
		OrderIndex:      in.OrderIndex,
	}); err != nil {
		return nil, err
	}
	if in.ThumbnailURL != "" {
		if err := validation.ValidateURL(in.ThumbnailURL); err != nil {
			return nil, err
		}
	}
	if _, err := s.getCourse(ctx, in.CourseID); err != nil {
		return nil, err
	}

	requireSigned := true
	if in.RequireSignedURL != nil {
		requireSigned = *in.RequireSignedURL
	}
	thumbnail := in.ThumbnailURL
	if thumbnail == "" {
		thumbnail = s.thumbnail(in.ContentRef)
	}
	video := &domain.Video{
		ID:               domain.VideoID(utils.NewRecordID()),
		CourseID:         in.CourseID,
		Title:            utils.SanitizeString(in.Title),
		Description:      in.Description,
		ContentRef:       in.ContentRef,
		ThumbnailURL:     thumbnail,
		DurationSeconds:  in.DurationSeconds,
		OrderIndex:       in.OrderIndex,
		RequireSignedURL: requireSigned,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.store.Videos.Create(ctx, video); err != nil {
		return nil, storeWriteError("create video", err)
	}

	s.logger.Infow("video recorded", "video_id", video.ID, "course_id", video.CourseID, "content_ref", video.ContentRef)
	return video, nil
}

// UpdateVideo applies the non-nil fields of in. The course and content ref of a video
// are fixed once recorded.
func (s *CatalogService) UpdateVideo(ctx context.Context, id domain.VideoID, in UpdateVideoInput) (*domain.Video, error) {
	video, err := lookup(ctx, s.lookup, "get video", func(ctx context.Context) (*domain.Video, error) {
		return s.store.Videos.GetByID(ctx, id)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrVideoNotFound
		}
		return nil, err
	}

	if in.Title != nil {
		if err := validation.ValidateTitle(*in.Title); err != nil {
			return nil, err
		}
		video.Title = utils.SanitizeString(*in.Title)
	}
	if in.Description != nil {
		if err := validation.ValidateDescription(*in.Description); err != nil {
			return nil, err
		}
		video.Description = *in.Description
	}
	if in.ThumbnailURL != nil {
		if *in.ThumbnailURL != "" {
			if err := validation.ValidateURL(*in.ThumbnailURL); err != nil {
				return nil, err
			}
		}
		video.ThumbnailURL = *in.ThumbnailURL
	}
	if in.DurationSeconds != nil {
		if err := validation.ValidateNonNegative(*in.DurationSeconds, "duration_seconds"); err != nil {
			return nil, err
		}
		video.DurationSeconds = *in.DurationSeconds
	}
	if in.OrderIndex != nil {
		if err := validation.ValidateNonNegative(*in.OrderIndex, "order_index"); err != nil {
			return nil, err
		}
		video.OrderIndex = *in.OrderIndex
	}
	if in.RequireSignedURL != nil {
		video.RequireSignedURL = *in.RequireSignedURL
	}

	if err := s.store.Videos.Update(ctx, video); err != nil {
		return nil, storeWriteError("update video", err)
	}

	s.logger.Infow("video updated", "video_id", id, "require_signed_url", video.RequireSignedURL)
	return video, nil
}

func (s *CatalogService) validateCompleteUpload(in CompleteUploadInput) error {
	if err := validation.ValidateID(string(in.CourseID), "course_id"); err != nil {
		return err
	}
	if err := validation.ValidateContentRef(string(in.ContentRef)); err != nil {
		return err
	}
	if err := validation.ValidateTitle(in.Title); err != nil {
		return err
	}
	if err := validation.ValidateDescription(in.Description); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative(in.DurationSeconds, "duration_seconds"); err != nil {
		return err
	}
	return validation.ValidateNonNegative(in.OrderIndex, "order_index")
}

// VideoStatus asks the CDN for the processing state of a content object. Failures are
// returned as errors, never reported as a status.
func (s *CatalogService) VideoStatus(ctx context.Context, ref domain.ContentRef) (*domain.CDNVideo, error) {
	if err := validation.ValidateContentRef(string(ref)); err != nil {
		return nil, err
	}
	video, err := s.cdn.GetVideo(ctx, ref)
	if err != nil {
		return nil, err
	}
	if video.ThumbnailURL == "" {
		video.ThumbnailURL = s.thumbnail(ref)
	}
	return video, nil
}

func (s *CatalogService) ListCDNVideos(ctx context.Context) ([]*domain.CDNVideo, error) {
	return s.cdn.ListVideos(ctx)
}

// DeleteVideo removes the video record and its watch progress. The CDN object is deleted
// best effort: a failure is logged and reported but never stops the local cleanup.
func (s *CatalogService) DeleteVideo(ctx context.Context, id domain.VideoID) (*DeleteVideoResult, error) {
	video, err := lookup(ctx, s.lookup, "get video", func(ctx context.Context) (*domain.Video, error) {
		return s.store.Videos.GetByID(ctx, id)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrVideoNotFound
		}
		return nil, err
	}

	result := &DeleteVideoResult{VideoID: id}
	if video.ContentRef != "" {
		if err := s.cdn.DeleteVideo(ctx, video.ContentRef); err != nil {
			result.CDNError = err.Error()
			s.logger.Warnw("cdn delete failed, removing local records anyway",
				"video_id", id, "content_ref", video.ContentRef, "provider", s.cdn.Provider(), "error", err)
		} else {
			result.CDNDeleted = true
		}
	}

	if err := s.deleteVideoRecords(ctx, id); err != nil {
		return nil, err
	}

	s.logger.Infow("video deleted", "video_id", id, "cdn_deleted", result.CDNDeleted)
	return result, nil
}

func (s *CatalogService) deleteVideoRecords(ctx context.Context, id domain.VideoID) error {
	if err := s.store.Progress.DeleteByVideo(ctx, id); err != nil {
		return storeWriteError("delete video progress", err)
	}
	if err := s.store.Videos.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return storeWriteError("delete video", err)
	}
	return nil
}

func (s *CatalogService) ListEnrollments(ctx context.Context) ([]*domain.Enrollment, error) {
	return lookup(ctx, s.lookup, "list enrollments", s.store.Enrollments.List)
}

// CreateEnrollment enrolls an existing user in an existing course. A second enrollment
// is refused while an active one exists; an expired one may be renewed.
func (s *CatalogService) CreateEnrollment(ctx context.Context, in CreateEnrollmentInput) (*domain.Enrollment, error) {
	if err := validation.ValidateID(string(in.UserID), "user_id"); err != nil {
		return nil, err
	}
	if err := validation.ValidateID(string(in.CourseID), "course_id"); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, fmt.Errorf("%w: expires_at must be in the future", domain.ErrInvalidInput)
	}

	exists, err := lookup(ctx, s.lookup, "check profile", func(ctx context.Context) (bool, error) {
		return s.store.Profiles.Exists(ctx, in.UserID)
	})
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrProfileNotFound
	}
	if _, err := s.getCourse(ctx, in.CourseID); err != nil {
		return nil, err
	}

	enrollment := &domain.Enrollment{
		ID:         domain.EnrollmentID(utils.NewRecordID()),
		UserID:     in.UserID,
		CourseID:   in.CourseID,
		EnrolledAt: now,
		ExpiresAt:  in.ExpiresAt,
	}
	if err := s.store.Enrollments.CreateUnlessActive(ctx, enrollment, now); err != nil {
		return nil, storeWriteError("create enrollment", err)
	}

	s.logger.Infow("enrollment created",
		"enrollment_id", enrollment.ID,
		"user_id", enrollment.UserID,
		"course_id", enrollment.CourseID,
		"expires_at", enrollment.ExpiresAt,
	)
	return enrollment, nil
}

// DeleteEnrollment revokes access immediately; the next access request sees no enrollment.
func (s *CatalogService) DeleteEnrollment(ctx context.Context, id domain.EnrollmentID) error {
	if err := s.store.Enrollments.Delete(ctx, id); err != nil {
		return storeWriteError("delete enrollment", err)
	}
	s.logger.Infow("enrollment deleted", "enrollment_id", id)
	return nil
}

func (s *CatalogService) ListUsers(ctx context.Context) ([]*domain.Profile, error) {
	return lookup(ctx, s.lookup, "list profiles", s.store.Profiles.List)
}

// UpdateUserRole changes the role stored on a profile. Identity providers read the role
// on every authentication, so the change applies to the user's next request.
func (s *CatalogService) UpdateUserRole(ctx context.Context, id domain.UserID, role domain.Role) (*domain.Profile, error) {
	if err := validation.ValidateID(string(id), "user_id"); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: role must be %q or %q", domain.ErrInvalidInput, domain.RoleStudent, domain.RoleAdmin)
	}

	profile, err := s.store.Profiles.UpdateRole(ctx, id, role)
	if err != nil {
		return nil, storeWriteError("update profile role", err)
	}

	s.logger.Infow("user role updated", "user_id", id, "role", role)
	return profile, nil
}

func (s *CatalogService) getCourse(ctx context.Context, id domain.CourseID) (*domain.Course, error) {
	course, err := lookup(ctx, s.lookup, "get course", func(ctx context.Context) (*domain.Course, error) {
		return s.store.Courses.GetByID(ctx, id)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrCourseNotFound
	}
	return course, err
}

func (s *CatalogService) thumbnail(ref domain.ContentRef) string {
	if s.urls == nil {
		return ""
	}
	thumb, err := s.urls.Thumbnail(ref)
	if err != nil {
		return ""
	}
	return thumb
}
