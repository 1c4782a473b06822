package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
	"streamgate/internal/core/services"
	"streamgate/pkg/errors"
)

type CatalogAdmin interface {
	ListCourses(ctx context.Context) ([]*domain.Course, error)
	CreateCourse(ctx context.Context, in services.CreateCourseInput) (*domain.Course, error)
	UpdateCourse(ctx context.Context, id domain.CourseID, in services.UpdateCourseInput) (*domain.Course, error)
	DeleteCourse(ctx context.Context, id domain.CourseID) error
	ListVideos(ctx context.Context) ([]*domain.Video, error)
	CreateVideo(ctx context.Context, in services.CreateVideoInput) (*domain.Video, error)
	UpdateVideo(ctx context.Context, id domain.VideoID, in services.UpdateVideoInput) (*domain.Video, error)
	CreateUpload(ctx context.Context, in services.CreateUploadInput) (*services.UploadTicket, error)
	CompleteUpload(ctx context.Context, in services.CompleteUploadInput) (*services.CompleteUploadResult, error)
	VideoStatus(ctx context.Context, ref domain.ContentRef) (*domain.CDNVideo, error)
	ListCDNVideos(ctx context.Context) ([]*domain.CDNVideo, error)
	DeleteVideo(ctx context.Context, id domain.VideoID) (*services.DeleteVideoResult, error)
	ListEnrollments(ctx context.Context) ([]*domain.Enrollment, error)
	CreateEnrollment(ctx context.Context, in services.CreateEnrollmentInput) (*domain.Enrollment, error)
	DeleteEnrollment(ctx context.Context, id domain.EnrollmentID) error
	ListUsers(ctx context.Context) ([]*domain.Profile, error)
	UpdateUserRole(ctx context.Context, id domain.UserID, role domain.Role) (*domain.Profile, error)
}

type updateRoleRequest struct {
	Role domain.Role `json:"role"`
}

// AdminHandler serves catalog management. The group must run AuthMiddleware and
// RequireRole(domain.RoleAdmin).
type AdminHandler struct {
	catalog CatalogAdmin
}

func NewAdminHandler(catalog CatalogAdmin) *AdminHandler {
	return &AdminHandler{catalog: catalog}
}

var _ ports.HTTPHandler = (*AdminHandler)(nil)

func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/courses", h.ListCourses)
	rg.POST("/courses", h.CreateCourse)
	rg.PUT("/courses/:id", h.UpdateCourse)
	rg.DELETE("/courses/:id", h.DeleteCourse)

	rg.GET("/videos", h.ListVideos)
	rg.POST("/videos", h.CreateVideo)
	rg.PUT("/videos/:id", h.UpdateVideo)
	rg.POST("/videos/upload", h.CreateUpload)
	rg.POST("/videos/complete", h.CompleteUpload)
	rg.DELETE("/videos/:id", h.DeleteVideo)
	rg.GET("/videos/cdn/:ref/status", h.VideoStatus)
	rg.GET("/cdn/videos", h.ListCDNVideos)

	rg.GET("/enrollments", h.ListEnrollments)
	rg.POST("/enrollments", h.CreateEnrollment)
	rg.DELETE("/enrollments/:id", h.DeleteEnrollment)

	rg.GET("/users", h.ListUsers)
	rg.PUT("/users/:id/role", h.UpdateUserRole)
}

func (h *AdminHandler) ListCourses(c *gin.Context) {
	courses, err := h.catalog.ListCourses(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"courses": courses})
}

func (h *AdminHandler) CreateCourse(c *gin.Context) {
	var req services.CreateCourseInput
	if !bindJSON(c, &req) {
		return
	}

	course, err := h.catalog.CreateCourse(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, course)
}

func (h *AdminHandler) UpdateCourse(c *gin.Context) {
	var req services.UpdateCourseInput
	if !bindJSON(c, &req) {
		return
	}

	course, err := h.catalog.UpdateCourse(c.Request.Context(), domain.CourseID(c.Param("id")), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, course)
}

// DeleteCourse removes the course records only; CDN objects stay until deleted per video.
func (h *AdminHandler) DeleteCourse(c *gin.Context) {
	if err := h.catalog.DeleteCourse(c.Request.Context(), domain.CourseID(c.Param("id"))); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) ListVideos(c *gin.Context) {
	videos, err := h.catalog.ListVideos(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"videos": videos})
}

// CreateVideo records a video for content already uploaded to the CDN by other means.
func (h *AdminHandler) CreateVideo(c *gin.Context) {
	var req services.CreateVideoInput
	if !bindJSON(c, &req) {
		return
	}

	video, err := h.catalog.CreateVideo(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, video)
}

func (h *AdminHandler) UpdateVideo(c *gin.Context) {
	var req services.UpdateVideoInput
	if !bindJSON(c, &req) {
		return
	}

	video, err := h.catalog.UpdateVideo(c.Request.Context(), domain.VideoID(c.Param("id")), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, video)
}

func (h *AdminHandler) CreateUpload(c *gin.Context) {
	var req services.CreateUploadInput
	if !bindJSON(c, &req) {
		return
	}

	ticket, err := h.catalog.CreateUpload(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

func (h *AdminHandler) CompleteUpload(c *gin.Context) {
	var req services.CompleteUploadInput
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.catalog.CompleteUpload(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *AdminHandler) DeleteVideo(c *gin.Context) {
	result, err := h.catalog.DeleteVideo(c.Request.Context(), domain.VideoID(c.Param("id")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *AdminHandler) VideoStatus(c *gin.Context) {
	video, err := h.catalog.VideoStatus(c.Request.Context(), domain.ContentRef(c.Param("ref")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"video":           video,
		"ready_to_stream": video.ReadyToStream(),
	})
}

func (h *AdminHandler) ListCDNVideos(c *gin.Context) {
	videos, err := h.catalog.ListCDNVideos(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"videos": videos})
}

func (h *AdminHandler) ListEnrollments(c *gin.Context) {
	enrollments, err := h.catalog.ListEnrollments(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enrollments": enrollments})
}

func (h *AdminHandler) CreateEnrollment(c *gin.Context) {
	var req services.CreateEnrollmentInput
	if !bindJSON(c, &req) {
		return
	}

	enrollment, err := h.catalog.CreateEnrollment(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, enrollment)
}

func (h *AdminHandler) DeleteEnrollment(c *gin.Context) {
	if err := h.catalog.DeleteEnrollment(c.Request.Context(), domain.EnrollmentID(c.Param("id"))); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.catalog.ListUsers(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// UpdateUserRole takes the role from a JSON body, or from the role query parameter
// when no body is sent.
func (h *AdminHandler) UpdateUserRole(c *gin.Context) {
	var req updateRoleRequest
	if role := c.Query("role"); role != "" && c.Request.ContentLength <= 0 {
		req.Role = domain.Role(role)
	} else if !bindJSON(c, &req) {
		return
	}

	profile, err := h.catalog.UpdateUserRole(c.Request.Context(), domain.UserID(c.Param("id")), req.Role)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request body"))
		return false
	}
	return true
}
