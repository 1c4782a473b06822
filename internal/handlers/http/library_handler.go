package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
	"streamgate/internal/core/services"
	"streamgate/internal/infrastructure/middleware"
	"streamgate/pkg/errors"
)

type Library interface {
	ListCourses(ctx context.Context, identity *domain.Identity) ([]*domain.Course, error)
	ListPublishedCourses(ctx context.Context) ([]*domain.Course, error)
	GetCourse(ctx context.Context, identity *domain.Identity, id domain.CourseID) (*services.CourseDetail, error)
	GetVideo(ctx context.Context, identity *domain.Identity, id domain.VideoID) (*domain.Video, error)
}

// LibraryHandler serves the viewer's catalog. The group it is mounted on must run
// AuthMiddleware.
type LibraryHandler struct {
	library Library
}

func NewLibraryHandler(library Library) *LibraryHandler {
	return &LibraryHandler{library: library}
}

var _ ports.HTTPHandler = (*LibraryHandler)(nil)

func (h *LibraryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/courses", h.ListCourses)
	rg.GET("/courses/all", h.ListPublishedCourses)
	rg.GET("/courses/:id", h.GetCourse)
	rg.GET("/videos/:id", h.GetVideo)
}

func (h *LibraryHandler) ListCourses(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.Error(errors.NewUnauthenticatedError("authentication required"))
		return
	}

	courses, err := h.library.ListCourses(c.Request.Context(), identity)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"courses": courses})
}

func (h *LibraryHandler) ListPublishedCourses(c *gin.Context) {
	courses, err := h.library.ListPublishedCourses(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"courses": courses})
}

func (h *LibraryHandler) GetCourse(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.Error(errors.NewUnauthenticatedError("authentication required"))
		return
	}

	course, err := h.library.GetCourse(c.Request.Context(), identity, domain.CourseID(c.Param("id")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, course)
}

func (h *LibraryHandler) GetVideo(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.Error(errors.NewUnauthenticatedError("authentication required"))
		return
	}

	video, err := h.library.GetVideo(c.Request.Context(), identity, domain.VideoID(c.Param("id")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, video)
}
