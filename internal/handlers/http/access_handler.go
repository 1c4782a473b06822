package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
	"streamgate/internal/core/services"
	"streamgate/internal/infrastructure/middleware"
	"streamgate/pkg/errors"
)

type ProgressTracker interface {
	GetProgress(ctx context.Context, identity *domain.Identity, videoID domain.VideoID) (*domain.WatchProgress, error)
	UpdateProgress(ctx context.Context, identity *domain.Identity, videoID domain.VideoID, update services.ProgressUpdate) (*domain.WatchProgress, error)
}

// AccessHandler serves the viewer routes. The group it is mounted on must run AuthMiddleware.
type AccessHandler struct {
	access       ports.AccessService
	progress     ProgressTracker
	grantLimiter gin.HandlerFunc
}

func NewAccessHandler(access ports.AccessService, progress ProgressTracker, grantLimiter gin.HandlerFunc) *AccessHandler {
	if grantLimiter == nil {
		grantLimiter = func(c *gin.Context) { c.Next() }
	}
	return &AccessHandler{
		access:       access,
		progress:     progress,
		grantLimiter: grantLimiter,
	}
}

var _ ports.HTTPHandler = (*AccessHandler)(nil)

func (h *AccessHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/videos/:id/access", h.grantLimiter, h.RequestAccess)
	rg.GET("/videos/:id/progress", h.GetProgress)
	rg.PUT("/videos/:id/progress", h.UpdateProgress)
}

// RequestAccess answers with freshly signed playback URLs. The response must never be cached.
func (h *AccessHandler) RequestAccess(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.Error(errors.NewUnauthenticatedError("authentication required"))
		return
	}

	ttl, err := parseTTL(c.Query("ttl"))
	if err != nil {
		c.Error(err)
		return
	}

	access, err := h.access.RequestAccess(c.Request.Context(), identity, domain.VideoID(c.Param("id")), ttl)
	if err != nil {
		c.Error(err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, access)
}

func (h *AccessHandler) GetProgress(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.Error(errors.NewUnauthenticatedError("authentication required"))
		return
	}

	progress, err := h.progress.GetProgress(c.Request.Context(), identity, domain.VideoID(c.Param("id")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (h *AccessHandler) UpdateProgress(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.Error(errors.NewUnauthenticatedError("authentication required"))
		return
	}

	var req services.ProgressUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid progress body"))
		return
	}

	progress, err := h.progress.UpdateProgress(c.Request.Context(), identity, domain.VideoID(c.Param("id")), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// parseTTL reads the optional ttl query parameter in seconds. Zero or absent means the
// default; clamping to the maximum happens in the service.
func parseTTL(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seconds < 0 {
		return 0, errors.NewInvalidInputError("ttl must be a non-negative number of seconds")
	}
	if seconds > int64(365*24*time.Hour/time.Second) {
		seconds = int64(365 * 24 * time.Hour / time.Second)
	}
	return time.Duration(seconds) * time.Second, nil
}
