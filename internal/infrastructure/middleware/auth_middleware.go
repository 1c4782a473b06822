package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
	"streamgate/pkg/errors"
	"streamgate/pkg/logger"
)

const identityKey = "identity"

// AuthMiddleware authenticates the bearer token and stores the resulting identity on the context.
func AuthMiddleware(provider ports.IdentityProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Error(errors.NewUnauthenticatedError("authorization header required"))
			c.Abort()
			return
		}

		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.Error(errors.NewUnauthenticatedError("invalid authorization header format"))
			c.Abort()
			return
		}

		identity, err := provider.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}

		c.Set(identityKey, identity)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), string(identity.UserID)))
		c.Next()
	}
}

// RequireRole rejects authenticated callers whose role differs from role.
func RequireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			c.Error(errors.NewUnauthenticatedError("authentication required"))
			c.Abort()
			return
		}
		if identity.Role != role {
			c.Error(errors.NewForbiddenError("insufficient permissions"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the identity stored by AuthMiddleware.
func IdentityFrom(c *gin.Context) (*domain.Identity, bool) {
	value, exists := c.Get(identityKey)
	if !exists {
		return nil, false
	}
	identity, ok := value.(*domain.Identity)
	return identity, ok && identity != nil
}
