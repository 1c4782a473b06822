package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamgate/internal/core/domain"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", 400)
	assert.Equal(t, "INVALID_INPUT: test error", err.Error())
}

func TestAppError_WithCause(t *testing.T) {
	originalErr := errors.New("original error")
	err := WrapError(originalErr, ErrCodeInternal, "wrapped error", 500)

	assert.Equal(t, originalErr, err.Cause)
	assert.Contains(t, err.Error(), "original error")
	assert.ErrorIs(t, err, originalErr)
}

func TestAppError_WithContext(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", 400)
	err.WithContext("field", "value").WithContext("count", 42)

	assert.Equal(t, "value", err.Context["field"])
	assert.Equal(t, 42, err.Context["count"])
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   ErrorCode
		status int
	}{
		{"invalid input", NewInvalidInputError("bad"), ErrCodeInvalidInput, http.StatusBadRequest},
		{"not found", NewNotFoundError("video"), ErrCodeNotFound, http.StatusNotFound},
		{"unauthenticated", NewUnauthenticatedError("no token"), ErrCodeUnauthenticated, http.StatusUnauthorized},
		{"forbidden", NewForbiddenError("nope"), ErrCodeForbidden, http.StatusForbidden},
		{"conflict", NewConflictError("dup"), ErrCodeConflict, http.StatusConflict},
		{"rate limit", NewRateLimitError(), ErrCodeRateLimit, http.StatusTooManyRequests},
		{"configuration", NewConfigurationError("no key"), ErrCodeConfiguration, http.StatusInternalServerError},
		{"upstream", NewUpstreamUnavailableError("db down"), ErrCodeUpstreamUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
		})
	}
	assert.Equal(t, "video not found", NewNotFoundError("video").Message)
}

func TestFromDomain(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   ErrorCode
		status int
	}{
		{"video missing", domain.ErrVideoNotFound, ErrCodeNotFound, http.StatusNotFound},
		{"not enrolled", domain.ErrNotEnrolled, ErrCodeForbidden, http.StatusForbidden},
		{"bad token", fmt.Errorf("%w: token expired", domain.ErrUnauthenticated), ErrCodeUnauthenticated, http.StatusUnauthorized},
		{"broken signer", fmt.Errorf("%w: key missing", domain.ErrConfiguration), ErrCodeConfiguration, http.StatusInternalServerError},
		{"store down", fmt.Errorf("lookup: %w", domain.ErrUpstreamUnavailable), ErrCodeUpstreamUnavailable, http.StatusServiceUnavailable},
		{"bad grant", domain.ErrInvalidGrant, ErrCodeInvalidInput, http.StatusBadRequest},
		{"duplicate", domain.ErrAlreadyEnrolled, ErrCodeConflict, http.StatusConflict},
		{"unknown", errors.New("boom"), ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := FromDomain(tt.err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, tt.status, appErr.HTTPStatus)
			assert.ErrorIs(t, appErr, tt.err)
		})
	}
}

func TestFromDomain_HidesOperationalDetail(t *testing.T) {
	appErr := FromDomain(fmt.Errorf("%w: key /etc/secret.pem unreadable", domain.ErrConfiguration))
	assert.NotContains(t, appErr.Message, "/etc/secret.pem")

	appErr = FromDomain(errors.New("pq: password authentication failed"))
	assert.Equal(t, "Internal server error", appErr.Message)
}

func TestFromDomain_PassesThroughAppError(t *testing.T) {
	original := NewRateLimitError()
	assert.Same(t, original, FromDomain(fmt.Errorf("wrapped: %w", original)))
	assert.Nil(t, FromDomain(nil))
}

func TestGetAppError(t *testing.T) {
	appErr := NewAppError(ErrCodeInvalidInput, "test", 400)
	assert.Same(t, appErr, GetAppError(appErr))

	wrapped := WrapError(errors.New("cause"), ErrCodeInternal, "wrapped", 500)
	assert.NotNil(t, GetAppError(wrapped))

	assert.Nil(t, GetAppError(errors.New("regular error")))
	assert.True(t, IsAppError(appErr))
	assert.False(t, IsAppError(errors.New("regular error")))
}
