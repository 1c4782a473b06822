package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"streamgate/internal/core/domain"
)

// ErrorCode represents application error codes
type ErrorCode string

const (
	ErrCodeInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrCodeUnauthenticated     ErrorCode = "UNAUTHENTICATED"
	ErrCodeForbidden           ErrorCode = "FORBIDDEN"
	ErrCodeConflict            ErrorCode = "CONFLICT"
	ErrCodeRateLimit           ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
	ErrCodeConfiguration       ErrorCode = "CONFIGURATION_ERROR"
	ErrCodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
)

// AppError represents an application error with code and context
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Context:    make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with application error
func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Cause:      err,
		Context:    make(map[string]interface{}),
	}
}

// Common error constructors
func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewUnauthenticatedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthenticated, message, http.StatusUnauthorized)
}

func NewForbiddenError(message string) *AppError {
	return NewAppError(ErrCodeForbidden, message, http.StatusForbidden)
}

func NewConflictError(message string) *AppError {
	return NewAppError(ErrCodeConflict, message, http.StatusConflict)
}

func NewRateLimitError() *AppError {
	return NewAppError(ErrCodeRateLimit, "rate limit exceeded", http.StatusTooManyRequests)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

func NewConfigurationError(message string) *AppError {
	return NewAppError(ErrCodeConfiguration, message, http.StatusInternalServerError)
}

func NewUpstreamUnavailableError(message string) *AppError {
	return NewAppError(ErrCodeUpstreamUnavailable, message, http.StatusServiceUnavailable)
}

// FromDomain maps a domain outcome onto a stable error code and HTTP status.
// Client-facing outcomes keep the domain message; operational failures get a fixed one
// so internals never leak to the caller.
func FromDomain(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr := GetAppError(err); appErr != nil {
		return appErr
	}

	switch {
	case stderrors.Is(err, domain.ErrNotFound):
		return WrapError(err, ErrCodeNotFound, err.Error(), http.StatusNotFound)
	case stderrors.Is(err, domain.ErrForbidden):
		return WrapError(err, ErrCodeForbidden, err.Error(), http.StatusForbidden)
	case stderrors.Is(err, domain.ErrUnauthenticated):
		return WrapError(err, ErrCodeUnauthenticated, "authentication required", http.StatusUnauthorized)
	case stderrors.Is(err, domain.ErrInvalidInput):
		return WrapError(err, ErrCodeInvalidInput, err.Error(), http.StatusBadRequest)
	case stderrors.Is(err, domain.ErrConflict):
		return WrapError(err, ErrCodeConflict, err.Error(), http.StatusConflict)
	case stderrors.Is(err, domain.ErrConfiguration):
		return WrapError(err, ErrCodeConfiguration, "playback signing is misconfigured", http.StatusInternalServerError)
	case stderrors.Is(err, domain.ErrUpstreamUnavailable):
		return WrapError(err, ErrCodeUpstreamUnavailable, "an upstream dependency is unavailable", http.StatusServiceUnavailable)
	default:
		return WrapError(err, ErrCodeInternal, "Internal server error", http.StatusInternalServerError)
	}
}

// IsAppError checks if error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return nil
}
