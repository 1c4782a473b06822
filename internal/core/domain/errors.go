package domain

import (
	"errors"
	"fmt"
)

// Outcome taxonomy. Callers wrap these with %w and match with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrConfiguration       = errors.New("configuration error")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrInvalidInput        = errors.New("invalid input")
	ErrConflict            = errors.New("conflict")
)

var (
	ErrCourseNotFound     = fmt.Errorf("course %w", ErrNotFound)
	ErrVideoNotFound      = fmt.Errorf("video %w", ErrNotFound)
	ErrEnrollmentNotFound = fmt.Errorf("enrollment %w", ErrNotFound)
	ErrProfileNotFound    = fmt.Errorf("profile %w", ErrNotFound)
	ErrProgressNotFound   = fmt.Errorf("progress %w", ErrNotFound)
	ErrContentUnavailable = fmt.Errorf("video content %w", ErrNotFound)
	ErrNotEnrolled        = fmt.Errorf("%w: not enrolled in this course", ErrForbidden)
	ErrAlreadyEnrolled    = fmt.Errorf("%w: user is already enrolled in this course", ErrConflict)
	ErrInvalidGrant       = fmt.Errorf("%w: grant needs a content ref and a future expiry", ErrInvalidInput)
)
