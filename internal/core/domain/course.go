package domain

import "time"

type CourseID string

type VideoID string

// ContentRef identifies a video object at the CDN. It is assigned at ingestion and never changes.
type ContentRef string

type EnrollmentID string

type Course struct {
	ID           CourseID  `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Published    bool      `json:"is_published"`
	CreatedAt    time.Time `json:"created_at"`
}

type Video struct {
	ID               VideoID    `json:"id"`
	CourseID         CourseID   `json:"course_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	ContentRef       ContentRef `json:"content_ref"`
	ThumbnailURL     string     `json:"thumbnail_url,omitempty"`
	DurationSeconds  int        `json:"duration_seconds"`
	OrderIndex       int        `json:"order_index"`
	RequireSignedURL bool       `json:"require_signed_url"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Enrollment grants a user access to every video of a course. A nil ExpiresAt never expires.
type Enrollment struct {
	ID         EnrollmentID `json:"id"`
	UserID     UserID       `json:"user_id"`
	CourseID   CourseID     `json:"course_id"`
	EnrolledAt time.Time    `json:"enrolled_at"`
	ExpiresAt  *time.Time   `json:"expires_at,omitempty"`
}

// ActiveAt reports whether the enrollment still grants access at now.
// An enrollment whose expiry has passed is treated exactly like a missing one.
func (e *Enrollment) ActiveAt(now time.Time) bool {
	if e == nil {
		return false
	}
	return e.ExpiresAt == nil || now.Before(*e.ExpiresAt)
}

type WatchProgress struct {
	UserID          UserID    `json:"user_id"`
	VideoID         VideoID   `json:"video_id"`
	ProgressSeconds int       `json:"progress_seconds"`
	Completed       bool      `json:"is_completed"`
	LastWatchedAt   time.Time `json:"last_watched_at"`
}
