package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"streamgate/internal/core/domain"
)

var (
	// IDRegex accepts UUIDs as well as slug-style record ids such as "vid-123".
	IDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	countryRegex = regexp.MustCompile(`^[A-Z]{2}$`)
)

const (
	maxIDLength       = 100
	maxTitleLength    = 200
	maxDescLength     = 5000
	maxContentRefSize = 128
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ValidateID validates a record identifier such as a video, course or enrollment id.
func ValidateID(id, fieldName string) error {
	if id == "" {
		return invalid("%s is required", fieldName)
	}
	if len(id) > maxIDLength {
		return invalid("%s is too long (max %d characters)", fieldName, maxIDLength)
	}
	if !IDRegex.MatchString(id) {
		return invalid("invalid %s format", fieldName)
	}
	return nil
}

// ValidateContentRef checks a CDN object id. It becomes a URL path segment, so
// separators and query characters are rejected.
func ValidateContentRef(ref string) error {
	if ref == "" {
		return invalid("content ref is required")
	}
	if len(ref) > maxContentRefSize {
		return invalid("content ref is too long (max %d characters)", maxContentRefSize)
	}
	if !IDRegex.MatchString(ref) {
		return invalid("invalid content ref format")
	}
	return nil
}

// ValidateTitle validates a course or video title
func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return invalid("title is required")
	}
	if !utf8.ValidString(title) {
		return invalid("title contains invalid characters")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return invalid("title is too long (max %d characters)", maxTitleLength)
	}
	return nil
}

func ValidateDescription(desc string) error {
	if utf8.RuneCountInString(desc) > maxDescLength {
		return invalid("description is too long (max %d characters)", maxDescLength)
	}
	return nil
}

// ValidateCountryCodes checks ISO 3166-1 alpha-2 codes such as "US".
func ValidateCountryCodes(codes []string) error {
	for _, code := range codes {
		if !countryRegex.MatchString(code) {
			return invalid("invalid country code %q", code)
		}
	}
	return nil
}

// ValidateProgress validates a watch position report
func ValidateProgress(seconds int) error {
	if seconds < 0 {
		return invalid("progress_seconds must be >= 0")
	}
	return nil
}

// ValidateURL validates URL format
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return invalid("URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return invalid("invalid URL format: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalid("invalid URL scheme (must be http or https)")
	}
	if u.Host == "" {
		return invalid("URL must have a host")
	}
	return nil
}

// ValidateNonNegative rejects negative counters such as durations and ordering indexes.
func ValidateNonNegative(value int, fieldName string) error {
	if value < 0 {
		return invalid("%s must be >= 0", fieldName)
	}
	return nil
}
