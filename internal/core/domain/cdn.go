package domain

type ContentStatus string

const (
	ContentStatusCreated     ContentStatus = "created"
	ContentStatusUploaded    ContentStatus = "uploaded"
	ContentStatusProcessing  ContentStatus = "processing"
	ContentStatusTranscoding ContentStatus = "transcoding"
	ContentStatusReady       ContentStatus = "ready"
	ContentStatusError       ContentStatus = "error"
	ContentStatusUnknown     ContentStatus = "unknown"
)

// CDNVideo is the CDN's view of a content object.
type CDNVideo struct {
	Ref             ContentRef    `json:"content_ref"`
	Title           string        `json:"title,omitempty"`
	Status          ContentStatus `json:"status"`
	DurationSeconds int           `json:"duration_seconds"`
	ThumbnailURL    string        `json:"thumbnail_url,omitempty"`
}

func (v *CDNVideo) ReadyToStream() bool {
	return v != nil && v.Status == ContentStatusReady
}

// UploadTarget tells an uploader where to send the media bytes for a freshly created placeholder.
type UploadTarget struct {
	Ref       ContentRef        `json:"content_ref"`
	UploadURL string            `json:"upload_url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
}
