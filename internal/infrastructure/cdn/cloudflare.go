package cdn

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
)

type CloudflareOptions struct {
	APIBaseURL         string
	AccountID          string
	APIToken           string
	MaxDurationSeconds int
}

// CloudflareAdmin talks to the Cloudflare Stream API.
type CloudflareAdmin struct {
	opts   CloudflareOptions
	client *apiClient
}

var _ ports.CDNAdmin = (*CloudflareAdmin)(nil)

func NewCloudflareAdmin(opts CloudflareOptions, clientOpts ClientOptions, logger *zap.SugaredLogger) *CloudflareAdmin {
	opts.APIBaseURL = strings.TrimRight(opts.APIBaseURL, "/")
	if opts.MaxDurationSeconds <= 0 {
		opts.MaxDurationSeconds = 3600
	}
	return &CloudflareAdmin{
		opts:   opts,
		client: newAPIClient("cloudflare", clientOpts, logger),
	}
}

// envelope is the response wrapper of every Cloudflare API call.
type envelope struct {
	Success bool            `json:"success"`
	Errors  []apiMessage    `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

type apiMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type cloudflareVideo struct {
	UID       string            `json:"uid"`
	Thumbnail string            `json:"thumbnail"`
	Duration  float64           `json:"duration"`
	Meta      map[string]string `json:"meta"`
	Status    struct {
		State string `json:"state"`
	} `json:"status"`
}

type directUpload struct {
	UID       string `json:"uid"`
	UploadURL string `json:"uploadURL"`
}

func (c *CloudflareAdmin) Provider() string {
	return "cloudflare"
}

// CreateVideo reserves a direct creator upload. The returned URL accepts a single
// multipart POST and the video requires signed URLs from the start.
func (c *CloudflareAdmin) CreateVideo(ctx context.Context, title string) (*domain.UploadTarget, error) {
	var upload directUpload
	err := c.call(ctx, "create_video", request{
		method: http.MethodPost,
		url:    c.streamURL() + "/direct_upload",
		body: map[string]interface{}{
			"maxDurationSeconds": c.opts.MaxDurationSeconds,
			"requireSignedURLs":  true,
			"meta":               map[string]string{"name": title},
		},
	}, &upload)
	if err != nil {
		return nil, err
	}
	if upload.UID == "" || upload.UploadURL == "" {
		return nil, fmt.Errorf("%w: cloudflare direct_upload returned no uid", domain.ErrUpstreamUnavailable)
	}

	return &domain.UploadTarget{
		Ref:       domain.ContentRef(upload.UID),
		UploadURL: upload.UploadURL,
		Method:    http.MethodPost,
	}, nil
}

func (c *CloudflareAdmin) GetVideo(ctx context.Context, ref domain.ContentRef) (*domain.CDNVideo, error) {
	var video cloudflareVideo
	if err := c.call(ctx, "get_video", request{method: http.MethodGet, url: c.videoURL(ref)}, &video); err != nil {
		return nil, err
	}
	return video.toDomain(), nil
}

func (c *CloudflareAdmin) ListVideos(ctx context.Context) ([]*domain.CDNVideo, error) {
	var list []cloudflareVideo
	if err := c.call(ctx, "list_videos", request{method: http.MethodGet, url: c.streamURL()}, &list); err != nil {
		return nil, err
	}

	videos := make([]*domain.CDNVideo, 0, len(list))
	for i := range list {
		videos = append(videos, list[i].toDomain())
	}
	return videos, nil
}

func (c *CloudflareAdmin) DeleteVideo(ctx context.Context, ref domain.ContentRef) error {
	return c.call(ctx, "delete_video", request{method: http.MethodDelete, url: c.videoURL(ref)}, nil)
}

// call unwraps the response envelope into out.
func (c *CloudflareAdmin) call(ctx context.Context, op string, req request, out interface{}) error {
	req.headers = map[string]string{"Authorization": "Bearer " + c.opts.APIToken}

	var raw json.RawMessage
	if err := c.client.do(ctx, op, req, &raw); err != nil {
		return err
	}
	// A successful delete answers 200 with no body.
	if len(raw) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{Provider: "cloudflare", Operation: op, Message: "malformed envelope: " + err.Error(), kind: domain.ErrUpstreamUnavailable}
	}
	if !env.Success {
		message := "request was not successful"
		if len(env.Errors) > 0 && env.Errors[0].Message != "" {
			message = env.Errors[0].Message
		}
		return &APIError{Provider: "cloudflare", Operation: op, Message: message, kind: domain.ErrUpstreamUnavailable}
	}
	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return &APIError{Provider: "cloudflare", Operation: op, Message: "malformed result: " + err.Error(), kind: domain.ErrUpstreamUnavailable}
	}
	return nil
}

func (c *CloudflareAdmin) streamURL() string {
	return fmt.Sprintf("%s/accounts/%s/stream", c.opts.APIBaseURL, url.PathEscape(c.opts.AccountID))
}

func (c *CloudflareAdmin) videoURL(ref domain.ContentRef) string {
	return c.streamURL() + "/" + url.PathEscape(string(ref))
}

func (v *cloudflareVideo) toDomain() *domain.CDNVideo {
	return &domain.CDNVideo{
		Ref:             domain.ContentRef(v.UID),
		Title:           v.Meta["name"],
		Status:          CloudflareStatus(v.Status.State),
		DurationSeconds: int(math.Round(v.Duration)),
		ThumbnailURL:    v.Thumbnail,
	}
}

// CloudflareStatus maps the processing state string of the Stream API.
func CloudflareStatus(state string) domain.ContentStatus {
	switch state {
	case "pendingupload":
		return domain.ContentStatusCreated
	case "downloading":
		return domain.ContentStatusUploaded
	case "queued":
		return domain.ContentStatusProcessing
	case "inprogress":
		return domain.ContentStatusTranscoding
	case "ready":
		return domain.ContentStatusReady
	case "error":
		return domain.ContentStatusError
	default:
		return domain.ContentStatusUnknown
	}
}
