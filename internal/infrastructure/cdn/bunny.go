package cdn

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
)

type BunnyOptions struct {
	APIBaseURL string
	LibraryID  string
	APIKey     string
}

// BunnyAdmin talks to the Bunny Stream video library API.
type BunnyAdmin struct {
	opts   BunnyOptions
	client *apiClient
}

var _ ports.CDNAdmin = (*BunnyAdmin)(nil)

func NewBunnyAdmin(opts BunnyOptions, clientOpts ClientOptions, logger *zap.SugaredLogger) *BunnyAdmin {
	opts.APIBaseURL = strings.TrimRight(opts.APIBaseURL, "/")
	return &BunnyAdmin{
		opts:   opts,
		client: newAPIClient("bunny", clientOpts, logger),
	}
}

type bunnyVideo struct {
	GUID   string `json:"guid"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Length int    `json:"length"`
}

type bunnyVideoList struct {
	Items []bunnyVideo `json:"items"`
}

func (b *BunnyAdmin) Provider() string {
	return "bunny"
}

// CreateVideo creates an empty video object. The media bytes are then uploaded with a
// PUT to the returned URL.
func (b *BunnyAdmin) CreateVideo(ctx context.Context, title string) (*domain.UploadTarget, error) {
	var created bunnyVideo
	err := b.client.do(ctx, "create_video", request{
		method:  http.MethodPost,
		url:     b.videosURL(),
		headers: b.headers(),
		body:    map[string]string{"title": title},
	}, &created)
	if err != nil {
		return nil, err
	}
	if created.GUID == "" {
		return nil, fmt.Errorf("%w: bunny create_video returned no guid", domain.ErrUpstreamUnavailable)
	}

	return &domain.UploadTarget{
		Ref:       domain.ContentRef(created.GUID),
		UploadURL: b.videoURL(domain.ContentRef(created.GUID)),
		Method:    http.MethodPut,
		Headers:   map[string]string{"AccessKey": b.opts.APIKey},
	}, nil
}

func (b *BunnyAdmin) GetVideo(ctx context.Context, ref domain.ContentRef) (*domain.CDNVideo, error) {
	var video bunnyVideo
	err := b.client.do(ctx, "get_video", request{
		method:  http.MethodGet,
		url:     b.videoURL(ref),
		headers: b.headers(),
	}, &video)
	if err != nil {
		return nil, err
	}
	return video.toDomain(), nil
}

func (b *BunnyAdmin) ListVideos(ctx context.Context) ([]*domain.CDNVideo, error) {
	var list bunnyVideoList
	err := b.client.do(ctx, "list_videos", request{
		method:  http.MethodGet,
		url:     b.videosURL() + "?itemsPerPage=100",
		headers: b.headers(),
	}, &list)
	if err != nil {
		return nil, err
	}

	videos := make([]*domain.CDNVideo, 0, len(list.Items))
	for i := range list.Items {
		videos = append(videos, list.Items[i].toDomain())
	}
	return videos, nil
}

func (b *BunnyAdmin) DeleteVideo(ctx context.Context, ref domain.ContentRef) error {
	return b.client.do(ctx, "delete_video", request{
		method:  http.MethodDelete,
		url:     b.videoURL(ref),
		headers: b.headers(),
	}, nil)
}

func (b *BunnyAdmin) videosURL() string {
	return fmt.Sprintf("%s/library/%s/videos", b.opts.APIBaseURL, url.PathEscape(b.opts.LibraryID))
}

func (b *BunnyAdmin) videoURL(ref domain.ContentRef) string {
	return b.videosURL() + "/" + url.PathEscape(string(ref))
}

func (b *BunnyAdmin) headers() map[string]string {
	return map[string]string{"AccessKey": b.opts.APIKey}
}

func (v *bunnyVideo) toDomain() *domain.CDNVideo {
	return &domain.CDNVideo{
		Ref:             domain.ContentRef(v.GUID),
		Title:           v.Title,
		Status:          BunnyStatus(v.Status),
		DurationSeconds: v.Length,
	}
}

// BunnyStatus maps the numeric status of the Bunny API.
func BunnyStatus(code int) domain.ContentStatus {
	switch code {
	case 0:
		return domain.ContentStatusCreated
	case 1:
		return domain.ContentStatusUploaded
	case 2:
		return domain.ContentStatusProcessing
	case 3:
		return domain.ContentStatusTranscoding
	case 4:
		return domain.ContentStatusReady
	case 5, 6:
		return domain.ContentStatusError
	default:
		return domain.ContentStatusUnknown
	}
}
