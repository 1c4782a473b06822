package ports

import (
	"context"
	"time"

	"streamgate/internal/core/domain"
)

// IdentityProvider authenticates a bearer credential. Failures wrap domain.ErrUnauthenticated.
type IdentityProvider interface {
	Authenticate(ctx context.Context, bearer string) (*domain.Identity, error)
}

// TokenSigner mints a grant for one content object. Implementations do no I/O.
type TokenSigner interface {
	Mode() domain.SigningMode
	Sign(ref domain.ContentRef, issuedAt, expiresAt time.Time, restrictions *domain.AccessRestrictions) (*domain.SignedGrant, error)
}

// CDNAdmin wraps the CDN management API. It is never used on the playback path.
type CDNAdmin interface {
	Provider() string
	CreateVideo(ctx context.Context, title string) (*domain.UploadTarget, error)
	GetVideo(ctx context.Context, ref domain.ContentRef) (*domain.CDNVideo, error)
	ListVideos(ctx context.Context) ([]*domain.CDNVideo, error)
	DeleteVideo(ctx context.Context, ref domain.ContentRef) error
}

type AccessService interface {
	RequestAccess(ctx context.Context, identity *domain.Identity, videoID domain.VideoID, ttl time.Duration) (*domain.PlaybackAccess, error)
}
