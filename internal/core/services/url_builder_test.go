package services

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamgate/internal/core/domain"
	"streamgate/pkg/config"
)

func bunnyBuilder() *URLBuilder {
	return NewURLBuilder(DefaultURLTemplates(config.ProviderBunny), map[string]string{
		"library_id":   "4242",
		"cdn_hostname": "vz-abc.b-cdn.net",
	}, nil)
}

func signedGrant(mode domain.SigningMode) *domain.SignedGrant {
	return &domain.SignedGrant{
		ContentRef: "vid-123",
		IssuedAt:   time.Unix(1700000000, 0),
		ExpiresAt:  time.Unix(1700007200, 0),
		MediaToken: "media-token",
		EmbedToken: "embed-token",
		Mode:       mode,
	}
}

func TestURLBuilder_BunnySigned(t *testing.T) {
	urls, err := bunnyBuilder().Build(signedGrant(domain.SigningModeHash))
	require.NoError(t, err)

	assert.Equal(t, "https://vz-abc.b-cdn.net/vid-123/playlist.m3u8?expires=1700007200&token=media-token", urls.Media)
	assert.Equal(t, "https://iframe.mediadelivery.net/embed/4242/vid-123?expires=1700007200&token=embed-token", urls.Embed)
}

func TestURLBuilder_CloudflareSigned(t *testing.T) {
	b := NewURLBuilder(DefaultURLTemplates(config.ProviderCloudflare), map[string]string{
		"customer_code": "f33zs165nr7gyfy4",
	}, map[string]string{"autoplay": "true"})

	grant := signedGrant(domain.SigningModeJWT)
	grant.EmbedToken = grant.MediaToken

	urls, err := b.Build(grant)
	require.NoError(t, err)

	media, err := url.Parse(urls.Media)
	require.NoError(t, err)
	assert.Equal(t, "customer-f33zs165nr7gyfy4.cloudflarestream.com", media.Host)
	assert.Equal(t, "/vid-123/manifest/video.m3u8", media.Path)
	assert.Equal(t, "media-token", media.Query().Get("token"))

	embed, err := url.Parse(urls.Embed)
	require.NoError(t, err)
	assert.Equal(t, "/vid-123/iframe", embed.Path)
	assert.Equal(t, "true", embed.Query().Get("autoplay"))
	assert.Equal(t, "1700007200", embed.Query().Get("expires"))
}

func TestURLBuilder_UnsignedOmitsTokenParams(t *testing.T) {
	grant := signedGrant(domain.SigningModeUnsigned)
	grant.MediaToken, grant.EmbedToken = "", ""

	urls, err := bunnyBuilder().Build(grant)
	require.NoError(t, err)

	assert.Equal(t, "https://vz-abc.b-cdn.net/vid-123/playlist.m3u8", urls.Media)
	assert.NotContains(t, urls.Embed, "token")
	assert.NotContains(t, urls.Embed, "expires")
}

func TestURLBuilder_ExpiryMatchesGrant(t *testing.T) {
	grant := signedGrant(domain.SigningModeHash)
	urls, err := bunnyBuilder().Build(grant)
	require.NoError(t, err)

	for _, raw := range []string{urls.Media, urls.Embed} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "1700007200", u.Query().Get("expires"))
	}
}

func TestURLBuilder_EscapesContentRef(t *testing.T) {
	grant := signedGrant(domain.SigningModeHash)
	grant.ContentRef = "a b"

	urls, err := bunnyBuilder().Build(grant)
	require.NoError(t, err)
	assert.Contains(t, urls.Media, "/a%20b/playlist.m3u8")
}

func TestURLBuilder_RejectsNonAbsoluteOutput(t *testing.T) {
	tests := []struct {
		name      string
		templates URLTemplates
		vars      map[string]string
	}{
		{"missing hostname", DefaultURLTemplates(config.ProviderBunny), map[string]string{"library_id": "1", "cdn_hostname": ""}},
		{"relative template", URLTemplates{Media: "/{content_ref}.m3u8", Embed: "/{content_ref}"}, nil},
		{"unresolved placeholder", URLTemplates{Media: "https://{unknown}/x", Embed: "https://e.example/{content_ref}"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewURLBuilder(tt.templates, tt.vars, nil).Build(signedGrant(domain.SigningModeHash))
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestURLBuilder_RejectsEmptyGrant(t *testing.T) {
	_, err := bunnyBuilder().Build(&domain.SignedGrant{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = bunnyBuilder().Build(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestURLBuilder_Thumbnail(t *testing.T) {
	thumb, err := bunnyBuilder().Thumbnail("vid-123")
	require.NoError(t, err)
	assert.Equal(t, "https://vz-abc.b-cdn.net/vid-123/thumbnail.jpg", thumb)
}

func TestNewURLBuilderFromConfig_Overrides(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CDN.Bunny.CDNHostname = "vz-abc.b-cdn.net"
	cfg.CDN.Templates.Media = "https://media.example.com/{content_ref}/index.m3u8"

	urls, err := NewURLBuilderFromConfig(cfg).Build(signedGrant(domain.SigningModeHash))
	require.NoError(t, err)
	assert.Contains(t, urls.Media, "https://media.example.com/vid-123/index.m3u8?")
	assert.Contains(t, urls.Embed, "https://iframe.mediadelivery.net/embed/0/vid-123?")
}
