package services

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"streamgate/internal/core/domain"
	"streamgate/pkg/config"
)

// URLTemplates hold playback URL patterns. Supported placeholders are {content_ref},
// {library_id}, {cdn_hostname} and {customer_code}.
type URLTemplates struct {
	Media     string
	Embed     string
	Thumbnail string
}

// DefaultURLTemplates returns the public URL layout of a CDN provider.
func DefaultURLTemplates(provider string) URLTemplates {
	if provider == config.ProviderCloudflare {
		base := "https://customer-{customer_code}.cloudflarestream.com/{content_ref}"
		return URLTemplates{
			Media:     base + "/manifest/video.m3u8",
			Embed:     base + "/iframe",
			Thumbnail: base + "/thumbnails/thumbnail.jpg",
		}
	}
	return URLTemplates{
		Media:     "https://{cdn_hostname}/{content_ref}/playlist.m3u8",
		Embed:     "https://iframe.mediadelivery.net/embed/{library_id}/{content_ref}",
		Thumbnail: "https://{cdn_hostname}/{content_ref}/thumbnail.jpg",
	}
}

// PlaybackURLs is the pair of URLs a player needs for one grant.
type PlaybackURLs struct {
	Media string
	Embed string
}

// URLBuilder renders playback URLs from a grant.
type URLBuilder struct {
	templates   URLTemplates
	vars        map[string]string
	embedParams map[string]string
}

func NewURLBuilder(templates URLTemplates, vars map[string]string, embedParams map[string]string) *URLBuilder {
	return &URLBuilder{
		templates:   templates,
		vars:        vars,
		embedParams: embedParams,
	}
}

// NewURLBuilderFromConfig applies template overrides on top of the provider defaults.
func NewURLBuilderFromConfig(cfg *config.Config) *URLBuilder {
	templates := DefaultURLTemplates(cfg.CDN.Provider)
	if t := cfg.CDN.Templates.Media; t != "" {
		templates.Media = t
	}
	if t := cfg.CDN.Templates.Embed; t != "" {
		templates.Embed = t
	}
	if t := cfg.CDN.Templates.Thumbnail; t != "" {
		templates.Thumbnail = t
	}

	vars := map[string]string{
		"library_id":    cfg.CDN.Bunny.LibraryID,
		"cdn_hostname":  cfg.CDN.Bunny.CDNHostname,
		"customer_code": cfg.CDN.Cloudflare.CustomerCode,
	}
	return NewURLBuilder(templates, vars, cfg.CDN.EmbedParams)
}

// Build renders the media and embed URLs. Token and expiry parameters appear only on
// signed grants, and the expiry is exactly the value that was signed.
func (b *URLBuilder) Build(grant *domain.SignedGrant) (PlaybackURLs, error) {
	if grant == nil || grant.ContentRef == "" {
		return PlaybackURLs{}, domain.ErrInvalidGrant
	}

	media, err := b.render(b.templates.Media, grant.ContentRef)
	if err != nil {
		return PlaybackURLs{}, err
	}
	embed, err := b.render(b.templates.Embed, grant.ContentRef)
	if err != nil {
		return PlaybackURLs{}, err
	}

	if grant.Signed() {
		expires := strconv.FormatInt(grant.ExpiresAt.Unix(), 10)
		setQuery(media, map[string]string{"token": grant.MediaToken, "expires": expires})
		setQuery(embed, map[string]string{"token": grant.EmbedToken, "expires": expires})
	}
	setQuery(embed, b.embedParams)

	return PlaybackURLs{Media: media.String(), Embed: embed.String()}, nil
}

// Thumbnail renders the public thumbnail URL. Thumbnails are never signed.
func (b *URLBuilder) Thumbnail(ref domain.ContentRef) (string, error) {
	u, err := b.render(b.templates.Thumbnail, ref)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (b *URLBuilder) render(template string, ref domain.ContentRef) (*url.URL, error) {
	pairs := []string{"{content_ref}", url.PathEscape(string(ref))}
	for name, value := range b.vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	raw := strings.NewReplacer(pairs...).Replace(template)

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: playback url template %q: %v", domain.ErrConfiguration, template, err)
	}
	if !u.IsAbs() || u.Host == "" || strings.ContainsAny(u.Host, "{}") {
		return nil, fmt.Errorf("%w: playback url %q is not absolute", domain.ErrConfiguration, raw)
	}
	return u, nil
}

func setQuery(u *url.URL, params map[string]string) {
	if len(params) == 0 {
		return
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
}
