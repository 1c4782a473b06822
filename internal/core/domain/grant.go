package domain

import "time"

type SigningMode string

const (
	SigningModeHash     SigningMode = "hash"
	SigningModeJWT      SigningMode = "jwt"
	SigningModeUnsigned SigningMode = "unsigned"
)

// AccessRestrictions are optional claims narrowing where and how a grant may be used.
// The zero value means unrestricted within the validity window.
type AccessRestrictions struct {
	AllowedCountries []string `json:"allowed_countries,omitempty"`
	Downloadable     bool     `json:"downloadable"`
}

func (r *AccessRestrictions) HasCountryRule() bool {
	return r != nil && len(r.AllowedCountries) > 0
}

// SignedGrant is minted for a single request and never stored or reused.
// MediaToken and EmbedToken are empty only for unsigned grants.
type SignedGrant struct {
	ContentRef   ContentRef
	IssuedAt     time.Time
	ExpiresAt    time.Time
	Restrictions *AccessRestrictions
	MediaToken   string
	EmbedToken   string
	Mode         SigningMode
}

func (g *SignedGrant) Signed() bool {
	return g.Mode != SigningModeUnsigned
}

// PlaybackAccess is the outcome of a successful access request.
type PlaybackAccess struct {
	VideoID    VideoID    `json:"video_id"`
	ContentRef ContentRef `json:"content_ref"`
	MediaURL   string     `json:"media_url"`
	EmbedURL   string     `json:"embed_url"`
	ExpiresIn  int64      `json:"expires_in"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Signed     bool       `json:"signed"`
}
