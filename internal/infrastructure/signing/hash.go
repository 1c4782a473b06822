package signing

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"time"

	"streamgate/internal/core/domain"
)

// HashSigner implements Bunny Stream token authentication. The media token signs the
// playlist path and the embed token signs the bare content ref; both bind the expiry.
type HashSigner struct {
	key []byte
}

func NewHashSigner(key string) *HashSigner {
	return &HashSigner{key: []byte(key)}
}

func (s *HashSigner) Mode() domain.SigningMode {
	return domain.SigningModeHash
}

// Sign ignores country restrictions: Bunny enforces those at the library level.
func (s *HashSigner) Sign(ref domain.ContentRef, issuedAt, expiresAt time.Time, restrictions *domain.AccessRestrictions) (*domain.SignedGrant, error) {
	if err := validateGrant(ref, issuedAt, expiresAt); err != nil {
		return nil, err
	}
	exp := truncateToSecond(expiresAt)
	if !exp.After(issuedAt) {
		exp = exp.Add(time.Second)
	}

	return &domain.SignedGrant{
		ContentRef:   ref,
		IssuedAt:     issuedAt,
		ExpiresAt:    exp,
		Restrictions: restrictions,
		MediaToken:   s.MediaToken(ref, exp.Unix()),
		EmbedToken:   s.EmbedToken(ref, exp.Unix()),
		Mode:         domain.SigningModeHash,
	}, nil
}

// MediaToken is base64url without padding of SHA256(key + "/{ref}/playlist.m3u8" + expires).
func (s *HashSigner) MediaToken(ref domain.ContentRef, expires int64) string {
	sum := s.digest(MediaPath(ref), expires)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// EmbedToken is lowercase hex of SHA256(key + ref + expires).
func (s *HashSigner) EmbedToken(ref domain.ContentRef, expires int64) string {
	sum := s.digest(string(ref), expires)
	return hex.EncodeToString(sum[:])
}

// VerifyMedia recomputes the media token and compares in constant time. Expiry is checked
// against now so a correctly signed but stale token is rejected.
func (s *HashSigner) VerifyMedia(ref domain.ContentRef, expires int64, token string, now time.Time) bool {
	if now.Unix() >= expires {
		return false
	}
	return constantTimeEqual(s.MediaToken(ref, expires), token)
}

func (s *HashSigner) VerifyEmbed(ref domain.ContentRef, expires int64, token string, now time.Time) bool {
	if now.Unix() >= expires {
		return false
	}
	return constantTimeEqual(s.EmbedToken(ref, expires), token)
}

// MediaPath is the playlist path the media token covers.
func MediaPath(ref domain.ContentRef) string {
	return "/" + string(ref) + "/playlist.m3u8"
}

func (s *HashSigner) digest(material string, expires int64) [sha256.Size]byte {
	buf := make([]byte, 0, len(s.key)+len(material)+20)
	buf = append(buf, s.key...)
	buf = append(buf, material...)
	buf = strconv.AppendInt(buf, expires, 10)
	return sha256.Sum256(buf)
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
