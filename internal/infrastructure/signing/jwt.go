package signing

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"streamgate/internal/core/domain"
)

// AccessRule is one entry of the accessRules claim understood by Cloudflare Stream.
type AccessRule struct {
	Type    string   `json:"type"`
	Country []string `json:"country,omitempty"`
	Action  string   `json:"action"`
}

// StreamClaims is the payload of a Cloudflare Stream signed token. The subject is the
// video uid, so a token can never be replayed against another video.
type StreamClaims struct {
	jwt.RegisteredClaims
	Downloadable bool         `json:"downloadable"`
	AccessRules  []AccessRule `json:"accessRules,omitempty"`
}

// JWTSigner signs Cloudflare Stream tokens with RS256 and a key id header.
type JWTSigner struct {
	key *rsa.PrivateKey
	kid string
}

func NewJWTSigner(kid string, key *rsa.PrivateKey) *JWTSigner {
	return &JWTSigner{key: key, kid: kid}
}

// NewJWTSignerFromPEM accepts a PKCS#1 or PKCS#8 PEM block, raw or base64 wrapped the
// way the Cloudflare API returns it.
func NewJWTSignerFromPEM(kid, pemText string) (*JWTSigner, error) {
	if strings.TrimSpace(kid) == "" {
		return nil, errors.New("signing key id is empty")
	}
	key, err := ParseRSAPrivateKey(pemText)
	if err != nil {
		return nil, err
	}
	return NewJWTSigner(kid, key), nil
}

func (s *JWTSigner) Mode() domain.SigningMode {
	return domain.SigningModeJWT
}

func (s *JWTSigner) KeyID() string {
	return s.kid
}

func (s *JWTSigner) PublicKey() *rsa.PublicKey {
	return &s.key.PublicKey
}

func (s *JWTSigner) Sign(ref domain.ContentRef, issuedAt, expiresAt time.Time, restrictions *domain.AccessRestrictions) (*domain.SignedGrant, error) {
	if err := validateGrant(ref, issuedAt, expiresAt); err != nil {
		return nil, err
	}
	exp := truncateToSecond(expiresAt)
	if !exp.After(issuedAt) {
		exp = exp.Add(time.Second)
	}

	claims := StreamClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(ref),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}
	if restrictions != nil {
		claims.Downloadable = restrictions.Downloadable
	}
	if restrictions.HasCountryRule() {
		claims.AccessRules = []AccessRule{
			{Type: "ip.geoip.country", Country: restrictions.AllowedCountries, Action: "allow"},
			{Type: "any", Action: "block"},
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.kid
	signed, err := token.SignedString(s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: sign stream token: %v", domain.ErrConfiguration, err)
	}

	return &domain.SignedGrant{
		ContentRef:   ref,
		IssuedAt:     issuedAt,
		ExpiresAt:    exp,
		Restrictions: restrictions,
		MediaToken:   signed,
		EmbedToken:   signed,
		Mode:         domain.SigningModeJWT,
	}, nil
}

// JWTVerifier checks stream tokens against public keys selected by the kid header.
type JWTVerifier struct {
	keys map[string]*rsa.PublicKey
}

func NewJWTVerifier(keys map[string]*rsa.PublicKey) *JWTVerifier {
	return &JWTVerifier{keys: keys}
}

// Verify parses and validates token, returning its claims.
func (v *JWTVerifier) Verify(token string) (*StreamClaims, error) {
	claims := &StreamClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		key, ok := v.keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRSAPrivateKey decodes a PEM private key, optionally base64 wrapped.
func ParseRSAPrivateKey(text string) (*rsa.PrivateKey, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("empty RSA private key pem")
	}
	data := []byte(text)
	if !strings.HasPrefix(text, "-----BEGIN") {
		decoded, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return nil, fmt.Errorf("signing key is neither PEM nor base64 PEM: %w", err)
		}
		data = decoded
	}

	blk, _ := pem.Decode(data)
	if blk == nil {
		return nil, errors.New("failed to decode RSA private key pem")
	}

	switch blk.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(blk.Bytes)
	default:
		key, err := x509.ParsePKCS8PrivateKey(blk.Bytes)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("pkcs8 key is not an RSA private key")
		}
		return rsaKey, nil
	}
}
