package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
)

// AccessClaims are the claims of an access token issued by the identity service.
type AccessClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// HS256Provider verifies access tokens signed with a shared project secret.
type HS256Provider struct {
	secret   []byte
	issuer   string
	audience string
	roles    roleResolver
}

var _ ports.IdentityProvider = (*HS256Provider)(nil)

func NewHS256Provider(secret, issuer, audience string, profiles ports.ProfileRepository, lookupTimeout time.Duration) *HS256Provider {
	return &HS256Provider{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		roles:    newRoleResolver(profiles, lookupTimeout),
	}
}

func (p *HS256Provider) Authenticate(ctx context.Context, bearer string) (*domain.Identity, error) {
	if bearer == "" {
		return nil, fmt.Errorf("%w: missing bearer token", domain.ErrUnauthenticated)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	if p.audience != "" {
		opts = append(opts, jwt.WithAudience(p.audience))
	}

	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(bearer, claims, func(token *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	return p.roles.resolve(ctx, claims.Subject, claims.Email)
}
