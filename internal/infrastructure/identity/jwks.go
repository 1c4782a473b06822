package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
)

// JWKSProvider verifies access tokens against a remote key set that is cached and
// refreshed in the background.
type JWKSProvider struct {
	keySet   jwk.Set
	issuer   string
	audience string
	roles    roleResolver
}

var _ ports.IdentityProvider = (*JWKSProvider)(nil)

// NewJWKSProvider registers jwksURL with a refreshing cache bound to ctx. A failed first
// fetch is logged and retried by the cache, so startup does not depend on the issuer.
func NewJWKSProvider(ctx context.Context, jwksURL string, refreshInterval time.Duration, issuer, audience string,
	profiles ports.ProfileRepository, lookupTimeout time.Duration, logger *zap.SugaredLogger) (*JWKSProvider, error) {
	cache := jwk.NewCache(ctx)

	var opts []jwk.RegisterOption
	if refreshInterval > 0 {
		opts = append(opts, jwk.WithMinRefreshInterval(refreshInterval))
	}
	if err := cache.Register(jwksURL, opts...); err != nil {
		return nil, fmt.Errorf("register jwks url: %w", err)
	}
	if _, err := cache.Refresh(ctx, jwksURL); err != nil {
		logger.Warnw("initial jwks fetch failed", "url", jwksURL, "error", err)
	}

	return newJWKSProvider(jwk.NewCachedSet(cache, jwksURL), issuer, audience, profiles, lookupTimeout), nil
}

func newJWKSProvider(keySet jwk.Set, issuer, audience string, profiles ports.ProfileRepository, lookupTimeout time.Duration) *JWKSProvider {
	return &JWKSProvider{
		keySet:   keySet,
		issuer:   issuer,
		audience: audience,
		roles:    newRoleResolver(profiles, lookupTimeout),
	}
}

func (p *JWKSProvider) Authenticate(ctx context.Context, bearer string) (*domain.Identity, error) {
	if bearer == "" {
		return nil, fmt.Errorf("%w: missing bearer token", domain.ErrUnauthenticated)
	}

	opts := []jwt.ParseOption{
		jwt.WithKeySet(p.keySet, jws.WithInferAlgorithmFromKey(true)),
		jwt.WithValidate(true),
		jwt.WithContext(ctx),
		jwt.WithAcceptableSkew(30 * time.Second),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	if p.audience != "" {
		opts = append(opts, jwt.WithAudience(p.audience))
	}

	token, err := jwt.ParseString(bearer, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	var email string
	if raw, ok := token.Get("email"); ok {
		email, _ = raw.(string)
	}
	return p.roles.resolve(ctx, token.Subject(), email)
}
