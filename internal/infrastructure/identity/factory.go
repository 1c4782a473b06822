package identity

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"streamgate/internal/core/ports"
	"streamgate/pkg/config"
)

// New builds the provider selected by identity.mode. ctx bounds the background key
// refresh of the jwks mode.
func New(ctx context.Context, cfg *config.Config, profiles ports.ProfileRepository, logger *zap.SugaredLogger) (ports.IdentityProvider, error) {
	id := cfg.Identity
	if id.Mode == config.IdentityModeJWKS {
		logger.Infow("identity provider configured", "mode", id.Mode, "jwks_url", id.JWKSURL)
		return NewJWKSProvider(ctx, id.JWKSURL, id.RefreshInterval, id.Issuer, id.Audience, profiles, cfg.Access.LookupTimeout, logger)
	}

	if id.JWTSecret == "" {
		return nil, fmt.Errorf("identity.jwt_secret is required for mode %s", config.IdentityModeHS256)
	}
	logger.Infow("identity provider configured", "mode", config.IdentityModeHS256)
	return NewHS256Provider(id.JWTSecret, id.Issuer, id.Audience, profiles, cfg.Access.LookupTimeout), nil
}
