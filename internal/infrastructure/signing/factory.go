package signing

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
	"streamgate/pkg/config"
)

// New selects the signer for the configured CDN provider. It never fails: an unusable
// key yields a BrokenSigner so the process can start and report itself not ready.
func New(cfg *config.Config, logger *zap.SugaredLogger) ports.TokenSigner {
	switch cfg.CDN.Provider {
	case config.ProviderCloudflare:
		return newCloudflareSigner(cfg, logger)
	default:
		return newBunnySigner(cfg, logger)
	}
}

// Ready reports why signer cannot issue grants, or nil when it can.
func Ready(signer ports.TokenSigner) error {
	if broken, ok := signer.(*BrokenSigner); ok {
		return broken.Err()
	}
	return nil
}

func newBunnySigner(cfg *config.Config, logger *zap.SugaredLogger) ports.TokenSigner {
	if key := strings.TrimSpace(cfg.CDN.Bunny.TokenAuthKey); key != "" {
		logger.Infow("playback signing enabled", "provider", config.ProviderBunny, "mode", domain.SigningModeHash)
		return NewHashSigner(key)
	}
	return missingKey(cfg, logger, domain.SigningModeHash, "cdn.bunny.token_auth_key")
}

func newCloudflareSigner(cfg *config.Config, logger *zap.SugaredLogger) ports.TokenSigner {
	cf := cfg.CDN.Cloudflare
	if strings.TrimSpace(cf.SigningKeyPEM) == "" {
		return missingKey(cfg, logger, domain.SigningModeJWT, "cdn.cloudflare.signing_key_pem")
	}

	signer, err := NewJWTSignerFromPEM(cf.SigningKeyID, cf.SigningKeyPEM)
	if err != nil {
		// A key that is present but unusable is never downgraded to unsigned.
		reason := fmt.Errorf("cloudflare signing key is unusable: %w", err)
		logger.Errorw("playback signing misconfigured", "provider", config.ProviderCloudflare, "error", reason)
		return NewBrokenSigner(domain.SigningModeJWT, reason)
	}

	logger.Infow("playback signing enabled", "provider", config.ProviderCloudflare, "mode", domain.SigningModeJWT, "kid", signer.KeyID())
	return signer
}

func missingKey(cfg *config.Config, logger *zap.SugaredLogger, mode domain.SigningMode, setting string) ports.TokenSigner {
	if cfg.Signing.AllowUnsigned {
		logger.Warnw("playback signing disabled, URLs will not be signed",
			"provider", cfg.CDN.Provider, "missing", setting, "allow_unsigned", true)
		return NewUnsignedSigner(logger)
	}

	reason := errors.New(setting + " is not set and signing.allow_unsigned is false")
	logger.Errorw("playback signing misconfigured", "provider", cfg.CDN.Provider, "error", reason)
	return NewBrokenSigner(mode, reason)
}
