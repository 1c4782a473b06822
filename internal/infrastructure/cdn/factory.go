package cdn

import (
	"go.uber.org/zap"

	"streamgate/internal/core/ports"
	"streamgate/pkg/config"
)

// New builds the management client for the configured provider.
func New(cfg *config.Config, observer CallObserver, logger *zap.SugaredLogger) ports.CDNAdmin {
	clientOpts := ClientOptions{
		Timeout:      cfg.CDN.HTTPTimeout,
		MaxFailures:  cfg.CDN.CircuitBreaker.MaxFailures,
		ResetTimeout: cfg.CDN.CircuitBreaker.ResetTimeout,
		Observer:     observer,
	}

	if cfg.CDN.Provider == config.ProviderCloudflare {
		cf := cfg.CDN.Cloudflare
		return NewCloudflareAdmin(CloudflareOptions{
			APIBaseURL:         cf.APIBaseURL,
			AccountID:          cf.AccountID,
			APIToken:           cf.APIToken,
			MaxDurationSeconds: cf.MaxDurationSeconds,
		}, clientOpts, logger)
	}

	bunny := cfg.CDN.Bunny
	return NewBunnyAdmin(BunnyOptions{
		APIBaseURL: bunny.APIBaseURL,
		LibraryID:  bunny.LibraryID,
		APIKey:     bunny.APIKey,
	}, clientOpts, logger)
}
