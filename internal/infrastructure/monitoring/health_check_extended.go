package monitoring

import (
	"context"
	"time"

	"streamgate/internal/core/ports"
	"streamgate/internal/infrastructure/signing"
)

// AddSignerCheck fails readiness while the signer cannot issue grants.
func (h *HealthChecker) AddSignerCheck(signer ports.TokenSigner) {
	h.AddCheck("signer", func(ctx context.Context) error {
		return signing.Ready(signer)
	}, time.Second)
}

// AddBackendCheck wraps a ping such as the repository factory's health check.
func (h *HealthChecker) AddBackendCheck(name string, ping func(ctx context.Context) error, timeout time.Duration) {
	h.AddCheck(name, ping, timeout)
}
