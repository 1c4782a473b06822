// Package signing mints the tokens a video CDN verifies on its own, without calling back.
package signing

import (
	"fmt"
	"time"

	"streamgate/internal/core/domain"
)

// validateGrant enforces the inputs every signer variant shares.
func validateGrant(ref domain.ContentRef, issuedAt, expiresAt time.Time) error {
	if ref == "" {
		return fmt.Errorf("%w: empty content ref", domain.ErrInvalidGrant)
	}
	if !expiresAt.After(issuedAt) {
		return fmt.Errorf("%w: expiry %s is not after issuance %s", domain.ErrInvalidGrant,
			expiresAt.UTC().Format(time.RFC3339), issuedAt.UTC().Format(time.RFC3339))
	}
	return nil
}

// Expiries are carried as whole epoch seconds on the wire. Truncating here keeps the
// grant's ExpiresAt identical to the value that was signed.
func truncateToSecond(t time.Time) time.Time {
	return time.Unix(t.Unix(), 0).UTC()
}
