package signing

import (
	"fmt"
	"time"

	"streamgate/internal/core/domain"
)

// BrokenSigner stands in when the signing key is missing or unusable. Every Sign fails
// with a configuration error so no playback URL is ever issued unsigned by accident.
type BrokenSigner struct {
	mode   domain.SigningMode
	reason error
}

func NewBrokenSigner(mode domain.SigningMode, reason error) *BrokenSigner {
	return &BrokenSigner{mode: mode, reason: reason}
}

func (s *BrokenSigner) Mode() domain.SigningMode {
	return s.mode
}

func (s *BrokenSigner) Sign(domain.ContentRef, time.Time, time.Time, *domain.AccessRestrictions) (*domain.SignedGrant, error) {
	return nil, s.Err()
}

// Err describes why signing is unavailable.
func (s *BrokenSigner) Err() error {
	return fmt.Errorf("%w: %v", domain.ErrConfiguration, s.reason)
}
