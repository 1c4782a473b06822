package signing

import (
	"time"

	"go.uber.org/zap"

	"streamgate/internal/core/domain"
)

// UnsignedSigner produces grants without tokens. It is only constructed when the operator
// opted out of signing and no key exists, and every use is logged.
type UnsignedSigner struct {
	logger *zap.SugaredLogger
}

func NewUnsignedSigner(logger *zap.SugaredLogger) *UnsignedSigner {
	return &UnsignedSigner{logger: logger}
}

func (s *UnsignedSigner) Mode() domain.SigningMode {
	return domain.SigningModeUnsigned
}

func (s *UnsignedSigner) Sign(ref domain.ContentRef, issuedAt, expiresAt time.Time, restrictions *domain.AccessRestrictions) (*domain.SignedGrant, error) {
	if err := validateGrant(ref, issuedAt, expiresAt); err != nil {
		return nil, err
	}
	s.logger.Warnw("issuing unsigned playback grant", "content_ref", ref)

	return &domain.SignedGrant{
		ContentRef:   ref,
		IssuedAt:     issuedAt,
		ExpiresAt:    truncateToSecond(expiresAt),
		Restrictions: restrictions,
		Mode:         domain.SigningModeUnsigned,
	}, nil
}
