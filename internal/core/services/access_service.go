package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
	"streamgate/pkg/tracing"
	"streamgate/pkg/utils"
)

// Grant outcomes reported to metrics and traces.
const (
	OutcomeGranted             = "granted"
	OutcomeAdminOverride       = "admin_override"
	OutcomeNotFound            = "not_found"
	OutcomeForbidden           = "forbidden"
	OutcomeUnauthenticated     = "unauthenticated"
	OutcomeConfigurationError  = "configuration_error"
	OutcomeUpstreamUnavailable = "upstream_unavailable"
	OutcomeInvalidInput        = "invalid_input"
	OutcomeCancelled           = "cancelled"
	OutcomeError               = "error"
)

// GrantObserver receives one observation per access request.
type GrantObserver interface {
	ObserveGrant(outcome string, duration time.Duration)
}

type nopGrantObserver struct{}

func (nopGrantObserver) ObserveGrant(string, time.Duration) {}

type AccessConfig struct {
	DefaultTTL   time.Duration
	MaxTTL       time.Duration
	Restrictions *domain.AccessRestrictions
}

// AccessGrantService turns an entitlement into signed playback URLs.
type AccessGrantService struct {
	entitlements *EntitlementService
	signer       ports.TokenSigner
	urls         *URLBuilder
	cfg          AccessConfig
	observer     GrantObserver
	now          func() time.Time
	logger       *zap.SugaredLogger
}

func NewAccessGrantService(
	entitlements *EntitlementService,
	signer ports.TokenSigner,
	urls *URLBuilder,
	cfg AccessConfig,
	observer GrantObserver,
	logger *zap.SugaredLogger,
) *AccessGrantService {
	if observer == nil {
		observer = nopGrantObserver{}
	}
	return &AccessGrantService{
		entitlements: entitlements,
		signer:       signer,
		urls:         urls,
		cfg:          cfg,
		observer:     observer,
		now:          time.Now,
		logger:       logger,
	}
}

var _ ports.AccessService = (*AccessGrantService)(nil)

// RequestAccess authorizes identity for videoID and mints a fresh grant. Nothing is
// signed unless the caller is entitled, and every call produces a new token.
func (s *AccessGrantService) RequestAccess(ctx context.Context, identity *domain.Identity, videoID domain.VideoID, ttl time.Duration) (*domain.PlaybackAccess, error) {
	start := s.now()
	var userID string
	if identity != nil {
		userID = string(identity.UserID)
	}

	ctx, span := tracing.TraceGrant(ctx, userID, string(videoID))
	defer span.End()

	access, reason, err := s.requestAccess(ctx, identity, videoID, ttl)
	outcome := outcomeOf(reason, err)
	s.observer.ObserveGrant(outcome, s.now().Sub(start))
	tracing.AddSpanAttributes(ctx, tracing.OutcomeKey.String(outcome))

	if err != nil {
		tracing.RecordError(ctx, err)
		s.logDenial(identity, videoID, outcome, err)
		return nil, err
	}

	tracing.AddSpanAttributes(ctx,
		tracing.ContentRefKey.String(string(access.ContentRef)),
		tracing.TTLKey.Int64(access.ExpiresIn),
		tracing.SignedKey.Bool(access.Signed),
	)
	s.logger.Infow("playback access granted",
		"user_id", userID,
		"video_id", videoID,
		"content_ref", access.ContentRef,
		"reason", reason,
		"expires_in", access.ExpiresIn,
		"signed", access.Signed,
	)
	return access, nil
}

func (s *AccessGrantService) requestAccess(ctx context.Context, identity *domain.Identity, videoID domain.VideoID, ttl time.Duration) (*domain.PlaybackAccess, AccessReason, error) {
	decision, err := s.entitlements.Check(ctx, identity, videoID)
	if err != nil {
		return nil, "", err
	}

	video := decision.Video
	if video.ContentRef == "" {
		return nil, decision.Reason, domain.ErrContentUnavailable
	}
	if video.RequireSignedURL && s.signer.Mode() == domain.SigningModeUnsigned {
		return nil, decision.Reason, fmt.Errorf("%w: video %s requires signed playback but signing is disabled", domain.ErrConfiguration, video.ID)
	}

	// A caller that went away must not leave a freshly minted token behind.
	if err := ctx.Err(); err != nil {
		return nil, decision.Reason, err
	}

	issuedAt := time.Unix(s.now().Unix(), 0).UTC()
	grant, err := s.signer.Sign(video.ContentRef, issuedAt, issuedAt.Add(s.EffectiveTTL(ttl)), s.cfg.Restrictions)
	if err != nil {
		return nil, decision.Reason, err
	}

	urls, err := s.urls.Build(grant)
	if err != nil {
		return nil, decision.Reason, err
	}

	return &domain.PlaybackAccess{
		VideoID:    video.ID,
		ContentRef: video.ContentRef,
		MediaURL:   urls.Media,
		EmbedURL:   urls.Embed,
		ExpiresIn:  utils.SecondsUntil(issuedAt, grant.ExpiresAt),
		ExpiresAt:  grant.ExpiresAt,
		Signed:     grant.Signed(),
	}, decision.Reason, nil
}

// EffectiveTTL applies the default to non-positive requests and clamps to the maximum.
func (s *AccessGrantService) EffectiveTTL(requested time.Duration) time.Duration {
	if requested <= 0 {
		return s.cfg.DefaultTTL
	}
	if s.cfg.MaxTTL > 0 && requested > s.cfg.MaxTTL {
		return s.cfg.MaxTTL
	}
	return requested
}

func (s *AccessGrantService) logDenial(identity *domain.Identity, videoID domain.VideoID, outcome string, err error) {
	fields := []interface{}{"video_id", videoID, "outcome", outcome, "error", err}
	if identity != nil {
		fields = append(fields, "user_id", identity.UserID)
	}

	switch outcome {
	case OutcomeConfigurationError, OutcomeUpstreamUnavailable, OutcomeError:
		s.logger.Errorw("playback access failed", fields...)
	default:
		s.logger.Infow("playback access denied", fields...)
	}
}

func outcomeOf(reason AccessReason, err error) string {
	switch {
	case err == nil && reason == ReasonAdminOverride:
		return OutcomeAdminOverride
	case err == nil:
		return OutcomeGranted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	case errors.Is(err, domain.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, domain.ErrForbidden):
		return OutcomeForbidden
	case errors.Is(err, domain.ErrUnauthenticated):
		return OutcomeUnauthenticated
	case errors.Is(err, domain.ErrConfiguration):
		return OutcomeConfigurationError
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return OutcomeUpstreamUnavailable
	case errors.Is(err, domain.ErrInvalidInput):
		return OutcomeInvalidInput
	default:
		return OutcomeError
	}
}
