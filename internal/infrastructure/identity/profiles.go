package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
	"streamgate/pkg/retry"
)

// roleResolver turns a verified subject into an Identity. The role comes from the
// profile record; a user without a profile is a student.
type roleResolver struct {
	profiles ports.ProfileRepository
	timeout  time.Duration
	retry    retry.Config
}

func newRoleResolver(profiles ports.ProfileRepository, timeout time.Duration) roleResolver {
	cfg := retry.DefaultConfig()
	cfg.InitialDelay = 50 * time.Millisecond
	cfg.ShouldRetry = retry.Unless(domain.ErrNotFound, context.Canceled)
	return roleResolver{profiles: profiles, timeout: timeout, retry: cfg}
}

func (r roleResolver) resolve(ctx context.Context, subject, email string) (*domain.Identity, error) {
	if subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", domain.ErrUnauthenticated)
	}
	identity := &domain.Identity{UserID: domain.UserID(subject), Role: domain.RoleStudent, Email: email}
	if r.profiles == nil {
		return identity, nil
	}

	profile, err := retry.Do(ctx, r.retry, func(ctx context.Context) (*domain.Profile, error) {
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		return r.profiles.GetByID(ctx, identity.UserID)
	})
	switch {
	case err == nil:
		if profile.Role.Valid() {
			identity.Role = profile.Role
		}
		if identity.Email == "" {
			identity.Email = profile.Email
		}
	case errors.Is(err, domain.ErrNotFound):
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		return nil, fmt.Errorf("%w: profile lookup: %v", domain.ErrUpstreamUnavailable, err)
	}
	return identity, nil
}
