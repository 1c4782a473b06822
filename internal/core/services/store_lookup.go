package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"streamgate/internal/core/domain"
	"streamgate/pkg/retry"
)

// storeLookup bounds a record store call with a timeout and retries it once on a
// transient failure. Definitive answers (not found, conflict, bad input) are never
// retried and pass through unchanged; anything else becomes ErrUpstreamUnavailable.
type storeLookup struct {
	timeout time.Duration
	retry   retry.Config
}

func newStoreLookup(timeout time.Duration) storeLookup {
	cfg := retry.DefaultConfig()
	cfg.InitialDelay = 50 * time.Millisecond
	cfg.ShouldRetry = isTransientStoreError
	return storeLookup{timeout: timeout, retry: cfg}
}

func isTransientStoreError(err error) bool {
	return !errors.Is(err, domain.ErrNotFound) &&
		!errors.Is(err, domain.ErrConflict) &&
		!errors.Is(err, domain.ErrInvalidInput) &&
		!errors.Is(err, context.Canceled)
}

func lookup[T any](ctx context.Context, l storeLookup, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	result, err := retry.Do(ctx, l.retry, func(ctx context.Context) (T, error) {
		if l.timeout <= 0 {
			return fn(ctx)
		}
		callCtx, cancel := context.WithTimeout(ctx, l.timeout)
		defer cancel()
		return fn(callCtx)
	})
	if err == nil {
		return result, nil
	}

	var zero T
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, ctxErr
	}
	if !isTransientStoreError(err) {
		return zero, err
	}
	return zero, fmt.Errorf("%w: %s: %v", domain.ErrUpstreamUnavailable, op, err)
}

// storeWriteError classifies a failed write. Writes are not retried: a retried insert
// could land twice.
func storeWriteError(op string, err error) error {
	if err == nil || !isTransientStoreError(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrUpstreamUnavailable, op, err)
}
