package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Config holds retry configuration
type Config struct {
	Enabled      bool          // Enable/disable retry logic
	MaxRetries   int           // Retries after the first attempt
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Maximum delay between retries
	Multiplier   float64       // Exponential backoff multiplier
	Jitter       bool          // Randomize delays by up to 25%

	// ShouldRetry classifies a failure. Nil retries every error.
	ShouldRetry func(error) bool
}

// DefaultConfig retries a transient failure exactly once.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		MaxRetries:   1,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Unless returns a classifier that refuses to retry any of the given errors.
func Unless(nonRetryable ...error) func(error) bool {
	return func(err error) bool {
		for _, target := range nonRetryable {
			if errors.Is(err, target) {
				return false
			}
		}
		return true
	}
}

// Do runs fn until it succeeds, the classifier rejects the error, retries run out,
// or ctx ends. The last error from fn is returned unchanged.
func Do[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if !cfg.Enabled {
		return fn(ctx)
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(err) {
			return zero, err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		timer := time.NewTimer(calculateDelay(cfg, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

// Retry is Do for functions without a result.
func Retry(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// calculateDelay calculates the delay for exponential backoff
func calculateDelay(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	duration := time.Duration(delay)
	if cfg.Jitter && duration > 0 {
		quarter := int64(duration / 4)
		if quarter > 0 {
			duration = duration - time.Duration(quarter) + time.Duration(rand.Int63n(2*quarter))
		}
	}
	return duration
}
