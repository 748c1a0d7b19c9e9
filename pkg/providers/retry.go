package providers

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry policy knobs. Package-level so tests can shrink the intervals.
var (
	retryInitialInterval = 500 * time.Millisecond
	retryMultiplier      = 2.0
	retryJitter          = 0.2
	retryMaxElapsed      = 30 * time.Second
)

const retryMaxAttempts = 4

// Retry runs fn under the shared provider retry policy: exponential backoff
// starting at 500ms, doubling, ±20% jitter, at most 4 attempts, capped at
// 30s total. Only retryable kinds (network, timeout, rate limited, upstream
// failure) are re-attempted; everything else fails immediately.
func Retry(ctx context.Context, op string, fn func() error) error {
	return RetryAttempts(ctx, op, retryMaxAttempts, fn)
}

// RetryAttempts is Retry with a caller-chosen attempt budget. The AI proxy
// uses a smaller budget than the provisioning workflows.
func RetryAttempts(ctx context.Context, op string, maxAttempts int, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.Multiplier = retryMultiplier
	b.RandomizationFactor = retryJitter
	b.MaxElapsedTime = retryMaxElapsed

	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		if attempt >= maxAttempts {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		slog.Warn("provider call failed, retrying",
			"op", op,
			"attempt", attempt,
			"wait", wait.Round(time.Millisecond),
			"error", err)
	}

	return backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify)
}
