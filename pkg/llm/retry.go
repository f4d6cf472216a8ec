package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/chronicle-ai/chronicle/pkg/models"
)

const (
	// retryInitialInterval is the base delay before the first retry.
	retryInitialInterval = 2 * time.Second
	// retryMaxInterval caps the exponential growth of the delay.
	retryMaxInterval = 60 * time.Second
	// retryMaxAttempts bounds total attempts against rate limiting.
	retryMaxAttempts = 5
)

// newProviderBackoff returns the exponential policy used for provider
// calls: base 2s, 25% jitter, capped at 60s.
func newProviderBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.RandomizationFactor = 0.25
	b.Multiplier = 2
	b.MaxElapsedTime = 0 // bounded by attempt count, not wall clock
	return backoff.WithContext(backoff.WithMaxRetries(b, retryMaxAttempts-1), ctx)
}

// WithRetry runs op under the provider backoff policy. Only transient
// faults are retried; permanent faults and policy denials return
// immediately.
func WithRetry(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !models.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, newProviderBackoff(ctx))
}
