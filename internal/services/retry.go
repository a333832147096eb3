package services

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryPolicy bounds the retry behavior of external service calls: attempts
// are spaced by BaseDelay doubling each attempt, plus up to MaxJitter of
// uniform random jitter.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
}

// SpotifyRetryPolicy returns the retry policy used for Spotify API calls.
func SpotifyRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxJitter: 500 * time.Millisecond}
}

// YandexRetryPolicy returns the retry policy used for Yandex Music API calls.
func YandexRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: 1500 * time.Millisecond, MaxJitter: 500 * time.Millisecond}
}

// Retry runs op up to policy.MaxAttempts times, sleeping between attempts
// with exponential backoff plus jitter. The last error is returned after
// exhaustion. Context cancellation stops retrying immediately, both between
// attempts and when op itself reports the cancellation.
func Retry(ctx context.Context, policy RetryPolicy, op func() error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := policy.BaseDelay

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := delay
			if policy.MaxJitter > 0 {
				wait += time.Duration(rand.Int63n(int64(policy.MaxJitter)))
			}
			delay *= 2

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
	}

	return lastErr
}
