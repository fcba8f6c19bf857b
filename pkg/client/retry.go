package client

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy controls how retryable failures are retried.
// The delay before retry n (0-based) is min(InitialInterval * Multiplier^n, MaxInterval).
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
}

// DefaultRetryPolicy retries 3 times after 1s, 2s and 4s, never waiting more than 30s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: time.Second,
		Multiplier:      2,
		MaxInterval:     30 * time.Second,
	}
}

// NoRetry disables retries
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

// Delay returns the wait before retry number attempt (0-based)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := float64(p.InitialInterval)
	for i := 0; i < attempt; i++ {
		d *= p.Multiplier
		if time.Duration(d) >= p.MaxInterval {
			return p.MaxInterval
		}
	}
	return min(time.Duration(d), p.MaxInterval)
}

// newBackOff builds a fresh backoff; BackOff values are stateful and must not be shared
func (p RetryPolicy) newBackOff() backoff.BackOff {
	if p.MaxRetries <= 0 {
		return &backoff.StopBackOff{}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.Multiplier = p.Multiplier
	bo.MaxInterval = p.MaxInterval
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()

	return backoff.WithMaxRetries(bo, uint64(p.MaxRetries))
}
