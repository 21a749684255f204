// Package playback forces the local provider onto the room's current item.
package playback

import "time"

// Backoff returns the wait after the given 1-based attempt.
type Backoff func(attempt int) time.Duration

func Fixed(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

type RetryPolicy struct {
	MaxAttempts int
	Backoff     Backoff
}

func DefaultPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 10, Backoff: Fixed(time.Second)}
}

func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.Backoff == nil {
		return 0
	}
	return p.Backoff(attempt)
}
