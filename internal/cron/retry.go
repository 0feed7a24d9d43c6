package cron

import "time"

// RetryConfig bounds how a failed job run is retried: up to MaxRetries
// additional attempts, with exponential backoff between BaseDelay and
// MaxDelay.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig matches the teacher's config.CronConfig zero-value
// behavior: three retries, starting at 30s, capped at 10m.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  30 * time.Second,
		MaxDelay:   10 * time.Minute,
	}
}

// delayFor returns the backoff delay before retry attempt n (1-indexed),
// doubling BaseDelay each attempt and clamping to MaxDelay.
func (c RetryConfig) delayFor(attempt int) time.Duration {
	d := c.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > c.MaxDelay {
			return c.MaxDelay
		}
	}
	if d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}
