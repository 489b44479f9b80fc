package resilience

import (
	"context"
	"time"
)

// Policy configures bounded retry with exponential backoff.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int
	// BaseDelay is the delay before the second attempt; it doubles per attempt
	BaseDelay time.Duration
	// MaxDelay caps the per-attempt backoff delay
	MaxDelay time.Duration
	// OnRetry is called before each re-attempt with the attempt number
	// (1-based) and the error that caused it
	OnRetry func(attempt int, err error)
}

// DefaultPolicy returns a policy suited to transient OS resource exhaustion.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// Backoff returns the delay to wait after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Retry executes op up to MaxAttempts times, sleeping the backoff delay
// between attempts. It returns nil on the first success, the last error on
// exhaustion, and the context error if ctx is cancelled while waiting.
func Retry(ctx context.Context, p Policy, op func() error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 2 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if lastErr = op(); lastErr == nil {
			return nil
		}

		if attempt == p.MaxAttempts {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, lastErr)
		}

		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
