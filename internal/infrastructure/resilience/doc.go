/*
Package resilience provides a bounded retry combinator with exponential backoff.

# Overview

PTY allocation can fail transiently when the OS runs low on pseudo-terminal
devices or process slots. This package expresses the retry loop as an explicit
policy (attempt count, backoff function, observer hook) independent of the
operation being retried.

# Usage

	policy := resilience.Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		OnRetry: func(attempt int, err error) {
			log.Printf("attempt %d failed: %v", attempt, err)
		},
	}

	err := resilience.Retry(ctx, policy, func() error {
		return allocate()
	})

# Guarantees

  - Total wall-clock time is hard-bounded: at most MaxAttempts operations plus
    (MaxAttempts-1) backoff delays, each capped at MaxDelay.
  - Cancelling the context aborts any in-progress backoff wait immediately.
  - The last attempt's error is returned verbatim on exhaustion.
*/
package resilience
