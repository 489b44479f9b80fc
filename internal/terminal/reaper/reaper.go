// Package reaper removes sessions that have been idle beyond the configured
// timeout. The timeout is a soft deadline: expiry is only observed at sweep
// granularity, never mid-interval.
package reaper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/coderone/termbridge/internal/infrastructure/logging"
	"github.com/coderone/termbridge/internal/infrastructure/monitoring"
	"github.com/coderone/termbridge/internal/terminal/session"
)

// Reaper periodically kills and removes idle sessions. It only uses the
// registry's public accessors, so it respects the same serialization as the
// transports.
type Reaper struct {
	registry *session.Registry
	interval time.Duration
	timeout  time.Duration
	logger   *logging.Logger
	metrics  *monitoring.Metrics
}

// New creates a reaper.
func New(registry *session.Registry, interval, timeout time.Duration, logger *logging.Logger, metrics *monitoring.Metrics) *Reaper {
	return &Reaper{
		registry: registry,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		metrics:  metrics,
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}

// Sweep removes every session idle beyond the timeout and returns how many
// were reaped. Killing an already-dead handle is tolerated; the handle
// contract makes Kill idempotent.
func (r *Reaper) Sweep() int {
	now := time.Now()
	reaped := 0

	for _, info := range r.registry.List() {
		if now.Sub(info.LastActivity) <= r.timeout {
			continue
		}

		sess, ok := r.registry.Remove(info.ID)
		if !ok {
			// Already removed by another actor between List and Remove
			continue
		}

		if err := sess.Handle.Kill(); err != nil {
			// Never surfaced to any caller; the session is gone either way
			r.logger.Warn("reaper kill failed",
				zap.String("session_id", info.ID),
				zap.Error(err),
			)
		}

		reaped++
		r.metrics.SessionsReaped.Inc()
		r.metrics.SessionsClosed.WithLabelValues("reaped").Inc()
		r.logger.Info("reaped idle session",
			zap.String("session_id", info.ID),
			zap.Duration("idle", now.Sub(info.LastActivity)),
		)
	}

	if reaped > 0 {
		r.metrics.SessionsActive.Set(float64(r.registry.Len()))
	}
	return reaped
}
