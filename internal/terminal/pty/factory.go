package pty

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/coderone/termbridge/internal/infrastructure/logging"
	"github.com/coderone/termbridge/internal/infrastructure/monitoring"
	"github.com/coderone/termbridge/internal/infrastructure/resilience"
	"github.com/coderone/termbridge/internal/terminal"
	"github.com/coderone/termbridge/internal/terminal/mock"
)

// Spec describes the process to allocate.
type Spec struct {
	Shell string
	Dir   string
	Cols  uint16
	Rows  uint16
	Env   map[string]string
}

// Warning is the non-fatal advisory returned when allocation degraded to the
// fallback terminal.
type Warning struct {
	Message  string `json:"message"`
	Hint     string `json:"hint"`
	Attempts int    `json:"attempts"`
}

// Result is the outcome of an allocation. Handle is never nil: exhaustion
// yields a fallback terminal tagged ModeMock instead of an error.
type Result struct {
	Handle  terminal.Handle
	Mode    terminal.Mode
	Warning *Warning
}

// allocFunc allocates a real handle; injectable for tests.
type allocFunc func(Spec) (terminal.Handle, error)

// Factory allocates PTY-backed processes with bounded retry and graceful
// degradation to the scripted fallback.
type Factory struct {
	policy   resilience.Policy
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	allocate allocFunc
}

// New creates a factory using real PTY allocation.
func New(policy resilience.Policy, logger *logging.Logger, metrics *monitoring.Metrics) *Factory {
	return &Factory{
		policy:  policy,
		logger:  logger,
		metrics: metrics,
		allocate: func(spec Spec) (terminal.Handle, error) {
			return start(spec)
		},
	}
}

// NewWithAllocator creates a factory with a custom allocator. Used by tests
// to simulate allocation failure without exhausting real PTYs.
func NewWithAllocator(policy resilience.Policy, logger *logging.Logger, metrics *monitoring.Metrics, allocate func(Spec) (terminal.Handle, error)) *Factory {
	return &Factory{
		policy:   policy,
		logger:   logger,
		metrics:  metrics,
		allocate: allocate,
	}
}

// Create allocates a process handle for the given spec. Real allocation is
// retried with exponential backoff; when the retry budget is exhausted the
// caller still gets a working handle, backed by the fallback terminal, plus
// a warning it may surface.
func (f *Factory) Create(ctx context.Context, spec Spec) Result {
	spec = withDefaults(spec)

	policy := f.policy
	policy.OnRetry = func(attempt int, err error) {
		f.metrics.AllocRetries.Inc()
		hint, known := Hint(err)
		f.logger.Warn("PTY allocation failed, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err),
			zap.String("hint", hint),
			zap.Bool("known_signature", known),
		)
	}

	var h terminal.Handle
	err := resilience.Retry(ctx, policy, func() error {
		f.metrics.AllocAttempts.Inc()
		var allocErr error
		h, allocErr = f.allocate(spec)
		return allocErr
	})
	if err == nil {
		f.logger.Info("PTY allocated",
			zap.Int("pid", h.PID()),
			zap.String("shell", spec.Shell),
		)
		return Result{Handle: h, Mode: terminal.ModeReal}
	}

	// Degrade instead of failing: the caller always gets a usable handle.
	hint, _ := Hint(err)
	f.metrics.AllocFallbacks.Inc()
	f.logger.Warn("PTY allocation exhausted, degrading to fallback terminal",
		zap.Int("attempts", policy.MaxAttempts),
		zap.Error(err),
		zap.String("hint", hint),
	)

	fallback := mock.New(spec.Dir, spec.Cols, spec.Rows)
	return Result{
		Handle: fallback,
		Mode:   terminal.ModeMock,
		Warning: &Warning{
			Message:  "real PTY allocation failed: " + err.Error(),
			Hint:     hint,
			Attempts: policy.MaxAttempts,
		},
	}
}

// withDefaults fills unset spec fields the same way an interactive shell
// would be launched by hand.
func withDefaults(spec Spec) Spec {
	if spec.Shell == "" {
		spec.Shell = os.Getenv("SHELL")
		if spec.Shell == "" {
			spec.Shell = "/bin/bash"
		}
	}
	if spec.Dir == "" {
		spec.Dir = os.Getenv("HOME")
		if spec.Dir == "" {
			spec.Dir = "/tmp"
		}
	}
	if spec.Cols == 0 {
		spec.Cols = 80
	}
	if spec.Rows == 0 {
		spec.Rows = 24
	}
	return spec
}
