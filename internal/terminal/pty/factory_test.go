package pty

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderone/termbridge/internal/infrastructure/logging"
	"github.com/coderone/termbridge/internal/infrastructure/monitoring"
	"github.com/coderone/termbridge/internal/infrastructure/resilience"
	"github.com/coderone/termbridge/internal/terminal"
	"github.com/coderone/termbridge/internal/terminal/mock"
)

func testPolicy() resilience.Policy {
	return resilience.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestCreateSuccessFirstAttempt(t *testing.T) {
	attempts := 0
	factory := NewWithAllocator(testPolicy(), logging.NewNop(), monitoring.NewMetrics(),
		func(spec Spec) (terminal.Handle, error) {
			attempts++
			return mock.New(spec.Dir, spec.Cols, spec.Rows), nil
		})

	result := factory.Create(context.Background(), Spec{})

	assert.Equal(t, 1, attempts)
	assert.Equal(t, terminal.ModeReal, result.Mode)
	assert.Nil(t, result.Warning)
	require.NotNil(t, result.Handle)
	result.Handle.Kill()
}

func TestCreateRetriesTransientFailure(t *testing.T) {
	attempts := 0
	factory := NewWithAllocator(testPolicy(), logging.NewNop(), monitoring.NewMetrics(),
		func(spec Spec) (terminal.Handle, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("forkpty: resource temporarily unavailable")
			}
			return mock.New(spec.Dir, spec.Cols, spec.Rows), nil
		})

	result := factory.Create(context.Background(), Spec{})

	assert.Equal(t, 3, attempts)
	assert.Equal(t, terminal.ModeReal, result.Mode)
	assert.Nil(t, result.Warning)
	result.Handle.Kill()
}

func TestCreateExhaustionDegradesToFallback(t *testing.T) {
	attempts := 0
	factory := NewWithAllocator(testPolicy(), logging.NewNop(), monitoring.NewMetrics(),
		func(spec Spec) (terminal.Handle, error) {
			attempts++
			return nil, errors.New("forkpty: resource temporarily unavailable")
		})

	result := factory.Create(context.Background(), Spec{Dir: "/tmp"})

	assert.Equal(t, 3, attempts)
	assert.Equal(t, terminal.ModeMock, result.Mode)
	require.NotNil(t, result.Warning)
	assert.Contains(t, result.Warning.Message, "forkpty")
	assert.Contains(t, result.Warning.Hint, "ptmx_max")
	assert.Equal(t, 3, result.Warning.Attempts)

	// The fallback is fully usable
	require.NotNil(t, result.Handle)
	assert.Greater(t, result.Handle.PID(), 0)
	_, err := result.Handle.Write([]byte("echo ok\n"))
	assert.NoError(t, err)
	result.Handle.Kill()
}

func TestCreateUnknownFailureStillDegrades(t *testing.T) {
	factory := NewWithAllocator(testPolicy(), logging.NewNop(), monitoring.NewMetrics(),
		func(spec Spec) (terminal.Handle, error) {
			return nil, errors.New("weird one-off failure")
		})

	result := factory.Create(context.Background(), Spec{})

	assert.Equal(t, terminal.ModeMock, result.Mode)
	require.NotNil(t, result.Warning)
	assert.Contains(t, result.Warning.Hint, "Check system resources")
	result.Handle.Kill()
}

func TestCreateAppliesDefaults(t *testing.T) {
	var seen Spec
	factory := NewWithAllocator(testPolicy(), logging.NewNop(), monitoring.NewMetrics(),
		func(spec Spec) (terminal.Handle, error) {
			seen = spec
			return mock.New(spec.Dir, spec.Cols, spec.Rows), nil
		})

	result := factory.Create(context.Background(), Spec{})
	result.Handle.Kill()

	assert.NotEmpty(t, seen.Shell)
	assert.NotEmpty(t, seen.Dir)
	assert.Equal(t, uint16(80), seen.Cols)
	assert.Equal(t, uint16(24), seen.Rows)
}

func TestCreateRespectsExplicitSpec(t *testing.T) {
	var seen Spec
	factory := NewWithAllocator(testPolicy(), logging.NewNop(), monitoring.NewMetrics(),
		func(spec Spec) (terminal.Handle, error) {
			seen = spec
			return mock.New(spec.Dir, spec.Cols, spec.Rows), nil
		})

	result := factory.Create(context.Background(), Spec{
		Shell: "/bin/sh",
		Dir:   "/tmp",
		Cols:  120,
		Rows:  50,
	})
	result.Handle.Kill()

	assert.Equal(t, "/bin/sh", seen.Shell)
	assert.Equal(t, "/tmp", seen.Dir)
	assert.Equal(t, uint16(120), seen.Cols)
	assert.Equal(t, uint16(50), seen.Rows)
}
