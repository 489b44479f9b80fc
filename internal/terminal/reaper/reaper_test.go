package reaper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderone/termbridge/internal/infrastructure/logging"
	"github.com/coderone/termbridge/internal/infrastructure/monitoring"
	"github.com/coderone/termbridge/internal/terminal"
	"github.com/coderone/termbridge/internal/terminal/mock"
	"github.com/coderone/termbridge/internal/terminal/session"
)

// deadHandle errors on Kill, simulating a handle whose process is already
// gone.
type deadHandle struct {
	terminal.Handle
	killCalls int
}

func (d *deadHandle) Kill() error {
	d.killCalls++
	return errors.New("process already gone")
}

func newIdleSession(id string, idleFor time.Duration) *session.Session {
	sess := session.New(id, mock.New("/tmp", 80, 24), terminal.ModeMock, session.OwnerPolling, "sh", "/tmp", 80, 24, 10)
	if idleFor > 0 {
		// Backdate activity by touching and waiting is too slow; rely on the
		// sweep timeout being shorter than the elapsed time instead.
		time.Sleep(idleFor)
	}
	return sess
}

func newReaper(reg *session.Registry, timeout time.Duration) *Reaper {
	return New(reg, time.Hour, timeout, logging.NewNop(), monitoring.NewMetrics())
}

func TestSweepRemovesIdleSessions(t *testing.T) {
	reg := session.NewRegistry()
	idle := newIdleSession("term_idle", 20*time.Millisecond)
	require.NoError(t, reg.Register(idle))

	r := newReaper(reg, 10*time.Millisecond)
	reaped := r.Sweep()

	assert.Equal(t, 1, reaped)
	_, ok := reg.Get("term_idle")
	assert.False(t, ok)
	assert.Empty(t, reg.List())
}

func TestSweepKeepsActiveSessions(t *testing.T) {
	reg := session.NewRegistry()
	active := newIdleSession("term_active", 0)
	active.Touch()
	require.NoError(t, reg.Register(active))

	r := newReaper(reg, time.Hour)
	reaped := r.Sweep()

	assert.Equal(t, 0, reaped)
	_, ok := reg.Get("term_active")
	assert.True(t, ok)
}

func TestSweepMixedSessions(t *testing.T) {
	reg := session.NewRegistry()
	idle := newIdleSession("term_idle", 20*time.Millisecond)
	require.NoError(t, reg.Register(idle))

	fresh := newIdleSession("term_fresh", 0)
	fresh.Touch()
	require.NoError(t, reg.Register(fresh))

	r := newReaper(reg, 10*time.Millisecond)
	reaped := r.Sweep()

	assert.Equal(t, 1, reaped)
	_, ok := reg.Get("term_fresh")
	assert.True(t, ok)
	_, ok = reg.Get("term_idle")
	assert.False(t, ok)
}

func TestSweepSwallowsKillFailure(t *testing.T) {
	reg := session.NewRegistry()
	dead := &deadHandle{Handle: mock.New("/tmp", 80, 24)}
	sess := session.New("term_dead", dead, terminal.ModeMock, session.OwnerPolling, "sh", "/tmp", 80, 24, 10)
	require.NoError(t, reg.Register(sess))
	time.Sleep(20 * time.Millisecond)

	r := newReaper(reg, 10*time.Millisecond)

	assert.NotPanics(t, func() {
		reaped := r.Sweep()
		assert.Equal(t, 1, reaped)
	})
	assert.Equal(t, 1, dead.killCalls)
	_, ok := reg.Get("term_dead")
	assert.False(t, ok, "session removed even though kill failed")
}

func TestSweepIdempotentOnEmptyRegistry(t *testing.T) {
	r := newReaper(session.NewRegistry(), time.Millisecond)

	assert.Equal(t, 0, r.Sweep())
	assert.Equal(t, 0, r.Sweep())
}

func TestStartSweepsPeriodically(t *testing.T) {
	reg := session.NewRegistry()
	idle := newIdleSession("term_idle", 20*time.Millisecond)
	require.NoError(t, reg.Register(idle))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := New(reg, 10*time.Millisecond, 5*time.Millisecond, logging.NewNop(), monitoring.NewMetrics())
	r.Start(ctx)

	assert.Eventually(t, func() bool {
		_, ok := reg.Get("term_idle")
		return !ok
	}, time.Second, 5*time.Millisecond)
}
