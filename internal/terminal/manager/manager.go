package manager

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/coderone/termbridge/internal/infrastructure/config"
	"github.com/coderone/termbridge/internal/infrastructure/logging"
	"github.com/coderone/termbridge/internal/infrastructure/monitoring"
	"github.com/coderone/termbridge/internal/shared/id"
	"github.com/coderone/termbridge/internal/terminal"
	"github.com/coderone/termbridge/internal/terminal/pty"
	"github.com/coderone/termbridge/internal/terminal/session"
)

// ErrSessionLimit is returned when the session pool is full even after an
// idle-reap pass. Distinct from allocation degradation, which never fails.
var ErrSessionLimit = errors.New("maximum number of sessions reached")

// Options describes a session creation request.
type Options struct {
	Shell string
	Dir   string
	Cols  uint16
	Rows  uint16
	Env   map[string]string
}

// Diagnostics reports platform and resource state for the diagnostics
// endpoint.
type Diagnostics struct {
	Platform       string            `json:"platform"`
	Shell          string            `json:"shell"`
	PTYAvailable   bool              `json:"ptyAvailable"`
	ActiveSessions int               `json:"activeSessions"`
	MaxSessions    int               `json:"maxSessions"`
	ResourceHints  map[string]string `json:"resourceHints"`
	Sessions       []session.Info    `json:"sessions"`
}

// Manager is the single creation and ownership point shared by both
// transports. Adapters differ only in how they deliver bytes; session state
// always moves through the registry here.
type Manager struct {
	factory  *pty.Factory
	registry *session.Registry
	cfg      config.TerminalConfig
	logger   *logging.Logger
	metrics  *monitoring.Metrics

	// sweep runs one idle-reap pass; wired to the reaper by the server so
	// a full pool is reclaimed before creation is refused
	sweep func() int

	// slotMu guards reserved. A reservation covers the whole allocation
	// window, so concurrent creates cannot overshoot the pool limit while
	// allocations are still in flight.
	slotMu   sync.Mutex
	reserved int
}

// New creates a manager.
func New(factory *pty.Factory, registry *session.Registry, cfg config.TerminalConfig, logger *logging.Logger, metrics *monitoring.Metrics) *Manager {
	return &Manager{
		factory:  factory,
		registry: registry,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// WithSweeper wires the idle-reap pass used when the pool is full.
func (m *Manager) WithSweeper(sweep func() int) *Manager {
	m.sweep = sweep
	return m
}

// Registry exposes the registry for components that attach to sessions.
func (m *Manager) Registry() *session.Registry {
	return m.registry
}

// Create allocates a process (real or fallback), registers the session under
// a fresh id, and for polling-owned sessions starts the output pump. The
// returned warning is non-nil only when allocation degraded to the fallback.
func (m *Manager) Create(ctx context.Context, opts Options, owner session.Transport) (*session.Session, *pty.Warning, error) {
	if err := m.reserveSlot(); err != nil {
		return nil, nil, err
	}
	defer m.releaseSlot()

	spec := pty.Spec{
		Shell: opts.Shell,
		Dir:   opts.Dir,
		Cols:  opts.Cols,
		Rows:  opts.Rows,
		Env:   opts.Env,
	}
	if spec.Shell == "" {
		spec.Shell = m.cfg.Shell
	}

	result := m.factory.Create(ctx, spec)

	sessionID := id.NewSessionID().String()
	cols, rows := spec.Cols, spec.Rows
	if cols == 0 {
		cols = 80
	}
	if rows == 0 {
		rows = 24
	}

	sess := session.New(sessionID, result.Handle, result.Mode, owner, spec.Shell, spec.Dir, cols, rows, m.cfg.OutputBufferLen)
	if err := m.registry.Register(sess); err != nil {
		result.Handle.Kill()
		return nil, nil, err
	}

	m.metrics.SessionsCreated.WithLabelValues(string(result.Mode)).Inc()
	m.metrics.SessionsActive.Set(float64(m.registry.Len()))

	if owner == session.OwnerPolling {
		go m.pump(sess)
	}

	m.logger.Info("session created",
		zap.String("session_id", sessionID),
		zap.Int("pid", result.Handle.PID()),
		zap.String("mode", string(result.Mode)),
		zap.String("owner", string(owner)),
	)

	return sess, result.Warning, nil
}

// reserveSlot claims a pool slot, counting both registered sessions and
// creates still inside the allocation window. When the pool is full one reap
// pass runs before refusing; the recheck happens under the same lock, so a
// burst of concurrent creates cannot slip past the limit.
func (m *Manager) reserveSlot() error {
	if m.cfg.MaxSessions <= 0 {
		return nil
	}

	m.slotMu.Lock()
	defer m.slotMu.Unlock()

	if m.registry.Len()+m.reserved >= m.cfg.MaxSessions {
		if m.sweep != nil {
			m.sweep()
		}
		if m.registry.Len()+m.reserved >= m.cfg.MaxSessions {
			return ErrSessionLimit
		}
	}

	m.reserved++
	return nil
}

// releaseSlot drops a reservation. Called after registration, so the session
// is never invisible to the limit check between the two.
func (m *Manager) releaseSlot() {
	if m.cfg.MaxSessions <= 0 {
		return
	}

	m.slotMu.Lock()
	m.reserved--
	m.slotMu.Unlock()
}

// pump drains process output into the session's polling buffer and removes
// the session when the process exits naturally.
func (m *Manager) pump(sess *session.Session) {
	for chunk := range sess.Handle.Data() {
		sess.BufferOutput(chunk)
	}

	// Data closing precedes the status send, so wait for it; every handle
	// delivers the status exactly once on a buffered channel.
	status := <-sess.Handle.Exit()
	m.HandleExited(sess.ID, status)
}

// Write forwards input bytes to the session's handle. Missing or dead
// sessions are explicit errors, never degradations.
func (m *Manager) Write(sessionID string, data []byte) error {
	sess, ok := m.registry.Get(sessionID)
	if !ok {
		return session.ErrNotFound
	}

	if _, err := sess.Handle.Write(data); err != nil {
		return err
	}

	sess.Touch()
	m.metrics.BytesIn.Add(float64(len(data)))
	return nil
}

// Drain atomically drains the session's polling buffer, returning the bytes
// accumulated since the previous drain and the backing pid.
func (m *Manager) Drain(sessionID string) ([]byte, int, error) {
	sess, ok := m.registry.Get(sessionID)
	if !ok {
		return nil, 0, session.ErrNotFound
	}

	data := sess.DrainOutput()
	m.metrics.BytesOut.Add(float64(len(data)))
	return data, sess.Handle.PID(), nil
}

// Resize changes the session's terminal dimensions and counts as activity.
func (m *Manager) Resize(sessionID string, cols, rows uint16) error {
	sess, ok := m.registry.Get(sessionID)
	if !ok {
		return session.ErrNotFound
	}

	if err := sess.Handle.Resize(cols, rows); err != nil {
		return err
	}

	sess.SetDimensions(cols, rows)
	return nil
}

// Close kills and removes a session. The second close of the same id
// returns ErrNotFound.
func (m *Manager) Close(sessionID string) error {
	return m.remove(sessionID, "closed")
}

// HandleExited removes a session whose process terminated naturally. Natural
// termination is a lifecycle event, not an error.
func (m *Manager) HandleExited(sessionID string, status terminal.ExitStatus) {
	if m.remove(sessionID, "exited") == nil {
		m.logger.Info("session process exited",
			zap.String("session_id", sessionID),
			zap.Int("code", status.Code),
			zap.String("signal", status.Signal),
		)
	}
}

func (m *Manager) remove(sessionID, cause string) error {
	sess, ok := m.registry.Remove(sessionID)
	if !ok {
		return session.ErrNotFound
	}

	sess.Handle.Kill()
	m.metrics.SessionsClosed.WithLabelValues(cause).Inc()
	m.metrics.SessionsActive.Set(float64(m.registry.Len()))
	m.logger.Info("session removed",
		zap.String("session_id", sessionID),
		zap.String("cause", cause),
	)
	return nil
}

// List returns metadata for every active session.
func (m *Manager) List() []session.Info {
	return m.registry.List()
}

// Get returns the session for id.
func (m *Manager) Get(sessionID string) (*session.Session, bool) {
	return m.registry.Get(sessionID)
}

// Diagnostics reports platform, PTY availability, and resource-limit hints.
func (m *Manager) Diagnostics() Diagnostics {
	shell := m.cfg.Shell
	if shell == "" {
		shell = "$SHELL"
	}
	return Diagnostics{
		Platform:       runtime.GOOS,
		Shell:          shell,
		PTYAvailable:   pty.Available(),
		ActiveSessions: m.registry.Len(),
		MaxSessions:    m.cfg.MaxSessions,
		ResourceHints:  pty.Hints(),
		Sessions:       m.registry.List(),
	}
}
