package session

import (
	"sync"
	"time"

	"github.com/coderone/termbridge/internal/terminal"
)

// Transport identifies which adapter currently owns delivery for a session.
type Transport string

const (
	// OwnerPolling marks a session drained through the REST output endpoint
	OwnerPolling Transport = "polling"
)

// StreamOwner builds the transport tag for a streaming connection.
func StreamOwner(connID string) Transport {
	return Transport("streaming:" + connID)
}

// Session pairs a client-facing identifier with its exclusively-owned process
// handle and buffered output. A handle is referenced by exactly one session
// for the session's entire lifetime.
type Session struct {
	ID     string
	Handle terminal.Handle
	Mode   terminal.Mode
	Owner  Transport
	Shell  string
	Dir    string

	CreatedAt time.Time

	// mu guards the mutable fields below; each session carries its own lock
	// so mutations on unrelated ids never contend.
	mu           sync.RWMutex
	cols         uint16
	rows         uint16
	lastActivity time.Time

	buffer *OutputBuffer
}

// Info is the metadata view of a session exposed to callers enumerating
// sessions; it never carries the handle.
type Info struct {
	ID           string        `json:"id"`
	PID          int           `json:"pid"`
	Mode         terminal.Mode `json:"mode"`
	Cols         uint16        `json:"cols"`
	Rows         uint16        `json:"rows"`
	Created      time.Time     `json:"created"`
	LastActivity time.Time     `json:"lastActivity"`
	IdleFor      float64       `json:"idleSeconds"`
}

// New creates a session wrapper for a freshly allocated handle.
func New(id string, handle terminal.Handle, mode terminal.Mode, owner Transport, shell, dir string, cols, rows uint16, bufferLen int) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		Handle:       handle,
		Mode:         mode,
		Owner:        owner,
		Shell:        shell,
		Dir:          dir,
		CreatedAt:    now,
		cols:         cols,
		rows:         rows,
		lastActivity: now,
		buffer:       NewOutputBuffer(bufferLen),
	}
}

// Touch updates the last-activity timestamp. Called on every input, output,
// and resize event.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity returns the time of the most recent activity.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// IdleFor reports how long the session has been inactive.
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActivity())
}

// SetDimensions records new terminal dimensions.
func (s *Session) SetDimensions(cols, rows uint16) {
	s.mu.Lock()
	s.cols = cols
	s.rows = rows
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Dimensions returns the current terminal dimensions.
func (s *Session) Dimensions() (cols, rows uint16) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cols, s.rows
}

// BufferOutput appends a chunk to the polling output buffer and touches the
// session.
func (s *Session) BufferOutput(chunk []byte) {
	s.buffer.Append(chunk)
	s.Touch()
}

// DrainOutput atomically drains and clears the polling output buffer.
func (s *Session) DrainOutput() []byte {
	return s.buffer.Drain()
}

// Info returns the metadata view of the session.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	return Info{
		ID:           s.ID,
		PID:          s.Handle.PID(),
		Mode:         s.Mode,
		Cols:         s.cols,
		Rows:         s.rows,
		Created:      s.CreatedAt,
		LastActivity: s.lastActivity,
		IdleFor:      now.Sub(s.lastActivity).Seconds(),
	}
}
