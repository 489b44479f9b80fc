package session

import (
	"errors"
	"sort"
	"sync"
)

var (
	// ErrNotFound is returned when the session id maps to nothing
	ErrNotFound = errors.New("session not found")
	// ErrAlreadyExists is returned on registration of a duplicate id
	ErrAlreadyExists = errors.New("session id already registered")
)

// Registry is the single authoritative map from session id to session. All
// components read and write through it; nothing else holds session state.
//
// The registry lock only guards the map itself. Mutable per-session state is
// serialized by the session's own lock, so mutations of unrelated ids
// proceed without contention.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Register adds a session. Registering an id that already exists is an
// error, never a silent overwrite.
func (r *Registry) Register(sess *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sess.ID]; exists {
		return ErrAlreadyExists
	}
	r.sessions[sess.ID] = sess
	return nil
}

// Get returns the session for id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]
	return sess, ok
}

// Touch updates the session's last-activity timestamp.
func (r *Registry) Touch(id string) {
	if sess, ok := r.Get(id); ok {
		sess.Touch()
	}
}

// Remove deletes and returns the session. Idempotent: removing an absent id
// returns (nil, false), not an error. A removed id is never reattached.
func (r *Registry) Remove(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	delete(r.sessions, id)
	return sess, true
}

// List returns metadata for every session, sorted by creation id. The raw
// handle is never exposed to enumerating callers.
func (r *Registry) List() []Info {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, sess.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
