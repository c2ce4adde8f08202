// Package chat wires connection lifecycle events to room membership and
// message broadcast.
package chat

import "sync"

// Session is the authenticated identity behind one live connection.
// CurrentRoom is empty until the connection joins a room.
type Session struct {
	ConnID      string
	Username    string
	Nickname    string
	CurrentRoom string
}

// Registry maps live connection IDs to their sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Authenticate inserts (or overwrites) the session for a connection. The
// session starts with no current room.
func (r *Registry) Authenticate(connID, username, nickname string) *Session {
	s := &Session{
		ConnID:   connID,
		Username: username,
		Nickname: nickname,
	}
	r.mu.Lock()
	r.sessions[connID] = s
	r.mu.Unlock()
	return s
}

// Get returns the session for a connection, or nil if it never
// authenticated.
func (r *Registry) Get(connID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[connID]
}

// Remove deletes the session for a connection. The caller is responsible
// for removing the connection from any room it occupied first.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	delete(r.sessions, connID)
	r.mu.Unlock()
}

// Count returns the number of authenticated sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
