package core

import (
	"sync"

	"github.com/google/uuid"
)

// Session is the server-side state bound to one authenticated username.
// The room field holds the room name, not the room itself; membership is
// tracked on the room side and resolved through the room registry.
type Session struct {
	ID       string
	Username string

	mu   sync.Mutex
	room string
}

// Room returns the name of the room the session currently occupies,
// or "" when it is in none.
func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// SetRoom records the session's current room name.
func (s *Session) SetRoom(name string) {
	s.mu.Lock()
	s.room = name
	s.mu.Unlock()
}

// SessionRegistry maps session ids to live sessions and enforces username
// uniqueness. Every connection handler mutates it concurrently, so the
// duplicate check and the insert happen under one lock.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionRegistry constructs an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// Create allocates a session for username. Usernames are matched
// case-sensitively; a taken name returns ErrDuplicateUsername and leaves
// the registry untouched.
func (r *SessionRegistry) Create(username string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.Username == username {
			return nil, ErrDuplicateUsername
		}
	}

	s := &Session{
		ID:       uuid.NewString(),
		Username: username,
	}
	r.sessions[s.ID] = s
	return s, nil
}

// Get resolves a session id. Returns nil when absent.
func (r *SessionRegistry) Get(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// Remove deletes and returns the session, or nil when absent. Room
// membership cleanup is the caller's job.
func (r *SessionRegistry) Remove(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	delete(r.sessions, id)
	return s
}

// FindByUsername returns the session with the exact username, or nil.
func (r *SessionRegistry) FindByUsername(username string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if s.Username == username {
			return s
		}
	}
	return nil
}

// Snapshot returns the live sessions at call time.
func (r *SessionRegistry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len returns the number of active sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
