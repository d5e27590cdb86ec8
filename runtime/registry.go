package runtime

import (
	"chat-relay/domain"
	"sync"
)

// SessionRegistry maps each live handle to its authenticated connection.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[domain.Handle]*domain.Connection
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[domain.Handle]*domain.Connection),
	}
}

// Register creates an authenticated connection for the handle.
// Registering a handle twice overwrites the previous entry (last write wins).
func (r *SessionRegistry) Register(handle domain.Handle, userID domain.UserID) *domain.Connection {
	conn := domain.NewConnection(handle)
	// A fresh connection is always Unauthenticated, so this cannot fail.
	_ = conn.Authenticate(userID)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[handle] = conn
	return conn
}

func (r *SessionRegistry) Lookup(handle domain.Handle) (domain.UserID, bool) {
	conn, ok := r.Connection(handle)
	if !ok {
		return 0, false
	}
	return conn.UserID(), true
}

func (r *SessionRegistry) Connection(handle domain.Handle) (*domain.Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.sessions[handle]
	return conn, ok
}

// Remove deletes the session and marks its connection Closed.
// Removing an absent handle is a no-op.
func (r *SessionRegistry) Remove(handle domain.Handle) (*domain.Connection, bool) {
	r.mu.Lock()
	conn, ok := r.sessions[handle]
	delete(r.sessions, handle)
	r.mu.Unlock()

	if ok {
		conn.Close()
	}
	return conn, ok
}

func (r *SessionRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
