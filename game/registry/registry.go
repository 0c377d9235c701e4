package registry

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks live connection identities and which session, if any, each
// one belongs to. It is the leaf the broker consults to route every inbound
// event.
type Registry struct {
	sessions map[uuid.UUID]string
	mu       sync.RWMutex
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]string),
	}
}

// Register allocates a fresh identity for a newly opened transport link.
func (r *Registry) Register() uuid.UUID {
	id := uuid.New()

	r.mu.Lock()
	r.sessions[id] = ""
	r.mu.Unlock()
	return id
}

// Unregister removes the identity. It is a no-op if the identity was already
// removed, since close notifications can race with other cleanup paths.
func (r *Registry) Unregister(connID uuid.UUID) {
	r.mu.Lock()
	delete(r.sessions, connID)
	r.mu.Unlock()
}

// Bind associates the connection with a session code.
func (r *Registry) Bind(connID uuid.UUID, code string) {
	r.mu.Lock()
	if _, ok := r.sessions[connID]; ok {
		r.sessions[connID] = code
	}
	r.mu.Unlock()
}

// Unbind clears the connection's session association without removing the
// identity itself.
func (r *Registry) Unbind(connID uuid.UUID) {
	r.mu.Lock()
	if _, ok := r.sessions[connID]; ok {
		r.sessions[connID] = ""
	}
	r.mu.Unlock()
}

// SessionOf returns the code of the session the connection belongs to.
// ok is false if the connection is unknown or not in a session.
func (r *Registry) SessionOf(connID uuid.UUID) (code string, ok bool) {
	r.mu.RLock()
	code, known := r.sessions[connID]
	r.mu.RUnlock()
	return code, known && code != ""
}

// Known reports whether the identity is currently registered.
func (r *Registry) Known(connID uuid.UUID) bool {
	r.mu.RLock()
	_, ok := r.sessions[connID]
	r.mu.RUnlock()
	return ok
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
