package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionFull     = errors.New("session is full")
)

// codeLength is the number of characters in a session code.
const codeLength = 8

// Manager is the owned session store. Codes are matched case-insensitively:
// the map is keyed by the lowercased code while Session.Code keeps the
// canonical uppercase form handed to clients.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewManager creates an empty session store.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

// Create allocates a session with a fresh unique code and seats the creator
// at seat 1, unready, in the waiting phase.
func (m *Manager) Create(creator uuid.UUID) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	code := m.generateCode()
	s := &Session{
		Code:  code,
		Phase: PhaseWaiting,
		Participants: map[uuid.UUID]*Participant{
			creator: {Seat: 1},
		},
		CreatedAt: time.Now(),
	}
	m.sessions[strings.ToLower(code)] = s
	return s
}

// Get retrieves a session by code (case-insensitive).
func (m *Manager) Get(code string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[strings.ToLower(code)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Mutate runs fn on the session with the given code while holding the store
// lock, so compound read-modify-write steps apply atomically with respect to
// other store operations.
func (m *Manager) Mutate(code string, fn func(*Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[strings.ToLower(code)]
	if !ok {
		return ErrSessionNotFound
	}
	return fn(s)
}

// Delete marks the session ended and removes it from the store. Removing a
// code frees it for reuse by future sessions.
func (m *Manager) Delete(code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(code)
	s, ok := m.sessions[key]
	if !ok {
		return ErrSessionNotFound
	}
	s.Phase = PhaseEnded
	delete(m.sessions, key)
	return nil
}

// List returns ops snapshots of all live sessions, ordered by creation time.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// generateCode returns an uppercase hex code unique among live sessions.
// Callers must hold m.mu.
func (m *Manager) generateCode() string {
	for {
		b := make([]byte, codeLength/2)
		rand.Read(b)
		code := strings.ToUpper(hex.EncodeToString(b))
		if _, taken := m.sessions[strings.ToLower(code)]; !taken {
			return code
		}
	}
}
