package session

import (
	"time"

	"github.com/google/uuid"
)

// Phase represents where a session is in its lifecycle.
type Phase string

const (
	// PhaseWaiting means the creator is alone, waiting for an opponent.
	PhaseWaiting Phase = "waiting"

	// PhaseReady means both seats are filled but the countdown handshake
	// has not completed.
	PhaseReady Phase = "ready"

	// PhasePlaying means both participants confirmed ready and gameplay
	// events are being relayed.
	PhasePlaying Phase = "playing"

	// PhaseEnded is terminal; an ended session is removed from the store
	// immediately.
	PhaseEnded Phase = "ended"
)

// Participant is one seat in a session.
type Participant struct {
	Seat  int  `json:"seat"`
	Ready bool `json:"ready"`
}

// Session is the unit of matchmaking and relay: up to two participants
// identified by a shareable code.
type Session struct {
	Code         string                     `json:"code"`
	Phase        Phase                      `json:"phase"`
	Participants map[uuid.UUID]*Participant `json:"participants"`
	CreatedAt    time.Time                  `json:"created_at"`
}

// Member reports whether connID holds a seat in the session.
func (s *Session) Member(connID uuid.UUID) bool {
	_, ok := s.Participants[connID]
	return ok
}

// Full reports whether both seats are taken.
func (s *Session) Full() bool {
	return len(s.Participants) >= 2
}

// AllReady reports whether every seated participant has confirmed ready.
func (s *Session) AllReady() bool {
	for _, p := range s.Participants {
		if !p.Ready {
			return false
		}
	}
	return true
}

// SeatOrder returns the participants' connection IDs ordered by seat number.
func (s *Session) SeatOrder() []uuid.UUID {
	out := make([]uuid.UUID, len(s.Participants))
	for id, p := range s.Participants {
		out[p.Seat-1] = id
	}
	return out
}

// Info is the read-only view of a session exposed on ops surfaces.
type Info struct {
	Code         string    `json:"code"`
	Phase        Phase     `json:"phase"`
	Participants int       `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

// Snapshot returns the ops view of the session.
func (s *Session) Snapshot() Info {
	return Info{
		Code:         s.Code,
		Phase:        s.Phase,
		Participants: len(s.Participants),
		CreatedAt:    s.CreatedAt,
	}
}
