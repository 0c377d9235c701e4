package broker

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/snake-duel/server/game/registry"
	"github.com/snake-duel/server/game/session"
)

// Sender delivers an outbound event to a single connection. Delivery is
// best-effort: the transport drops messages for connections that have
// already gone away.
type Sender interface {
	Send(connID uuid.UUID, event string, payload interface{})
}

// Broker owns session lifecycle and membership. Every inbound client event
// resolves the sender through the connection registry, then mutates session
// state and fans out notifications to the affected participants.
//
// A single mutex serializes all session mutations. Sessions hold at most two
// members and handlers never block, so one exclusive section is enough to
// rule out lost updates (two concurrent joins both seeing a lone creator)
// and keeps disconnect-plus-unregister an atomic step.
type Broker struct {
	sessions *session.Manager
	registry *registry.Registry
	sender   Sender
	mu       sync.Mutex
}

// New creates a broker over the given store and registry, delivering
// outbound events through sender.
func New(sessions *session.Manager, reg *registry.Registry, sender Sender) *Broker {
	return &Broker{
		sessions: sessions,
		registry: reg,
		sender:   sender,
	}
}

// Connect allocates an identity for a new transport link.
func (b *Broker) Connect() uuid.UUID {
	connID := b.registry.Register()
	log.Printf("Connection %s registered", connID)
	return connID
}

// CreateSession starts a new waiting session with the sender at seat 1 and
// replies with the shareable code. A sender already seated in a session is
// ignored: a connection belongs to at most one session at a time.
func (b *Broker) CreateSession(connID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.registry.Known(connID) {
		return
	}
	if _, bound := b.registry.SessionOf(connID); bound {
		return
	}

	s := b.sessions.Create(connID)
	b.registry.Bind(connID, s.Code)

	b.sender.Send(connID, EventSessionCreated, SessionCreated{
		Code:    s.Code,
		Seat:    1,
		Message: fmt.Sprintf("Game created! Share code: %s", s.Code),
	})
	log.Printf("Session %s created by %s", s.Code, connID)
}

// JoinSession seats the sender at seat 2 of the session with the given code.
// Unknown codes and full sessions are rejected to the requester only; both
// participants are notified on success.
func (b *Broker) JoinSession(connID uuid.UUID, code string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.registry.Known(connID) {
		return
	}
	if _, bound := b.registry.SessionOf(connID); bound {
		return
	}

	var joined *session.Session
	err := b.sessions.Mutate(code, func(s *session.Session) error {
		if s.Full() {
			return session.ErrSessionFull
		}
		s.Participants[connID] = &session.Participant{Seat: 2}
		s.Phase = session.PhaseReady
		joined = s
		return nil
	})
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		b.sender.Send(connID, EventError, ErrorEvent{
			Reason:  ReasonNotFound,
			Message: "Game not found",
		})
		return
	case errors.Is(err, session.ErrSessionFull):
		b.sender.Send(connID, EventError, ErrorEvent{
			Reason:  ReasonFull,
			Message: "Game is full",
		})
		return
	}

	b.registry.Bind(connID, joined.Code)
	b.broadcast(joined, EventSessionJoined, SessionJoined{
		Code:    joined.Code,
		Seat:    2,
		Message: "Connected to opponent!",
	})
	log.Printf("Connection %s joined session %s", connID, joined.Code)
}

// PlayerReady marks the sender's seat ready. Once both seats of a full
// session are ready the session starts and both participants are notified
// exactly once.
func (b *Broker) PlayerReady(connID uuid.UUID, code string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.memberSession(connID, code)
	if !ok {
		return
	}

	// Ready and phase writes go through the store so ops readers holding the
	// manager lock never observe a half-applied transition.
	started := false
	if err := b.sessions.Mutate(s.Code, func(s *session.Session) error {
		s.Participants[connID].Ready = true
		if s.Phase == session.PhasePlaying || len(s.Participants) != 2 || !s.AllReady() {
			return nil
		}
		s.Phase = session.PhasePlaying
		started = true
		return nil
	}); err != nil || !started {
		return
	}

	order := s.SeatOrder()
	ids := make([]string, len(order))
	for i, id := range order {
		ids[i] = id.String()
	}
	b.broadcast(s, EventSessionStarted, SessionStarted{
		Participants: ids,
		Message:      "Game started!",
	})
	log.Printf("Session %s started", s.Code)
}

// Move relays a move intent to every participant, sender included.
func (b *Broker) Move(connID uuid.UUID, code, direction string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.memberSession(connID, code)
	if !ok {
		return
	}

	b.broadcast(s, EventMoveUpdate, MoveUpdate{
		Sender:    connID.String(),
		Direction: direction,
	})
}

// StateSnapshot relays an authoritative state payload to every participant
// except the sender.
func (b *Broker) StateSnapshot(connID uuid.UUID, code string, snakes, food, scores json.RawMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.memberSession(connID, code)
	if !ok {
		return
	}

	update := StateUpdate{Snakes: snakes, Food: food, Scores: scores}
	for _, id := range s.SeatOrder() {
		if id == connID {
			continue
		}
		b.sender.Send(id, EventStateUpdate, update)
	}
}

// PlayerDied announces the sender's seat as dead to all participants. The
// session keeps playing; clients decide what a death means.
func (b *Broker) PlayerDied(connID uuid.UUID, code string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.memberSession(connID, code)
	if !ok {
		return
	}

	b.broadcast(s, EventOpponentDied, OpponentDied{Seat: s.Participants[connID].Seat})
	log.Printf("Player died in session %s (seat %d)", s.Code, s.Participants[connID].Seat)
}

// Disconnect handles a transport close. Unregistering the connection and
// tearing down its session happen under one lock acquisition so an in-flight
// event from the same connection can never interleave.
func (b *Broker) Disconnect(connID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	code, bound := b.registry.SessionOf(connID)
	b.registry.Unregister(connID)
	if !bound {
		log.Printf("Connection %s disconnected", connID)
		return
	}

	s, err := b.sessions.Get(code)
	if err != nil {
		return
	}

	for _, id := range s.SeatOrder() {
		if id == connID {
			continue
		}
		b.registry.Unbind(id)
		b.sender.Send(id, EventSessionEnded, SessionEnded{
			Reason:  "opponent_disconnected",
			Message: "Other player disconnected",
		})
	}
	b.sessions.Delete(code)
	log.Printf("Connection %s disconnected, session %s ended", connID, code)
}

// memberSession resolves the sender's session through the registry and
// verifies membership. Events that reference an unknown session, or a
// session the sender is not seated in, are dropped: they indicate a stale
// client reference, not a user-actionable error. A non-empty code must match
// the bound session (case-insensitive) or the event is treated as foreign.
func (b *Broker) memberSession(connID uuid.UUID, code string) (*session.Session, bool) {
	bound, ok := b.registry.SessionOf(connID)
	if !ok {
		return nil, false
	}
	if code != "" && !strings.EqualFold(code, bound) {
		return nil, false
	}

	s, err := b.sessions.Get(bound)
	if err != nil {
		return nil, false
	}
	if !s.Member(connID) {
		return nil, false
	}
	return s, true
}

// broadcast sends an event to every participant in seat order.
func (b *Broker) broadcast(s *session.Session, event string, payload interface{}) {
	for _, id := range s.SeatOrder() {
		b.sender.Send(id, event, payload)
	}
}

// Sessions exposes ops snapshots for the API and MCP surfaces.
func (b *Broker) Sessions() []session.Info {
	return b.sessions.List()
}

// Stats summarizes live broker state for ops surfaces.
type Stats struct {
	Connections int `json:"connections"`
	Sessions    int `json:"sessions"`
}

// CurrentStats returns live connection and session counts.
func (b *Broker) CurrentStats() Stats {
	return Stats{
		Connections: b.registry.Len(),
		Sessions:    b.sessions.Count(),
	}
}
