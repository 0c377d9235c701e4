package broker

import "encoding/json"

// Outbound event names. These are the wire-level message types clients see.
const (
	EventConnected      = "connected"
	EventSessionCreated = "session_created"
	EventSessionJoined  = "session_joined"
	EventSessionStarted = "session_started"
	EventMoveUpdate     = "move_update"
	EventStateUpdate    = "state_update"
	EventOpponentDied   = "opponent_died"
	EventSessionEnded   = "session_ended"
	EventError          = "error"
)

// Error reasons reported back to a requester.
const (
	ReasonNotFound = "not_found"
	ReasonFull     = "full"
)

// Connected acknowledges a new connection and tells the client its identity.
type Connected struct {
	ConnID string `json:"conn_id"`
}

// SessionCreated is the creator's reply: the shareable code and seat 1.
type SessionCreated struct {
	Code    string `json:"code"`
	Seat    int    `json:"seat"`
	Message string `json:"message"`
}

// SessionJoined is broadcast to both seats when the second player joins.
type SessionJoined struct {
	Code    string `json:"code"`
	Seat    int    `json:"seat"`
	Message string `json:"message"`
}

// ErrorEvent is a user-visible rejection sent to the requester only.
type ErrorEvent struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// SessionStarted is broadcast to both seats once both are ready. Participants
// holds the connection identities ordered by seat number.
type SessionStarted struct {
	Participants []string `json:"participants"`
	Message      string   `json:"message"`
}

// MoveUpdate relays a move intent to every participant, sender included, so
// both ends observe the same input stream.
type MoveUpdate struct {
	Sender    string `json:"sender"`
	Direction string `json:"direction"`
}

// StateUpdate relays an authoritative client state snapshot to everyone
// except the sender, whose own copy is already current. Payloads pass
// through verbatim.
type StateUpdate struct {
	Snakes json.RawMessage `json:"snakes"`
	Food   json.RawMessage `json:"food"`
	Scores json.RawMessage `json:"scores"`
}

// OpponentDied announces which seat's snake died.
type OpponentDied struct {
	Seat int `json:"seat"`
}

// SessionEnded tells the remaining participants their session is over.
type SessionEnded struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}
