// Package broker implements session lifecycle and event relay for the
// Snake Duel server.
//
// The broker owns the session store and the connection registry. Every
// inbound client event is resolved to a sender identity, checked against
// session membership, and either mutates session state, fans out to the
// session's participants, or is dropped.
//
// Lifecycle:
//
//  1. CreateSession seats the creator (seat 1) in a waiting session and
//     replies with a shareable code.
//  2. JoinSession seats the second player (seat 2); both are notified.
//     Unknown codes and full sessions are rejected to the requester only.
//  3. PlayerReady marks a seat ready; when both seats of a full session are
//     ready the session starts, exactly once.
//  4. Move, StateSnapshot, and PlayerDied are relayed verbatim: the broker
//     never interprets gameplay. Moves echo to the sender; state snapshots
//     skip the sender, whose copy is authoritative.
//  5. Disconnect ends the session, notifies the remaining participant, and
//     frees the code for reuse.
//
// Events referencing a session the sender is not a member of are dropped
// silently. They indicate a stale reference after session end, not a
// user-actionable condition.
//
// Concurrency:
//
// All handlers serialize on one broker mutex. Handlers never block (outbound
// delivery is buffered and best-effort), so the exclusive section is short
// and concurrent joins, readies, and disconnects cannot interleave into an
// inconsistent state.
package broker
