// Package session provides the session store for the Snake Duel server.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session code generation
//   - Session lifecycle phases (waiting, ready, playing, ended)
//   - Atomic compound mutations via Mutate
//
// Core Types:
//
// Manager is the owned store of all live sessions. Session represents one
// matched pair (or pending single) of clients with a seat/ready entry per
// participant.
//
// Session Codes:
//
// Sessions use 8-character uppercase hex codes meant to be read aloud or
// pasted by players. Codes are compared case-insensitively, generated with
// cryptographic randomness, and checked for collisions against live sessions
// only; a code becomes reusable once its session ends.
//
// Concurrency:
//
// The manager is thread-safe. Compound read-modify-write steps (seat
// assignment, ready checks) should go through Mutate so they apply atomically
// with respect to other store operations.
package session
