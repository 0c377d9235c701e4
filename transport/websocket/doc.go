// Package websocket provides the WebSocket transport for the Snake Duel server.
//
// The websocket package implements:
//   - Real-time bidirectional communication
//   - Connection-identity-aware message routing
//   - Connection lifecycle management
//   - Dispatch of inbound client events into the session broker
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub tracks every
// WebSocket connection by its registry-assigned identity. Each connection is
// served by a read goroutine and a write goroutine; the write side coalesces
// delivery through a buffered per-client channel.
//
// Message Protocol:
//
// Frames are JSON envelopes in both directions:
//   - Incoming: {"type": "move", "data": {"code": "A1B2C3D4", "direction": "up"}}
//   - Outgoing: {"type": "move_update", "data": {"sender": "…", "direction": "up"}}
//
// Connection Lifecycle:
//
//  1. Client connects; the broker allocates a connection identity
//  2. The hub registers the client and sends a "connected" greeting
//  3. Inbound frames are decoded and dispatched to the broker
//  4. Outbound broker events are delivered best-effort; slow clients are cut
//  5. Socket close triggers the broker's disconnect handling exactly once
//
// Concurrency:
//
// The hub is safe for concurrent use. Send may be called from any goroutine,
// including under the broker's own serialization, because delivery never
// blocks on the peer.
package websocket
