// Package mcp provides a Model Context Protocol server for the Snake Duel
// server's ops surface.
//
// The mcp package implements:
//   - MCP server for AI agent and tooling integration
//   - Read-only inspection tools over the session broker
//
// MCP Tools:
//
//   - list_sessions: List all live sessions with phase and participant count
//   - get_session: Get one session's details by shareable code
//   - server_stats: Current connection and session counts
//
// Gameplay is deliberately not exposed here: moves and state snapshots flow
// over the WebSocket transport between the two paired clients, and the
// broker relays them without interpretation. The MCP surface exists so an
// operator (or an AI assistant) can inspect broker state while sessions run.
//
// Usage:
//
//	ops := mcp.NewServer(b)
//	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
//		response := ops.GetMCPServer().HandleMessage(r.Context(), body)
//		…
//	})
package mcp
