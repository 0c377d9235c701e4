// Package api provides the HTTP surface for the Snake Duel server.
//
// The api package implements:
//   - WebSocket upgrade handling
//   - Read-only ops endpoints for live sessions
//   - Health check
//   - Static file serving for the browser client
//
// Endpoints:
//
// Ops:
//   - GET /api/health - Liveness plus connection/session counts
//   - GET /api/sessions - List all live sessions
//   - GET /api/sessions/{code} - Get one session by code (case-insensitive)
//
// Gameplay:
//   - GET /ws - WebSocket upgrade; sessions are created and joined over the
//     socket itself, so the endpoint takes no parameters
//
// All HTTP endpoints return JSON. Errors are returned as JSON with
// appropriate HTTP status codes:
//
//	{
//	  "error": "session not found"
//	}
package api
