package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/snake-duel/server/game/broker"
	"github.com/snake-duel/server/transport/websocket"
)

// Server is the HTTP surface: the WebSocket endpoint players use plus a
// small read-only ops API.
type Server struct {
	broker *broker.Broker
	hub    *websocket.Hub
	router *mux.Router
}

// NewServer creates a new API server.
func NewServer(b *broker.Broker, hub *websocket.Hub) *Server {
	s := &Server{
		broker: b,
		hub:    hub,
		router: mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{code}", s.handleGetSession).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Static files for the browser client
	s.router.PathPrefix("/").Handler(http.FileServer(http.Dir("./static/")))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// handleListSessions returns ops snapshots of all live sessions.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.broker.Sessions())
}

// handleGetSession returns the ops snapshot of one session by code.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	for _, info := range s.broker.Sessions() {
		if strings.EqualFold(info.Code, code) {
			respondJSON(w, http.StatusOK, info)
			return
		}
	}
	respondError(w, http.StatusNotFound, "session not found")
}

// handleWebSocket upgrades the connection and hands it to the hub. Sessions
// are created and joined over the socket itself, so there is nothing to
// validate up front.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r)
}

// handleHealth reports liveness plus current connection and session counts.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.broker.CurrentStats()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"connections": stats.Connections,
		"sessions":    stats.Sessions,
	})
}
