package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/snake-duel/server/game/broker"
)

// Server exposes read-only inspection tools over the session broker so ops
// tooling and AI assistants can look at live state without joining a game.
type Server struct {
	broker    *broker.Broker
	mcpServer *server.MCPServer
}

// NewServer creates the MCP ops server over the given broker.
func NewServer(b *broker.Broker) *Server {
	s := &Server{broker: b}
	s.initMCPServer()
	return s
}

// GetMCPServer returns the underlying MCP server for HTTP mounting.
func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// initMCPServer initializes the MCP server with all tools.
func (s *Server) initMCPServer() {
	s.mcpServer = server.NewMCPServer(
		"Snake Duel Server",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Snake Duel Server - MCP Interface

Read-only inspection of the live session broker. Gameplay itself happens over
the WebSocket endpoint; these tools exist for operations and debugging.

AVAILABLE TOOLS:
- list_sessions: List all live sessions with phase and participant count
- get_session: Get details of one session by its shareable code
- server_stats: Current connection and session counts`),
	)

	s.registerTools()
}

// registerTools registers all MCP tools.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all live game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleListSessions)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session by code (case-insensitive)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"code": map[string]interface{}{
					"type":        "string",
					"description": "Session code to retrieve",
				},
			},
			Required: []string{"code"},
		},
	}, s.handleGetSession)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "server_stats",
		Description: "Get current connection and session counts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleServerStats)
}

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions := s.broker.Sessions()

	result := fmt.Sprintf("Live Sessions (%d):\n\n", len(sessions))
	for _, info := range sessions {
		result += fmt.Sprintf("- %s (phase: %s, participants: %d/2, created: %s)\n",
			info.Code, info.Phase, info.Participants, info.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result), nil
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	code, _ := args["code"].(string)
	if code == "" {
		return mcp.NewToolResultError("code is required"), nil
	}

	for _, info := range s.broker.Sessions() {
		if strings.EqualFold(info.Code, code) {
			result := fmt.Sprintf("Session %s\nPhase: %s\nParticipants: %d/2\nCreated: %s\n",
				info.Code, info.Phase, info.Participants, info.CreatedAt.Format("15:04:05"))
			return mcp.NewToolResultText(result), nil
		}
	}

	return mcp.NewToolResultError(fmt.Sprintf("session %s not found", code)), nil
}

func (s *Server) handleServerStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats := s.broker.CurrentStats()

	result := fmt.Sprintf("Connections: %d\nLive sessions: %d\n", stats.Connections, stats.Sessions)
	return mcp.NewToolResultText(result), nil
}
