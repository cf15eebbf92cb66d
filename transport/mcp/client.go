package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/roomgate/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"roomgate",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`roomgate - MCP Interface

This is a thin, read-only client that proxies requests to the roomgate REST API.
Rooms are created and played over the WebSocket protocol; these tools let you
inspect what is happening on the server.

AVAILABLE TOOLS:
- list_rooms: List public rooms with player counts
- get_room: Get one room by its 6-character code, roster included
- list_modes: List the game modes rooms can be created with
- server_health: Room, player and connection counts
- protocol_guide: How clients talk to the server over WebSocket`),
	)

	// Register all tools
	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List public rooms ordered by creation time",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"order": map[string]interface{}{
					"type":        "string",
					"description": "asc (oldest first, default) or desc",
					"enum":        []string{"asc", "desc"},
				},
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of rooms to return (optional)",
				},
			},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_room",
		Description: "Get details of a room, including private rooms, by code",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "string",
					"description": "Room code, e.g. K7QX2M",
				},
			},
			Required: []string{"room_id"},
		},
	}, c.handleGetRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_modes",
		Description: "List available game modes and their player caps",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListModes)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "server_health",
		Description: "Report live room, player and connection counts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleHealth)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "protocol_guide",
		Description: "Describe the WebSocket event protocol",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleProtocolGuide)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	return args
}

// Tool handlers

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	query := url.Values{}
	if order, _ := args["order"].(string); order != "" {
		query.Set("order", order)
	}
	if limit, ok := args["limit"].(float64); ok && limit > 0 {
		query.Set("limit", strconv.Itoa(int(limit)))
	}

	path := "/api/rooms"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var response struct {
		Count int                 `json:"count"`
		Rooms []*service.RoomInfo `json:"rooms"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRoomList(response.Rooms)), nil
}

func (c *Client) handleGetRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roomID, _ := arguments(request)["room_id"].(string)
	if roomID == "" {
		return mcp.NewToolResultError("room_id is required"), nil
	}

	var info service.RoomInfo
	if err := c.apiCall(ctx, "GET", "/api/rooms/"+url.PathEscape(roomID), nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRoomInfo(&info)), nil
}

func (c *Client) handleListModes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count int                 `json:"count"`
		Modes []*service.ModeInfo `json:"modes"`
	}
	if err := c.apiCall(ctx, "GET", "/api/modes", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Game Modes (%d):\n\n", response.Count)
	for _, m := range response.Modes {
		fmt.Fprintf(&sb, "- %s: %s (up to %d players)\n", m.ID, m.Name, m.MaxPlayers)
		if m.Description != "" {
			fmt.Fprintf(&sb, "  %s\n", m.Description)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var health struct {
		Status      string `json:"status"`
		Rooms       int    `json:"rooms"`
		Players     int    `json:"players"`
		Connections int    `json:"connections"`
	}
	if err := c.apiCall(ctx, "GET", "/healthz", nil, &health); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Status: %s\nRooms: %d\nPlayers: %d\nConnections: %d\n",
		health.Status, health.Rooms, health.Players, health.Connections)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleProtocolGuide(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(protocolGuide), nil
}

const protocolGuide = `roomgate WebSocket Protocol

CONNECTING:
Open a WebSocket to /ws. Every frame, in both directions, is JSON:
  {"event": "NAME", "data": {...}}

CLIENT EVENTS:
- CREATE_ROOM {title, gameMode, maxPlayerCount, isPublicGame}
    Registers a room you host. You are not in it until you join.
- JOIN_ROOM {gameId, playerName}
    Joins a room by code.
- UPDATE_POSITION {gameId, newPosition: [x, y]}
    Replaces your position. Only players in the room may move.
- CHAT_MESSAGE {gameId, message}
    Sends a chat line to the room.
- LEAVE_ROOM {gameId}
    Leaves a room without disconnecting.

SERVER EVENTS:
- CREATE_ROOM {roomId}: your room was created
- JOIN_ROOM {roomId, players}: you joined; players lists everyone already there
- PLAYER_JOINED {roomId, player}: someone else joined your room
- UPDATE_POSITION {playerId, position}: a player moved (including you)
- CHAT_MESSAGE {playerId, playerName, message, timestamp}
- LEAVE_ROOM {roomId}: you left
- ERROR {event, message}: your last event was rejected; nothing changed

ERROR MESSAGES:
- "room does not exist"
- "room is full"
- "player is not in room"
- "player is already in room"
- "invalid payload: ..." for malformed or out-of-range fields

ROOM LIFECYCLE:
Rooms start in the "waiting" status. A room is deleted as soon as its last
player leaves or disconnects. Remaining players are not told when someone
disconnects.`

// Formatting helpers

func formatRoomList(rooms []*service.RoomInfo) string {
	if len(rooms) == 0 {
		return "No public rooms.\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Public Rooms (%d):\n\n", len(rooms))
	for _, r := range rooms {
		fmt.Fprintf(&sb, "- %s %q [%s] %d/%d players, %s, created %s\n",
			r.ID, r.Title, r.GameMode, r.PlayerCount, r.MaxPlayerCount, r.Status, r.CreatedAt.Format("15:04:05"))
	}
	return sb.String()
}

func formatRoomInfo(r *service.RoomInfo) string {
	var sb strings.Builder
	visibility := "private"
	if r.IsPublicGame {
		visibility = "public"
	}
	fmt.Fprintf(&sb, "Room %s: %q\n", r.ID, r.Title)
	fmt.Fprintf(&sb, "Mode: %s | Status: %s | %s\n", r.GameMode, r.Status, visibility)
	fmt.Fprintf(&sb, "Players: %d/%d\n", r.PlayerCount, r.MaxPlayerCount)
	fmt.Fprintf(&sb, "Created: %s\n", r.CreatedAt.Format(time.RFC3339))
	for _, p := range r.Players {
		host := ""
		if p.IsHost {
			host = " (host)"
		}
		fmt.Fprintf(&sb, "  - %s%s at [%.3f, %.3f]\n", p.Nickname, host, p.Position.X(), p.Position.Y())
	}
	return sb.String()
}
