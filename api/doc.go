// Package api provides HTTP handlers for roomgate.
//
// The api package implements:
//   - Read-only room inspection endpoints
//   - Game-mode catalog listing
//   - Health reporting
//   - WebSocket upgrade handling
//
// Endpoints:
//
// Rooms:
//   - GET /api/rooms - List public rooms (?order=asc|desc, ?limit=N)
//   - GET /api/rooms/{id} - Get any room by code, roster included
//
// Game Modes:
//   - GET /api/modes - List the modes rooms can be created with
//
// Operations:
//   - GET /healthz - Room, player and connection counts
//   - GET /ws - Upgrade to the real-time protocol
//
// Rooms are created, joined and played over the WebSocket only; the HTTP
// surface never mutates state. All responses are JSON and every handler is
// wrapped in a permissive CORS policy so browser lobbies served from another
// origin can poll the room list.
//
// Usage:
//
//	server := api.NewServer(coordinator, hub, logger)
//	http.ListenAndServe(":8080", server)
//
// Error Handling:
//
// Errors are returned as JSON with an appropriate HTTP status code:
//
//	{
//	  "error": "room does not exist"
//	}
package api
