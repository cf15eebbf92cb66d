// Package mcp provides a Model Context Protocol server for roomgate.
//
// The mcp package implements:
//   - MCP server for AI agent integration
//   - Read-only tools for inspecting live rooms
//   - Stdio and HTTP transport modes
//
// MCP Tools:
//
// The package exposes the following tools for AI agents:
//   - list_rooms: List public rooms with player counts
//   - get_room: Get one room by code, roster included
//   - list_modes: List available game modes
//   - server_health: Room, player and connection counts
//   - protocol_guide: Describe the WebSocket event protocol
//
// Every tool proxies to the REST API, so the MCP process can run next to the
// server or on another machine.
//
// Usage:
//
//	// Stdio mode
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
//
//	// HTTP mode
//	response := client.GetMCPServer().HandleMessage(ctx, body)
package mcp
