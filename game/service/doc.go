// Package service provides the session coordination layer for roomgate.
//
// The service package implements:
//   - The real-time event protocol (CREATE_ROOM, JOIN_ROOM, UPDATE_POSITION,
//     CHAT_MESSAGE, LEAVE_ROOM) and its payload validation
//   - Connection lifecycle hooks (init, connect, disconnect)
//   - Read-only room and game-mode views for the REST and MCP surfaces
//
// Core Interfaces:
//
// SessionCoordinator is the protocol entry point used by the transport.
// RoomService exposes live rooms to inspection APIs.
// Broadcaster is the narrow outbound transport the coordinator writes to.
// ModeCatalog describes which game modes exist and their player caps.
//
// Architecture:
//
// The service layer sits between the transport (WebSocket hub, HTTP, MCP)
// and the room registry. Every inbound frame goes through Dispatch, which
// rejects malformed or invalid payloads with an ERROR frame before any
// handler runs. Handlers look the room up in the registry, mutate it under
// the room's own lock and emit through the Broadcaster from inside that
// critical section, so observers of one room see events in the order the
// room changed.
//
// Usage:
//
//	rooms := registry.New(logger)
//	coord := service.NewCoordinator(rooms, hub, modes, logger)
//	hub.SetDispatcher(coord)
//
//	// Frames read from a connection
//	coord.Dispatch(ctx, connID, frame)
//
// Errors:
//
// Failures are reported to the originating connection only and never change
// state. The message sent to the client is the sentinel text, for example
// "room does not exist", "room is full" or "player is not in room".
package service
