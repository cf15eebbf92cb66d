// Package websocket provides the WebSocket transport for roomgate.
//
// The websocket package implements:
//   - Connection identity (a UUID per connection, stable for its lifetime)
//   - Room channels that connections subscribe to and leave
//   - Delivery to one connection, to a room, or to a room minus one member
//   - Inbound frame dispatch to the session coordinator
//   - Connection lifecycle management
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub manages all
// WebSocket connections. Each connection has a read pump, which hands every
// inbound frame to the Dispatcher in arrival order, and a write pump that
// drains the connection's send buffer.
//
// All hub state (clients, room channels) is owned by the Run goroutine.
// Emit, Broadcast, Subscribe and Unsubscribe only queue an operation, and
// Run applies operations in the order they were queued. A subscribe queued
// before a broadcast is therefore always visible to that broadcast.
//
// Message Protocol:
//
// Messages are JSON-encoded with the following structure:
//   - Incoming: {"event": "JOIN_ROOM", "data": {"gameId": "K7QX2M", "playerName": "Ana"}}
//   - Outgoing: {"event": "UPDATE_POSITION", "data": {"playerId": "...", "position": [0.4, 0.6]}}
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	coord := service.NewCoordinator(rooms, hub, modes, logger)
//	hub.SetDispatcher(coord)
//	go hub.Run(ctx)
//
//	router.HandleFunc("/ws", hub.ServeWS)
//
// Delivery:
//
// Delivery is best effort. A client whose send buffer is full is dropped and
// its connection closed; the disconnect then flows through the Dispatcher
// like any other.
package websocket
