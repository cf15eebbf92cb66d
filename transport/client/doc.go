// Package client is a Go client for the roomgate WebSocket protocol.
//
// A Client owns one connection. Frames from the server arrive in order on
// Events; the request helpers (CreateRoom, JoinRoom, LeaveRoom) send an event
// and wait for its acknowledgement, returning a *ServerError when the server
// answers with ERROR instead.
//
// Usage:
//
//	c, err := client.Dial(ctx, "ws://localhost:8080/ws", logger)
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	roomID, err := c.CreateRoom(ctx, service.CreateRoomPayload{
//		Title: "Friday", GameMode: "race", MaxPlayerCount: 4, IsPublicGame: true,
//	})
//	joined, err := c.JoinRoom(ctx, roomID, "Alice")
//	c.Move(roomID, 0.5, 0.5)
//
// Bot and RunSwarm drive scripted players for smoke and load testing; the
// roomgate bot command is a thin wrapper around RunSwarm.
package client
