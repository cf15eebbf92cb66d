package service

import (
	"time"

	"github.com/wricardo/roomgate/game/room"
)

// RoomInfo provides information about a live room
type RoomInfo struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	GameMode         string            `json:"gameMode"`
	MaxPlayerCount   int               `json:"maxPlayerCount"`
	IsPublicGame     bool              `json:"isPublicGame"`
	Status           room.Status       `json:"status"`
	HostConnectionID room.ConnectionID `json:"hostConnectionId"`
	CreatedAt        time.Time         `json:"createdAt"`
	PlayerCount      int               `json:"playerCount"`
	Players          []room.Player     `json:"players,omitempty"`
}

// ModeInfo provides information about a game mode
type ModeInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MaxPlayers  int    `json:"maxPlayers"`
}

// ListOptions configures room listing
type ListOptions struct {
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc" by creation time
}

// Stats is a coarse view of server load
type Stats struct {
	Rooms       int `json:"rooms"`
	PublicRooms int `json:"publicRooms"`
	Players     int `json:"players"`
}

// CreateRoomResponse acknowledges CREATE_ROOM to the creator
type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
}

// JoinRoomResponse carries the roster as it was before the join
type JoinRoomResponse struct {
	RoomID  string         `json:"roomId"`
	Players []room.Summary `json:"players"`
}

// PlayerJoinedNotice announces a new player to the rest of the room
type PlayerJoinedNotice struct {
	RoomID string       `json:"roomId"`
	Player room.Summary `json:"player"`
}

// PositionUpdate is broadcast after a player moved
type PositionUpdate struct {
	PlayerID room.ConnectionID `json:"playerId"`
	Position room.Position     `json:"position"`
}

// ChatBroadcast is a chat line relayed to the whole room
type ChatBroadcast struct {
	PlayerID   room.ConnectionID `json:"playerId"`
	PlayerName string            `json:"playerName"`
	Message    string            `json:"message"`
	Timestamp  time.Time         `json:"timestamp"`
}

// LeaveRoomResponse acknowledges LEAVE_ROOM to the leaver
type LeaveRoomResponse struct {
	RoomID string `json:"roomId"`
}

// ErrorMessage reports a rejected event to its sender
type ErrorMessage struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}
