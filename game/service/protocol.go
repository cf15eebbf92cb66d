package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/wricardo/roomgate/game/room"
)

// Event names shared by inbound and outbound frames
const (
	EventCreateRoom     = "CREATE_ROOM"
	EventJoinRoom       = "JOIN_ROOM"
	EventPlayerJoined   = "PLAYER_JOINED"
	EventUpdatePosition = "UPDATE_POSITION"
	EventChatMessage    = "CHAT_MESSAGE"
	EventLeaveRoom      = "LEAVE_ROOM"
	EventError          = "ERROR"
)

// Field limits enforced before an event reaches a handler
const (
	MaxTitleLength   = 64
	MaxNameLength    = 32
	MaxMessageLength = 500
	MaxPlayerCap     = 64
)

var (
	ErrRoomNotFound   = errors.New("room does not exist")
	ErrRoomFull       = room.ErrFull
	ErrNotInRoom      = room.ErrNotMember
	ErrAlreadyInRoom  = room.ErrAlreadyJoined
	ErrInvalidPayload = errors.New("invalid payload")
	ErrUnknownEvent   = errors.New("unknown event")
)

// Frame is the envelope of every inbound message
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// CreateRoomPayload is the data of CREATE_ROOM
type CreateRoomPayload struct {
	Title          string `json:"title"`
	GameMode       string `json:"gameMode"`
	MaxPlayerCount int    `json:"maxPlayerCount"`
	IsPublicGame   bool   `json:"isPublicGame"`
}

// Validate checks field presence and bounds
func (p CreateRoomPayload) Validate() error {
	if err := requireText("title", p.Title, MaxTitleLength); err != nil {
		return err
	}
	if strings.TrimSpace(p.GameMode) == "" {
		return errors.New("gameMode is required")
	}
	if p.MaxPlayerCount <= 0 {
		return errors.New("maxPlayerCount must be positive")
	}
	if p.MaxPlayerCount > MaxPlayerCap {
		return fmt.Errorf("maxPlayerCount must be at most %d", MaxPlayerCap)
	}
	return nil
}

// Config converts the payload into room parameters
func (p CreateRoomPayload) Config() room.Config {
	return room.Config{
		Title:          strings.TrimSpace(p.Title),
		GameMode:       p.GameMode,
		MaxPlayerCount: p.MaxPlayerCount,
		IsPublicGame:   p.IsPublicGame,
	}
}

// JoinRoomPayload is the data of JOIN_ROOM
type JoinRoomPayload struct {
	GameID     string `json:"gameId"`
	PlayerName string `json:"playerName"`
}

// Validate checks field presence and bounds
func (p JoinRoomPayload) Validate() error {
	if strings.TrimSpace(p.GameID) == "" {
		return errors.New("gameId is required")
	}
	return requireText("playerName", p.PlayerName, MaxNameLength)
}

// UpdatePositionPayload is the data of UPDATE_POSITION
type UpdatePositionPayload struct {
	GameID      string    `json:"gameId"`
	NewPosition []float64 `json:"newPosition"`
}

// Validate checks field presence and the position shape
func (p UpdatePositionPayload) Validate() error {
	if strings.TrimSpace(p.GameID) == "" {
		return errors.New("gameId is required")
	}
	if len(p.NewPosition) != 2 {
		return errors.New("newPosition must be [x, y]")
	}
	return nil
}

// Position returns the new position as a room.Position
func (p UpdatePositionPayload) Position() room.Position {
	return room.Position{p.NewPosition[0], p.NewPosition[1]}
}

// ChatMessagePayload is the data of CHAT_MESSAGE
type ChatMessagePayload struct {
	GameID  string `json:"gameId"`
	Message string `json:"message"`
}

// Validate checks field presence and bounds
func (p ChatMessagePayload) Validate() error {
	if strings.TrimSpace(p.GameID) == "" {
		return errors.New("gameId is required")
	}
	return requireText("message", p.Message, MaxMessageLength)
}

// LeaveRoomPayload is the data of LEAVE_ROOM
type LeaveRoomPayload struct {
	GameID string `json:"gameId"`
}

// Validate checks field presence
func (p LeaveRoomPayload) Validate() error {
	if strings.TrimSpace(p.GameID) == "" {
		return errors.New("gameId is required")
	}
	return nil
}

type validator interface {
	Validate() error
}

// decodePayload unmarshals data into v and validates it. Every failure is
// wrapped in ErrInvalidPayload.
func decodePayload(data json.RawMessage, v validator) error {
	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("%w: data is required", ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func requireText(field, value string, max int) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", field)
	}
	if utf8.RuneCountInString(value) > max {
		return fmt.Errorf("%s must be at most %d characters", field, max)
	}
	return nil
}
