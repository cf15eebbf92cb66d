package service

import (
	"context"

	"github.com/wricardo/roomgate/game/room"
)

// SessionCoordinator handles the real-time protocol for one server. Every
// handler takes the connection the event arrived on; errors are reported to
// that connection only and never change state.
type SessionCoordinator interface {
	// Lifecycle hooks
	OnInit(ctx context.Context)
	OnConnect(ctx context.Context, conn room.ConnectionID)
	OnDisconnect(ctx context.Context, conn room.ConnectionID)

	// Dispatch decodes one inbound frame and routes it to a handler
	Dispatch(ctx context.Context, conn room.ConnectionID, raw []byte)

	// Event handlers, called with validated payloads
	CreateRoom(ctx context.Context, conn room.ConnectionID, p CreateRoomPayload) *room.Room
	JoinRoom(ctx context.Context, conn room.ConnectionID, p JoinRoomPayload) error
	UpdatePosition(ctx context.Context, conn room.ConnectionID, p UpdatePositionPayload) error
	ChatMessage(ctx context.Context, conn room.ConnectionID, p ChatMessagePayload) error
	LeaveRoom(ctx context.Context, conn room.ConnectionID, p LeaveRoomPayload) error
}

// RoomService exposes read-only views of live rooms for the REST and MCP
// surfaces
type RoomService interface {
	ListRooms(ctx context.Context, opts ListOptions) ([]*RoomInfo, error)
	GetRoom(ctx context.Context, roomID string) (*RoomInfo, error)
	ListModes(ctx context.Context) ([]*ModeInfo, error)
	Stats(ctx context.Context) (*Stats, error)
}

// Broadcaster delivers outbound events. Implementations must not block for
// long: the coordinator calls them while holding a room lock so that emits
// for one room keep the order in which the room changed. Delivery is best
// effort.
type Broadcaster interface {
	// Emit sends an event to a single connection
	Emit(conn room.ConnectionID, event string, data any)
	// Broadcast sends an event to every connection subscribed to roomID
	Broadcast(roomID string, event string, data any)
	// BroadcastExcept is Broadcast without the except connection
	BroadcastExcept(roomID string, except room.ConnectionID, event string, data any)
	// Subscribe adds conn to the room channel
	Subscribe(conn room.ConnectionID, roomID string)
	// Unsubscribe removes conn from the room channel
	Unsubscribe(conn room.ConnectionID, roomID string)
}

// ModeCatalog describes the game modes rooms may be created with
type ModeCatalog interface {
	Lookup(id string) (*ModeInfo, error)
	List() []*ModeInfo
}
