package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/wricardo/roomgate/game/registry"
	"github.com/wricardo/roomgate/game/room"
)

// Coordinator implements SessionCoordinator and RoomService on top of a
// Registry
type Coordinator struct {
	rooms    *registry.Registry
	out      Broadcaster
	modes    ModeCatalog
	logger   *slog.Logger
	now      func() time.Time
	position func() room.Position
}

var (
	_ SessionCoordinator = (*Coordinator)(nil)
	_ RoomService        = (*Coordinator)(nil)
)

// Option customises a Coordinator
type Option func(*Coordinator)

// WithClock overrides the time source used for join and chat timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithPositionSource overrides how spawn positions are chosen
func WithPositionSource(fn func() room.Position) Option {
	return func(c *Coordinator) { c.position = fn }
}

// NewCoordinator creates a coordinator. modes may be nil, in which case any
// game mode is accepted.
func NewCoordinator(rooms *registry.Registry, out Broadcaster, modes ModeCatalog, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		rooms:    rooms,
		out:      out,
		modes:    modes,
		logger:   logger,
		now:      time.Now,
		position: randomPosition,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func randomPosition() room.Position {
	return room.Position{rand.Float64(), rand.Float64()}
}

// OnInit logs that the coordinator is ready to accept connections
func (c *Coordinator) OnInit(ctx context.Context) {
	c.logger.Info("session coordinator ready", "rooms", c.rooms.Count())
}

// OnConnect logs a new connection
func (c *Coordinator) OnConnect(ctx context.Context, conn room.ConnectionID) {
	c.logger.Info("client connected", "conn", conn)
}

// OnDisconnect evicts conn from every room it was in. Rooms left empty are
// deleted. No departure event is sent to the remaining players.
func (c *Coordinator) OnDisconnect(ctx context.Context, conn room.ConnectionID) {
	left := c.rooms.RemoveConnection(conn)
	for _, id := range left {
		c.out.Unsubscribe(conn, id)
	}
	c.logger.Info("client disconnected", "conn", conn, "rooms_left", left)
}

// Dispatch decodes raw as a Frame, validates its data and calls the matching
// handler. Malformed frames and unknown events are answered with ERROR.
func (c *Coordinator) Dispatch(ctx context.Context, conn room.ConnectionID, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.reject(conn, "", fmt.Errorf("%w: malformed frame", ErrInvalidPayload))
		return
	}
	c.logger.Debug("frame received", "conn", conn, "event", frame.Event)

	switch frame.Event {
	case EventCreateRoom:
		var p CreateRoomPayload
		if err := decodePayload(frame.Data, &p); err != nil {
			c.reject(conn, frame.Event, err)
			return
		}
		if err := c.checkMode(p); err != nil {
			c.reject(conn, frame.Event, err)
			return
		}
		c.CreateRoom(ctx, conn, p)

	case EventJoinRoom:
		var p JoinRoomPayload
		if err := decodePayload(frame.Data, &p); err != nil {
			c.reject(conn, frame.Event, err)
			return
		}
		c.JoinRoom(ctx, conn, p)

	case EventUpdatePosition:
		var p UpdatePositionPayload
		if err := decodePayload(frame.Data, &p); err != nil {
			c.reject(conn, frame.Event, err)
			return
		}
		c.UpdatePosition(ctx, conn, p)

	case EventChatMessage:
		var p ChatMessagePayload
		if err := decodePayload(frame.Data, &p); err != nil {
			c.reject(conn, frame.Event, err)
			return
		}
		c.ChatMessage(ctx, conn, p)

	case EventLeaveRoom:
		var p LeaveRoomPayload
		if err := decodePayload(frame.Data, &p); err != nil {
			c.reject(conn, frame.Event, err)
			return
		}
		c.LeaveRoom(ctx, conn, p)

	default:
		c.reject(conn, frame.Event, fmt.Errorf("%w: %q", ErrUnknownEvent, frame.Event))
	}
}

// checkMode validates a room request against the mode catalog
func (c *Coordinator) checkMode(p CreateRoomPayload) error {
	if c.modes == nil {
		return nil
	}
	mode, err := c.modes.Lookup(p.GameMode)
	if err != nil {
		return fmt.Errorf("%w: unknown game mode %q", ErrInvalidPayload, p.GameMode)
	}
	if mode.MaxPlayers > 0 && p.MaxPlayerCount > mode.MaxPlayers {
		return fmt.Errorf("%w: %s allows at most %d players", ErrInvalidPayload, mode.ID, mode.MaxPlayers)
	}
	return nil
}

// CreateRoom registers a waiting room hosted by conn and acknowledges it.
// The creator is not added to the roster; it joins like everyone else.
func (c *Coordinator) CreateRoom(ctx context.Context, conn room.ConnectionID, p CreateRoomPayload) *room.Room {
	rm := c.rooms.Create(conn, p.Config())
	c.out.Emit(conn, EventCreateRoom, CreateRoomResponse{RoomID: rm.ID()})
	return rm
}

// JoinRoom adds conn to a room. The joiner receives the roster as it was
// before the join, the rest of the room receives PLAYER_JOINED, and both
// are emitted in the same critical section as the capacity check.
func (c *Coordinator) JoinRoom(ctx context.Context, conn room.ConnectionID, p JoinRoomPayload) error {
	rm, ok := c.rooms.Get(p.GameID)
	if !ok {
		return c.reject(conn, EventJoinRoom, ErrRoomNotFound)
	}

	player, err := rm.Join(conn, p.PlayerName, c.position(), c.now(), func(existing []room.Player, joined room.Player) {
		c.out.Subscribe(conn, rm.ID())
		c.out.Emit(conn, EventJoinRoom, JoinRoomResponse{
			RoomID:  rm.ID(),
			Players: summaries(existing),
		})
		c.out.BroadcastExcept(rm.ID(), conn, EventPlayerJoined, PlayerJoinedNotice{
			RoomID: rm.ID(),
			Player: joined.Summary(),
		})
	})
	if err != nil {
		return c.reject(conn, EventJoinRoom, roomError(err))
	}

	c.logger.Info("player joined",
		"room_id", rm.ID(),
		"conn", conn,
		"name", player.Nickname,
		"host", player.IsHost)
	return nil
}

// UpdatePosition replaces the sender's position and broadcasts it to the
// whole room, sender included
func (c *Coordinator) UpdatePosition(ctx context.Context, conn room.ConnectionID, p UpdatePositionPayload) error {
	rm, ok := c.rooms.Get(p.GameID)
	if !ok {
		return c.reject(conn, EventUpdatePosition, ErrRoomNotFound)
	}

	err := rm.UpdatePosition(conn, p.Position(), func(player room.Player) {
		c.out.Broadcast(rm.ID(), EventUpdatePosition, PositionUpdate{
			PlayerID: player.ID,
			Position: player.Position,
		})
	})
	if err != nil {
		return c.reject(conn, EventUpdatePosition, roomError(err))
	}
	return nil
}

// ChatMessage relays a chat line to the whole room, sender included
func (c *Coordinator) ChatMessage(ctx context.Context, conn room.ConnectionID, p ChatMessagePayload) error {
	rm, ok := c.rooms.Get(p.GameID)
	if !ok {
		return c.reject(conn, EventChatMessage, ErrRoomNotFound)
	}

	err := rm.Member(conn, func(player room.Player) {
		c.out.Broadcast(rm.ID(), EventChatMessage, ChatBroadcast{
			PlayerID:   player.ID,
			PlayerName: player.Nickname,
			Message:    p.Message,
			Timestamp:  c.now(),
		})
	})
	if err != nil {
		return c.reject(conn, EventChatMessage, roomError(err))
	}
	return nil
}

// LeaveRoom removes conn from one room with the same semantics as a
// disconnect scoped to that room
func (c *Coordinator) LeaveRoom(ctx context.Context, conn room.ConnectionID, p LeaveRoomPayload) error {
	removed, ok := c.rooms.Leave(p.GameID, conn)
	if !ok {
		return c.reject(conn, EventLeaveRoom, ErrRoomNotFound)
	}
	if !removed {
		return c.reject(conn, EventLeaveRoom, ErrNotInRoom)
	}

	c.out.Unsubscribe(conn, p.GameID)
	c.out.Emit(conn, EventLeaveRoom, LeaveRoomResponse{RoomID: p.GameID})
	c.logger.Info("player left", "room_id", p.GameID, "conn", conn)
	return nil
}

// ListRooms returns public rooms ordered by creation time
func (c *Coordinator) ListRooms(ctx context.Context, opts ListOptions) ([]*RoomInfo, error) {
	all := c.rooms.List()
	if opts.Order == "desc" {
		for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
			all[i], all[j] = all[j], all[i]
		}
	}

	result := make([]*RoomInfo, 0, len(all))
	for _, rm := range all {
		if !rm.Config().IsPublicGame {
			continue
		}
		info := roomInfo(rm.Snapshot())
		info.Players = nil
		result = append(result, info)
		if opts.Limit > 0 && len(result) == opts.Limit {
			break
		}
	}
	return result, nil
}

// GetRoom returns any live room by code, roster included
func (c *Coordinator) GetRoom(ctx context.Context, roomID string) (*RoomInfo, error) {
	rm, ok := c.rooms.Get(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	return roomInfo(rm.Snapshot()), nil
}

// ListModes returns the game modes rooms can be created with
func (c *Coordinator) ListModes(ctx context.Context) ([]*ModeInfo, error) {
	if c.modes == nil {
		return []*ModeInfo{}, nil
	}
	return c.modes.List(), nil
}

// Stats counts live rooms and players
func (c *Coordinator) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	for _, rm := range c.rooms.List() {
		stats.Rooms++
		if rm.Config().IsPublicGame {
			stats.PublicRooms++
		}
		stats.Players += rm.Len()
	}
	return stats, nil
}

// reject reports err to conn and returns it
func (c *Coordinator) reject(conn room.ConnectionID, event string, err error) error {
	c.logger.Debug("event rejected", "conn", conn, "event", event, "error", err)
	c.out.Emit(conn, EventError, ErrorMessage{Event: event, Message: err.Error()})
	return err
}

// roomError maps a closed room to the not-found error clients see
func roomError(err error) error {
	if errors.Is(err, room.ErrClosed) {
		return ErrRoomNotFound
	}
	return err
}

func summaries(players []room.Player) []room.Summary {
	result := make([]room.Summary, 0, len(players))
	for _, p := range players {
		result = append(result, p.Summary())
	}
	return result
}

func roomInfo(s room.Snapshot) *RoomInfo {
	return &RoomInfo{
		ID:               s.ID,
		Title:            s.Config.Title,
		GameMode:         s.Config.GameMode,
		MaxPlayerCount:   s.Config.MaxPlayerCount,
		IsPublicGame:     s.Config.IsPublicGame,
		Status:           s.Status,
		HostConnectionID: s.Host,
		CreatedAt:        s.CreatedAt,
		PlayerCount:      s.PlayerCount(),
		Players:          s.Players,
	}
}
