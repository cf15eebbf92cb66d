package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/roomgate/game/service"
)

const (
	readLimit      = 1 << 16
	sendBufferSize = 64
	eventsBuffer   = 256
)

var (
	// ErrClosed is returned when sending on or waiting for a closed client
	ErrClosed = errors.New("client closed")
	// ErrBackpressure is returned when the outbound queue is full
	ErrBackpressure = errors.New("send queue is full")
)

// Event is one frame received from the server
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the event data into v
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s event has no data", e.Name)
	}
	return json.Unmarshal(e.Data, v)
}

// ServerError is an ERROR frame returned in place of an expected event
type ServerError struct {
	Event   string
	Message string
}

func (e *ServerError) Error() string {
	if e.Event == "" {
		return e.Message
	}
	return e.Event + ": " + e.Message
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Client speaks the room protocol over a single WebSocket connection.
// Received frames are delivered in order on Events until the connection ends.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	events chan Event
	done   chan struct{}
	cancel context.CancelFunc
	logger *slog.Logger

	mu  sync.Mutex
	err error
}

// Dial connects to a roomgate WebSocket endpoint such as ws://localhost:8080/ws
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	conn.SetReadLimit(readLimit)

	runCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		events: make(chan Event, eventsBuffer),
		done:   make(chan struct{}),
		cancel: cancel,
		logger: logger,
	}
	go c.run(runCtx)
	return c, nil
}

func (c *Client) run(ctx context.Context) {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return c.readLoop(ctx) })
	eg.Go(func() error { return c.writeLoop(ctx) })

	err := eg.Wait()
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()

	_ = c.conn.Close(websocket.StatusNormalClosure, "")
	close(c.events)
	close(c.done)
}

func (c *Client) readLoop(ctx context.Context) error {
	for {
		msgType, data, err := c.conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("dropping malformed frame", "error", err)
			continue
		}

		select {
		case c.events <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Client) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-c.send:
			if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// Events returns the channel of received frames. It is closed when the
// connection ends.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Done is closed once the connection has ended
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, if any
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close ends the connection and waits for the pumps to stop
func (c *Client) Close() error {
	c.cancel()
	<-c.done
	return c.Err()
}

// Send queues one frame for the server
func (c *Client) Send(event string, data any) error {
	payload, err := json.Marshal(outbound{Event: event, Data: data})
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		return ErrBackpressure
	}
}

// Await consumes events until one named in names arrives. An ERROR frame is
// returned as a *ServerError unless ERROR is itself one of the names.
// Events that match neither are passed to skip when it is non-nil.
func (c *Client) Await(ctx context.Context, skip func(Event), names ...string) (Event, error) {
	for {
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case ev, ok := <-c.events:
			if !ok {
				return Event{}, ErrClosed
			}
			if slices.Contains(names, ev.Name) {
				return ev, nil
			}
			if ev.Name == service.EventError {
				var msg service.ErrorMessage
				_ = ev.Decode(&msg)
				return ev, &ServerError{Event: msg.Event, Message: msg.Message}
			}
			if skip != nil {
				skip(ev)
			}
		}
	}
}

// CreateRoom registers a room and returns its code
func (c *Client) CreateRoom(ctx context.Context, p service.CreateRoomPayload) (string, error) {
	if err := c.Send(service.EventCreateRoom, p); err != nil {
		return "", err
	}
	ev, err := c.Await(ctx, nil, service.EventCreateRoom)
	if err != nil {
		return "", err
	}
	var resp service.CreateRoomResponse
	if err := ev.Decode(&resp); err != nil {
		return "", err
	}
	return resp.RoomID, nil
}

// JoinRoom joins a room and returns the players that were already in it
func (c *Client) JoinRoom(ctx context.Context, roomID, name string) (*service.JoinRoomResponse, error) {
	if err := c.Send(service.EventJoinRoom, service.JoinRoomPayload{GameID: roomID, PlayerName: name}); err != nil {
		return nil, err
	}
	ev, err := c.Await(ctx, nil, service.EventJoinRoom)
	if err != nil {
		return nil, err
	}
	var resp service.JoinRoomResponse
	if err := ev.Decode(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LeaveRoom leaves a room and waits for the acknowledgement
func (c *Client) LeaveRoom(ctx context.Context, roomID string) error {
	if err := c.Send(service.EventLeaveRoom, service.LeaveRoomPayload{GameID: roomID}); err != nil {
		return err
	}
	_, err := c.Await(ctx, nil, service.EventLeaveRoom)
	return err
}

// Move sends a position update without waiting for the echo
func (c *Client) Move(roomID string, x, y float64) error {
	return c.Send(service.EventUpdatePosition, service.UpdatePositionPayload{
		GameID:      roomID,
		NewPosition: []float64{x, y},
	})
}

// Chat sends a chat line without waiting for the echo
func (c *Client) Chat(roomID, message string) error {
	return c.Send(service.EventChatMessage, service.ChatMessagePayload{GameID: roomID, Message: message})
}
