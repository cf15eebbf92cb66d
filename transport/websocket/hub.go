package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wricardo/roomgate/game/room"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. A chat line at the rune limit
	// with every rune sent as an escaped surrogate pair is about 6KB.
	maxMessageSize = 16 << 10

	// Outbound frames buffered per client before it is considered too slow.
	sendBufferSize = 256

	// Hub operations buffered before emitters block.
	opsBufferSize = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Cross-origin policy is applied by the HTTP layer
		return true
	},
}

// Dispatcher receives connection lifecycle events and inbound frames
type Dispatcher interface {
	OnConnect(ctx context.Context, conn room.ConnectionID)
	Dispatch(ctx context.Context, conn room.ConnectionID, raw []byte)
	OnDisconnect(ctx context.Context, conn room.ConnectionID)
}

// Frame is the JSON envelope written to clients
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type opKind int

const (
	opEmit opKind = iota
	opBroadcast
	opSubscribe
	opUnsubscribe
)

// op is one queued hub operation. Ops are applied by Run in the order they
// were queued.
type op struct {
	kind    opKind
	conn    room.ConnectionID
	roomID  string
	except  room.ConnectionID
	payload []byte
}

// Client represents a WebSocket client
type Client struct {
	id   room.ConnectionID
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// rooms this client is subscribed to; owned by Run
	rooms map[string]bool
}

// ID returns the connection identifier assigned by the hub
func (c *Client) ID() room.ConnectionID { return c.id }

// Hub maintains the set of active clients and their room subscriptions
type Hub struct {
	// Registered clients by connection ID
	clients map[room.ConnectionID]*Client

	// Subscribed clients by room ID
	rooms map[string]map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Outbound deliveries and subscription changes
	ops chan op

	// Closed when Run returns
	done chan struct{}

	dispatcher Dispatcher
	logger     *slog.Logger
	connected  atomic.Int64
}

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[room.ConnectionID]*Client),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ops:        make(chan op, opsBufferSize),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// SetDispatcher sets the receiver of inbound frames. It must be called
// before the hub starts serving connections.
func (h *Hub) SetDispatcher(d Dispatcher) {
	h.dispatcher = d
}

// Clients returns the number of open connections
func (h *Hub) Clients() int {
	return int(h.connected.Load())
}

// Run starts the hub's event loop. It returns when ctx is cancelled, after
// closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, client := range h.clients {
				h.unregisterClient(client)
			}
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case o := <-h.ops:
			h.apply(o)
		}
	}
}

// ServeWS upgrades the request and starts the client's pumps
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		id:    room.ConnectionID(uuid.NewString()),
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, sendBufferSize),
		rooms: make(map[string]bool),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// The request context ends when this handler returns
	ctx := context.WithoutCancel(r.Context())
	if h.dispatcher != nil {
		h.dispatcher.OnConnect(ctx, client.id)
	}

	go client.writePump()
	go client.readPump(ctx)
}

// Emit sends an event to a single connection
func (h *Hub) Emit(conn room.ConnectionID, event string, data any) {
	if payload, ok := h.encode(event, data); ok {
		h.enqueue(op{kind: opEmit, conn: conn, payload: payload})
	}
}

// Broadcast sends an event to every client subscribed to roomID
func (h *Hub) Broadcast(roomID string, event string, data any) {
	if payload, ok := h.encode(event, data); ok {
		h.enqueue(op{kind: opBroadcast, roomID: roomID, payload: payload})
	}
}

// BroadcastExcept sends an event to every subscriber of roomID but except
func (h *Hub) BroadcastExcept(roomID string, except room.ConnectionID, event string, data any) {
	if payload, ok := h.encode(event, data); ok {
		h.enqueue(op{kind: opBroadcast, roomID: roomID, except: except, payload: payload})
	}
}

// Subscribe adds conn to the room channel
func (h *Hub) Subscribe(conn room.ConnectionID, roomID string) {
	h.enqueue(op{kind: opSubscribe, conn: conn, roomID: roomID})
}

// Unsubscribe removes conn from the room channel
func (h *Hub) Unsubscribe(conn room.ConnectionID, roomID string) {
	h.enqueue(op{kind: opUnsubscribe, conn: conn, roomID: roomID})
}

func (h *Hub) encode(event string, data any) ([]byte, bool) {
	payload, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		h.logger.Error("failed to marshal frame", "event", event, "error", err)
		return nil, false
	}
	return payload, true
}

// enqueue hands o to Run. Once Run has returned ops are discarded.
func (h *Hub) enqueue(o op) {
	select {
	case h.ops <- o:
	case <-h.done:
	}
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.clients[client.id] = client
	h.connected.Add(1)
	h.logger.Debug("client registered", "conn", client.id, "clients", len(h.clients))
}

// unregisterClient removes a client and all of its subscriptions. It is a
// no-op for a client that is already gone.
func (h *Hub) unregisterClient(client *Client) {
	if _, ok := h.clients[client.id]; !ok {
		return
	}
	for roomID := range client.rooms {
		h.removeFromRoom(client, roomID)
	}
	delete(h.clients, client.id)
	close(client.send)
	h.connected.Add(-1)
	h.logger.Debug("client unregistered", "conn", client.id, "clients", len(h.clients))
}

func (h *Hub) apply(o op) {
	switch o.kind {
	case opEmit:
		if client, ok := h.clients[o.conn]; ok {
			h.deliver(client, o.payload)
		}

	case opBroadcast:
		for client := range h.rooms[o.roomID] {
			if client.id == o.except {
				continue
			}
			h.deliver(client, o.payload)
		}

	case opSubscribe:
		client, ok := h.clients[o.conn]
		if !ok {
			return
		}
		if h.rooms[o.roomID] == nil {
			h.rooms[o.roomID] = make(map[*Client]bool)
		}
		h.rooms[o.roomID][client] = true
		client.rooms[o.roomID] = true

	case opUnsubscribe:
		if client, ok := h.clients[o.conn]; ok {
			h.removeFromRoom(client, o.roomID)
		}
	}
}

// deliver queues payload on the client, dropping the client if its buffer
// is full
func (h *Hub) deliver(client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		h.logger.Warn("client too slow, closing", "conn", client.id)
		h.unregisterClient(client)
	}
}

func (h *Hub) removeFromRoom(client *Client, roomID string) {
	delete(client.rooms, roomID)
	if clients, ok := h.rooms[roomID]; ok {
		delete(clients, client)
		// Clean up empty rooms
		if len(clients) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// readPump pumps frames from the WebSocket connection to the dispatcher
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
		if c.hub.dispatcher != nil {
			c.hub.dispatcher.OnDisconnect(ctx, c.id)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error", "conn", c.id, "error", err)
			}
			break
		}
		if c.hub.dispatcher != nil {
			c.hub.dispatcher.Dispatch(ctx, c.id, message)
		}
	}
}

// writePump pumps frames from the hub to the WebSocket connection. Each
// frame is written as its own text message.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
