package room

import "time"

// ConnectionID identifies one client connection. It is assigned by the
// transport, stays stable for the lifetime of the connection and is never
// interpreted by the room package.
type ConnectionID string

// String returns the identifier as a plain string
func (id ConnectionID) String() string {
	return string(id)
}

// Status represents the room lifecycle stage
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Position is a point in the shared play field, encoded on the wire as [x, y]
type Position [2]float64

// X returns the horizontal coordinate
func (p Position) X() float64 { return p[0] }

// Y returns the vertical coordinate
func (p Position) Y() float64 { return p[1] }

// Config holds the immutable parameters supplied when a room is created
type Config struct {
	Title          string `json:"title"`
	GameMode       string `json:"gameMode"`
	MaxPlayerCount int    `json:"maxPlayerCount"`
	IsPublicGame   bool   `json:"isPublicGame"`
}

// Player is a connection's membership record within a room
type Player struct {
	ID       ConnectionID `json:"id"`
	Nickname string       `json:"name"`
	Score    int          `json:"score"`
	IsHost   bool         `json:"isHost"`
	JoinedAt time.Time    `json:"joinedAt"`
	Position Position     `json:"position"`
}

// Summary is the public-facing part of a player sent in roster snapshots
// and arrival notices.
type Summary struct {
	ID       ConnectionID `json:"id"`
	Name     string       `json:"name"`
	Position Position     `json:"position"`
}

// Summary returns the id, name and position of the player
func (p Player) Summary() Summary {
	return Summary{ID: p.ID, Name: p.Nickname, Position: p.Position}
}

// Snapshot is a point-in-time copy of a room, safe to hand out to readers
type Snapshot struct {
	ID        string       `json:"id"`
	Host      ConnectionID `json:"hostConnectionId"`
	Config    Config       `json:"config"`
	CreatedAt time.Time    `json:"createdAt"`
	Status    Status       `json:"status"`
	Players   []Player     `json:"players"`
}

// PlayerCount returns the number of players in the snapshot
func (s Snapshot) PlayerCount() int {
	return len(s.Players)
}
