package room

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrClosed        = errors.New("room is closed")
	ErrFull          = errors.New("room is full")
	ErrNotMember     = errors.New("player is not in room")
	ErrAlreadyJoined = errors.New("player is already in room")
)

// Room is a bounded group session identified by a short code
type Room struct {
	id        string
	host      ConnectionID
	config    Config
	createdAt time.Time

	mu      sync.Mutex
	status  Status
	players map[ConnectionID]*Player
	order   []ConnectionID
	closed  bool
}

// New creates a room in the waiting state with an empty roster
func New(id string, host ConnectionID, config Config, createdAt time.Time) *Room {
	return &Room{
		id:        id,
		host:      host,
		config:    config,
		createdAt: createdAt,
		status:    StatusWaiting,
		players:   make(map[ConnectionID]*Player),
	}
}

// ID returns the room code
func (r *Room) ID() string { return r.id }

// Host returns the connection that created the room
func (r *Room) Host() ConnectionID { return r.host }

// Config returns the creation-time parameters
func (r *Room) Config() Config { return r.config }

// CreatedAt returns the creation timestamp
func (r *Room) CreatedAt() time.Time { return r.createdAt }

// Status returns the current lifecycle status
func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Len returns the number of players currently in the room
func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Closed reports whether the room has been emptied and retired
func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Join adds a player for conn after checking capacity, all in one critical
// section. announce runs under the room lock before the player is inserted:
// existing holds the roster as it was before the join (never the joiner
// itself), joined is the new record. The host flag is derived here and is
// never recomputed.
func (r *Room) Join(conn ConnectionID, nickname string, pos Position, now time.Time, announce func(existing []Player, joined Player)) (Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Player{}, ErrClosed
	}
	if _, ok := r.players[conn]; ok {
		return Player{}, ErrAlreadyJoined
	}
	if len(r.players) >= r.config.MaxPlayerCount {
		return Player{}, ErrFull
	}

	player := Player{
		ID:       conn,
		Nickname: nickname,
		IsHost:   conn == r.host,
		JoinedAt: now,
		Position: pos,
	}

	if announce != nil {
		announce(r.rosterLocked(), player)
	}

	p := player
	r.players[conn] = &p
	r.order = append(r.order, conn)
	return player, nil
}

// UpdatePosition overwrites the stored position of conn's player. then runs
// under the room lock with the updated record, so broadcasts for one room
// are emitted in the same order the positions were stored.
func (r *Room) UpdatePosition(conn ConnectionID, pos Position, then func(Player)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	p, ok := r.players[conn]
	if !ok {
		return ErrNotMember
	}
	p.Position = pos
	if then != nil {
		then(*p)
	}
	return nil
}

// Member runs fn with a copy of conn's player record while holding the room
// lock. It does not modify the room.
func (r *Room) Member(conn ConnectionID, fn func(Player)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	p, ok := r.players[conn]
	if !ok {
		return ErrNotMember
	}
	if fn != nil {
		fn(*p)
	}
	return nil
}

// Leave removes conn from the roster. It reports whether conn was a member
// and whether the room is now empty. A room emptied by Leave is closed in
// the same critical section, so a concurrent Join can never revive it.
func (r *Room) Leave(conn ConnectionID) (removed bool, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[conn]; !ok {
		return false, false
	}
	delete(r.players, conn)
	for i, id := range r.order {
		if id == conn {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if len(r.players) == 0 {
		r.closed = true
		return true, true
	}
	return true, false
}

// Retire closes the room if nobody is in it and reports whether it is
// closed afterwards.
func (r *Room) Retire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.players) == 0 {
		r.closed = true
	}
	return r.closed
}

// Players returns the roster in join order
func (r *Room) Players() []Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rosterLocked()
}

// Snapshot returns a consistent copy of the room
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		ID:        r.id,
		Host:      r.host,
		Config:    r.config,
		CreatedAt: r.createdAt,
		Status:    r.status,
		Players:   r.rosterLocked(),
	}
}

func (r *Room) rosterLocked() []Player {
	roster := make([]Player, 0, len(r.order))
	for _, id := range r.order {
		roster = append(roster, *r.players[id])
	}
	return roster
}
