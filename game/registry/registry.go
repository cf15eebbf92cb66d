// Package registry owns the set of live rooms.
//
// The Registry is the single source of truth for which rooms exist. It is
// safe for concurrent use: an RWMutex guards the id -> room map and each
// room guards its own roster. Locks are always taken in the order
// Registry -> Room, never the reverse.
//
// Lookups never fail; a missing room is reported with ok == false rather
// than an error.
package registry

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/wricardo/roomgate/game/room"
)

// Registry maps room codes to live rooms
type Registry struct {
	rooms  map[string]*room.Room
	ids    *IDGenerator
	now    func() time.Time
	logger *slog.Logger
	mu     sync.RWMutex
}

// New creates an empty registry with a crypto/rand backed code generator
func New(logger *slog.Logger) *Registry {
	return NewWithGenerator(NewIDGenerator(), logger)
}

// NewWithGenerator creates an empty registry using ids to mint room codes
func NewWithGenerator(ids *IDGenerator, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		rooms:  make(map[string]*room.Room),
		ids:    ids,
		now:    time.Now,
		logger: logger,
	}
}

// Create registers a new waiting room hosted by host and returns it
func (r *Registry) Create(host room.ConnectionID, config room.Config) *room.Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.ids.Generate(func(id string) bool {
		_, taken := r.rooms[id]
		return taken
	})
	rm := room.New(id, host, config, r.now())
	r.rooms[id] = rm

	r.logger.Info("room created",
		"room_id", id,
		"host", host,
		"mode", config.GameMode,
		"max_players", config.MaxPlayerCount,
		"public", config.IsPublicGame)
	return rm
}

// Get retrieves a room by code
func (r *Registry) Get(id string) (*room.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[id]
	return rm, ok
}

// Remove deletes a room; it is a no-op if the room does not exist
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[id]; ok {
		delete(r.rooms, id)
		r.logger.Info("room removed", "room_id", id)
	}
}

// Leave removes conn from one room and deletes the room if that left it
// empty. It reports whether conn was a member.
func (r *Registry) Leave(id string, conn room.ConnectionID) (removed bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, exists := r.rooms[id]
	if !exists {
		return false, false
	}
	removed, empty := rm.Leave(conn)
	if empty {
		delete(r.rooms, id)
		r.logger.Info("room removed", "room_id", id, "reason", "empty")
	}
	return removed, true
}

// RemoveConnection evicts conn from every room it belongs to and deletes
// rooms that are left empty. An unjoined room whose host is conn is retired
// as well, otherwise it would never be reclaimed. The ids of rooms conn
// was removed from are returned.
func (r *Registry) RemoveConnection(conn room.ConnectionID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left []string
	for id, rm := range r.rooms {
		removed, empty := rm.Leave(conn)
		if removed {
			left = append(left, id)
		}
		if !removed && rm.Host() == conn {
			empty = rm.Retire()
		}
		if empty {
			delete(r.rooms, id)
			r.logger.Info("room removed", "room_id", id, "reason", "empty")
		}
	}
	sort.Strings(left)
	return left
}

// List returns all live rooms ordered by creation time
func (r *Registry) List() []*room.Room {
	r.mu.RLock()
	result := make([]*room.Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		result = append(result, rm)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt().Equal(result[j].CreatedAt()) {
			return result[i].ID() < result[j].ID()
		}
		return result[i].CreatedAt().Before(result[j].CreatedAt())
	})
	return result
}

// Count returns the number of live rooms
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
