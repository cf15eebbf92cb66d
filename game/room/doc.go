// Package room provides the data model and state machine for a single game room.
//
// The room package implements:
//   - Room and Player types with their creation-time configuration
//   - Roster management (join, leave, membership lookup)
//   - Capacity enforcement under concurrent joins
//   - Room lifecycle status (waiting, playing, finished)
//
// Core Types:
//
// Room holds an immutable Config, the host connection identifier and the
// player roster keyed by ConnectionID. Player is a connection's membership
// record inside exactly one room.
//
// Concurrency:
//
// Every Room guards its own roster with a mutex. Operations that must be
// observed atomically by other clients (capacity check and insertion,
// position overwrite and its broadcast) accept a callback that runs while
// the lock is held, so the caller can emit messages in the same critical
// section that mutates the roster. Callbacks must not block and must not
// call back into the same Room.
//
// Lifecycle:
//
// A room starts in StatusWaiting. Once a Leave drops its roster to zero the
// room is marked closed; every later operation reports ErrClosed, which
// callers treat exactly like a room that does not exist.
package room
