package core

import (
	"errors"
	"sync"
)

// ErrNotBound is returned when an operation requires a bound connection for a
// user and none exists.
var ErrNotBound = errors.New("user has no bound connection")

// Registry is the single source of truth mapping live connections to
// authenticated identity and current room. It is the only mutable state
// shared between connection handlers; every mutation is serialized behind one
// mutex, and broadcast membership snapshots are taken under the same mutex so
// fan-out always sees a consistent view.
//
// The registry is injected into the engine at construction, never a package
// global.
type Registry struct {
	mu     sync.Mutex
	byUser map[int64]*Conn
	byConn map[string]*Conn
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[int64]*Conn),
		byConn: make(map[string]*Conn),
	}
}

// Bind registers conn as the live connection for userID. If the user already
// has a different bound connection it is evicted from the registry and
// returned so the caller can close it; the original behavior of silently
// orphaning the prior socket leaked undeliverable connections.
// Idempotent when called again with the same pair.
func (r *Registry) Bind(conn *Conn, userID int64) (evicted *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.byUser[userID]
	if prev == conn {
		return nil
	}
	if prev != nil {
		delete(r.byConn, prev.ID)
		// Clear the stale binding so an in-flight handler on the evicted
		// connection fails the state checks instead of acting on the live
		// binding.
		prev.userID = 0
		prev.roomID = 0
		evicted = prev
	}

	// Re-authenticating an already-bound connection as a different user
	// releases its old identity entry.
	if conn.userID != 0 && conn.userID != userID && r.byUser[conn.userID] == conn {
		delete(r.byUser, conn.userID)
	}

	conn.userID = userID
	r.byUser[userID] = conn
	r.byConn[conn.ID] = conn
	return evicted
}

// SetRoom updates the room tag of the connection bound to userID, returning
// the previous room (zero when none). Returns ErrNotBound when the user has
// no bound connection: callers must authenticate before joining.
func (r *Registry) SetRoom(userID, roomID int64) (prevRoom int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn := r.byUser[userID]
	if conn == nil {
		return 0, ErrNotBound
	}

	prevRoom = conn.roomID
	conn.roomID = roomID
	return prevRoom, nil
}

// Unbind removes whichever entry currently owns conn, looked up by handle
// because disconnects carry only the connection. Idempotent: a second call
// for the same connection is a no-op with wasLive=false. wasLive is also
// false for a connection that was evicted by a re-authenticate, so callers
// can avoid flipping a freshly rebound user offline.
func (r *Registry) Unbind(conn *Conn) (userID int64, wasLive bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byConn[conn.ID]
	if !ok || current != conn {
		return conn.userID, false
	}

	delete(r.byConn, conn.ID)
	delete(r.byUser, conn.userID)
	return conn.userID, true
}

// State returns the identity and room currently bound to conn.
func (r *Registry) State(conn *Conn) (userID, roomID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return conn.userID, conn.roomID
}

// Snapshot returns the connections currently tagged with roomID, excluding
// excludeUserID when non-zero. The slice is a consistent snapshot taken under
// the registry mutex; sends to its members happen outside the lock so a slow
// recipient cannot stall registry mutations.
func (r *Registry) Snapshot(roomID, excludeUserID int64) []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make([]*Conn, 0, len(r.byUser))
	for userID, conn := range r.byUser {
		if conn.roomID != roomID {
			continue
		}
		if excludeUserID != 0 && userID == excludeUserID {
			continue
		}
		conns = append(conns, conn)
	}
	return conns
}

// Len reports the number of bound connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser)
}
