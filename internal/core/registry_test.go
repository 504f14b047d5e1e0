package core

import (
	"errors"
	"testing"
)

func TestRegistryBindEvictsPriorConnection(t *testing.T) {
	reg := NewRegistry()

	first := NewConn("c1")
	second := NewConn("c2")

	if evicted := reg.Bind(first, 1); evicted != nil {
		t.Fatalf("first bind evicted %s", evicted.ID)
	}
	evicted := reg.Bind(second, 1)
	if evicted != first {
		t.Fatalf("expected first connection evicted, got %v", evicted)
	}

	if userID, roomID := reg.State(second); userID != 1 || roomID != 0 {
		t.Fatalf("unexpected state: user=%d room=%d", userID, roomID)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 bound connection, got %d", reg.Len())
	}
}

func TestRegistryBindIdempotent(t *testing.T) {
	reg := NewRegistry()
	conn := NewConn("c1")

	reg.Bind(conn, 1)
	if evicted := reg.Bind(conn, 1); evicted != nil {
		t.Fatalf("rebinding same pair evicted %s", evicted.ID)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 bound connection, got %d", reg.Len())
	}
}

func TestRegistryRebindAsDifferentUser(t *testing.T) {
	reg := NewRegistry()
	conn := NewConn("c1")

	reg.Bind(conn, 1)
	if evicted := reg.Bind(conn, 2); evicted != nil {
		t.Fatalf("re-authenticate evicted %s", evicted.ID)
	}

	// The old identity entry must be released.
	if _, err := reg.SetRoom(1, 5); !errors.Is(err, ErrNotBound) {
		t.Fatalf("expected ErrNotBound for released identity, got %v", err)
	}
	if _, err := reg.SetRoom(2, 5); err != nil {
		t.Fatalf("SetRoom for new identity: %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 bound connection, got %d", reg.Len())
	}
}

func TestRegistrySetRoomRequiresBinding(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.SetRoom(42, 1); !errors.Is(err, ErrNotBound) {
		t.Fatalf("expected ErrNotBound, got %v", err)
	}

	conn := NewConn("c1")
	reg.Bind(conn, 42)

	prev, err := reg.SetRoom(42, 7)
	if err != nil {
		t.Fatalf("SetRoom: %v", err)
	}
	if prev != 0 {
		t.Fatalf("expected no previous room, got %d", prev)
	}

	prev, err = reg.SetRoom(42, 9)
	if err != nil {
		t.Fatalf("SetRoom: %v", err)
	}
	if prev != 7 {
		t.Fatalf("expected previous room 7, got %d", prev)
	}
}

func TestRegistryUnbindIdempotent(t *testing.T) {
	reg := NewRegistry()
	conn := NewConn("c1")
	reg.Bind(conn, 1)

	userID, wasLive := reg.Unbind(conn)
	if userID != 1 || !wasLive {
		t.Fatalf("first unbind: user=%d wasLive=%v", userID, wasLive)
	}

	if _, wasLive := reg.Unbind(conn); wasLive {
		t.Fatal("second unbind reported live")
	}
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", reg.Len())
	}
}

func TestRegistryUnbindEvictedConnectionNotLive(t *testing.T) {
	reg := NewRegistry()
	stale := NewConn("c1")
	fresh := NewConn("c2")

	reg.Bind(stale, 1)
	reg.Bind(fresh, 1)

	// The evicted connection's disconnect must not touch the fresh binding.
	if _, wasLive := reg.Unbind(stale); wasLive {
		t.Fatal("evicted connection reported live on unbind")
	}
	if userID, _ := reg.State(fresh); userID != 1 {
		t.Fatalf("fresh binding lost: user=%d", userID)
	}
}

func TestRegistryEvictedConnectionStateCleared(t *testing.T) {
	reg := NewRegistry()
	stale := NewConn("c1")
	fresh := NewConn("c2")

	reg.Bind(stale, 1)
	reg.SetRoom(1, 7)
	reg.Bind(fresh, 1)

	// An in-flight handler on the evicted connection must observe an
	// unauthenticated state, not act on the live binding.
	if userID, roomID := reg.State(stale); userID != 0 || roomID != 0 {
		t.Fatalf("evicted state not cleared: user=%d room=%d", userID, roomID)
	}
	if userID, _ := reg.State(fresh); userID != 1 {
		t.Fatalf("fresh binding lost: user=%d", userID)
	}
}

func TestRegistrySnapshotFiltersRoomAndSender(t *testing.T) {
	reg := NewRegistry()

	inRoom1 := NewConn("c1")
	alsoRoom1 := NewConn("c2")
	inRoom2 := NewConn("c3")
	noRoom := NewConn("c4")

	reg.Bind(inRoom1, 1)
	reg.Bind(alsoRoom1, 2)
	reg.Bind(inRoom2, 3)
	reg.Bind(noRoom, 4)
	reg.SetRoom(1, 10)
	reg.SetRoom(2, 10)
	reg.SetRoom(3, 20)

	if got := len(reg.Snapshot(10, 0)); got != 2 {
		t.Fatalf("expected 2 connections in room 10, got %d", got)
	}
	if got := len(reg.Snapshot(20, 0)); got != 1 {
		t.Fatalf("expected 1 connection in room 20, got %d", got)
	}

	snap := reg.Snapshot(10, 1)
	if len(snap) != 1 || snap[0] != alsoRoom1 {
		t.Fatalf("exclusion snapshot wrong: %v", snap)
	}
}
