package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeIdentity resolves users from an in-memory map and records presence
// transitions.
type fakeIdentity struct {
	mu     sync.Mutex
	users  map[int64]UserInfo
	online map[int64]bool
}

func newFakeIdentity(users ...UserInfo) *fakeIdentity {
	f := &fakeIdentity{
		users:  make(map[int64]UserInfo),
		online: make(map[int64]bool),
	}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeIdentity) FindByID(_ context.Context, userID int64) (UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return UserInfo{}, errors.New("no such user")
	}
	u.Online = f.online[userID]
	return u, nil
}

func (f *fakeIdentity) SetOnlineStatus(_ context.Context, userID int64, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[userID] = online
	return nil
}

func (f *fakeIdentity) isOnline(userID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[userID]
}

// fakeMessageLog appends to an in-memory slice with monotonically increasing
// ids. failAppend forces persistence failures.
type fakeMessageLog struct {
	mu         sync.Mutex
	messages   []ChatMessage
	nextID     int64
	failAppend bool
}

func newFakeMessageLog() *fakeMessageLog {
	return &fakeMessageLog{nextID: 1}
}

func (f *fakeMessageLog) Append(_ context.Context, roomID, userID int64, content, msgType string, fileID *int64) (ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAppend {
		return ChatMessage{}, errors.New("append failed")
	}
	msg := ChatMessage{
		ID:        f.nextID,
		RoomID:    roomID,
		UserID:    userID,
		Content:   content,
		Type:      msgType,
		FileID:    fileID,
		CreatedAt: time.Now(),
	}
	f.nextID++
	f.messages = append(f.messages, msg)
	return msg, nil
}

func (f *fakeMessageLog) ListByRoom(_ context.Context, roomID int64, limit int) ([]ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ChatMessage
	for _, m := range f.messages {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeMessageLog) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

// fakeMembership allows configured (roomID, userID) pairs.
type fakeMembership struct {
	mu      sync.Mutex
	members map[string]bool
	failErr error
}

func newFakeMembership() *fakeMembership {
	return &fakeMembership{members: make(map[string]bool)}
}

func (f *fakeMembership) add(roomID, userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[fmt.Sprintf("%d/%d", roomID, userID)] = true
}

func (f *fakeMembership) IsMember(_ context.Context, roomID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return false, f.failErr
	}
	return f.members[fmt.Sprintf("%d/%d", roomID, userID)], nil
}

type testFixture struct {
	engine     *Engine
	identity   *fakeIdentity
	messages   *fakeMessageLog
	membership *fakeMembership
}

func newTestEngine(t *testing.T, opts ...EngineOption) *testFixture {
	t.Helper()

	identity := newFakeIdentity(
		UserInfo{ID: 1, Name: "alice", Avatar: "A"},
		UserInfo{ID: 2, Name: "bob", Avatar: "B"},
		UserInfo{ID: 3, Name: "carol", Avatar: "C"},
	)
	messages := newFakeMessageLog()
	membership := newFakeMembership()
	logger := zerolog.New(nil)

	return &testFixture{
		engine:     NewEngine(NewRegistry(), identity, messages, membership, &logger, opts...),
		identity:   identity,
		messages:   messages,
		membership: membership,
	}
}

// mustEvent pops the next event from conn, failing the test when none is
// buffered.
func mustEvent(t *testing.T, conn *Conn) Event {
	t.Helper()
	select {
	case ev := <-conn.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return Event{}
	}
}

// mustNoEvent asserts conn's buffer is empty.
func mustNoEvent(t *testing.T, conn *Conn) {
	t.Helper()
	select {
	case ev := <-conn.Events():
		t.Fatalf("unexpected event: kind=%d", ev.Kind)
	default:
	}
}

// authenticate drives conn through the authenticate transition and drains the
// connected event.
func (f *testFixture) authenticate(t *testing.T, conn *Conn, userID int64) {
	t.Helper()
	f.engine.Handle(context.Background(), conn, Inbound{Kind: InboundAuthenticate, UserID: userID})
	ev := mustEvent(t, conn)
	if ev.Kind != EventConnected {
		t.Fatalf("expected connected event, got kind=%d error=%v", ev.Kind, ev.Error)
	}
}

// join drives conn into roomID and drains history and user_joined events.
func (f *testFixture) join(t *testing.T, conn *Conn, roomID int64) {
	t.Helper()
	f.engine.Handle(context.Background(), conn, Inbound{Kind: InboundJoinRoom, RoomID: roomID})
	ev := mustEvent(t, conn)
	if ev.Kind != EventHistory {
		t.Fatalf("expected history event, got kind=%d error=%v", ev.Kind, ev.Error)
	}
	ev = mustEvent(t, conn)
	if ev.Kind != EventUserJoined {
		t.Fatalf("expected user_joined event, got kind=%d", ev.Kind)
	}
}
