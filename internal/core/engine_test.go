package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestAuthenticateUnknownUser(t *testing.T) {
	f := newTestEngine(t)
	conn := NewConn("c1")

	f.engine.Handle(context.Background(), conn, Inbound{Kind: InboundAuthenticate, UserID: 99})

	ev := mustEvent(t, conn)
	if ev.Kind != EventError || ev.Error.Code != ErrCodeUnauthenticated {
		t.Fatalf("expected unauthenticated error, got kind=%d error=%v", ev.Kind, ev.Error)
	}
	if f.engine.Registry().Len() != 0 {
		t.Fatal("failed authenticate must not bind")
	}
}

func TestAuthenticateMarksOnlineAndConfirms(t *testing.T) {
	f := newTestEngine(t)
	conn := NewConn("c1")

	f.engine.Handle(context.Background(), conn, Inbound{Kind: InboundAuthenticate, UserID: 1})

	ev := mustEvent(t, conn)
	if ev.Kind != EventConnected {
		t.Fatalf("expected connected, got kind=%d error=%v", ev.Kind, ev.Error)
	}
	if ev.User.ID != 1 || ev.User.Name != "alice" || !ev.User.Online {
		t.Fatalf("unexpected user payload: %+v", ev.User)
	}
	if !f.identity.isOnline(1) {
		t.Fatal("user not marked online")
	}
}

func TestReauthenticateEvictsAndKeepsUserOnline(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	stale := NewConn("c1")
	fresh := NewConn("c2")
	f.authenticate(t, stale, 1)
	f.authenticate(t, fresh, 1)

	// Prior connection is closed by the eviction.
	select {
	case <-stale.Done():
	default:
		t.Fatal("evicted connection not closed")
	}

	// The stale connection's disconnect must not flip the user offline.
	f.engine.Disconnect(ctx, stale)
	if !f.identity.isOnline(1) {
		t.Fatal("user went offline after stale disconnect")
	}

	// The fresh connection's disconnect does.
	f.engine.Disconnect(ctx, fresh)
	if f.identity.isOnline(1) {
		t.Fatal("user still online after live disconnect")
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	conn := NewConn("c1")
	f.authenticate(t, conn, 1)

	f.engine.Disconnect(ctx, conn)
	f.engine.Disconnect(ctx, conn)

	if f.engine.Registry().Len() != 0 {
		t.Fatal("registry not empty after disconnect")
	}
	if f.identity.isOnline(1) {
		t.Fatal("user still online")
	}
}

func TestJoinRoomRequiresAuthentication(t *testing.T) {
	f := newTestEngine(t)
	conn := NewConn("c1")

	f.engine.Handle(context.Background(), conn, Inbound{Kind: InboundJoinRoom, RoomID: 10})

	ev := mustEvent(t, conn)
	if ev.Kind != EventError || ev.Error.Code != ErrCodeUnauthenticated {
		t.Fatalf("expected unauthenticated error, got %v", ev.Error)
	}
}

func TestJoinRoomEnforcesMembership(t *testing.T) {
	f := newTestEngine(t)
	conn := NewConn("c1")
	f.authenticate(t, conn, 1)

	f.engine.Handle(context.Background(), conn, Inbound{Kind: InboundJoinRoom, RoomID: 10})

	ev := mustEvent(t, conn)
	if ev.Kind != EventError || ev.Error.Code != ErrCodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %v", ev.Error)
	}
}

func TestJoinRoomMembershipCheckFailure(t *testing.T) {
	f := newTestEngine(t)
	conn := NewConn("c1")
	f.authenticate(t, conn, 1)

	f.membership.failErr = errors.New("db down")
	f.engine.Handle(context.Background(), conn, Inbound{Kind: InboundJoinRoom, RoomID: 10})

	ev := mustEvent(t, conn)
	if ev.Kind != EventError || ev.Error.Code != ErrCodePersistenceFailure {
		t.Fatalf("expected persistence_failure error, got %v", ev.Error)
	}
}

func TestJoinRoomReplaysHistory(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	f.messages.Append(ctx, 10, 2, "earlier message", "text", nil)
	f.membership.add(10, 1)

	conn := NewConn("c1")
	f.authenticate(t, conn, 1)
	f.engine.Handle(ctx, conn, Inbound{Kind: InboundJoinRoom, RoomID: 10})

	ev := mustEvent(t, conn)
	if ev.Kind != EventHistory || ev.RoomID != 10 {
		t.Fatalf("expected history for room 10, got kind=%d room=%d", ev.Kind, ev.RoomID)
	}
	if len(ev.Messages) != 1 || ev.Messages[0].Content != "earlier message" {
		t.Fatalf("unexpected history payload: %+v", ev.Messages)
	}

	ev = mustEvent(t, conn)
	if ev.Kind != EventUserJoined || ev.User.ID != 1 {
		t.Fatalf("expected user_joined, got kind=%d user=%+v", ev.Kind, ev.User)
	}
}

func TestJoinRoomSwitchNotifiesPreviousRoom(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	f.membership.add(10, 1)
	f.membership.add(20, 1)
	f.membership.add(10, 2)

	mover := NewConn("c1")
	watcher := NewConn("c2")
	f.authenticate(t, mover, 1)
	f.authenticate(t, watcher, 2)
	f.join(t, watcher, 10)
	f.join(t, mover, 10)
	mustEvent(t, watcher) // mover's user_joined

	f.engine.Handle(ctx, mover, Inbound{Kind: InboundJoinRoom, RoomID: 20})

	ev := mustEvent(t, watcher)
	if ev.Kind != EventUserLeft || ev.RoomID != 10 || ev.User.ID != 1 {
		t.Fatalf("expected user_left in room 10, got kind=%d room=%d user=%+v", ev.Kind, ev.RoomID, ev.User)
	}

	// The mover gets history and joined for the new room.
	ev = mustEvent(t, mover)
	if ev.Kind != EventHistory || ev.RoomID != 20 {
		t.Fatalf("expected history for room 20, got kind=%d room=%d", ev.Kind, ev.RoomID)
	}
}

func TestRejoinSameRoomIsQuiet(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	f.membership.add(10, 1)
	conn := NewConn("c1")
	f.authenticate(t, conn, 1)
	f.join(t, conn, 10)

	f.engine.Handle(ctx, conn, Inbound{Kind: InboundJoinRoom, RoomID: 10})
	mustNoEvent(t, conn)
}

func TestChatMessageFanOutIsolatedPerRoom(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	f.membership.add(10, 1)
	f.membership.add(10, 2)
	f.membership.add(20, 3)

	sender := NewConn("c1")
	sameRoom := NewConn("c2")
	otherRoom := NewConn("c3")
	f.authenticate(t, sender, 1)
	f.authenticate(t, sameRoom, 2)
	f.authenticate(t, otherRoom, 3)
	f.join(t, sender, 10)
	f.join(t, sameRoom, 10)
	mustEvent(t, sender) // sameRoom's user_joined
	f.join(t, otherRoom, 20)

	f.engine.Handle(ctx, sender, Inbound{Kind: InboundChatMessage, Content: "hello room"})

	// Sender is included in the fan-out.
	for _, conn := range []*Conn{sender, sameRoom} {
		ev := mustEvent(t, conn)
		if ev.Kind != EventNewMessage {
			t.Fatalf("expected new_message, got kind=%d", ev.Kind)
		}
		if ev.Message.Content != "hello room" || ev.Message.UserName != "alice" {
			t.Fatalf("unexpected message payload: %+v", ev.Message)
		}
	}

	mustNoEvent(t, otherRoom)
}

func TestChatMessageRequiresRoom(t *testing.T) {
	f := newTestEngine(t)
	conn := NewConn("c1")
	f.authenticate(t, conn, 1)

	f.engine.Handle(context.Background(), conn, Inbound{Kind: InboundChatMessage, Content: "hello"})

	ev := mustEvent(t, conn)
	if ev.Kind != EventError || ev.Error.Code != ErrCodeInvalidState {
		t.Fatalf("expected invalid_state error, got %v", ev.Error)
	}
	if f.messages.count() != 0 {
		t.Fatal("rejected message must not be persisted")
	}
}

func TestChatMessageContentLimits(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	f.membership.add(10, 1)
	conn := NewConn("c1")
	f.authenticate(t, conn, 1)
	f.join(t, conn, 10)

	f.engine.Handle(ctx, conn, Inbound{Kind: InboundChatMessage, Content: ""})
	ev := mustEvent(t, conn)
	if ev.Kind != EventError || ev.Error.Code != ErrCodeMalformedEvent {
		t.Fatalf("expected malformed_event for empty content, got %v", ev.Error)
	}

	f.engine.Handle(ctx, conn, Inbound{Kind: InboundChatMessage, Content: strings.Repeat("x", maxMessageRunes+1)})
	ev = mustEvent(t, conn)
	if ev.Kind != EventError || ev.Error.Code != ErrCodeMalformedEvent {
		t.Fatalf("expected malformed_event for oversized content, got %v", ev.Error)
	}

	if f.messages.count() != 0 {
		t.Fatal("rejected content must not be persisted")
	}
}

func TestChatMessagePersistenceFailureAbortsBroadcast(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	f.membership.add(10, 1)
	f.membership.add(10, 2)

	sender := NewConn("c1")
	other := NewConn("c2")
	f.authenticate(t, sender, 1)
	f.authenticate(t, other, 2)
	f.join(t, sender, 10)
	f.join(t, other, 10)
	mustEvent(t, sender) // other's user_joined

	f.messages.failAppend = true
	f.engine.Handle(ctx, sender, Inbound{Kind: InboundChatMessage, Content: "doomed"})

	ev := mustEvent(t, sender)
	if ev.Kind != EventError || ev.Error.Code != ErrCodePersistenceFailure {
		t.Fatalf("expected persistence_failure, got %v", ev.Error)
	}
	mustNoEvent(t, other)
}

func TestChatMessageOrderingMatchesAppendOrder(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	f.membership.add(10, 1)
	f.membership.add(10, 2)

	sender := NewConn("c1")
	receiver := NewConn("c2")
	f.authenticate(t, sender, 1)
	f.authenticate(t, receiver, 2)
	f.join(t, sender, 10)
	f.join(t, receiver, 10)
	mustEvent(t, sender) // receiver's user_joined

	const n = 5
	for i := 0; i < n; i++ {
		f.engine.Handle(ctx, sender, Inbound{Kind: InboundChatMessage, Content: fmt.Sprintf("msg-%d", i)})
	}

	var lastID int64
	for i := 0; i < n; i++ {
		ev := mustEvent(t, receiver)
		if ev.Kind != EventNewMessage {
			t.Fatalf("expected new_message, got kind=%d", ev.Kind)
		}
		if ev.Message.Content != fmt.Sprintf("msg-%d", i) {
			t.Fatalf("out of order at %d: %q", i, ev.Message.Content)
		}
		if ev.Message.ID <= lastID {
			t.Fatalf("non-increasing message id: %d after %d", ev.Message.ID, lastID)
		}
		lastID = ev.Message.ID
	}
}

func TestTypingExcludesSenderAndIsNotPersisted(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	f.membership.add(10, 1)
	f.membership.add(10, 2)

	sender := NewConn("c1")
	other := NewConn("c2")
	f.authenticate(t, sender, 1)
	f.authenticate(t, other, 2)
	f.join(t, sender, 10)
	f.join(t, other, 10)
	mustEvent(t, sender) // other's user_joined

	f.engine.Handle(ctx, sender, Inbound{Kind: InboundTyping})

	ev := mustEvent(t, other)
	if ev.Kind != EventUserTyping || ev.User.ID != 1 {
		t.Fatalf("expected user_typing from user 1, got kind=%d user=%+v", ev.Kind, ev.User)
	}
	mustNoEvent(t, sender)
	if f.messages.count() != 0 {
		t.Fatal("typing must never be persisted")
	}
}

func TestShareFileBroadcastsMetadata(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	f.membership.add(10, 1)
	f.membership.add(10, 2)

	sender := NewConn("c1")
	other := NewConn("c2")
	f.authenticate(t, sender, 1)
	f.authenticate(t, other, 2)
	f.join(t, sender, 10)
	f.join(t, other, 10)
	mustEvent(t, sender) // other's user_joined

	f.engine.Handle(ctx, sender, Inbound{Kind: InboundShareFile, File: &FileMeta{
		ID:           7,
		OriginalName: "report.pdf",
		Filename:     "abc123.pdf",
		Size:         1024,
	}})

	for _, conn := range []*Conn{sender, other} {
		ev := mustEvent(t, conn)
		if ev.Kind != EventNewFile {
			t.Fatalf("expected new_file, got kind=%d error=%v", ev.Kind, ev.Error)
		}
		if ev.File.OriginalName != "report.pdf" || ev.File.ID != 7 {
			t.Fatalf("unexpected file payload: %+v", ev.File)
		}
	}
}

func TestShareFileRequiresMetadata(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	f.membership.add(10, 1)
	conn := NewConn("c1")
	f.authenticate(t, conn, 1)
	f.join(t, conn, 10)

	f.engine.Handle(ctx, conn, Inbound{Kind: InboundShareFile})

	ev := mustEvent(t, conn)
	if ev.Kind != EventError || ev.Error.Code != ErrCodeMalformedEvent {
		t.Fatalf("expected malformed_event, got %v", ev.Error)
	}
}

func TestDeliveryToClosedConnectionDisconnectsIt(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	f.membership.add(10, 1)
	f.membership.add(10, 2)

	sender := NewConn("c1")
	gone := NewConn("c2")
	f.authenticate(t, sender, 1)
	f.authenticate(t, gone, 2)
	f.join(t, sender, 10)
	f.join(t, gone, 10)
	mustEvent(t, sender) // gone's user_joined

	// Simulate the transport dying without a disconnect.
	gone.Close()

	f.engine.Handle(ctx, sender, Inbound{Kind: InboundChatMessage, Content: "anyone here"})

	ev := mustEvent(t, sender)
	if ev.Kind != EventNewMessage {
		t.Fatalf("expected new_message for sender, got kind=%d", ev.Kind)
	}

	// The failed delivery ran the disconnect transition for the dead conn.
	if f.engine.Registry().Len() != 1 {
		t.Fatalf("expected dead connection pruned, registry has %d", f.engine.Registry().Len())
	}
	if f.identity.isOnline(2) {
		t.Fatal("dead connection's user still online")
	}
}

func TestSlowConsumerIsSkippedNotDisconnected(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	f.membership.add(10, 1)
	f.membership.add(10, 2)

	sender := NewConn("c1")
	slow := NewConn("c2")
	f.authenticate(t, sender, 1)
	f.authenticate(t, slow, 2)
	f.join(t, sender, 10)
	f.join(t, slow, 10)
	mustEvent(t, sender) // slow's user_joined

	// Saturate the slow consumer's buffer without draining it.
	for i := 0; i < sendBuffer+5; i++ {
		f.engine.Handle(ctx, sender, Inbound{Kind: InboundChatMessage, Content: fmt.Sprintf("flood-%d", i)})
	}

	// Still registered and still online: buffer overflow is not a disconnect.
	if f.engine.Registry().Len() != 2 {
		t.Fatalf("expected both connections registered, got %d", f.engine.Registry().Len())
	}
	if !f.identity.isOnline(2) {
		t.Fatal("slow consumer flipped offline")
	}
	// Every message was still persisted.
	if f.messages.count() != sendBuffer+5 {
		t.Fatalf("expected %d persisted messages, got %d", sendBuffer+5, f.messages.count())
	}
}

func BenchmarkBroadcastFanOut(b *testing.B) {
	identity := newFakeIdentity(UserInfo{ID: 1, Name: "alice"})
	for i := int64(2); i <= 100; i++ {
		identity.users[i] = UserInfo{ID: i, Name: fmt.Sprintf("user-%d", i)}
	}
	messages := newFakeMessageLog()
	membership := newFakeMembership()
	logger := zerolog.New(nil)
	engine := NewEngine(NewRegistry(), identity, messages, membership, &logger)

	ctx := context.Background()
	conns := make([]*Conn, 0, 100)
	for i := int64(1); i <= 100; i++ {
		membership.add(10, i)
		conn := NewConn(fmt.Sprintf("c%d", i))
		engine.Handle(ctx, conn, Inbound{Kind: InboundAuthenticate, UserID: i})
		engine.Handle(ctx, conn, Inbound{Kind: InboundJoinRoom, RoomID: 10})
		conns = append(conns, conn)
	}

	// Drain in the background so buffers never fill.
	for _, conn := range conns {
		go func(c *Conn) {
			for range c.Events() {
			}
		}(conn)
	}

	sender := conns[0]
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Handle(ctx, sender, Inbound{Kind: InboundChatMessage, Content: "bench"})
	}
}
