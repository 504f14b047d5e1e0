package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// maxMessageRunes bounds chat message content.
const maxMessageRunes = 2000

// defaultHistoryLimit is how many messages are replayed on join when the
// engine is constructed without an explicit limit.
const defaultHistoryLimit = 50

// Identity resolves user display attributes and owns the presence flag.
type Identity interface {
	FindByID(ctx context.Context, userID int64) (UserInfo, error)
	SetOnlineStatus(ctx context.Context, userID int64, online bool) error
}

// MessageLog is the durable append-only store for chat messages.
type MessageLog interface {
	Append(ctx context.Context, roomID, userID int64, content, msgType string, fileID *int64) (ChatMessage, error)
	ListByRoom(ctx context.Context, roomID int64, limit int) ([]ChatMessage, error)
}

// Membership validates that a user may join a room.
type Membership interface {
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
}

// Engine is the presence and room broadcast state machine. Each connection
// moves Anonymous -> Authenticated -> InRoom; the engine processes inbound
// events against the Registry and fans outbound events to the right subset
// of connections.
//
// Handle may be called concurrently from many connection handlers; the
// Registry serializes all shared-state mutation.
type Engine struct {
	reg        *Registry
	identity   Identity
	messages   MessageLog
	membership Membership
	log        *zerolog.Logger

	historyLimit int

	// ordMu serializes append+publish for chat messages so room broadcasts
	// happen in persistence-completion order. A single mutex across rooms is
	// enough here: the SQLite message log runs on one connection and would
	// serialize the appends anyway.
	ordMu sync.Mutex
}

// EngineOption customizes engine construction.
type EngineOption func(*Engine)

// WithHistoryLimit sets how many messages are replayed on room join.
func WithHistoryLimit(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.historyLimit = n
		}
	}
}

// NewEngine constructs the engine around an injected registry and
// collaborators.
func NewEngine(reg *Registry, identity Identity, messages MessageLog, membership Membership, logger *zerolog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		reg:          reg,
		identity:     identity,
		messages:     messages,
		membership:   membership,
		log:          logger,
		historyLimit: defaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry exposes the engine's registry, mainly for transport-level checks.
func (e *Engine) Registry() *Registry {
	return e.reg
}

// Handle processes one inbound event for conn. Protocol-level failures are
// reported back to conn as error events; they never terminate the connection
// or corrupt registry state for other connections.
func (e *Engine) Handle(ctx context.Context, conn *Conn, in Inbound) {
	switch in.Kind {
	case InboundAuthenticate:
		e.handleAuthenticate(ctx, conn, in)
	case InboundJoinRoom:
		e.handleJoinRoom(ctx, conn, in)
	case InboundChatMessage:
		e.handleChatMessage(ctx, conn, in)
	case InboundTyping:
		e.handleTyping(ctx, conn, in)
	case InboundShareFile:
		e.handleShareFile(ctx, conn, in)
	default:
		e.sendError(conn, ErrCodeMalformedEvent, "unknown event kind")
	}
}

// Disconnect runs the terminal transition for conn. It must be safe to call
// more than once per connection: transports can signal close multiple times,
// and an evicted stale connection must not flip a rebound user offline.
func (e *Engine) Disconnect(ctx context.Context, conn *Conn) {
	userID, wasLive := e.reg.Unbind(conn)
	conn.Close()

	if !wasLive || userID == 0 {
		return
	}

	if err := e.identity.SetOnlineStatus(ctx, userID, false); err != nil {
		e.log.Warn().Err(err).Int64("user_id", userID).Msg("mark user offline")
	}
	e.log.Debug().Int64("user_id", userID).Str("conn_id", conn.ID).Msg("user disconnected")
}

func (e *Engine) handleAuthenticate(ctx context.Context, conn *Conn, in Inbound) {
	if in.UserID == 0 {
		e.sendError(conn, ErrCodeMalformedEvent, "userId is required")
		return
	}

	user, err := e.identity.FindByID(ctx, in.UserID)
	if err != nil {
		e.sendError(conn, ErrCodeUnauthenticated, "unknown user")
		return
	}

	if evicted := e.reg.Bind(conn, in.UserID); evicted != nil {
		// One connection per user: the replaced connection is closed, not
		// left dangling in limbo.
		evicted.Close()
		e.log.Info().Int64("user_id", in.UserID).Str("evicted_conn_id", evicted.ID).Msg("evicted prior connection on re-authenticate")
	}

	if err := e.identity.SetOnlineStatus(ctx, in.UserID, true); err != nil {
		e.log.Warn().Err(err).Int64("user_id", in.UserID).Msg("mark user online")
	}

	user.Online = true
	e.deliver(ctx, conn, Event{Kind: EventConnected, User: user})
	e.log.Debug().Int64("user_id", in.UserID).Str("conn_id", conn.ID).Msg("user authenticated")
}

func (e *Engine) handleJoinRoom(ctx context.Context, conn *Conn, in Inbound) {
	userID, _ := e.reg.State(conn)
	if userID == 0 {
		e.sendError(conn, ErrCodeUnauthenticated, "authenticate before joining a room")
		return
	}
	if in.RoomID == 0 {
		e.sendError(conn, ErrCodeMalformedEvent, "roomId is required")
		return
	}

	ok, err := e.membership.IsMember(ctx, in.RoomID, userID)
	if err != nil {
		e.log.Error().Err(err).Int64("room_id", in.RoomID).Int64("user_id", userID).Msg("membership check failed")
		e.sendError(conn, ErrCodePersistenceFailure, "could not verify membership")
		return
	}
	if !ok {
		e.sendError(conn, ErrCodeUnauthorized, "not a member of this room")
		return
	}

	prevRoom, err := e.reg.SetRoom(userID, in.RoomID)
	if err != nil {
		// The bound connection vanished between the state read and the
		// update; treat like a missing authentication.
		e.sendError(conn, ErrCodeUnauthenticated, "authenticate before joining a room")
		return
	}

	user, uerr := e.identity.FindByID(ctx, userID)
	if uerr != nil {
		user = UserInfo{ID: userID}
	}

	// Switching rooms leaves the previous one.
	if prevRoom != 0 && prevRoom != in.RoomID {
		e.publish(ctx, prevRoom, Event{Kind: EventUserLeft, RoomID: prevRoom, User: user}, 0)
	}

	if prevRoom != in.RoomID {
		history, herr := e.messages.ListByRoom(ctx, in.RoomID, e.historyLimit)
		if herr != nil {
			e.log.Warn().Err(herr).Int64("room_id", in.RoomID).Msg("history replay failed")
		} else {
			e.deliver(ctx, conn, Event{Kind: EventHistory, RoomID: in.RoomID, Messages: history})
		}

		e.publish(ctx, in.RoomID, Event{Kind: EventUserJoined, RoomID: in.RoomID, User: user}, 0)
	}

	e.log.Debug().Int64("user_id", userID).Int64("room_id", in.RoomID).Msg("user joined room")
}

func (e *Engine) handleChatMessage(ctx context.Context, conn *Conn, in Inbound) {
	userID, roomID := e.reg.State(conn)
	if userID == 0 {
		e.sendError(conn, ErrCodeUnauthenticated, "authenticate before sending messages")
		return
	}
	if roomID == 0 {
		e.sendError(conn, ErrCodeInvalidState, "join a room before sending messages")
		return
	}
	if in.Content == "" {
		e.sendError(conn, ErrCodeMalformedEvent, "content is required")
		return
	}
	if utf8.RuneCountInString(in.Content) > maxMessageRunes {
		e.sendError(conn, ErrCodeMalformedEvent, fmt.Sprintf("content exceeds %d characters", maxMessageRunes))
		return
	}

	user, err := e.identity.FindByID(ctx, userID)
	if err != nil {
		user = UserInfo{ID: userID}
	}

	msgType := "text"
	if in.File != nil {
		msgType = "file"
	}
	var fileID *int64
	if in.File != nil && in.File.ID != 0 {
		fileID = &in.File.ID
	}

	// Append-then-broadcast: the message is never fanned out before the log
	// assigned its id and timestamp, so a concurrent history replay can
	// never miss a message a client already saw.
	e.ordMu.Lock()
	msg, err := e.messages.Append(ctx, roomID, userID, in.Content, msgType, fileID)
	if err != nil {
		e.ordMu.Unlock()
		e.log.Error().Err(err).Int64("room_id", roomID).Int64("user_id", userID).Msg("message append failed")
		e.sendError(conn, ErrCodePersistenceFailure, "message could not be saved")
		return
	}
	msg.UserName = user.Name
	msg.UserAvatar = user.Avatar
	e.publish(ctx, roomID, Event{Kind: EventNewMessage, RoomID: roomID, User: user, Message: &msg}, 0)
	e.ordMu.Unlock()
}

func (e *Engine) handleTyping(ctx context.Context, conn *Conn, in Inbound) {
	userID, roomID := e.reg.State(conn)
	if userID == 0 {
		e.sendError(conn, ErrCodeUnauthenticated, "authenticate first")
		return
	}
	if roomID == 0 {
		e.sendError(conn, ErrCodeInvalidState, "join a room first")
		return
	}

	user, err := e.identity.FindByID(ctx, userID)
	if err != nil {
		user = UserInfo{ID: userID}
	}

	// Transient: no persistence, sender excluded.
	e.publish(ctx, roomID, Event{Kind: EventUserTyping, RoomID: roomID, User: user}, userID)
}

func (e *Engine) handleShareFile(ctx context.Context, conn *Conn, in Inbound) {
	userID, roomID := e.reg.State(conn)
	if userID == 0 {
		e.sendError(conn, ErrCodeUnauthenticated, "authenticate first")
		return
	}
	if roomID == 0 {
		e.sendError(conn, ErrCodeInvalidState, "join a room first")
		return
	}
	if in.File == nil || in.File.Filename == "" {
		e.sendError(conn, ErrCodeMalformedEvent, "file metadata is required")
		return
	}

	user, err := e.identity.FindByID(ctx, userID)
	if err != nil {
		user = UserInfo{ID: userID}
	}

	// The file's own metadata was persisted at upload time; the engine only
	// announces it to the room.
	e.publish(ctx, roomID, Event{Kind: EventNewFile, RoomID: roomID, User: user, File: in.File}, 0)
}

// publish fans ev out to every connection tagged with roomID, excluding
// excludeUserID when non-zero. The membership snapshot is taken under the
// registry mutex; the per-recipient sends happen outside it. A failed send
// never aborts delivery to the remaining recipients.
func (e *Engine) publish(ctx context.Context, roomID int64, ev Event, excludeUserID int64) {
	for _, recipient := range e.reg.Snapshot(roomID, excludeUserID) {
		if err := recipient.send(ev); err != nil {
			e.handleDeliveryFailure(ctx, recipient, err)
		}
	}
}

// deliver sends ev to a single connection, applying the same failure
// handling as room fan-out.
func (e *Engine) deliver(ctx context.Context, conn *Conn, ev Event) {
	if err := conn.send(ev); err != nil {
		e.handleDeliveryFailure(ctx, conn, err)
	}
}

func (e *Engine) handleDeliveryFailure(ctx context.Context, conn *Conn, err error) {
	if errors.Is(err, ErrConnClosed) {
		// The connection is gone; run the disconnect transition so the
		// registry doesn't keep an undeliverable entry.
		e.log.Debug().Str("conn_id", conn.ID).Msg("dropping closed connection from registry")
		e.Disconnect(ctx, conn)
		return
	}
	// Slow consumer: log and skip, assume a transient stall. The recipient
	// stays registered.
	e.log.Warn().Err(err).Str("conn_id", conn.ID).Msg("event delivery failed")
}

func (e *Engine) sendError(conn *Conn, code, msg string) {
	if err := conn.send(Event{Kind: EventError, Error: coreError(code, msg)}); err != nil {
		e.log.Debug().Err(err).Str("conn_id", conn.ID).Msg("error event delivery failed")
	}
}
