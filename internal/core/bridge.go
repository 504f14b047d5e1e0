package core

import (
	"context"

	"github.com/fileflow/fileflow-server/internal/store"
)

// StoreBridge adapts the persistence layer to the engine's narrow
// collaborator interfaces.
type StoreBridge struct {
	users store.UserStore
	msgs  store.MessageStore
	rooms store.RoomStore
}

// NewStoreBridge builds the bridge over the aggregate store.
func NewStoreBridge(st store.Store) *StoreBridge {
	return &StoreBridge{users: st, msgs: st, rooms: st}
}

// FindByID resolves a user's display identity.
func (b *StoreBridge) FindByID(ctx context.Context, userID int64) (UserInfo, error) {
	user, err := b.users.GetUserByID(ctx, userID)
	if err != nil {
		return UserInfo{}, err
	}
	return UserInfo{
		ID:     user.ID,
		Name:   user.Name,
		Avatar: user.Avatar,
		Online: user.Online,
	}, nil
}

// SetOnlineStatus flips the user's presence flag.
func (b *StoreBridge) SetOnlineStatus(ctx context.Context, userID int64, online bool) error {
	return b.users.SetOnlineStatus(ctx, userID, online)
}

// Append persists a chat message and returns it with assigned id/timestamp.
func (b *StoreBridge) Append(ctx context.Context, roomID, userID int64, content, msgType string, fileID *int64) (ChatMessage, error) {
	msg := &store.Message{
		RoomID:  roomID,
		UserID:  userID,
		Content: content,
		Type:    store.MessageType(msgType),
		FileID:  fileID,
	}
	if err := b.msgs.AppendMessage(ctx, msg); err != nil {
		return ChatMessage{}, err
	}
	return chatMessageFromStore(msg), nil
}

// ListByRoom returns the most recent messages for a room, oldest first.
func (b *StoreBridge) ListByRoom(ctx context.Context, roomID int64, limit int) ([]ChatMessage, error) {
	stored, err := b.msgs.ListRoomMessages(ctx, roomID, limit)
	if err != nil {
		return nil, err
	}
	msgs := make([]ChatMessage, 0, len(stored))
	for _, m := range stored {
		msgs = append(msgs, chatMessageFromStore(m))
	}
	return msgs, nil
}

// IsMember checks room membership.
func (b *StoreBridge) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	return b.rooms.IsMember(ctx, roomID, userID)
}

func chatMessageFromStore(m *store.Message) ChatMessage {
	return ChatMessage{
		ID:         m.ID,
		RoomID:     m.RoomID,
		UserID:     m.UserID,
		UserName:   m.UserName,
		UserAvatar: m.UserAvatar,
		Content:    m.Content,
		Type:       string(m.Type),
		FileID:     m.FileID,
		CreatedAt:  m.CreatedAt,
	}
}

var (
	_ Identity   = (*StoreBridge)(nil)
	_ MessageLog = (*StoreBridge)(nil)
	_ Membership = (*StoreBridge)(nil)
)
