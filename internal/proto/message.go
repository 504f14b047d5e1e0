package proto

import "encoding/json"

// Inbound is the envelope for events coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeAuthenticate = "authenticate"
	InboundTypeJoinRoom     = "join_room"
	InboundTypeChatMessage  = "chat_message"
	InboundTypeTyping       = "typing"
	InboundTypeShareFile    = "share_file"

	OutboundTypeConnected  = "connected"
	OutboundTypeHistory    = "history"
	OutboundTypeNewMessage = "new_message"
	OutboundTypeUserTyping = "user_typing"
	OutboundTypeNewFile    = "new_file"
	OutboundTypeUserJoined = "user_joined"
	OutboundTypeUserLeft   = "user_left"
	OutboundTypeError      = "error"
)

// AuthenticateData binds the connection to a user. Token is the JWT issued at
// login and is the trusted path; UserID alone is accepted for local tooling.
type AuthenticateData struct {
	UserID int64  `json:"userId,omitempty"`
	Token  string `json:"token,omitempty"`
}

// JoinRoomData requests to tag the connection with a room.
type JoinRoomData struct {
	RoomID int64 `json:"roomId"`
}

// ChatMessageData is a chat message from the client.
type ChatMessageData struct {
	RoomID  int64  `json:"roomId,omitempty"`
	Content string `json:"content"`
}

// TypingData signals that the user is typing.
type TypingData struct {
	RoomID int64 `json:"roomId,omitempty"`
}

// ShareFileData announces an uploaded file to the room.
type ShareFileData struct {
	RoomID int64    `json:"roomId,omitempty"`
	File   FileInfo `json:"file"`
}

// FileInfo describes a shared file on the wire.
type FileInfo struct {
	ID           int64  `json:"id,omitempty"`
	OriginalName string `json:"originalName"`
	Filename     string `json:"filename"`
	Size         int64  `json:"size"`
	DownloadURL  string `json:"downloadUrl,omitempty"`
}

// UserInfo is the display identity attached to outbound events.
type UserInfo struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Online bool   `json:"online"`
}

// MessageInfo is a chat message as delivered to clients.
type MessageInfo struct {
	ID         int64  `json:"id"`
	RoomID     int64  `json:"room_id"`
	UserID     int64  `json:"user_id"`
	Content    string `json:"content"`
	Type       string `json:"message_type"`
	FileID     *int64 `json:"file_id,omitempty"`
	CreatedAt  string `json:"created_at"`
	UserName   string `json:"user_name"`
	UserAvatar string `json:"user_avatar,omitempty"`
}

// Outbound is the envelope for events sent to the client.
type Outbound struct {
	Type     string        `json:"type"`
	RoomID   int64         `json:"roomId,omitempty"`
	User     *UserInfo     `json:"user,omitempty"`
	Message  *MessageInfo  `json:"message,omitempty"`
	Messages []MessageInfo `json:"messages,omitempty"`
	File     *FileInfo     `json:"file,omitempty"`
	Error    *Error        `json:"error,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
