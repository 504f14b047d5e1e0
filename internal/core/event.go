package core

import "time"

// InboundKind describes what the client wants to do. The set is closed:
// adding a kind without handling it in the engine dispatch is a bug, not a
// silently ignored event.
type InboundKind int

const (
	// InboundAuthenticate binds the connection to a user and marks them online.
	InboundAuthenticate InboundKind = iota
	// InboundJoinRoom tags the connection with a room.
	InboundJoinRoom
	// InboundChatMessage persists and fans out a chat message to the room.
	InboundChatMessage
	// InboundTyping fans out a transient typing notice, never persisted.
	InboundTyping
	// InboundShareFile fans out uploaded-file metadata to the room.
	InboundShareFile
)

// Inbound is a decoded client event handed to the engine.
type Inbound struct {
	Kind    InboundKind
	UserID  int64 // authenticate only
	RoomID  int64
	Content string
	File    *FileMeta
}

// FileMeta describes a shared file as carried on the wire.
type FileMeta struct {
	ID           int64
	OriginalName string
	Filename     string
	Size         int64
	DownloadURL  string
}

// EventKind is a notification the core emits to connections.
type EventKind int

const (
	// EventConnected confirms a successful authenticate.
	EventConnected EventKind = iota
	// EventHistory delivers message history to a connection upon joining a room.
	EventHistory
	// EventNewMessage notifies room members about a persisted chat message.
	EventNewMessage
	// EventUserTyping notifies room members that a user is typing.
	EventUserTyping
	// EventNewFile notifies room members about a shared file.
	EventNewFile
	// EventUserJoined notifies room members about a user joining.
	EventUserJoined
	// EventUserLeft notifies room members about a user leaving.
	EventUserLeft
	// EventError reports a protocol-level error to the originating connection.
	EventError
)

// UserInfo is the display identity attached to outbound events.
type UserInfo struct {
	ID     int64
	Name   string
	Avatar string
	Online bool
}

// ChatMessage is the domain model for a chat message as broadcast to rooms.
type ChatMessage struct {
	ID         int64
	RoomID     int64
	UserID     int64
	UserName   string
	UserAvatar string
	Content    string
	Type       string
	FileID     *int64
	CreatedAt  time.Time
}

// Event is sent to connections to describe what happened in the system.
type Event struct {
	Kind     EventKind
	RoomID   int64
	User     UserInfo
	Message  *ChatMessage
	Messages []ChatMessage // EventHistory
	File     *FileMeta     // EventNewFile
	Error    *CoreError    // EventError
}
