package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// User represents a user in the system.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	// Avatar holds the user's initials, rendered client-side.
	Avatar    string
	Online    bool
	LastSeen  time.Time
	CreatedAt time.Time
}

// Room represents a chat room.
type Room struct {
	ID          int64
	Name        string
	Description string
	OwnerID     int64
	IsActive    bool
	CreatedAt   time.Time
	// MemberCount is populated by ListUserRooms only.
	MemberCount int
}

// RoomMember represents room membership with its role flag.
type RoomMember struct {
	RoomID   int64
	UserID   int64
	IsAdmin  bool
	JoinedAt time.Time
}

// RoomMemberInfo joins membership with the member's user record.
type RoomMemberInfo struct {
	User
	IsAdmin  bool
	JoinedAt time.Time
}

// MessageType distinguishes plain text, file references, and system notices.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// Message represents a persisted chat message. Messages are immutable once
// appended; the store never updates or deletes them.
type Message struct {
	ID        int64
	RoomID    int64
	UserID    int64
	Content   string
	Type      MessageType
	FileID    *int64
	CreatedAt time.Time
	// UserName and UserAvatar are joined in by ListRoomMessages.
	UserName   string
	UserAvatar string
}

// File represents metadata for an uploaded file.
type File struct {
	ID            int64
	Filename      string
	OriginalName  string
	Size          int64
	Mimetype      string
	Path          string
	UserID        int64
	RoomID        *int64
	DownloadCount int
	UploadedAt    time.Time
}

// FriendStatus defines friendship state.
type FriendStatus string

const (
	FriendStatusPending  FriendStatus = "pending"
	FriendStatusAccepted FriendStatus = "accepted"
)

// Friendship represents a friend relationship. UserID is the requester.
type Friendship struct {
	ID        int64
	UserID    int64
	FriendID  int64
	Status    FriendStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Notification represents an in-app notification.
type Notification struct {
	ID        int64
	UserID    int64
	Type      string
	Content   string
	RefID     *int64
	Read      bool
	CreatedAt time.Time
}

// UserStore handles user persistence and presence flags.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, name, email, passwordHash, avatar string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// UpdateUserName updates the user's display name.
	UpdateUserName(ctx context.Context, id int64, name string) error

	// SetOnlineStatus flips the presence flag and refreshes last_seen.
	SetOnlineStatus(ctx context.Context, id int64, online bool) error

	// SearchUsers searches users by name or email, excluding one user.
	SearchUsers(ctx context.Context, query string, excludeID int64) ([]*User, error)

	// ListOnlineUsers lists users currently flagged online.
	ListOnlineUsers(ctx context.Context) ([]*User, error)
}

// RoomStore handles room and membership persistence.
type RoomStore interface {
	// CreateRoom creates a room and adds the owner as an admin member.
	CreateRoom(ctx context.Context, name, description string, ownerID int64) (*Room, error)

	// GetRoomByID retrieves a room by ID.
	GetRoomByID(ctx context.Context, id int64) (*Room, error)

	// ListUserRooms lists rooms the user is a member of, with member counts.
	ListUserRooms(ctx context.Context, userID int64) ([]*Room, error)

	// AddMember adds a user to a room. Idempotent.
	AddMember(ctx context.Context, roomID, userID int64, isAdmin bool) error

	// RemoveMember removes a user from a room.
	RemoveMember(ctx context.Context, roomID, userID int64) error

	// IsMember checks if user is a member of the room.
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)

	// ListMembers lists room members joined with their user records.
	ListMembers(ctx context.Context, roomID int64) ([]*RoomMemberInfo, error)
}

// MessageStore is the append-only message log.
type MessageStore interface {
	// AppendMessage persists a message, assigning its ID and CreatedAt.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListRoomMessages returns up to limit recent messages for a room,
	// oldest first, with author name and avatar joined in.
	ListRoomMessages(ctx context.Context, roomID int64, limit int) ([]*Message, error)
}

// FileStore handles uploaded file metadata.
type FileStore interface {
	// SaveFile persists file metadata, assigning its ID and UploadedAt.
	SaveFile(ctx context.Context, f *File) error

	// GetFileByID retrieves file metadata by ID.
	GetFileByID(ctx context.Context, id int64) (*File, error)

	// ListUserFiles lists a user's personal files (not attached to a room).
	ListUserFiles(ctx context.Context, userID int64) ([]*File, error)

	// ListRoomFiles lists files shared in a room, newest first.
	ListRoomFiles(ctx context.Context, roomID int64) ([]*File, error)

	// IncrementDownloadCount bumps the download counter.
	IncrementDownloadCount(ctx context.Context, id int64) error

	// DeleteFile removes a file metadata row.
	DeleteFile(ctx context.Context, id int64) error
}

// FriendStore handles friendship persistence.
type FriendStore interface {
	// CreateFriendRequest creates a pending friendship.
	CreateFriendRequest(ctx context.Context, userID, friendID int64) (*Friendship, error)

	// GetFriendshipByID retrieves a friendship by its row ID.
	GetFriendshipByID(ctx context.Context, id int64) (*Friendship, error)

	// GetFriendship retrieves a friendship between two users, either direction.
	GetFriendship(ctx context.Context, userID, friendID int64) (*Friendship, error)

	// UpdateFriendshipStatus updates a friendship's status.
	UpdateFriendshipStatus(ctx context.Context, id int64, status FriendStatus) error

	// DeleteFriendship removes a friendship row.
	DeleteFriendship(ctx context.Context, id int64) error

	// ListFriends lists accepted friends as user records.
	ListFriends(ctx context.Context, userID int64) ([]*User, error)

	// ListPendingRequests lists pending requests addressed to the user.
	ListPendingRequests(ctx context.Context, userID int64) ([]*Friendship, error)
}

// NotificationStore handles in-app notifications.
type NotificationStore interface {
	// CreateNotification persists a notification, assigning its ID.
	CreateNotification(ctx context.Context, n *Notification) error

	// ListNotifications lists a user's notifications, newest first.
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]*Notification, error)

	// MarkNotificationRead marks one of the user's notifications as read.
	MarkNotificationRead(ctx context.Context, id, userID int64) error
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	MessageStore
	FileStore
	FriendStore
	NotificationStore

	// Ping verifies the underlying database connection.
	Ping(ctx context.Context) error

	// Close closes the underlying database connection.
	Close() error
}
