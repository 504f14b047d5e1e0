package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fileflow/fileflow-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	avatar        TEXT NOT NULL DEFAULT '',
	online        BOOLEAN NOT NULL DEFAULT 0,
	last_seen     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rooms (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	owner_id    INTEGER NOT NULL,
	is_active   BOOLEAN NOT NULL DEFAULT 1,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (owner_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS room_members (
	room_id   INTEGER NOT NULL,
	user_id   INTEGER NOT NULL,
	is_admin  BOOLEAN NOT NULL DEFAULT 0,
	joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (room_id, user_id),
	FOREIGN KEY (room_id) REFERENCES rooms(id),
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS messages (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id      INTEGER NOT NULL,
	user_id      INTEGER NOT NULL,
	content      TEXT NOT NULL,
	message_type TEXT NOT NULL DEFAULT 'text',
	file_id      INTEGER,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (room_id) REFERENCES rooms(id),
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS files (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	filename       TEXT NOT NULL,
	original_name  TEXT NOT NULL,
	size           INTEGER NOT NULL,
	mimetype       TEXT NOT NULL DEFAULT '',
	file_path      TEXT NOT NULL,
	user_id        INTEGER NOT NULL,
	room_id        INTEGER,
	download_count INTEGER NOT NULL DEFAULT 0,
	upload_date    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (user_id) REFERENCES users(id),
	FOREIGN KEY (room_id) REFERENCES rooms(id)
);

CREATE TABLE IF NOT EXISTS friendships (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    INTEGER NOT NULL,
	friend_id  INTEGER NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (user_id, friend_id),
	FOREIGN KEY (user_id) REFERENCES users(id),
	FOREIGN KEY (friend_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS notifications (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    INTEGER NOT NULL,
	type       TEXT NOT NULL,
	content    TEXT NOT NULL,
	ref_id     INTEGER,
	read       BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, id DESC);
CREATE INDEX IF NOT EXISTS idx_room_members_user ON room_members(user_id);
CREATE INDEX IF NOT EXISTS idx_files_room ON files(room_id);
CREATE INDEX IF NOT EXISTS idx_files_user ON files(user_id);
CREATE INDEX IF NOT EXISTS idx_friendships_friend ON friendships(friend_id, status);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, read);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function instead of
// the built-in schema. Useful for tests that need seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

// Ping verifies the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

const userColumns = `id, name, email, password_hash, avatar, online, last_seen, created_at`

func scanUser(row interface{ Scan(...any) error }) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Avatar,
		&user.Online,
		&user.LastSeen,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, name, email, passwordHash, avatar string) (*store.User, error) {
	query := `
		INSERT INTO users (name, email, password_hash, avatar)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, name, email, passwordHash, avatar)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return scanUser(s.db.QueryRowContext(ctx, query, email))
}

// UpdateUserName updates the user's display name.
func (s *SQLiteStore) UpdateUserName(ctx context.Context, id int64, name string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("update user name: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user: %w", store.ErrNotFound)
	}
	return nil
}

// SetOnlineStatus flips the presence flag and refreshes last_seen.
func (s *SQLiteStore) SetOnlineStatus(ctx context.Context, id int64, online bool) error {
	query := `UPDATE users SET online = ?, last_seen = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, query, online, id); err != nil {
		return fmt.Errorf("set online status: %w", err)
	}
	return nil
}

// SearchUsers searches users by name or email, excluding one user.
func (s *SQLiteStore) SearchUsers(ctx context.Context, query string, excludeID int64) ([]*store.User, error) {
	q := `
		SELECT ` + userColumns + `
		FROM users
		WHERE (name LIKE ? OR email LIKE ?) AND id != ?
		ORDER BY name ASC
		LIMIT 10
	`
	term := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, q, term, term, excludeID)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = ""
		users = append(users, user)
	}
	return users, rows.Err()
}

// ListOnlineUsers lists users currently flagged online.
func (s *SQLiteStore) ListOnlineUsers(ctx context.Context) ([]*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE online = 1 ORDER BY name ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query online users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = ""
		users = append(users, user)
	}
	return users, rows.Err()
}

// ==== RoomStore implementation ====

// CreateRoom creates a room and adds the owner as an admin member.
func (s *SQLiteStore) CreateRoom(ctx context.Context, name, description string, ownerID int64) (*store.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO rooms (name, description, owner_id) VALUES (?, ?, ?)`,
		name, description, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	roomID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO room_members (room_id, user_id, is_admin) VALUES (?, ?, 1)`,
		roomID, ownerID,
	); err != nil {
		return nil, fmt.Errorf("add owner member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.GetRoomByID(ctx, roomID)
}

// GetRoomByID retrieves a room by ID.
func (s *SQLiteStore) GetRoomByID(ctx context.Context, id int64) (*store.Room, error) {
	query := `
		SELECT id, name, description, owner_id, is_active, created_at
		FROM rooms
		WHERE id = ?
	`
	var room store.Room
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&room.ID,
		&room.Name,
		&room.Description,
		&room.OwnerID,
		&room.IsActive,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	return &room, nil
}

// ListUserRooms lists rooms the user is a member of, with member counts.
func (s *SQLiteStore) ListUserRooms(ctx context.Context, userID int64) ([]*store.Room, error) {
	query := `
		SELECT r.id, r.name, r.description, r.owner_id, r.is_active, r.created_at,
			(SELECT COUNT(*) FROM room_members WHERE room_id = r.id) AS member_count
		FROM rooms r
		JOIN room_members rm ON r.id = rm.room_id
		WHERE rm.user_id = ?
		ORDER BY r.is_active DESC, r.created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*store.Room
	for rows.Next() {
		var room store.Room
		if err := rows.Scan(
			&room.ID,
			&room.Name,
			&room.Description,
			&room.OwnerID,
			&room.IsActive,
			&room.CreatedAt,
			&room.MemberCount,
		); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, &room)
	}
	return rooms, rows.Err()
}

// AddMember adds a user to a room. Idempotent.
func (s *SQLiteStore) AddMember(ctx context.Context, roomID, userID int64, isAdmin bool) error {
	query := `
		INSERT OR IGNORE INTO room_members (room_id, user_id, is_admin)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, userID, isAdmin); err != nil {
		return fmt.Errorf("insert room member: %w", err)
	}
	return nil
}

// RemoveMember removes a user from a room.
func (s *SQLiteStore) RemoveMember(ctx context.Context, roomID, userID int64) error {
	query := `DELETE FROM room_members WHERE room_id = ? AND user_id = ?`
	if _, err := s.db.ExecContext(ctx, query, roomID, userID); err != nil {
		return fmt.Errorf("delete room member: %w", err)
	}
	return nil
}

// IsMember checks if user is a member of the room.
func (s *SQLiteStore) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	query := `SELECT 1 FROM room_members WHERE room_id = ? AND user_id = ?`
	var exists int
	err := s.db.QueryRowContext(ctx, query, roomID, userID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query membership: %w", err)
	}
	return true, nil
}

// ListMembers lists room members joined with their user records.
func (s *SQLiteStore) ListMembers(ctx context.Context, roomID int64) ([]*store.RoomMemberInfo, error) {
	query := `
		SELECT u.id, u.name, u.email, u.password_hash, u.avatar, u.online, u.last_seen, u.created_at,
			rm.is_admin, rm.joined_at
		FROM room_members rm
		JOIN users u ON rm.user_id = u.id
		WHERE rm.room_id = ?
		ORDER BY rm.is_admin DESC, u.online DESC, u.name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []*store.RoomMemberInfo
	for rows.Next() {
		var m store.RoomMemberInfo
		if err := rows.Scan(
			&m.ID,
			&m.Name,
			&m.Email,
			&m.PasswordHash,
			&m.Avatar,
			&m.Online,
			&m.LastSeen,
			&m.CreatedAt,
			&m.IsAdmin,
			&m.JoinedAt,
		); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		// Never expose password hashes through member listings.
		m.PasswordHash = ""
		members = append(members, &m)
	}
	return members, rows.Err()
}

// ==== MessageStore implementation ====

// AppendMessage persists a message, assigning its ID and CreatedAt.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *store.Message) error {
	if msg.Type == "" {
		msg.Type = store.MessageTypeText
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (room_id, user_id, content, message_type, file_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		msg.RoomID, msg.UserID, msg.Content, string(msg.Type), msg.FileID, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	msg.ID = id
	return nil
}

// ListRoomMessages returns up to limit recent messages for a room, oldest first.
func (s *SQLiteStore) ListRoomMessages(ctx context.Context, roomID int64, limit int) ([]*store.Message, error) {
	query := `
		SELECT m.id, m.room_id, m.user_id, m.content, m.message_type, m.file_id, m.created_at,
			u.name, u.avatar
		FROM messages m
		JOIN users u ON m.user_id = u.id
		WHERE m.room_id = ?
		ORDER BY m.id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		var msgType string
		var fileID sql.NullInt64
		if err := rows.Scan(
			&msg.ID,
			&msg.RoomID,
			&msg.UserID,
			&msg.Content,
			&msgType,
			&fileID,
			&msg.CreatedAt,
			&msg.UserName,
			&msg.UserAvatar,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Type = store.MessageType(msgType)
		if fileID.Valid {
			msg.FileID = &fileID.Int64
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to get chronological order.
	for i := 0; i < len(messages)/2; i++ {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}
	return messages, nil
}

// ==== FileStore implementation ====

// SaveFile persists file metadata, assigning its ID and UploadedAt.
func (s *SQLiteStore) SaveFile(ctx context.Context, f *store.File) error {
	if f.UploadedAt.IsZero() {
		f.UploadedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO files (filename, original_name, size, mimetype, file_path, user_id, room_id, upload_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		f.Filename, f.OriginalName, f.Size, f.Mimetype, f.Path, f.UserID, f.RoomID, f.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	f.ID = id
	return nil
}

const fileColumns = `id, filename, original_name, size, mimetype, file_path, user_id, room_id, download_count, upload_date`

func scanFile(row interface{ Scan(...any) error }) (*store.File, error) {
	var f store.File
	var roomID sql.NullInt64
	err := row.Scan(
		&f.ID,
		&f.Filename,
		&f.OriginalName,
		&f.Size,
		&f.Mimetype,
		&f.Path,
		&f.UserID,
		&roomID,
		&f.DownloadCount,
		&f.UploadedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("file: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("scan file: %w", err)
	}
	if roomID.Valid {
		f.RoomID = &roomID.Int64
	}
	return &f, nil
}

// GetFileByID retrieves file metadata by ID.
func (s *SQLiteStore) GetFileByID(ctx context.Context, id int64) (*store.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = ?`
	return scanFile(s.db.QueryRowContext(ctx, query, id))
}

// ListUserFiles lists a user's personal files (not attached to a room).
func (s *SQLiteStore) ListUserFiles(ctx context.Context, userID int64) ([]*store.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE user_id = ? AND room_id IS NULL
		ORDER BY upload_date DESC
	`
	return s.queryFiles(ctx, query, userID)
}

// ListRoomFiles lists files shared in a room, newest first.
func (s *SQLiteStore) ListRoomFiles(ctx context.Context, roomID int64) ([]*store.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE room_id = ?
		ORDER BY upload_date DESC
	`
	return s.queryFiles(ctx, query, roomID)
}

func (s *SQLiteStore) queryFiles(ctx context.Context, query string, arg any) ([]*store.File, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var files []*store.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// IncrementDownloadCount bumps the download counter.
func (s *SQLiteStore) IncrementDownloadCount(ctx context.Context, id int64) error {
	query := `UPDATE files SET download_count = download_count + 1 WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("increment download count: %w", err)
	}
	return nil
}

// DeleteFile removes a file metadata row.
func (s *SQLiteStore) DeleteFile(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// ==== FriendStore implementation ====

const friendshipColumns = `id, user_id, friend_id, status, created_at, updated_at`

func scanFriendship(row interface{ Scan(...any) error }) (*store.Friendship, error) {
	var f store.Friendship
	var status string
	err := row.Scan(
		&f.ID,
		&f.UserID,
		&f.FriendID,
		&status,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("friendship: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("scan friendship: %w", err)
	}
	f.Status = store.FriendStatus(status)
	return &f, nil
}

// CreateFriendRequest creates a pending friendship.
func (s *SQLiteStore) CreateFriendRequest(ctx context.Context, userID, friendID int64) (*store.Friendship, error) {
	query := `INSERT INTO friendships (user_id, friend_id, status) VALUES (?, ?, 'pending')`
	result, err := s.db.ExecContext(ctx, query, userID, friendID)
	if err != nil {
		return nil, fmt.Errorf("insert friend request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetFriendshipByID(ctx, id)
}

// GetFriendshipByID retrieves a friendship by its row ID.
func (s *SQLiteStore) GetFriendshipByID(ctx context.Context, id int64) (*store.Friendship, error) {
	query := `SELECT ` + friendshipColumns + ` FROM friendships WHERE id = ?`
	return scanFriendship(s.db.QueryRowContext(ctx, query, id))
}

// GetFriendship retrieves a friendship between two users, either direction.
func (s *SQLiteStore) GetFriendship(ctx context.Context, userID, friendID int64) (*store.Friendship, error) {
	query := `
		SELECT ` + friendshipColumns + `
		FROM friendships
		WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)
	`
	return scanFriendship(s.db.QueryRowContext(ctx, query, userID, friendID, friendID, userID))
}

// UpdateFriendshipStatus updates a friendship's status.
func (s *SQLiteStore) UpdateFriendshipStatus(ctx context.Context, id int64, status store.FriendStatus) error {
	query := `UPDATE friendships SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("update friendship status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("friendship: %w", store.ErrNotFound)
	}
	return nil
}

// DeleteFriendship removes a friendship row.
func (s *SQLiteStore) DeleteFriendship(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM friendships WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}
	return nil
}

// ListFriends lists accepted friends as user records.
func (s *SQLiteStore) ListFriends(ctx context.Context, userID int64) ([]*store.User, error) {
	query := `
		SELECT u.id, u.name, u.email, u.password_hash, u.avatar, u.online, u.last_seen, u.created_at
		FROM friendships f
		JOIN users u ON u.id = CASE WHEN f.user_id = ? THEN f.friend_id ELSE f.user_id END
		WHERE (f.user_id = ? OR f.friend_id = ?) AND f.status = 'accepted'
		ORDER BY u.online DESC, u.name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query friends: %w", err)
	}
	defer rows.Close()

	var friends []*store.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = ""
		friends = append(friends, user)
	}
	return friends, rows.Err()
}

// ListPendingRequests lists pending requests addressed to the user.
func (s *SQLiteStore) ListPendingRequests(ctx context.Context, userID int64) ([]*store.Friendship, error) {
	query := `
		SELECT ` + friendshipColumns + `
		FROM friendships
		WHERE friend_id = ? AND status = 'pending'
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query pending requests: %w", err)
	}
	defer rows.Close()

	var requests []*store.Friendship
	for rows.Next() {
		f, err := scanFriendship(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, f)
	}
	return requests, rows.Err()
}

// ==== NotificationStore implementation ====

// CreateNotification persists a notification, assigning its ID.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n *store.Notification) error {
	query := `INSERT INTO notifications (user_id, type, content, ref_id) VALUES (?, ?, ?, ?)`
	result, err := s.db.ExecContext(ctx, query, n.UserID, n.Type, n.Content, n.RefID)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	n.ID = id
	return nil
}

// ListNotifications lists a user's notifications, newest first.
func (s *SQLiteStore) ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]*store.Notification, error) {
	query := `
		SELECT id, user_id, type, content, ref_id, read, created_at
		FROM notifications
		WHERE user_id = ?
	`
	if unreadOnly {
		query += ` AND read = 0`
	}
	query += ` ORDER BY created_at DESC LIMIT 50`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*store.Notification
	for rows.Next() {
		var n store.Notification
		var refID sql.NullInt64
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Content, &refID, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if refID.Valid {
			n.RefID = &refID.Int64
		}
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead marks one of the user's notifications as read.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id, userID int64) error {
	query := `UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`
	result, err := s.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("notification: %w", store.ErrNotFound)
	}
	return nil
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
