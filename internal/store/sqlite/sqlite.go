package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/migchat-gateway/internal/store"
)

//go:embed schema.sql
var schema string

const dsnParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema or seed rows.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection; it also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate applies the embedded schema. It is idempotent.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser inserts a user.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *store.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Status == "" {
		u.Status = store.StatusOffline
	}
	if u.Role == "" {
		u.Role = store.RoleUser
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO users (id, username, name, avatar, status, role, credits, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Username, u.Name, u.Avatar, u.Status, u.Role, u.Credits, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	query := `
		SELECT id, username, name, avatar, status, role, credits, created_at
		FROM users
		WHERE id = ?
	`
	var u store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID,
		&u.Username,
		&u.Name,
		&u.Avatar,
		&u.Status,
		&u.Role,
		&u.Credits,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &u, nil
}

// UpdateUserStatus sets the persisted presence of a user.
func (s *SQLiteStore) UpdateUserStatus(ctx context.Context, id string, status store.UserStatus) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	return requireAffected(result, "user", id)
}

// ResetPresence marks every online user offline.
func (s *SQLiteStore) ResetPresence(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET status = ? WHERE status = ?`, store.StatusOffline, store.StatusOnline)
	if err != nil {
		return 0, fmt.Errorf("reset presence: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// ==== FriendStore implementation ====

// AddFriendship links two users in both directions.
func (s *SQLiteStore) AddFriendship(ctx context.Context, userID, friendID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT OR IGNORE INTO friendships (user_id, friend_id) VALUES (?, ?)`
	if _, err := tx.ExecContext(ctx, query, userID, friendID); err != nil {
		return fmt.Errorf("insert friendship: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, friendID, userID); err != nil {
		return fmt.Errorf("insert reverse friendship: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// RemoveFriendship unlinks two users in both directions.
func (s *SQLiteStore) RemoveFriendship(ctx context.Context, userID, friendID string) error {
	query := `
		DELETE FROM friendships
		WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)
	`
	if _, err := s.db.ExecContext(ctx, query, userID, friendID, friendID, userID); err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}
	return nil
}

// GetFriendIDs lists the ids of a user's friends.
func (s *SQLiteStore) GetFriendIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT friend_id FROM friendships WHERE user_id = ? ORDER BY friend_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query friends: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friends: %w", err)
	}

	return ids, nil
}

// ==== ChatroomStore implementation ====

// CreateChatroom inserts a chatroom.
func (s *SQLiteStore) CreateChatroom(ctx context.Context, room *store.Chatroom) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.Type == "" {
		room.Type = store.ChatroomPublic
	}
	if room.MaxMembers == 0 {
		room.MaxMembers = 100
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO chatrooms (id, name, description, type, owner_id, max_members, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		room.ID, room.Name, room.Description, room.Type, room.OwnerID,
		room.MaxMembers, room.IsActive, room.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert chatroom: %w", err)
	}
	return nil
}

// GetChatroomByID retrieves a chatroom by ID.
func (s *SQLiteStore) GetChatroomByID(ctx context.Context, id string) (*store.Chatroom, error) {
	query := `
		SELECT id, name, description, type, owner_id, max_members, is_active, created_at
		FROM chatrooms
		WHERE id = ?
	`
	var room store.Chatroom
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&room.ID,
		&room.Name,
		&room.Description,
		&room.Type,
		&room.OwnerID,
		&room.MaxMembers,
		&room.IsActive,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("chatroom %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query chatroom: %w", err)
	}

	return &room, nil
}

// ==== GiftStore implementation ====

// CreateGift inserts a gift into the catalogue.
func (s *SQLiteStore) CreateGift(ctx context.Context, g *store.Gift) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}

	query := `
		INSERT INTO gifts (id, name, description, image, price, category, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		g.ID, g.Name, g.Description, g.Image, g.Price, g.Category, g.IsActive)
	if err != nil {
		return fmt.Errorf("insert gift: %w", err)
	}
	return nil
}

// GetGiftByID retrieves a gift by ID.
func (s *SQLiteStore) GetGiftByID(ctx context.Context, id string) (*store.Gift, error) {
	query := `
		SELECT id, name, description, image, price, category, is_active
		FROM gifts
		WHERE id = ?
	`
	var g store.Gift
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&g.ID,
		&g.Name,
		&g.Description,
		&g.Image,
		&g.Price,
		&g.Category,
		&g.IsActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("gift %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query gift: %w", err)
	}

	return &g, nil
}

// ==== MessageStore implementation ====

// CreateMessage persists a message.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *store.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Type == "" {
		msg.Type = store.MessageTypeText
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (id, sender_id, receiver_id, chatroom_id, content, type, gift_id, is_private, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.SenderID,
		nullable(msg.ReceiverID),
		nullable(msg.ChatroomID),
		msg.Content,
		msg.Type,
		nullable(msg.GiftID),
		msg.IsPrivate,
		msg.Read,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// HydrateMessage joins sender, receiver and gift display fields.
func (s *SQLiteStore) HydrateMessage(ctx context.Context, msg *store.Message) (*store.HydratedMessage, error) {
	return store.Hydrate(ctx, s, msg)
}

// GetMessageByID retrieves a message by ID.
func (s *SQLiteStore) GetMessageByID(ctx context.Context, id string) (*store.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, chatroom_id, content, type, gift_id, is_private, is_read, created_at
		FROM messages
		WHERE id = ?
	`
	msg, err := scanMessage(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	return msg, nil
}

// MarkMessageRead flags a message as read.
func (s *SQLiteStore) MarkMessageRead(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE messages SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	return requireAffected(result, "message", id)
}

// ListPrivateMessages returns private messages between two users, oldest first.
func (s *SQLiteStore) ListPrivateMessages(ctx context.Context, userID, otherID string, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	// Take the newest `limit` rows, then flip them back to chronological order.
	query := `
		SELECT id, sender_id, receiver_id, chatroom_id, content, type, gift_id, is_private, is_read, created_at
		FROM (
			SELECT *, rowid AS seq FROM messages
			WHERE is_private = 1
			  AND ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))
			ORDER BY created_at DESC, seq DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, otherID, otherID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query private messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// ListChatroomMessages returns room messages, oldest first.
func (s *SQLiteStore) ListChatroomMessages(ctx context.Context, chatroomID string, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, sender_id, receiver_id, chatroom_id, content, type, gift_id, is_private, is_read, created_at
		FROM (
			SELECT *, rowid AS seq FROM messages
			WHERE is_private = 0 AND chatroom_id = ?
			ORDER BY created_at DESC, seq DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, chatroomID, limit)
	if err != nil {
		return nil, fmt.Errorf("query chatroom messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var (
		msg        store.Message
		receiverID sql.NullString
		chatroomID sql.NullString
		giftID     sql.NullString
	)
	err := row.Scan(
		&msg.ID,
		&msg.SenderID,
		&receiverID,
		&chatroomID,
		&msg.Content,
		&msg.Type,
		&giftID,
		&msg.IsPrivate,
		&msg.Read,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	msg.ReceiverID = receiverID.String
	msg.ChatroomID = chatroomID.String
	msg.GiftID = giftID.String
	return &msg, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireAffected(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return nil
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
