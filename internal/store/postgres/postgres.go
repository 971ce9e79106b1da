// Package postgres implements store.Store on PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vovakirdan/migchat-gateway/internal/store"
)

//go:embed schema.sql
var schema string

// PostgresStore implements store.Store for PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*PostgresStore)(nil)

// New connects to dsn, applies the schema and pings the server.
func New(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies the embedded schema. It is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// ==== UserStore implementation ====

func (s *PostgresStore) CreateUser(ctx context.Context, u *store.User) error {
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

	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, name, avatar, status, role, credits, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Username, u.Name, u.Avatar, string(u.Status), string(u.Role), u.Credits, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	var (
		u            store.User
		status, role string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, name, avatar, status, role, credits, created_at
		FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.Name, &u.Avatar, &status, &role, &u.Credits, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.Status = store.UserStatus(status)
	u.Role = store.UserRole(role)
	return &u, nil
}

func (s *PostgresStore) UpdateUserStatus(ctx context.Context, id string, status store.UserStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	return requireAffected(tag, "user", id)
}

func (s *PostgresStore) ResetPresence(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET status = $1 WHERE status = $2`,
		string(store.StatusOffline), string(store.StatusOnline))
	if err != nil {
		return 0, fmt.Errorf("reset presence: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ==== FriendStore implementation ====

func (s *PostgresStore) AddFriendship(ctx context.Context, userID, friendID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO friendships (user_id, friend_id)
		VALUES ($1, $2), ($2, $1)
		ON CONFLICT DO NOTHING`, userID, friendID)
	if err != nil {
		return fmt.Errorf("insert friendship: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveFriendship(ctx context.Context, userID, friendID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM friendships
		WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)`, userID, friendID)
	if err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetFriendIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT friend_id FROM friendships WHERE user_id = $1 ORDER BY friend_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query friends: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect friends: %w", err)
	}
	return ids, nil
}

// ==== ChatroomStore implementation ====

func (s *PostgresStore) CreateChatroom(ctx context.Context, room *store.Chatroom) error {
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

	_, err := s.pool.Exec(ctx, `
		INSERT INTO chatrooms (id, name, description, type, owner_id, max_members, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		room.ID, room.Name, room.Description, string(room.Type), room.OwnerID,
		room.MaxMembers, room.IsActive, room.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert chatroom: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetChatroomByID(ctx context.Context, id string) (*store.Chatroom, error) {
	var (
		room     store.Chatroom
		roomType string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, description, type, owner_id, max_members, is_active, created_at
		FROM chatrooms WHERE id = $1`, id).
		Scan(&room.ID, &room.Name, &room.Description, &roomType, &room.OwnerID,
			&room.MaxMembers, &room.IsActive, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("chatroom %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query chatroom: %w", err)
	}
	room.Type = store.ChatroomType(roomType)
	return &room, nil
}

// ==== GiftStore implementation ====

func (s *PostgresStore) CreateGift(ctx context.Context, g *store.Gift) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO gifts (id, name, description, image, price, category, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		g.ID, g.Name, g.Description, g.Image, g.Price, g.Category, g.IsActive)
	if err != nil {
		return fmt.Errorf("insert gift: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetGiftByID(ctx context.Context, id string) (*store.Gift, error) {
	var g store.Gift
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, description, image, price, category, is_active
		FROM gifts WHERE id = $1`, id).
		Scan(&g.ID, &g.Name, &g.Description, &g.Image, &g.Price, &g.Category, &g.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("gift %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query gift: %w", err)
	}
	return &g, nil
}

// ==== MessageStore implementation ====

const messageColumns = `id, sender_id, receiver_id, chatroom_id, content, type, gift_id, is_private, is_read, created_at`

func (s *PostgresStore) CreateMessage(ctx context.Context, msg *store.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Type == "" {
		msg.Type = store.MessageTypeText
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		msg.ID, msg.SenderID, nullable(msg.ReceiverID), nullable(msg.ChatroomID),
		msg.Content, string(msg.Type), nullable(msg.GiftID), msg.IsPrivate, msg.Read, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// HydrateMessage resolves display fields in a single round trip.
func (s *PostgresStore) HydrateMessage(ctx context.Context, msg *store.Message) (*store.HydratedMessage, error) {
	out := store.HydratedMessage{Message: *msg}
	var (
		rID, rUsername, rName, rAvatar              pgtype.Text
		gID, gName, gDescription, gImage, gCategory pgtype.Text
		gPrice                                      pgtype.Int8
		gActive                                     pgtype.Bool
	)
	err := s.pool.QueryRow(ctx, `
		SELECT su.id, su.username, su.name, su.avatar,
		       ru.id, ru.username, ru.name, ru.avatar,
		       g.id, g.name, g.description, g.image, g.price, g.category, g.is_active
		FROM users su
		LEFT JOIN users ru ON ru.id = $2
		LEFT JOIN gifts g ON g.id = $3
		WHERE su.id = $1`, msg.SenderID, nullable(msg.ReceiverID), nullable(msg.GiftID)).
		Scan(&out.Sender.ID, &out.Sender.Username, &out.Sender.Name, &out.Sender.Avatar,
			&rID, &rUsername, &rName, &rAvatar,
			&gID, &gName, &gDescription, &gImage, &gPrice, &gCategory, &gActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("hydrate sender: user %s: %w", msg.SenderID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("hydrate message: %w", err)
	}

	if msg.ReceiverID != "" {
		if !rID.Valid {
			return nil, fmt.Errorf("hydrate receiver: user %s: %w", msg.ReceiverID, store.ErrNotFound)
		}
		out.Receiver = &store.UserSummary{ID: rID.String, Username: rUsername.String, Name: rName.String, Avatar: rAvatar.String}
	}
	if msg.GiftID != "" {
		if !gID.Valid {
			return nil, fmt.Errorf("hydrate gift: gift %s: %w", msg.GiftID, store.ErrNotFound)
		}
		out.Gift = &store.Gift{
			ID:          gID.String,
			Name:        gName.String,
			Description: gDescription.String,
			Image:       gImage.String,
			Price:       gPrice.Int64,
			Category:    gCategory.String,
			IsActive:    gActive.Bool,
		}
	}
	return &out, nil
}

func (s *PostgresStore) GetMessageByID(ctx context.Context, id string) (*store.Message, error) {
	msg, err := scanMessage(s.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("message %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	return msg, nil
}

func (s *PostgresStore) MarkMessageRead(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE messages SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	return requireAffected(tag, "message", id)
}

func (s *PostgresStore) ListPrivateMessages(ctx context.Context, userID, otherID string, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM (
			SELECT * FROM messages
			WHERE is_private
			  AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
			ORDER BY created_at DESC, seq DESC
			LIMIT $3
		) recent
		ORDER BY created_at ASC, seq ASC`, userID, otherID, limit)
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
func (s *PostgresStore) ListChatroomMessages(ctx context.Context, chatroomID string, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM (
			SELECT * FROM messages
			WHERE NOT is_private AND chatroom_id = $1
			ORDER BY created_at DESC, seq DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, seq ASC`, chatroomID, limit)
	if err != nil {
		return nil, fmt.Errorf("query chatroom messages: %w", err)
	}
	defer rows.Close()

	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*store.Message, error) {
		return scanMessage(row)
	})
	if err != nil {
		return nil, fmt.Errorf("collect chatroom messages: %w", err)
	}
	return messages, nil
}

func scanMessage(row pgx.Row) (*store.Message, error) {
	var (
		msg                          store.Message
		msgType                      string
		receiverID, chatroomID, gift pgtype.Text
	)
	err := row.Scan(&msg.ID, &msg.SenderID, &receiverID, &chatroomID, &msg.Content,
		&msgType, &gift, &msg.IsPrivate, &msg.Read, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	msg.Type = store.MessageType(msgType)
	msg.ReceiverID = receiverID.String
	msg.ChatroomID = chatroomID.String
	msg.GiftID = gift.String
	return &msg, nil
}

func nullable(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func requireAffected(tag pgconn.CommandTag, kind, id string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return nil
}
