package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is wrapped by every lookup that finds no row.
var ErrNotFound = errors.New("not found")

// UserStatus is the persisted presence of a user.
type UserStatus string

const (
	StatusOnline  UserStatus = "online"
	StatusOffline UserStatus = "offline"
)

// UserRole defines what a user may do outside the realtime layer.
type UserRole string

const (
	RoleUser      UserRole = "user"
	RoleMerchant  UserRole = "merchant"
	RoleModerator UserRole = "moderator"
	RoleAdmin     UserRole = "admin"
)

// User represents a user account.
type User struct {
	ID        string
	Username  string
	Name      string
	Avatar    string
	Status    UserStatus
	Role      UserRole
	Credits   int64
	CreatedAt time.Time
}

// ChatroomType defines chatroom visibility.
type ChatroomType string

const (
	ChatroomPublic  ChatroomType = "public"
	ChatroomPrivate ChatroomType = "private"
)

// Chatroom represents a persisted chatroom.
type Chatroom struct {
	ID          string
	Name        string
	Description string
	Type        ChatroomType
	OwnerID     string
	MaxMembers  int
	IsActive    bool
	CreatedAt   time.Time
}

// Gift is an item from the gift catalogue that can be attached to a message.
type Gift struct {
	ID          string
	Name        string
	Description string
	Image       string
	Price       int64
	Category    string
	IsActive    bool
}

// MessageType tags message content. Values other than these are media tags
// chosen by clients and stored as-is.
type MessageType string

const (
	MessageTypeText MessageType = "text"
	MessageTypeGift MessageType = "gift"
)

// Message represents a persisted chat message. Exactly one of ReceiverID and
// ChatroomID is set.
type Message struct {
	ID         string
	SenderID   string
	ReceiverID string
	ChatroomID string
	Content    string
	Type       MessageType
	GiftID     string
	IsPrivate  bool
	Read       bool
	CreatedAt  time.Time
}

// UserSummary holds the display fields of a user attached to a message.
type UserSummary struct {
	ID       string
	Username string
	Name     string
	Avatar   string
}

// HydratedMessage is a message joined with sender, receiver and gift display data.
type HydratedMessage struct {
	Message
	Sender   UserSummary
	Receiver *UserSummary
	Gift     *Gift
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser inserts a user. An empty ID is replaced by a generated one.
	CreateUser(ctx context.Context, user *User) error

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// UpdateUserStatus sets the persisted presence of a user.
	UpdateUserStatus(ctx context.Context, id string, status UserStatus) error

	// ResetPresence marks every online user offline and returns how many changed.
	ResetPresence(ctx context.Context) (int64, error)
}

// FriendStore handles the bidirectional friend relation.
type FriendStore interface {
	// AddFriendship links two users in both directions.
	AddFriendship(ctx context.Context, userID, friendID string) error

	// RemoveFriendship unlinks two users in both directions.
	RemoveFriendship(ctx context.Context, userID, friendID string) error

	// GetFriendIDs lists the ids of a user's friends.
	GetFriendIDs(ctx context.Context, userID string) ([]string, error)
}

// ChatroomStore handles chatroom persistence.
type ChatroomStore interface {
	CreateChatroom(ctx context.Context, room *Chatroom) error
	GetChatroomByID(ctx context.Context, id string) (*Chatroom, error)
}

// GiftStore handles the gift catalogue.
type GiftStore interface {
	CreateGift(ctx context.Context, gift *Gift) error
	GetGiftByID(ctx context.Context, id string) (*Gift, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists a message, filling ID and CreatedAt when empty.
	CreateMessage(ctx context.Context, msg *Message) error

	// HydrateMessage joins sender, receiver and gift display fields.
	HydrateMessage(ctx context.Context, msg *Message) (*HydratedMessage, error)

	// GetMessageByID retrieves a message by ID.
	GetMessageByID(ctx context.Context, id string) (*Message, error)

	// MarkMessageRead flags a message as read.
	MarkMessageRead(ctx context.Context, id string) error

	// ListPrivateMessages returns private messages exchanged between two users,
	// oldest first, at most limit entries.
	ListPrivateMessages(ctx context.Context, userID, otherID string, limit int) ([]*Message, error)

	// ListChatroomMessages returns the newest messages of a chatroom, oldest first.
	ListChatroomMessages(ctx context.Context, chatroomID string, limit int) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	FriendStore
	ChatroomStore
	GiftStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
