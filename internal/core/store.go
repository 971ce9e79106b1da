package core

import (
	"context"

	"github.com/vovakirdan/migchat-gateway/internal/store"
)

// Store is what the realtime core needs from persistence. store.Store
// satisfies it; tests substitute an in-memory fake.
type Store interface {
	GetUserByID(ctx context.Context, id string) (*store.User, error)
	GetFriendIDs(ctx context.Context, userID string) ([]string, error)
	UpdateUserStatus(ctx context.Context, id string, status store.UserStatus) error
	ResetPresence(ctx context.Context) (int64, error)

	GetChatroomByID(ctx context.Context, id string) (*store.Chatroom, error)
	GetGiftByID(ctx context.Context, id string) (*store.Gift, error)

	CreateMessage(ctx context.Context, msg *store.Message) error
	HydrateMessage(ctx context.Context, msg *store.Message) (*store.HydratedMessage, error)
}
