package core

import (
	"context"
	"time"

	"github.com/vovakirdan/migchat-gateway/internal/store"
)

// Topics published on the optional event bus.
const (
	TopicMessageCreated  = "message.created"
	TopicPresenceOnline  = "presence.online"
	TopicPresenceOffline = "presence.offline"
)

// Publisher exports core notifications to other processes. Failures are
// logged by the caller and never affect delivery.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) error { return nil }

// PresenceNotice is published when a user goes online or offline.
type PresenceNotice struct {
	UserID string           `json:"userId"`
	Status store.UserStatus `json:"status"`
	At     time.Time        `json:"at"`
}

// MessageNotice is published once a message has been persisted.
type MessageNotice struct {
	ID         string            `json:"id"`
	SenderID   string            `json:"senderId"`
	ReceiverID string            `json:"receiverId,omitempty"`
	ChatroomID string            `json:"chatroomId,omitempty"`
	Type       store.MessageType `json:"type"`
	GiftID     string            `json:"giftId,omitempty"`
	IsPrivate  bool              `json:"isPrivate"`
	CreatedAt  time.Time         `json:"createdAt"`
}

func noticeFromMessage(m *store.Message) MessageNotice {
	return MessageNotice{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		ChatroomID: m.ChatroomID,
		Type:       m.Type,
		GiftID:     m.GiftID,
		IsPrivate:  m.IsPrivate,
		CreatedAt:  m.CreatedAt,
	}
}
