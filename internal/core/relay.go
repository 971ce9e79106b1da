package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/migchat-gateway/internal/store"
)

// Relay persists inbound messages and routes them to a room group or a
// single receiver.
type Relay struct {
	store     Store
	registry  *Registry
	rooms     *Router
	publisher Publisher
	log       *zerolog.Logger
}

// NewRelay wires a message relay.
func NewRelay(st Store, registry *Registry, rooms *Router, publisher Publisher, logger *zerolog.Logger) *Relay {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Relay{
		store:     st,
		registry:  registry,
		rooms:     rooms,
		publisher: publisher,
		log:       logger,
	}
}

// ChatroomMessage persists a room message and broadcasts it to the room
// group, the sender's own connection included when it has joined.
func (r *Relay) ChatroomMessage(ctx context.Context, c *Client, cmd *Command) *CoreError {
	senderID := c.UserID()
	if senderID == "" {
		return coreError(ErrCodeUnauthorized, "announce user-online before sending messages")
	}
	if cmd.ChatroomID == "" {
		return coreError(ErrCodeBadRequest, "chatroomId is required")
	}

	room, err := r.store.GetChatroomByID(ctx, cmd.ChatroomID)
	if err != nil {
		return r.lookupError(err, "chatroom", cmd.ChatroomID)
	}
	if !room.IsActive {
		return coreError(ErrCodeNotFound, "chatroom not found")
	}

	msg := &store.Message{
		SenderID:   senderID,
		ChatroomID: cmd.ChatroomID,
		Content:    cmd.Content,
		Type:       cmd.Type,
		GiftID:     cmd.GiftID,
		IsPrivate:  false,
	}
	hydrated, cerr := r.persist(ctx, msg)
	if cerr != nil {
		return cerr
	}

	delivered := r.rooms.Broadcast(cmd.ChatroomID, &Event{
		Kind:       EventChatroomMessage,
		ChatroomID: cmd.ChatroomID,
		Message:    hydrated,
	}, nil)

	r.log.Debug().
		Str("message_id", msg.ID).
		Str("chatroom_id", cmd.ChatroomID).
		Int("recipients", delivered).
		Msg("chatroom message relayed")
	return nil
}

// PrivateMessage persists a private message, delivers it to the receiver when
// online, and always echoes it back to the sender.
func (r *Relay) PrivateMessage(ctx context.Context, c *Client, cmd *Command) *CoreError {
	senderID := c.UserID()
	if senderID == "" {
		return coreError(ErrCodeUnauthorized, "announce user-online before sending messages")
	}
	if cmd.ReceiverID == "" {
		return coreError(ErrCodeBadRequest, "receiverId is required")
	}

	if _, err := r.store.GetUserByID(ctx, cmd.ReceiverID); err != nil {
		return r.lookupError(err, "receiver", cmd.ReceiverID)
	}

	msg := &store.Message{
		SenderID:   senderID,
		ReceiverID: cmd.ReceiverID,
		Content:    cmd.Content,
		Type:       cmd.Type,
		GiftID:     cmd.GiftID,
		IsPrivate:  true,
	}
	hydrated, cerr := r.persist(ctx, msg)
	if cerr != nil {
		return cerr
	}

	delivered := false
	if receiver, ok := r.registry.Resolve(cmd.ReceiverID); ok {
		delivered = receiver.Send(&Event{Kind: EventPrivateMessage, Message: hydrated})
	}
	c.Send(&Event{Kind: EventPrivateMessageSent, Message: hydrated})

	r.log.Debug().
		Str("message_id", msg.ID).
		Str("receiver_id", cmd.ReceiverID).
		Bool("delivered", delivered).
		Msg("private message relayed")
	return nil
}

// persist validates the gift reference, stores msg and hydrates it.
func (r *Relay) persist(ctx context.Context, msg *store.Message) (*store.HydratedMessage, *CoreError) {
	if msg.Type == "" {
		msg.Type = store.MessageTypeText
	}
	if msg.Type == store.MessageTypeGift && msg.GiftID == "" {
		return nil, coreError(ErrCodeBadRequest, "giftId is required for gift messages")
	}
	if msg.GiftID != "" {
		if _, err := r.store.GetGiftByID(ctx, msg.GiftID); err != nil {
			return nil, r.lookupError(err, "gift", msg.GiftID)
		}
	}

	if err := r.store.CreateMessage(ctx, msg); err != nil {
		r.log.Error().Err(err).Str("sender_id", msg.SenderID).Msg("persist message")
		return nil, coreError(ErrCodePersistenceFailed, "failed to save message")
	}

	hydrated, err := r.store.HydrateMessage(ctx, msg)
	if err != nil {
		r.log.Error().Err(err).Str("message_id", msg.ID).Msg("hydrate message")
		return nil, coreError(ErrCodePersistenceFailed, "failed to load message")
	}

	if err := r.publisher.Publish(ctx, TopicMessageCreated, noticeFromMessage(msg)); err != nil {
		r.log.Warn().Err(err).Str("message_id", msg.ID).Msg("publish message notice")
	}
	return hydrated, nil
}

func (r *Relay) lookupError(err error, kind, id string) *CoreError {
	if errors.Is(err, store.ErrNotFound) {
		return coreError(ErrCodeNotFound, kind+" not found")
	}
	r.log.Error().Err(err).Str("kind", kind).Str("id", id).Msg("lookup failed")
	return coreError(ErrCodePersistenceFailed, "failed to load "+kind)
}
