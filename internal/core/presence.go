package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/migchat-gateway/internal/store"
)

// Presence keeps persisted user status in step with the registry and tells
// online friends about changes. Consistency is best-effort: a failed status
// write is logged and the in-memory change stands.
type Presence struct {
	store     Store
	registry  *Registry
	publisher Publisher
	log       *zerolog.Logger
}

// NewPresence wires a presence notifier.
func NewPresence(st Store, registry *Registry, publisher Publisher, logger *zerolog.Logger) *Presence {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Presence{
		store:     st,
		registry:  registry,
		publisher: publisher,
		log:       logger,
	}
}

// Connect registers c as the live connection of userID, marks the user online
// and notifies every online friend.
func (p *Presence) Connect(ctx context.Context, c *Client, userID string) *CoreError {
	if c.AuthUserID != "" && c.AuthUserID != userID {
		return coreError(ErrCodeUnauthorized, "user id does not match the authenticated user")
	}

	if current, ok := p.registry.Resolve(userID); ok && current == c {
		p.log.Debug().Str("user_id", userID).Str("client_id", c.ID).Msg("duplicate user-online ignored")
		return nil
	}

	if _, err := p.store.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return coreError(ErrCodeNotFound, "user not found")
		}
		p.log.Error().Err(err).Str("user_id", userID).Msg("lookup user for presence")
		return coreError(ErrCodePersistenceFailed, "failed to load user")
	}

	// Switching users on one connection takes the previous user offline first.
	if prev := c.UserID(); prev != "" && prev != userID {
		p.release(ctx, c)
	}

	p.registry.Register(userID, c)
	p.log.Info().Str("user_id", userID).Str("client_id", c.ID).Msg("user online")

	p.setStatus(ctx, userID, store.StatusOnline)
	p.notifyFriends(ctx, userID, EventFriendOnline, store.StatusOnline)
	return nil
}

// Disconnect releases c. Connections that never announced a user, or whose
// user has since reconnected elsewhere, cause no presence change.
func (p *Presence) Disconnect(ctx context.Context, c *Client) {
	p.release(ctx, c)
}

func (p *Presence) release(ctx context.Context, c *Client) {
	userID := c.UserID()
	if userID == "" {
		return
	}

	if !p.registry.Unregister(c) {
		p.log.Debug().Str("user_id", userID).Str("client_id", c.ID).Msg("superseded connection closed")
		return
	}
	p.log.Info().Str("user_id", userID).Str("client_id", c.ID).Msg("user offline")

	p.setStatus(ctx, userID, store.StatusOffline)
	p.notifyFriends(ctx, userID, EventFriendOffline, store.StatusOffline)
}

// Reconcile marks every user persisted as online offline. It is meant to run
// at startup, while the registry is still empty.
func (p *Presence) Reconcile(ctx context.Context) (int64, error) {
	n, err := p.store.ResetPresence(ctx)
	if err != nil {
		return 0, fmt.Errorf("reconcile presence: %w", err)
	}
	p.log.Info().Int64("users", n).Msg("stale online statuses reset")
	return n, nil
}

func (p *Presence) setStatus(ctx context.Context, userID string, status store.UserStatus) {
	if err := p.store.UpdateUserStatus(ctx, userID, status); err != nil {
		p.log.Error().Err(err).Str("user_id", userID).Str("status", string(status)).Msg("persist user status")
	}

	topic := TopicPresenceOnline
	if status == store.StatusOffline {
		topic = TopicPresenceOffline
	}
	notice := PresenceNotice{UserID: userID, Status: status, At: time.Now().UTC()}
	if err := p.publisher.Publish(ctx, topic, notice); err != nil {
		p.log.Warn().Err(err).Str("topic", topic).Msg("publish presence notice")
	}
}

func (p *Presence) notifyFriends(ctx context.Context, userID string, kind EventKind, status store.UserStatus) {
	friendIDs, err := p.store.GetFriendIDs(ctx, userID)
	if err != nil {
		p.log.Error().Err(err).Str("user_id", userID).Msg("list friends for presence")
		return
	}

	ev := &Event{Kind: kind, UserID: userID, Status: status}
	notified := 0
	for _, friendID := range friendIDs {
		friend, ok := p.registry.Resolve(friendID)
		if !ok {
			continue
		}
		if friend.Send(ev) {
			notified++
		}
	}
	p.log.Debug().Str("user_id", userID).Str("event", kind.String()).Int("friends", notified).Msg("presence fan-out")
}
