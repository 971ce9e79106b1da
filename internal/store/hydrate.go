package store

import (
	"context"
	"fmt"
)

type hydrationSource interface {
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetGiftByID(ctx context.Context, id string) (*Gift, error)
}

// Hydrate resolves the display fields of msg through src. It is shared by
// store implementations that have no cheaper join available.
func Hydrate(ctx context.Context, src hydrationSource, msg *Message) (*HydratedMessage, error) {
	sender, err := src.GetUserByID(ctx, msg.SenderID)
	if err != nil {
		return nil, fmt.Errorf("hydrate sender: %w", err)
	}

	out := &HydratedMessage{
		Message: *msg,
		Sender:  Summarize(sender),
	}

	if msg.ReceiverID != "" {
		receiver, err := src.GetUserByID(ctx, msg.ReceiverID)
		if err != nil {
			return nil, fmt.Errorf("hydrate receiver: %w", err)
		}
		summary := Summarize(receiver)
		out.Receiver = &summary
	}

	if msg.GiftID != "" {
		gift, err := src.GetGiftByID(ctx, msg.GiftID)
		if err != nil {
			return nil, fmt.Errorf("hydrate gift: %w", err)
		}
		out.Gift = gift
	}

	return out, nil
}

// Summarize extracts the display fields of a user.
func Summarize(u *User) UserSummary {
	return UserSummary{
		ID:       u.ID,
		Username: u.Username,
		Name:     u.Name,
		Avatar:   u.Avatar,
	}
}
