package core

import "github.com/rs/zerolog"

// TypingRelay forwards ephemeral typing signals. Nothing is persisted and an
// unreachable receiver simply drops the signal.
type TypingRelay struct {
	registry *Registry
	rooms    *Router
	log      *zerolog.Logger
}

// NewTypingRelay wires a typing relay.
func NewTypingRelay(registry *Registry, rooms *Router, logger *zerolog.Logger) *TypingRelay {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &TypingRelay{registry: registry, rooms: rooms, log: logger}
}

// Forward relays a typing or stop-typing command. A receiver id takes
// precedence over a chatroom id; room signals skip the sender.
func (t *TypingRelay) Forward(c *Client, cmd *Command) {
	userID := c.UserID()
	if userID == "" {
		t.log.Debug().Str("client_id", c.ID).Msg("typing signal before user-online dropped")
		return
	}

	kind := EventUserTyping
	if cmd.Kind == CommandStopTyping {
		kind = EventUserStopTyping
	}

	switch {
	case cmd.ReceiverID != "":
		if receiver, ok := t.registry.Resolve(cmd.ReceiverID); ok {
			receiver.Send(&Event{Kind: kind, UserID: userID})
		}
	case cmd.ChatroomID != "":
		t.rooms.Broadcast(cmd.ChatroomID, &Event{Kind: kind, UserID: userID, ChatroomID: cmd.ChatroomID}, c)
	default:
		t.log.Debug().Str("client_id", c.ID).Msg("typing signal without target dropped")
	}
}
