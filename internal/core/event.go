package core

import "github.com/vovakirdan/migchat-gateway/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventFriendOnline tells a user that a friend came online.
	EventFriendOnline EventKind = iota
	// EventFriendOffline tells a user that a friend went offline.
	EventFriendOffline
	// EventChatroomMessage carries a hydrated room message.
	EventChatroomMessage
	// EventPrivateMessage carries a hydrated private message to its receiver.
	EventPrivateMessage
	// EventPrivateMessageSent echoes a private message back to its sender.
	EventPrivateMessageSent
	// EventUserTyping signals that a user is typing.
	EventUserTyping
	// EventUserStopTyping signals that a user stopped typing.
	EventUserStopTyping
	// EventError rejects a command of the receiving connection.
	EventError
)

var eventNames = [...]string{
	EventFriendOnline:       "friend-online",
	EventFriendOffline:      "friend-offline",
	EventChatroomMessage:    "chatroom-message",
	EventPrivateMessage:     "private-message",
	EventPrivateMessageSent: "private-message-sent",
	EventUserTyping:         "user-typing",
	EventUserStopTyping:     "user-stop-typing",
	EventError:              "error",
}

// String returns the wire name of the event.
func (k EventKind) String() string {
	if int(k) < 0 || int(k) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[k]
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind       EventKind
	UserID     string
	Status     store.UserStatus
	ChatroomID string
	Message    *store.HydratedMessage
	Error      *CoreError
}
