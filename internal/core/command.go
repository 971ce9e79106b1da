package core

import "github.com/vovakirdan/migchat-gateway/internal/store"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandUserOnline announces the user behind the connection.
	CommandUserOnline CommandKind = iota
	// CommandJoinChatroom subscribes the connection to a room group.
	CommandJoinChatroom
	// CommandLeaveChatroom unsubscribes the connection from a room group.
	CommandLeaveChatroom
	// CommandChatroomMessage persists and broadcasts a room message.
	CommandChatroomMessage
	// CommandPrivateMessage persists and delivers a private message.
	CommandPrivateMessage
	// CommandTyping forwards a typing signal.
	CommandTyping
	// CommandStopTyping forwards a stop-typing signal.
	CommandStopTyping
)

// Command represents an action requested by a client. Which fields are
// meaningful depends on Kind.
type Command struct {
	Kind       CommandKind
	UserID     string
	ChatroomID string
	ReceiverID string
	Content    string
	Type       store.MessageType
	GiftID     string
}
