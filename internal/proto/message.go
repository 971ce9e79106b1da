package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeUserOnline      = "user-online"
	InboundTypeJoinChatroom    = "join-chatroom"
	InboundTypeLeaveChatroom   = "leave-chatroom"
	InboundTypeChatroomMessage = "chatroom-message"
	InboundTypePrivateMessage  = "private-message"
	InboundTypeTyping          = "typing"
	InboundTypeStopTyping      = "stop-typing"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// UserOnlineData announces the user behind a connection. The client may send
// either a bare id or an object.
type UserOnlineData struct {
	UserID ID `json:"userId" validate:"required"`
}

// UnmarshalJSON accepts `"42"`, `42` and `{"userId": ...}`.
func (d *UserOnlineData) UnmarshalJSON(b []byte) error {
	if isObject(b) {
		type plain UserOnlineData
		return json.Unmarshal(b, (*plain)(d))
	}
	return json.Unmarshal(b, &d.UserID)
}

// ChatroomRefData names a chatroom to join or leave.
type ChatroomRefData struct {
	ChatroomID ID `json:"chatroomId" validate:"required"`
}

// UnmarshalJSON accepts `"7"`, `7` and `{"chatroomId": ...}`.
func (d *ChatroomRefData) UnmarshalJSON(b []byte) error {
	if isObject(b) {
		type plain ChatroomRefData
		return json.Unmarshal(b, (*plain)(d))
	}
	return json.Unmarshal(b, &d.ChatroomID)
}

// ChatroomMessageData is a room message from the client.
type ChatroomMessageData struct {
	ChatroomID ID     `json:"chatroomId" validate:"required"`
	Content    string `json:"content" validate:"required_without=GiftID,max=4000"`
	Type       string `json:"type,omitempty" validate:"omitempty,max=32"`
	GiftID     ID     `json:"giftId,omitempty"`
}

// PrivateMessageData is a direct message from the client.
type PrivateMessageData struct {
	ReceiverID ID     `json:"receiverId" validate:"required"`
	Content    string `json:"content" validate:"required_without=GiftID,max=4000"`
	Type       string `json:"type,omitempty" validate:"omitempty,max=32"`
	GiftID     ID     `json:"giftId,omitempty"`
}

// TypingData targets a typing signal at a user or a room.
type TypingData struct {
	ReceiverID ID `json:"receiverId,omitempty" validate:"required_without=ChatroomID"`
	ChatroomID ID `json:"chatroomId,omitempty"`
}

// ID is an identifier that clients send either as a JSON string or a number.
// It always marshals as a string.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("id must be an integer: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the id as a plain string.
func (id ID) String() string { return string(id) }

func isObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}

// ErrEmptyData is returned when an inbound envelope carries no payload.
var ErrEmptyData = errors.New("empty data")

// DecodeData unmarshals the payload of an envelope into v.
func DecodeData(in Inbound, v any) error {
	if len(bytes.TrimSpace(in.Data)) == 0 {
		return ErrEmptyData
	}
	if err := json.Unmarshal(in.Data, v); err != nil {
		return fmt.Errorf("decode %s data: %w", in.Type, err)
	}
	return nil
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventPresence is carried by friend-online and friend-offline.
type EventPresence struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// EventTyping is carried by user-typing and user-stop-typing.
type EventTyping struct {
	UserID     string `json:"userId"`
	ChatroomID string `json:"chatroomId,omitempty"`
}

// UserSummary is the public view of a message participant.
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
}

// Gift is the public view of a gift attached to a message.
type Gift struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Price       int64  `json:"price"`
	Category    string `json:"category"`
}

// EventMessage is a hydrated chat message.
type EventMessage struct {
	ID         string       `json:"id"`
	SenderID   string       `json:"senderId"`
	ReceiverID string       `json:"receiverId,omitempty"`
	ChatroomID string       `json:"chatroomId,omitempty"`
	Content    string       `json:"content"`
	Type       string       `json:"type"`
	GiftID     string       `json:"giftId,omitempty"`
	IsPrivate  bool         `json:"isPrivate"`
	Read       bool         `json:"read"`
	CreatedAt  time.Time    `json:"createdAt"`
	Sender     UserSummary  `json:"sender"`
	Receiver   *UserSummary `json:"receiver,omitempty"`
	Gift       *Gift        `json:"gift,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
