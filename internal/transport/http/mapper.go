package http

import (
	"errors"
	"fmt"

	"github.com/vovakirdan/migchat-gateway/internal/core"
	"github.com/vovakirdan/migchat-gateway/internal/proto"
	"github.com/vovakirdan/migchat-gateway/internal/store"
)

var errUnknownType = errors.New("unknown message type")

func inboundToCommand(inbound proto.Inbound) (*core.Command, error) {
	switch inbound.Type {
	case proto.InboundTypeUserOnline:
		var data proto.UserOnlineData
		if err := proto.Decode(inbound, &data); err != nil {
			return nil, err
		}
		return &core.Command{Kind: core.CommandUserOnline, UserID: data.UserID.String()}, nil
	case proto.InboundTypeJoinChatroom, proto.InboundTypeLeaveChatroom:
		var data proto.ChatroomRefData
		if err := proto.Decode(inbound, &data); err != nil {
			return nil, err
		}
		kind := core.CommandJoinChatroom
		if inbound.Type == proto.InboundTypeLeaveChatroom {
			kind = core.CommandLeaveChatroom
		}
		return &core.Command{Kind: kind, ChatroomID: data.ChatroomID.String()}, nil
	case proto.InboundTypeChatroomMessage:
		var data proto.ChatroomMessageData
		if err := proto.Decode(inbound, &data); err != nil {
			return nil, err
		}
		return &core.Command{
			Kind:       core.CommandChatroomMessage,
			ChatroomID: data.ChatroomID.String(),
			Content:    data.Content,
			Type:       store.MessageType(data.Type),
			GiftID:     data.GiftID.String(),
		}, nil
	case proto.InboundTypePrivateMessage:
		var data proto.PrivateMessageData
		if err := proto.Decode(inbound, &data); err != nil {
			return nil, err
		}
		return &core.Command{
			Kind:       core.CommandPrivateMessage,
			ReceiverID: data.ReceiverID.String(),
			Content:    data.Content,
			Type:       store.MessageType(data.Type),
			GiftID:     data.GiftID.String(),
		}, nil
	case proto.InboundTypeTyping, proto.InboundTypeStopTyping:
		var data proto.TypingData
		if err := proto.Decode(inbound, &data); err != nil {
			return nil, err
		}
		kind := core.CommandTyping
		if inbound.Type == proto.InboundTypeStopTyping {
			kind = core.CommandStopTyping
		}
		return &core.Command{
			Kind:       kind,
			ReceiverID: data.ReceiverID.String(),
			ChatroomID: data.ChatroomID.String(),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownType, inbound.Type)
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventFriendOnline, core.EventFriendOffline:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: event.Kind.String(),
			Data:  proto.EventPresence{UserID: event.UserID, Status: string(event.Status)},
		}
	case core.EventChatroomMessage, core.EventPrivateMessage, core.EventPrivateMessageSent:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: event.Kind.String(),
			Data:  messageFromHydrated(event.Message),
		}
	case core.EventUserTyping, core.EventUserStopTyping:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: event.Kind.String(),
			Data:  proto.EventTyping{UserID: event.UserID, ChatroomID: event.ChatroomID},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func messageFromHydrated(m *store.HydratedMessage) *proto.EventMessage {
	if m == nil {
		return nil
	}
	out := &proto.EventMessage{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		ChatroomID: m.ChatroomID,
		Content:    m.Content,
		Type:       string(m.Type),
		GiftID:     m.GiftID,
		IsPrivate:  m.IsPrivate,
		Read:       m.Read,
		CreatedAt:  m.CreatedAt,
		Sender:     userSummary(m.Sender),
	}
	if m.Receiver != nil {
		receiver := userSummary(*m.Receiver)
		out.Receiver = &receiver
	}
	if m.Gift != nil {
		out.Gift = &proto.Gift{
			ID:          m.Gift.ID,
			Name:        m.Gift.Name,
			Description: m.Gift.Description,
			Image:       m.Gift.Image,
			Price:       m.Gift.Price,
			Category:    m.Gift.Category,
		}
	}
	return out
}

func userSummary(u store.UserSummary) proto.UserSummary {
	return proto.UserSummary{ID: u.ID, Username: u.Username, Name: u.Name, Avatar: u.Avatar}
}
