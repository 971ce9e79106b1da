package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/migchat-gateway/internal/proto"
)

// frame mirrors proto.Outbound with the payload left raw.
type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "1", "user id to announce with user-online")
	token := flag.String("token", "", "JWT for the user, when the gateway requires one")
	room := flag.String("room", "1", "chatroom id")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var opts *websocket.DialOptions
	if *token != "" {
		opts = &websocket.DialOptions{HTTPHeader: http.Header{"Authorization": []string{"Bearer " + *token}}}
	}

	conn, _, err := websocket.Dial(ctx, *addr, opts)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(typ string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	if err := send(proto.InboundTypeUserOnline, *user); err != nil {
		return err
	}
	if err := send(proto.InboundTypeJoinChatroom, *room); err != nil {
		return err
	}
	msg := map[string]string{"chatroomId": *room, "content": *text}
	if err := send(proto.InboundTypeChatroomMessage, msg); err != nil {
		return err
	}

	for {
		var out frame
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		if out.Type == proto.OutboundTypeError && out.Error != nil {
			return fmt.Errorf("server error %s: %s", out.Error.Code, out.Error.Msg)
		}

		fmt.Printf("Received outbound: type=%s event=%s\n", out.Type, out.Event)
		if out.Event != "chatroom-message" {
			continue
		}

		var evt proto.EventMessage
		if err := json.Unmarshal(out.Data, &evt); err != nil {
			fmt.Printf("Raw data: %s\n", string(out.Data))
			return fmt.Errorf("unmarshal message: %w", err)
		}
		fmt.Printf("Message: room=%s sender=%s content=%q at=%s\n",
			evt.ChatroomID, evt.Sender.Username, evt.Content, evt.CreatedAt.Format(time.RFC3339))
		return nil
	}
}
