package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/migchat-gateway/internal/proto"
)

type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "1", "user id")
	token := flag.String("token", "", "JWT for the user, when the gateway requires one")
	room := flag.String("room", "", "chatroom to join; empty for private messages only")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
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

	if err := send(ctx, conn, proto.InboundTypeUserOnline, *user); err != nil {
		return err
	}
	if *room != "" {
		if err := send(ctx, conn, proto.InboundTypeJoinChatroom, *room); err != nil {
			return err
		}
	}

	fmt.Printf("Connected to %s as user %s\n", *addr, *user)
	fmt.Println("Type a message for the room, or /pm <userId> <text>. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn, *room)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var out frame
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if out.Type == proto.OutboundTypeError && out.Error != nil {
			fmt.Printf("! %s: %s\n", out.Error.Code, out.Error.Msg)
			continue
		}

		switch out.Event {
		case "chatroom-message", "private-message", "private-message-sent":
			var evt proto.EventMessage
			if err := json.Unmarshal(out.Data, &evt); err != nil {
				log.Printf("unmarshal %s: %v", out.Event, err)
				continue
			}
			where := "room " + evt.ChatroomID
			if evt.IsPrivate {
				where = "pm"
			}
			fmt.Printf("[%s] %s: %s\n", where, evt.Sender.Username, evt.Content)
		case "friend-online", "friend-offline":
			var evt proto.EventPresence
			if err := json.Unmarshal(out.Data, &evt); err != nil {
				log.Printf("unmarshal %s: %v", out.Event, err)
				continue
			}
			fmt.Printf("* friend %s is %s\n", evt.UserID, evt.Status)
		case "user-typing", "user-stop-typing":
			// too noisy for a terminal
		default:
			fmt.Printf("event=%s data=%s\n", out.Event, string(out.Data))
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, room string) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			var err error
			if rest, found := strings.CutPrefix(text, "/pm "); found {
				receiver, content, _ := strings.Cut(strings.TrimSpace(rest), " ")
				err = send(ctx, conn, proto.InboundTypePrivateMessage, map[string]string{"receiverId": receiver, "content": content})
			} else if room != "" {
				err = send(ctx, conn, proto.InboundTypeChatroomMessage, map[string]string{"chatroomId": room, "content": text})
			} else {
				fmt.Println("not in a room; use /pm <userId> <text>")
				continue
			}
			if err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
