package core

import (
	"context"
	"strconv"
	"testing"
)

func benchmarkRoomBroadcast(b *testing.B, recipients int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := newFakeStore()
	st.addUser("sender", "sender")
	st.addChatroom("bench", true)

	hub := NewHub(st)
	go hub.Run(ctx)

	sender := NewClient("sender", "", 0)
	hub.RegisterClient(sender)
	sender.Commands <- &Command{Kind: CommandUserOnline, UserID: "sender"}

	clients := make([]*Client, 0, recipients)
	for i := range recipients {
		c := NewClient("c"+strconv.Itoa(i), "", 0)
		hub.Rooms().Join(c, "bench")
		clients = append(clients, c)
	}

	// Drain events for all but the first recipient to avoid outbox backpressure.
	target := clients[0]
	for _, c := range clients[1:] {
		go func(cl *Client) {
			for {
				select {
				case <-cl.Events:
				case <-ctx.Done():
					return
				}
			}
		}(c)
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		sender.Commands <- &Command{
			Kind:       CommandChatroomMessage,
			ChatroomID: "bench",
			Content:    "payload",
		}
		<-target.Events
	}
}

func BenchmarkRoomBroadcast10(b *testing.B)  { benchmarkRoomBroadcast(b, 10) }
func BenchmarkRoomBroadcast100(b *testing.B) { benchmarkRoomBroadcast(b, 100) }
