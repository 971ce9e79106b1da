package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/migchat-gateway/internal/store"
)

// newTestStore connects to MIGCHAT_TEST_POSTGRES_DSN and empties every table.
func newTestStore(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv("MIGCHAT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MIGCHAT_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	s, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.pool.Exec(ctx, `TRUNCATE messages, friendships, chatrooms, gifts, users CASCADE`)
	require.NoError(t, err)
	return s
}

func TestPostgresPresenceAndFriends(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, u := range []*store.User{{ID: "1", Username: "alice"}, {ID: "2", Username: "bob"}} {
		require.NoError(t, s.CreateUser(ctx, u))
	}
	require.NoError(t, s.AddFriendship(ctx, "1", "2"))
	require.NoError(t, s.AddFriendship(ctx, "2", "1"))

	ids, err := s.GetFriendIDs(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids)

	require.NoError(t, s.UpdateUserStatus(ctx, "1", store.StatusOnline))
	u, err := s.GetUserByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusOnline, u.Status)
	assert.Equal(t, store.RoleUser, u.Role)

	n, err := s.ResetPresence(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.ErrorIs(t, s.UpdateUserStatus(ctx, "ghost", store.StatusOnline), store.ErrNotFound)
	_, err = s.GetUserByID(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.RemoveFriendship(ctx, "1", "2"))
	ids, err = s.GetFriendIDs(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPostgresMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, u := range []*store.User{{ID: "1", Username: "alice"}, {ID: "2", Username: "bob"}} {
		require.NoError(t, s.CreateUser(ctx, u))
	}
	require.NoError(t, s.CreateGift(ctx, &store.Gift{ID: "g1", Name: "Rose", Price: 10, IsActive: true}))
	require.NoError(t, s.CreateChatroom(ctx, &store.Chatroom{ID: "10", Name: "lobby", OwnerID: "1", IsActive: true}))

	room, err := s.GetChatroomByID(ctx, "10")
	require.NoError(t, err)
	assert.Equal(t, store.ChatroomPublic, room.Type)

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, text := range []string{"one", "two", "three"} {
		from, to := "1", "2"
		if i == 1 {
			from, to = "2", "1"
		}
		require.NoError(t, s.CreateMessage(ctx, &store.Message{
			SenderID: from, ReceiverID: to, Content: text, IsPrivate: true,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	gift := &store.Message{SenderID: "1", ChatroomID: "10", Content: "rose", Type: store.MessageTypeGift, GiftID: "g1"}
	require.NoError(t, s.CreateMessage(ctx, gift))

	hydrated, err := s.HydrateMessage(ctx, gift)
	require.NoError(t, err)
	assert.Equal(t, "alice", hydrated.Sender.Username)
	assert.Nil(t, hydrated.Receiver)
	require.NotNil(t, hydrated.Gift)
	assert.Equal(t, int64(10), hydrated.Gift.Price)

	latest, err := s.ListPrivateMessages(ctx, "2", "1", 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "two", latest[0].Content)
	assert.Equal(t, "three", latest[1].Content)

	roomMsgs, err := s.ListChatroomMessages(ctx, "10", 10)
	require.NoError(t, err)
	require.Len(t, roomMsgs, 1)
	assert.Equal(t, "rose", roomMsgs[0].Content)

	require.NoError(t, s.MarkMessageRead(ctx, latest[0].ID))
	got, err := s.GetMessageByID(ctx, latest[0].ID)
	require.NoError(t, err)
	assert.True(t, got.Read)
	assert.ErrorIs(t, s.MarkMessageRead(ctx, "missing"), store.ErrNotFound)
}
