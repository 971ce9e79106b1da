package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/migchat-gateway/internal/auth"
	"github.com/vovakirdan/migchat-gateway/internal/config"
	"github.com/vovakirdan/migchat-gateway/internal/core"
	"github.com/vovakirdan/migchat-gateway/internal/proto"
	"github.com/vovakirdan/migchat-gateway/internal/store"
	"github.com/vovakirdan/migchat-gateway/internal/store/sqlite"
)

const testSecret = "test-secret"

type testEnv struct {
	ts    *httptest.Server
	hub   *core.Hub
	store *sqlite.SQLiteStore
	auth  *auth.Service
}

// createTestStore creates an in-memory SQLite store seeded with alice (1),
// bob (2) and carol (3); alice and bob are friends and room 10 exists.
func createTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	for _, u := range []*store.User{
		{ID: "1", Username: "alice", Name: "Alice", Avatar: "a.png"},
		{ID: "2", Username: "bob", Name: "Bob", Avatar: "b.png"},
		{ID: "3", Username: "carol", Name: "Carol"},
	} {
		require.NoError(t, st.CreateUser(ctx, u))
	}
	require.NoError(t, st.AddFriendship(ctx, "1", "2"))
	require.NoError(t, st.CreateChatroom(ctx, &store.Chatroom{ID: "10", Name: "lobby", OwnerID: "1", IsActive: true}))
	require.NoError(t, st.CreateGift(ctx, &store.Gift{ID: "g1", Name: "Rose", Price: 10, IsActive: true}))
	return st
}

// startTestServer runs a hub and an HTTP server. An empty secret disables auth.
func startTestServer(t *testing.T, secret string) *testEnv {
	t.Helper()

	st := createTestStore(t)
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(secret),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})

	disabledLogger := zerolog.Nop()
	hub := core.NewHub(st, core.WithLogger(&disabledLogger))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWTSecret = secret

	server := NewServer(hub, st, authService, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
	})

	return &testEnv{ts: ts, hub: hub, store: st, auth: authService}
}

func (e *testEnv) wsURL() string {
	return strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()

	token, err := e.auth.IssueToken(context.Background(), userID)
	require.NoError(t, err)
	return token
}

func dial(ctx context.Context, t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(ctx context.Context, t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()

	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{"type": msgType, "data": data}))
}

// announce sends user-online and waits until the hub resolves the user.
func (e *testEnv) announce(ctx context.Context, t *testing.T, conn *websocket.Conn, userID string) {
	t.Helper()

	send(ctx, t, conn, proto.InboundTypeUserOnline, userID)
	require.Eventually(t, func() bool {
		_, ok := e.hub.Registry().Resolve(userID)
		return ok
	}, 2*time.Second, 5*time.Millisecond, "user %s never came online", userID)
}

// rawOutbound keeps data undecoded so tests can pick the concrete type.
type rawOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// readEvent reads frames until one with the given event name arrives.
func readEvent(ctx context.Context, t *testing.T, conn *websocket.Conn, event string) rawOutbound {
	t.Helper()

	for {
		var out rawOutbound
		require.NoError(t, wsjson.Read(ctx, conn, &out), "waiting for %s", event)
		if out.Event == event {
			return out
		}
	}
}
