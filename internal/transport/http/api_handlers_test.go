package http

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/migchat-gateway/internal/core"
	"github.com/vovakirdan/migchat-gateway/internal/proto"
	"github.com/vovakirdan/migchat-gateway/internal/store"
)

func doRequest(t *testing.T, env *testEnv, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	env.ts.Config.Handler.ServeHTTP(resp, req)
	return resp
}

func TestPresenceEndpoint(t *testing.T) {
	env := startTestServer(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp := doRequest(t, env, http.MethodGet, "/api/presence/1", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var presence PresenceResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &presence))
	assert.Equal(t, PresenceResponse{UserID: "1", Status: "offline", Online: false}, presence)

	conn := dial(ctx, t, env.wsURL())
	env.announce(ctx, t, conn, "1")

	require.Eventually(t, func() bool {
		resp := doRequest(t, env, http.MethodGet, "/api/presence/1", "")
		var p PresenceResponse
		return json.Unmarshal(resp.Body.Bytes(), &p) == nil && p.Online && p.Status == "online"
	}, 2*time.Second, 10*time.Millisecond)

	resp = doRequest(t, env, http.MethodGet, "/api/presence", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var online OnlineResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &online))
	assert.Equal(t, OnlineResponse{Users: []string{"1"}, Count: 1}, online)

	resp = doRequest(t, env, http.MethodGet, "/api/presence/404", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func seedPrivateMessages(t *testing.T, env *testEnv) []*store.Message {
	t.Helper()

	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var out []*store.Message
	for i, m := range []struct{ from, to, text string }{
		{"1", "2", "hey bob"},
		{"2", "1", "hey alice"},
		{"1", "3", "hi carol"},
	} {
		msg := &store.Message{SenderID: m.from, ReceiverID: m.to, Content: m.text, IsPrivate: true, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, env.store.CreateMessage(ctx, msg))
		out = append(out, msg)
	}
	return out
}

func TestPrivateHistory(t *testing.T) {
	env := startTestServer(t, testSecret)
	seedPrivateMessages(t, env)

	resp := doRequest(t, env, http.MethodGet, "/api/chat/private/2", "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	token := env.token(t, "1")
	resp = doRequest(t, env, http.MethodGet, "/api/chat/private/2", token)
	require.Equal(t, http.StatusOK, resp.Code)

	var history []proto.EventMessage
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.Equal(t, "hey bob", history[0].Content)
	assert.Equal(t, "hey alice", history[1].Content)
	assert.Equal(t, "bob", history[1].Sender.Username)
	require.NotNil(t, history[1].Receiver)
	assert.Equal(t, "alice", history[1].Receiver.Username)

	resp = doRequest(t, env, http.MethodGet, "/api/chat/private/2?limit=1", token)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, "hey alice", history[0].Content)

	resp = doRequest(t, env, http.MethodGet, "/api/chat/private/2?limit=zero", token)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doRequest(t, env, http.MethodGet, "/api/chat/private/404", token)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestMarkRead(t *testing.T) {
	env := startTestServer(t, testSecret)
	msgs := seedPrivateMessages(t, env)
	toBob := msgs[0]

	resp := doRequest(t, env, http.MethodPut, "/api/chat/messages/"+toBob.ID+"/read", env.token(t, "1"))
	assert.Equal(t, http.StatusForbidden, resp.Code, "sender cannot mark read")

	resp = doRequest(t, env, http.MethodPut, "/api/chat/messages/"+toBob.ID+"/read", env.token(t, "2"))
	assert.Equal(t, http.StatusNoContent, resp.Code)

	stored, err := env.store.GetMessageByID(context.Background(), toBob.ID)
	require.NoError(t, err)
	assert.True(t, stored.Read)

	resp = doRequest(t, env, http.MethodPut, "/api/chat/messages/missing/read", env.token(t, "2"))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestChatRoutesDisabledWithoutSecret(t *testing.T) {
	env := startTestServer(t, "")

	resp := doRequest(t, env, http.MethodGet, "/api/chat/private/2", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = doRequest(t, env, http.MethodGet, "/api/chatrooms/10/messages", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestChatroomHistory(t *testing.T) {
	env := startTestServer(t, testSecret)
	seedPrivateMessages(t, env)

	ctx := context.Background()
	base := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	for i, text := range []string{"morning", "lunch", "evening"} {
		msg := &store.Message{SenderID: "2", ChatroomID: "10", Content: text, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, env.store.CreateMessage(ctx, msg))
	}

	resp := doRequest(t, env, http.MethodGet, "/api/chatrooms/10/messages", "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	token := env.token(t, "1")
	resp = doRequest(t, env, http.MethodGet, "/api/chatrooms/10/messages", token)
	require.Equal(t, http.StatusOK, resp.Code)

	var history []proto.EventMessage
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &history))
	require.Len(t, history, 3, "private messages stay out of room history")
	assert.Equal(t, "morning", history[0].Content)
	assert.Equal(t, "evening", history[2].Content)
	assert.Equal(t, "10", history[0].ChatroomID)
	assert.Equal(t, "bob", history[0].Sender.Username)
	assert.Nil(t, history[0].Receiver)

	resp = doRequest(t, env, http.MethodGet, "/api/chatrooms/10/messages?limit=2", token)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.Equal(t, "lunch", history[0].Content)

	resp = doRequest(t, env, http.MethodGet, "/api/chatrooms/10/messages?limit=-1", token)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doRequest(t, env, http.MethodGet, "/api/chatrooms/404/messages", token)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

// mirroredStore adds a shared online set to a store, like redismirror.Store.
type mirroredStore struct {
	store.Store
	online []string
	err    error
}

func (m *mirroredStore) IsOnline(_ context.Context, id string) (bool, error) {
	return slices.Contains(m.online, id), m.err
}

func (m *mirroredStore) OnlineUsers(context.Context) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.online, nil
}

func TestPresenceReportsMirror(t *testing.T) {
	gin.SetMode(gin.TestMode)
	nop := zerolog.Nop()
	st := &mirroredStore{Store: createTestStore(t), online: []string{"2", "9"}}

	api := NewAPIHandlers(st, core.NewRegistry(), &nop)
	router := gin.New()
	router.GET("/api/presence", api.Online)
	router.GET("/api/presence/:userId", api.Presence)

	get := func(path string) *httptest.ResponseRecorder {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		return resp
	}

	resp := get("/api/presence/2")
	require.Equal(t, http.StatusOK, resp.Code)
	var presence PresenceResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &presence))
	assert.False(t, presence.Online, "not connected to this gateway")
	require.NotNil(t, presence.Mirrored)
	assert.True(t, *presence.Mirrored)

	resp = get("/api/presence")
	require.Equal(t, http.StatusOK, resp.Code)
	var online OnlineResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &online))
	assert.Equal(t, OnlineResponse{Users: []string{}, Count: 0, Mirrored: []string{"2", "9"}}, online)

	// A failing mirror is left out rather than failing the request.
	st.err = errors.New("redis down")
	resp = get("/api/presence/2")
	require.Equal(t, http.StatusOK, resp.Code)
	presence = PresenceResponse{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &presence))
	assert.Nil(t, presence.Mirrored)
}
