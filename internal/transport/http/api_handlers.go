package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/migchat-gateway/internal/core"
	"github.com/vovakirdan/migchat-gateway/internal/proto"
	"github.com/vovakirdan/migchat-gateway/internal/store"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// presenceMirror is the shared online set kept by redismirror.Store.
type presenceMirror interface {
	IsOnline(ctx context.Context, id string) (bool, error)
	OnlineUsers(ctx context.Context) ([]string, error)
}

// APIHandlers serves the REST endpoints that sit next to the socket gateway.
type APIHandlers struct {
	store    store.Store
	mirror   presenceMirror
	registry *core.Registry
	log      *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance. When st also mirrors
// presence, the presence endpoints report the mirrored view as well.
func NewAPIHandlers(st store.Store, registry *core.Registry, logger *zerolog.Logger) *APIHandlers {
	mirror, _ := st.(presenceMirror)
	return &APIHandlers{
		store:    st,
		mirror:   mirror,
		registry: registry,
		log:      logger,
	}
}

// PresenceResponse describes the presence of one user.
type PresenceResponse struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
	Online bool   `json:"online"`
	// Mirrored is the Redis online set's view, absent without a mirror.
	Mirrored *bool `json:"mirrored,omitempty"`
}

// OnlineResponse lists users with a live connection on this gateway.
type OnlineResponse struct {
	Users    []string `json:"users"`
	Count    int      `json:"count"`
	Mirrored []string `json:"mirrored,omitempty"`
}

// Presence reports the persisted status and live connection of a user.
// GET /api/presence/:userId
func (h *APIHandlers) Presence(c *gin.Context) {
	userID := c.Param("userId")

	user, err := h.store.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Str("user_id", userID).Msg("failed to load user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	_, online := h.registry.Resolve(userID)
	resp := PresenceResponse{UserID: user.ID, Status: string(user.Status), Online: online}
	if h.mirror != nil {
		mirrored, err := h.mirror.IsOnline(c.Request.Context(), userID)
		if err != nil {
			h.log.Warn().Err(err).Str("user_id", userID).Msg("failed to read presence mirror")
		} else {
			resp.Mirrored = &mirrored
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Online lists connected users.
// GET /api/presence
func (h *APIHandlers) Online(c *gin.Context) {
	users := h.registry.Online()
	resp := OnlineResponse{Users: users, Count: len(users)}
	if h.mirror != nil {
		mirrored, err := h.mirror.OnlineUsers(c.Request.Context())
		if err != nil {
			h.log.Warn().Err(err).Msg("failed to read presence mirror")
		} else {
			resp.Mirrored = mirrored
		}
	}
	c.JSON(http.StatusOK, resp)
}

// PrivateHistory returns the private conversation between the caller and
// another user, oldest first.
// GET /api/chat/private/:userId?limit=N
func (h *APIHandlers) PrivateHistory(c *gin.Context) {
	callerID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	otherID := c.Param("userId")

	limit, ok := historyLimit(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetUserByID(ctx, otherID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Str("user_id", otherID).Msg("failed to load user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	messages, err := h.store.ListPrivateMessages(ctx, callerID, otherID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", callerID).Str("other_id", otherID).Msg("failed to list private messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.writeHistory(c, messages)
}

// ChatroomHistory returns the latest messages of a chatroom, oldest first.
// GET /api/chatrooms/:id/messages?limit=N
func (h *APIHandlers) ChatroomHistory(c *gin.Context) {
	chatroomID := c.Param("id")

	limit, ok := historyLimit(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetChatroomByID(ctx, chatroomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "chatroom not found"})
			return
		}
		h.log.Error().Err(err).Str("chatroom_id", chatroomID).Msg("failed to load chatroom")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	messages, err := h.store.ListChatroomMessages(ctx, chatroomID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("chatroom_id", chatroomID).Msg("failed to list chatroom messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.writeHistory(c, messages)
}

func (h *APIHandlers) writeHistory(c *gin.Context, messages []*store.Message) {
	out := make([]*proto.EventMessage, 0, len(messages))
	for _, m := range messages {
		hydrated, err := h.store.HydrateMessage(c.Request.Context(), m)
		if err != nil {
			h.log.Error().Err(err).Str("message_id", m.ID).Msg("failed to hydrate message")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		out = append(out, messageFromHydrated(hydrated))
	}

	c.JSON(http.StatusOK, out)
}

// historyLimit parses ?limit=, writing a 400 when it is invalid.
func historyLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultHistoryLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		return 0, false
	}
	return min(n, maxHistoryLimit), true
}

// MarkRead flags a private message as read. Only its receiver may do so.
// PUT /api/chat/messages/:id/read
func (h *APIHandlers) MarkRead(c *gin.Context) {
	callerID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	messageID := c.Param("id")
	ctx := c.Request.Context()

	msg, err := h.store.GetMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "message not found"})
			return
		}
		h.log.Error().Err(err).Str("message_id", messageID).Msg("failed to load message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if msg.ReceiverID != callerID {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "only the receiver can mark a message read"})
		return
	}

	if err := h.store.MarkMessageRead(ctx, messageID); err != nil {
		h.log.Error().Err(err).Str("message_id", messageID).Msg("failed to mark message read")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}
