package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/migchat-gateway/internal/auth"
	"github.com/vovakirdan/migchat-gateway/internal/config"
	"github.com/vovakirdan/migchat-gateway/internal/core"
	"github.com/vovakirdan/migchat-gateway/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub  *core.Hub
	auth *auth.Service
	cfg  *config.Config
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, auth: authService, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	var authUserID string
	if h.auth.Enabled() {
		token, err := tokenFromRequest(r)
		if err != nil {
			h.log.Debug().Err(err).Msg("ws rejected")
			stdhttp.Error(w, err.Error(), stdhttp.StatusUnauthorized)
			return
		}
		identity, err := h.auth.Authenticate(ctx, token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrUnknownUser) {
				h.log.Debug().Err(err).Msg("ws rejected")
				stdhttp.Error(w, "invalid token", stdhttp.StatusUnauthorized)
				return
			}
			h.log.Error().Err(err).Msg("ws authenticate")
			stdhttp.Error(w, "internal server error", stdhttp.StatusInternalServerError)
			return
		}
		authUserID = identity.UserID
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	client := core.NewClient(uuid.NewString(), authUserID, h.cfg.ClientQueueSize)
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	h.log.Debug().Str("client_id", client.ID).Str("auth_user_id", authUserID).Msg("ws connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// readLoop feeds decoded commands into the client's queue. Frames that fail
// to decode or validate are logged and dropped without a reply.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.cfg.WSRateLimit)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if !limiter.allow(time.Now()) {
			h.log.Warn().Str("client_id", client.ID).Msg("rate limit exceeded, frame dropped")
			continue
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			h.log.Debug().Err(err).Str("client_id", client.ID).Msg("malformed frame dropped")
			continue
		}

		cmd, err := inboundToCommand(inbound)
		if err != nil {
			h.log.Debug().Err(err).Str("client_id", client.ID).Str("type", inbound.Type).Msg("invalid frame dropped")
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
