package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/migchat-gateway/internal/auth"
	"github.com/vovakirdan/migchat-gateway/internal/config"
	"github.com/vovakirdan/migchat-gateway/internal/core"
	"github.com/vovakirdan/migchat-gateway/internal/store"
)

// NewServer builds the HTTP server: health check, websocket gateway and the
// presence and chat REST endpoints. Chat endpoints need an identity and are
// only mounted when JWT auth is configured.
func NewServer(hub *core.Hub, st store.Store, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	api := NewAPIHandlers(st, hub.Registry(), logger)
	apiGroup := router.Group("/api")
	apiGroup.GET("/presence", api.Online)
	apiGroup.GET("/presence/:userId", api.Presence)

	if authService.Enabled() {
		chat := apiGroup.Group("/chat", AuthMiddleware(authService, logger))
		chat.GET("/private/:userId", api.PrivateHistory)
		chat.PUT("/messages/:id/read", api.MarkRead)
		apiGroup.GET("/chatrooms/:id/messages", AuthMiddleware(authService, logger), api.ChatroomHistory)
	} else {
		logger.Warn().Msg("jwt_secret not set: websocket runs unauthenticated and chat endpoints are disabled")
	}

	// The websocket upgrade needs the raw ResponseWriter, so /ws bypasses gin.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, authService, cfg, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
