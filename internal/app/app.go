package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/migchat-gateway/internal/auth"
	"github.com/vovakirdan/migchat-gateway/internal/bus/natsbus"
	"github.com/vovakirdan/migchat-gateway/internal/config"
	"github.com/vovakirdan/migchat-gateway/internal/core"
	applog "github.com/vovakirdan/migchat-gateway/internal/log"
	"github.com/vovakirdan/migchat-gateway/internal/store"
	"github.com/vovakirdan/migchat-gateway/internal/store/postgres"
	"github.com/vovakirdan/migchat-gateway/internal/store/redismirror"
	"github.com/vovakirdan/migchat-gateway/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/migchat-gateway/internal/transport/http"
)

const tokenTTL = 24 * time.Hour

// App wires together core and transport layers.
type App struct {
	cfg             *config.Config
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	redis           *redis.Client
	bus             *natsbus.Publisher
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &App{cfg: cfg, shutdownTimeout: cfg.ShutdownTimeout, log: logger}

	st, rdb, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.store = st
	a.redis = rdb

	hubOpts := []core.Option{core.WithLogger(applog.Component(logger, "hub"))}
	if cfg.NATSURL != "" {
		bus, err := natsbus.Connect(natsbus.Config{URL: cfg.NATSURL, Prefix: cfg.NATSSubjectPrefix}, applog.Component(logger, "natsbus"))
		if err != nil {
			a.cleanup()
			return nil, fmt.Errorf("init event bus: %w", err)
		}
		a.bus = bus
		hubOpts = append(hubOpts, core.WithPublisher(bus))
	}

	authService := auth.NewService(st, jwtConfig(cfg))
	a.hub = core.NewHub(st, hubOpts...)
	a.server = transporthttp.NewServer(a.hub, st, authService, cfg, applog.Component(logger, "http"))

	return a, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
// On cancellation open websocket connections are closed and every connected
// user is persisted offline before the store is released.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.ReconcileOnStart {
		if _, err := a.hub.Presence().Reconcile(ctx); err != nil {
			a.log.Warn().Err(err).Msg("startup presence reconciliation failed")
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hubDone := make(chan struct{})
	go func() {
		a.hub.Run(ctx)
		close(hubDone)
	}()

	// Request contexts derive from ctx so websocket handlers stop on shutdown.
	a.server.BaseContext = func(net.Listener) context.Context { return ctx }

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
		cancel()
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancelShutdown()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			runErr = err
		} else {
			runErr = <-serverErr
		}
	}

	<-hubDone
	a.cleanup()
	return runErr
}

// Reconcile marks every user persisted as online offline and exits.
func Reconcile(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (int64, error) {
	st, rdb, err := openStore(ctx, cfg, logger)
	if err != nil {
		return 0, err
	}
	defer closeStore(st, rdb, logger)

	presence := core.NewPresence(st, core.NewRegistry(), nil, logger)
	return presence.Reconcile(ctx)
}

// IssueToken signs a token for an existing user, for local testing.
func IssueToken(ctx context.Context, cfg *config.Config, logger *zerolog.Logger, userID string) (string, error) {
	if cfg.JWTSecret == "" {
		return "", errors.New("jwt_secret is not configured")
	}

	st, rdb, err := openStore(ctx, cfg, logger)
	if err != nil {
		return "", err
	}
	defer closeStore(st, rdb, logger)

	return auth.NewService(st, jwtConfig(cfg)).IssueToken(ctx, userID)
}

func jwtConfig(cfg *config.Config) *auth.JWTConfig {
	return &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      tokenTTL,
	}
}

// openStore opens the configured database and, when redis_addr is set,
// wraps it with the Redis presence mirror.
func openStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (store.Store, *redis.Client, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.DBDriver {
	case config.DriverPostgres:
		st, err = postgres.New(ctx, cfg.DBDSN)
	default:
		st, err = sqlite.New(cfg.DBDSN)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("driver", cfg.DBDriver).Msg("database initialized")

	if cfg.RedisAddr == "" {
		return st, nil, nil
	}

	rdb, err := redismirror.Dial(ctx, redismirror.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("init redis: %w", err)
	}
	logger.Info().Str("addr", cfg.RedisAddr).Msg("redis presence mirror enabled")
	return redismirror.New(st, rdb, applog.Component(logger, "redismirror")), rdb, nil
}

func closeStore(st store.Store, rdb *redis.Client, logger *zerolog.Logger) {
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close redis")
		}
	}
	if st != nil {
		if err := st.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close store")
		} else {
			logger.Info().Msg("store closed")
		}
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close event bus")
		}
	}
	closeStore(a.store, a.redis, a.log)
}
