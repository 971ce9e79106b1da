package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultDisconnectTimeout = 5 * time.Second

// Hub dispatches client commands. Every registered client gets a worker
// goroutine that drains its command queue in order, so one connection's
// commands never interleave while different connections run concurrently.
type Hub struct {
	registry *Registry
	rooms    *Router
	presence *Presence
	relay    *Relay
	typing   *TypingRelay
	log      *zerolog.Logger

	register          chan *Client
	done              chan struct{}
	wg                sync.WaitGroup
	disconnectTimeout time.Duration
}

type hubOptions struct {
	registry          *Registry
	rooms             *Router
	publisher         Publisher
	logger            *zerolog.Logger
	disconnectTimeout time.Duration
}

// Option customizes a Hub.
type Option func(*hubOptions)

// WithRegistry injects the connection registry. Defaults to a fresh one.
func WithRegistry(r *Registry) Option {
	return func(o *hubOptions) { o.registry = r }
}

// WithRouter injects the room router. Defaults to a fresh one.
func WithRouter(r *Router) Option {
	return func(o *hubOptions) { o.rooms = r }
}

// WithPublisher exports message and presence notices.
func WithPublisher(p Publisher) Option {
	return func(o *hubOptions) { o.publisher = p }
}

// WithLogger sets the hub logger. Defaults to a no-op logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(o *hubOptions) { o.logger = l }
}

// WithDisconnectTimeout bounds the store work of a disconnect.
func WithDisconnectTimeout(d time.Duration) Option {
	return func(o *hubOptions) { o.disconnectTimeout = d }
}

// NewHub creates a new chat hub backed by st.
func NewHub(st Store, opts ...Option) *Hub {
	o := hubOptions{disconnectTimeout: defaultDisconnectTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	if o.rooms == nil {
		o.rooms = NewRouter()
	}
	if o.publisher == nil {
		o.publisher = nopPublisher{}
	}
	if o.logger == nil {
		nop := zerolog.Nop()
		o.logger = &nop
	}

	return &Hub{
		registry:          o.registry,
		rooms:             o.rooms,
		presence:          NewPresence(st, o.registry, o.publisher, o.logger),
		relay:             NewRelay(st, o.registry, o.rooms, o.publisher, o.logger),
		typing:            NewTypingRelay(o.registry, o.rooms, o.logger),
		log:               o.logger,
		register:          make(chan *Client),
		done:              make(chan struct{}),
		disconnectTimeout: o.disconnectTimeout,
	}
}

// Registry exposes the connection registry.
func (h *Hub) Registry() *Registry { return h.registry }

// Rooms exposes the room router.
func (h *Hub) Rooms() *Router { return h.rooms }

// Presence exposes the presence notifier.
func (h *Hub) Presence() *Presence { return h.presence }

// Run accepts client registrations until ctx is cancelled, then waits for
// every worker to finish its disconnect.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.wg.Add(1)
			go h.serve(ctx, c)
		case <-ctx.Done():
			h.wg.Wait()
			return
		}
	}
}

// RegisterClient starts the worker of c. It returns without effect once the
// hub has stopped.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// UnregisterClient queues the disconnect of c behind its pending commands.
// The caller must have stopped writing to c.Commands.
func (h *Hub) UnregisterClient(c *Client) {
	c.Close()
}

func (h *Hub) serve(ctx context.Context, c *Client) {
	defer h.wg.Done()

	for {
		select {
		case cmd, ok := <-c.Commands:
			if !ok {
				h.disconnect(ctx, c)
				return
			}
			h.dispatch(ctx, c, cmd)
		case <-ctx.Done():
			h.disconnect(ctx, c)
			return
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, c *Client, cmd *Command) {
	if cmd == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Str("client_id", c.ID).Int("command", int(cmd.Kind)).Msg("command handler panicked")
		}
	}()

	var cerr *CoreError
	switch cmd.Kind {
	case CommandUserOnline:
		cerr = h.presence.Connect(ctx, c, cmd.UserID)
	case CommandJoinChatroom:
		if h.rooms.Join(c, cmd.ChatroomID) {
			h.log.Debug().Str("user_id", c.UserID()).Str("chatroom_id", cmd.ChatroomID).Msg("joined chatroom")
		}
	case CommandLeaveChatroom:
		if h.rooms.Leave(c, cmd.ChatroomID) {
			h.log.Debug().Str("user_id", c.UserID()).Str("chatroom_id", cmd.ChatroomID).Msg("left chatroom")
		}
	case CommandChatroomMessage:
		cerr = h.relay.ChatroomMessage(ctx, c, cmd)
	case CommandPrivateMessage:
		cerr = h.relay.PrivateMessage(ctx, c, cmd)
	case CommandTyping, CommandStopTyping:
		h.typing.Forward(c, cmd)
	default:
		h.log.Warn().Int("command", int(cmd.Kind)).Str("client_id", c.ID).Msg("unknown command dropped")
	}

	if cerr != nil {
		h.log.Debug().Str("client_id", c.ID).Str("code", cerr.Code).Msg(cerr.Message)
		c.Send(&Event{Kind: EventError, Error: cerr})
	}
}

// disconnect runs detached from ctx: a shutdown must still persist offline
// statuses.
func (h *Hub) disconnect(ctx context.Context, c *Client) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.disconnectTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Str("client_id", c.ID).Msg("disconnect panicked")
		}
	}()

	h.rooms.LeaveAll(c)
	h.presence.Disconnect(dctx, c)
}
