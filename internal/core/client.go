package core

import "sync"

// DefaultQueueSize is the buffer of a client's command queue and event outbox.
const DefaultQueueSize = 32

// Client is one live connection as seen by the core layer.
//
// Commands is the connection's ordered work queue: the transport is its only
// writer and the hub worker its only reader. Events is the outbox drained by
// the transport; it is never closed, so any goroutine may deliver to it.
type Client struct {
	ID string
	// AuthUserID is the identity verified at handshake. Empty when the
	// transport runs without authentication.
	AuthUserID string
	Commands   chan *Command
	Events     chan *Event

	// userID is set by user-online. Only the client's worker touches it.
	userID    string
	closeOnce sync.Once
}

// NewClient constructs a client with initialized channels.
func NewClient(id, authUserID string, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Client{
		ID:         id,
		AuthUserID: authUserID,
		Commands:   make(chan *Command, queueSize),
		Events:     make(chan *Event, queueSize),
	}
}

// UserID returns the announced user, or "" before user-online.
func (c *Client) UserID() string {
	return c.userID
}

// Send queues an event for the connection without blocking.
// It reports false when the outbox is full and the event was dropped.
func (c *Client) Send(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

// Close ends the command queue. Pending commands are still processed, then
// the worker runs the disconnect. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.Commands)
	})
}
