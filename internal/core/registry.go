package core

import (
	"sort"
	"sync"
)

// Registry maps user ids to their live connection. At most one connection is
// resolvable per user; a later registration supersedes the earlier one.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]*Client)}
}

// Register maps userID to c, replacing any previous handle. If c was already
// registered under another user, that mapping is dropped.
func (r *Registry) Register(userID string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev := c.userID; prev != "" && prev != userID {
		if r.byUser[prev] == c {
			delete(r.byUser, prev)
		}
	}
	c.userID = userID
	r.byUser[userID] = c
}

// Unregister removes the mapping of c's user if c is still its current
// handle. It reports whether a mapping was removed; false means c never
// announced itself or has been superseded.
func (r *Registry) Unregister(c *Client) bool {
	if c.userID == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byUser[c.userID] != c {
		return false
	}
	delete(r.byUser, c.userID)
	return true
}

// Resolve returns the live connection of userID, if any.
func (r *Registry) Resolve(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byUser[userID]
	return c, ok
}

// Online returns the ids of all users with a live connection, sorted.
func (r *Registry) Online() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.byUser))
	for id := range r.byUser {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of online users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
