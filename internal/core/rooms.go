package core

import "sync"

// GroupName returns the broadcast group key of a chatroom.
func GroupName(chatroomID string) string {
	return "room:" + chatroomID
}

// Room groups clients subscribed to the same chatroom broadcast.
type Room struct {
	Name    string
	clients map[*Client]struct{}
}

// NewRoom constructs a room with no clients.
func NewRoom(name string) *Room {
	return &Room{
		Name:    name,
		clients: make(map[*Client]struct{}),
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return len(r.clients) == 0
}

func (r *Room) snapshot() []*Client {
	out := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		out = append(out, c)
	}
	return out
}

// Router owns the room broadcast groups. It keeps a reverse index from
// client to joined groups so a disconnect can leave all of them at once.
// Membership is not checked against the persisted chatroom members.
type Router struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	byClient map[*Client]map[string]struct{}
}

// NewRouter creates a router with no groups.
func NewRouter() *Router {
	return &Router{
		rooms:    make(map[string]*Room),
		byClient: make(map[*Client]map[string]struct{}),
	}
}

// Join adds c to the group of chatroomID. Returns true if newly added.
func (rt *Router) Join(c *Client, chatroomID string) bool {
	name := GroupName(chatroomID)

	rt.mu.Lock()
	defer rt.mu.Unlock()

	room, ok := rt.rooms[name]
	if !ok {
		room = NewRoom(name)
		rt.rooms[name] = room
	}
	if !room.AddClient(c) {
		return false
	}

	joined, ok := rt.byClient[c]
	if !ok {
		joined = make(map[string]struct{})
		rt.byClient[c] = joined
	}
	joined[name] = struct{}{}
	return true
}

// Leave removes c from the group of chatroomID. Leaving a group the client
// never joined is a no-op and returns false.
func (rt *Router) Leave(c *Client, chatroomID string) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.leaveLocked(c, GroupName(chatroomID))
}

// LeaveAll removes c from every group and returns the group names it left.
func (rt *Router) LeaveAll(c *Client) []string {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	joined := rt.byClient[c]
	left := make([]string, 0, len(joined))
	for name := range joined {
		if rt.leaveLocked(c, name) {
			left = append(left, name)
		}
	}
	return left
}

func (rt *Router) leaveLocked(c *Client, name string) bool {
	room, ok := rt.rooms[name]
	if !ok || !room.RemoveClient(c) {
		return false
	}
	if room.Empty() {
		delete(rt.rooms, name)
	}
	if joined, ok := rt.byClient[c]; ok {
		delete(joined, name)
		if len(joined) == 0 {
			delete(rt.byClient, c)
		}
	}
	return true
}

// IsMember reports whether c is in the group of chatroomID.
func (rt *Router) IsMember(c *Client, chatroomID string) bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	room, ok := rt.rooms[GroupName(chatroomID)]
	if !ok {
		return false
	}
	_, member := room.clients[c]
	return member
}

// Members returns a snapshot of the clients in the group of chatroomID.
func (rt *Router) Members(chatroomID string) []*Client {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	room, ok := rt.rooms[GroupName(chatroomID)]
	if !ok {
		return nil
	}
	return room.snapshot()
}

// Broadcast sends ev to every member of the group except the given client
// (nil excludes nobody). Returns how many outboxes accepted the event; slow
// consumers with a full outbox are skipped.
func (rt *Router) Broadcast(chatroomID string, ev *Event, except *Client) int {
	delivered := 0
	for _, c := range rt.Members(chatroomID) {
		if c == except {
			continue
		}
		if c.Send(ev) {
			delivered++
		}
	}
	return delivered
}
