package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/migchat-gateway/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// noEvent asserts that no event of kind arrives within a short window.
func noEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	deadline := time.After(150 * time.Millisecond)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event %v: %+v", kind, ev)
			}
		case <-deadline:
			return
		}
	}
}

// fakeStore is an in-memory Store.
type fakeStore struct {
	mu        sync.Mutex
	users     map[string]*store.User
	friends   map[string]map[string]struct{}
	chatrooms map[string]*store.Chatroom
	gifts     map[string]*store.Gift
	messages  []*store.Message
	statuses  []statusWrite
	seq       int

	failCreate  error
	failHydrate error
	failStatus  error
	failFriends error
}

type statusWrite struct {
	userID string
	status store.UserStatus
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[string]*store.User),
		friends:   make(map[string]map[string]struct{}),
		chatrooms: make(map[string]*store.Chatroom),
		gifts:     make(map[string]*store.Gift),
	}
}

func (f *fakeStore) addUser(id, username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = &store.User{ID: id, Username: username, Name: username, Status: store.StatusOffline, Role: store.RoleUser}
}

func (f *fakeStore) befriend(a, b string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		set, ok := f.friends[pair[0]]
		if !ok {
			set = make(map[string]struct{})
			f.friends[pair[0]] = set
		}
		set[pair[1]] = struct{}{}
	}
}

func (f *fakeStore) addChatroom(id string, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatrooms[id] = &store.Chatroom{ID: id, Name: "room " + id, Type: store.ChatroomPublic, IsActive: active}
}

func (f *fakeStore) addGift(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gifts[id] = &store.Gift{ID: id, Name: "gift " + id, Price: 5, IsActive: true}
}

func (f *fakeStore) status(id string) store.UserStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return u.Status
	}
	return ""
}

func (f *fakeStore) statusWrites() []statusWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]statusWrite(nil), f.statuses...)
}

func (f *fakeStore) savedMessages() []*store.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*store.Message(nil), f.messages...)
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetFriendIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFriends != nil {
		return nil, f.failFriends
	}
	ids := make([]string, 0, len(f.friends[userID]))
	for id := range f.friends[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeStore) UpdateUserStatus(_ context.Context, id string, status store.UserStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStatus != nil {
		return f.failStatus
	}
	u, ok := f.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	u.Status = status
	f.statuses = append(f.statuses, statusWrite{userID: id, status: status})
	return nil
}

func (f *fakeStore) ResetPresence(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, u := range f.users {
		if u.Status == store.StatusOnline {
			u.Status = store.StatusOffline
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) GetChatroomByID(_ context.Context, id string) (*store.Chatroom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.chatrooms[id]
	if !ok {
		return nil, fmt.Errorf("chatroom %s: %w", id, store.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) GetGiftByID(_ context.Context, id string) (*store.Gift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.gifts[id]
	if !ok {
		return nil, fmt.Errorf("gift %s: %w", id, store.ErrNotFound)
	}
	cp := *g
	return &cp, nil
}

func (f *fakeStore) CreateMessage(_ context.Context, msg *store.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return f.failCreate
	}
	f.seq++
	msg.ID = fmt.Sprintf("m%d", f.seq)
	msg.CreatedAt = time.Now().UTC()
	cp := *msg
	f.messages = append(f.messages, &cp)
	return nil
}

func (f *fakeStore) HydrateMessage(ctx context.Context, msg *store.Message) (*store.HydratedMessage, error) {
	f.mu.Lock()
	failHydrate := f.failHydrate
	f.mu.Unlock()
	if failHydrate != nil {
		return nil, failHydrate
	}
	return store.Hydrate(ctx, f, msg)
}

var errBoom = errors.New("boom")

// startHub runs a hub over st until the test ends.
func startHub(t *testing.T, st Store, opts ...Option) *Hub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(st, opts...)
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

// connect registers a client and announces userID, waiting until the
// registry resolves it.
func connect(t *testing.T, hub *Hub, clientID, userID string) *Client {
	t.Helper()

	c := NewClient(clientID, "", 0)
	hub.RegisterClient(c)
	c.Commands <- &Command{Kind: CommandUserOnline, UserID: userID}
	require.Eventually(t, func() bool {
		current, ok := hub.Registry().Resolve(userID)
		return ok && current == c
	}, 2*time.Second, 5*time.Millisecond, "user %s never came online", userID)
	return c
}

func join(t *testing.T, hub *Hub, c *Client, chatroomID string) {
	t.Helper()

	c.Commands <- &Command{Kind: CommandJoinChatroom, ChatroomID: chatroomID}
	require.Eventually(t, func() bool {
		return hub.Rooms().IsMember(c, chatroomID)
	}, 2*time.Second, 5*time.Millisecond)
}
