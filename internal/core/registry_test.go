package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	c := NewClient("c1", "", 0)

	_, ok := r.Resolve("1")
	assert.False(t, ok)

	r.Register("1", c)
	got, ok := r.Resolve("1")
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.Equal(t, "1", c.UserID())

	// Registering twice keeps a single mapping.
	r.Register("1", c)
	assert.Equal(t, 1, r.Len())
}

func TestRegistrySupersede(t *testing.T) {
	r := NewRegistry()
	first := NewClient("c1", "", 0)
	second := NewClient("c2", "", 0)

	r.Register("1", first)
	r.Register("1", second)

	assert.False(t, r.Unregister(first), "stale handle must not remove the live mapping")
	got, ok := r.Resolve("1")
	require.True(t, ok)
	assert.Same(t, second, got)

	assert.True(t, r.Unregister(second))
	_, ok = r.Resolve("1")
	assert.False(t, ok)
}

func TestRegistryReannounceAsAnotherUser(t *testing.T) {
	r := NewRegistry()
	c := NewClient("c1", "", 0)

	r.Register("1", c)
	r.Register("2", c)

	_, ok := r.Resolve("1")
	assert.False(t, ok)
	assert.Equal(t, []string{"2"}, r.Online())
}

func TestRegistryUnregisterUnannounced(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Unregister(NewClient("c1", "", 0)))
}

func TestRegistryOnlineIsSorted(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"3", "1", "2"} {
		r.Register(id, NewClient("c"+id, "", 0))
	}
	assert.Equal(t, []string{"1", "2", "3"}, r.Online())
}
