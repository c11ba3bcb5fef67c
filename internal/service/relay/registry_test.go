package relay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_AddCreatesAnonymousSession(t *testing.T) {
	registry := NewRegistry()

	session := registry.Add(&fakeConn{})

	require.NotEmpty(t, session.ID)
	require.False(t, session.Bound())
	require.Equal(t, 1, registry.Len())
	require.Empty(t, registry.Usernames())
}

func TestRegistry_FindByUsernameIsCaseInsensitive(t *testing.T) {
	registry := NewRegistry()
	session := registry.Add(&fakeConn{})
	registry.Bind(session.ID, "Alice")

	require.Same(t, session, registry.FindByUsername("alice"))
	require.Same(t, session, registry.FindByUsername("ALICE"))
	require.Nil(t, registry.FindByUsername("bob"))
}

func TestRegistry_BindUnknownSessionIsNoOp(t *testing.T) {
	registry := NewRegistry()

	registry.Bind("missing", "ghost")

	require.Nil(t, registry.FindByUsername("ghost"))
	require.Equal(t, 0, registry.Len())
}

func TestRegistry_RemoveClearsUsernameIndex(t *testing.T) {
	registry := NewRegistry()
	session := registry.Add(&fakeConn{})
	registry.Bind(session.ID, "alice")

	removed := registry.Remove(session.ID)

	require.Same(t, session, removed)
	require.Nil(t, registry.FindByUsername("alice"))
	require.Equal(t, 0, registry.Len())
	require.Nil(t, registry.Remove(session.ID))
}

func TestRegistry_UsernamesExcludesAnonymousAndSorts(t *testing.T) {
	registry := NewRegistry()
	registry.Add(&fakeConn{}) // never joins
	bob := registry.Add(&fakeConn{})
	registry.Bind(bob.ID, "bob")
	alice := registry.Add(&fakeConn{})
	registry.Bind(alice.ID, "alice")

	require.Equal(t, []string{"alice", "bob"}, registry.Usernames())
}
