package runtime

import (
	"context"
	"duochat/domain"
	"duochat/domain/event"
	"duochat/errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type Sink struct {
	name string
}

func (s Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	return nil
}

func newConn() domain.ConnectionID {
	return domain.ConnectionID(uuid.NewString())
}

func TestRegistry_Register_One_Identity_One_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := newConn()
	sink := Sink{name: "tab-1"}

	// Given nobody is connected
	req.Empty(registry.ListOnline())

	// When alice registers
	info, err := registry.Register("alice", "Alice", conn, sink)

	// Then alice is online with one connection
	req.NoError(err)
	req.Equal(domain.Identity("alice"), info.Identity)
	req.Equal("Alice", info.DisplayName)
	req.True(info.Online)
	req.Equal(1, info.Connections)
	req.False(info.ConnectedAt.IsZero())

	subscribers := registry.Lookup("alice")
	req.Len(subscribers, 1)
	req.Equal(conn, subscribers[0].Conn)
	req.Equal(sink, subscribers[0].Sink)
}

func TestRegistry_Register_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := newConn()

	// When the same connection registers twice
	_, err := registry.Register("alice", "Alice", conn, Sink{})
	req.NoError(err)
	info, err := registry.Register("alice", "Alice", conn, Sink{})
	req.NoError(err)

	// Then a single handle is kept
	req.Equal(1, info.Connections)
	req.Len(registry.Lookup("alice"), 1)
	req.Len(registry.All(), 1)
}

func TestRegistry_Register_Blank_Identity(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	_, err := registry.Register("  ", "Nobody", newConn(), Sink{})

	req.ErrorIs(err, errors.ErrInvalidIdentity)
	req.Empty(registry.ListOnline())
	req.Empty(registry.All())
}

func TestRegistry_Two_Connections_Last_Name_Wins_And_Removal_Keeps_Online(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn1, conn2 := newConn(), newConn()

	// Given X registered from two tabs with two names
	_, err := registry.Register("x", "Name1", conn1, Sink{name: "1"})
	req.NoError(err)
	info, err := registry.Register("x", "Name2", conn2, Sink{name: "2"})
	req.NoError(err)

	// Then there is a single entry with two handles
	req.Len(registry.ListOnline(), 1)
	req.Equal(2, info.Connections)
	req.Equal("Name2", info.DisplayName)
	req.Len(registry.Lookup("x"), 2)

	// When one handle goes away
	identity, offline := registry.RemoveConnection(conn1)

	// Then X is still online through the other one
	req.Equal(domain.Identity("x"), identity)
	req.False(offline)
	req.True(registry.IsOnline("x"))
	subscribers := registry.Lookup("x")
	req.Len(subscribers, 1)
	req.Equal(conn2, subscribers[0].Conn)
}

func TestRegistry_RemoveConnection_Last_Handle(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := newConn()
	_, err := registry.Register("bob", "Bob", conn, Sink{})
	req.NoError(err)

	// When the only connection closes
	identity, offline := registry.RemoveConnection(conn)

	// Then bob goes offline, the entry is deleted
	req.Equal(domain.Identity("bob"), identity)
	req.True(offline)
	req.False(registry.IsOnline("bob"))
	req.Empty(registry.ListOnline())
	req.Nil(registry.Lookup("bob"))

	// And removing again is a no-op
	identity, offline = registry.RemoveConnection(conn)
	req.Empty(identity)
	req.False(offline)

	// And bob is still known, as offline
	info, ok := registry.Get("bob")
	req.True(ok)
	req.False(info.Online)
	req.Equal("Bob", info.DisplayName)
	req.Zero(info.Connections)
}

func TestRegistry_Register_Moves_Connection_Between_Identities(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := newConn()

	// Given a connection registered as alice
	_, err := registry.Register("alice", "Alice", conn, Sink{})
	req.NoError(err)

	// When the same connection registers as carol
	_, err = registry.Register("carol", "Carol", conn, Sink{})
	req.NoError(err)

	// Then alice is offline and carol owns the handle
	req.False(registry.IsOnline("alice"))
	req.True(registry.IsOnline("carol"))
	req.Len(registry.All(), 1)
}

func TestRegistry_Get_Unknown_Identity(t *testing.T) {
	_, ok := NewRegistry().Get("ghost")
	require.False(t, ok)
}

func TestRegistry_Blank_Display_Name_Defaults_To_Identity(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	info, err := registry.Register("dora", "", newConn(), Sink{})
	req.NoError(err)
	req.Equal("dora", info.DisplayName)

	// A later blank name keeps the previous value
	_, err = registry.Register("dora", "Dora", newConn(), Sink{})
	req.NoError(err)
	info, err = registry.Register("dora", "", newConn(), Sink{})
	req.NoError(err)
	req.Equal("Dora", info.DisplayName)
}

func TestRegistry_Remember_Does_Not_Make_Online(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Remember("emiroow", "Emiroow")

	info, ok := registry.Get("emiroow")
	req.True(ok)
	req.False(info.Online)
	req.Empty(registry.ListOnline())
}

func TestRegistry_Concurrent_Register_And_Remove(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	const n = 50
	conns := make([]domain.ConnectionID, n)
	for i := range conns {
		conns[i] = newConn()
	}

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(conn domain.ConnectionID) {
			defer wg.Done()
			_, _ = registry.Register("crowd", "Crowd", conn, Sink{})
		}(conn)
	}
	wg.Wait()
	req.Len(registry.Lookup("crowd"), n)

	for _, conn := range conns {
		wg.Add(1)
		go func(conn domain.ConnectionID) {
			defer wg.Done()
			registry.RemoveConnection(conn)
		}(conn)
	}
	wg.Wait()
	req.False(registry.IsOnline("crowd"))
	req.Empty(registry.All())
}
