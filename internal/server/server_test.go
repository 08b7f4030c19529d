package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/teamchat-dev/teamchat/internal/auth"
	"github.com/teamchat-dev/teamchat/internal/database"
	"github.com/teamchat-dev/teamchat/internal/stats"
	"github.com/teamchat-dev/teamchat/internal/testutil"
	"github.com/teamchat-dev/teamchat/internal/types"
)

func newTestChatServer(t *testing.T) (*ChatServer, *database.MockTeamChatRepository, *stats.MockStatsUpdater) {
	db := &database.MockTeamChatRepository{}
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything)
	su.On("Incr", mock.Anything)
	su.On("Decr", mock.Anything)

	cs, err := NewChatServer(testutil.TestLogger(t), db, su)
	require.NoError(t, err)

	return cs, db, su
}

func newIdentifiedClient(t *testing.T, cs *ChatServer, su *stats.MockStatsUpdater, id string, identity *auth.Identity) *Client {
	c := newTestClient(t, id)
	c.chatServer = cs
	c.stats = su
	c.identity = identity
	return c
}

func recvEvent(t *testing.T, c *Client) *ServerEvent {
	t.Helper()
	select {
	case ev := <-c.send:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func Test_handleRegister_broadcastsPresence(t *testing.T) {
	cs, _, su := newTestChatServer(t)

	alice := &auth.Identity{Id: "u1", Name: "alice", Email: "alice@example.com"}
	bob := &auth.Identity{Id: "u2", Name: "bob", Email: "bob@example.com"}

	cA := newIdentifiedClient(t, cs, su, "c1", alice)
	cAnon := newIdentifiedClient(t, cs, su, "c2", nil)
	cB := newIdentifiedClient(t, cs, su, "c3", bob)

	cs.handleRegister(cA)
	ev := recvEvent(t, cA)
	require.Equal(t, EventPresenceUpdate, ev.Type)
	assert.Equal(t, []types.User{{Id: "u1", Name: "alice", Email: "alice@example.com"}}, ev.Presence.Users)

	// anonymous connections do not change presence
	cs.handleRegister(cAnon)
	assert.Len(t, cAnon.send, 0, "expected no presence broadcast for an anonymous register")

	cs.handleRegister(cB)
	want := []types.User{
		{Id: "u1", Name: "alice", Email: "alice@example.com"},
		{Id: "u2", Name: "bob", Email: "bob@example.com"},
	}
	for _, c := range []*Client{cA, cAnon, cB} {
		ev := recvEvent(t, c)
		require.Equal(t, EventPresenceUpdate, ev.Type)
		assert.Equal(t, want, ev.Presence.Users, "expected every connection, anonymous included, to get the update")
	}
}

func Test_handleDeregister(t *testing.T) {
	cs, _, su := newTestChatServer(t)

	alice := &auth.Identity{Id: "u1", Name: "alice"}
	bob := &auth.Identity{Id: "u2", Name: "bob"}

	cA := newIdentifiedClient(t, cs, su, "c1", alice)
	cB := newIdentifiedClient(t, cs, su, "c2", bob)

	cs.handleRegister(cA)
	cs.handleRegister(cB)
	<-cA.send
	<-cA.send
	<-cB.send

	cs.handleDeregister(cA)

	ev := recvEvent(t, cB)
	require.Equal(t, EventPresenceUpdate, ev.Type)
	assert.Equal(t, []types.User{{Id: "u2", Name: "bob"}}, ev.Presence.Users)
	assert.Len(t, cA.send, 0, "expected no broadcast to the departed connection")

	select {
	case <-cA.stop:
	default:
		t.Fatal("expected deregistered client to be stopped")
	}

	// deregistering an unknown client is a no-op
	cs.handleDeregister(cA)
	assert.Len(t, cB.send, 0)
}

func Test_handleJoin_roomScopedPresence(t *testing.T) {
	cs, _, su := newTestChatServer(t)

	alice := &auth.Identity{Id: "u1", Name: "alice"}

	cA := newIdentifiedClient(t, cs, su, "c1", alice)
	cAnon := newIdentifiedClient(t, cs, su, "c2", nil)

	cs.handleRegister(cA)
	cs.handleRegister(cAnon)
	<-cA.send

	cs.handleJoin(roomRequest{client: cAnon, channelId: "general"})
	assert.Len(t, cAnon.send, 0, "expected no presence refresh for an anonymous join")

	cs.handleJoin(roomRequest{client: cA, channelId: "general"})
	for _, c := range []*Client{cA, cAnon} {
		ev := recvEvent(t, c)
		require.Equal(t, EventPresenceUpdate, ev.Type)
		assert.Equal(t, []types.User{{Id: "u1", Name: "alice"}}, ev.Presence.Users)
	}
}

func Test_broadcast_dropsWhenSaturated(t *testing.T) {
	cs, _, _ := newTestChatServer(t)

	for i := 0; i < cap(cs.broadcastChan); i++ {
		require.True(t, cs.broadcast("general", ErrorEvent("fill")))
	}
	assert.False(t, cs.broadcast("general", ErrorEvent("overflow")), "expected broadcast to report a drop when the gateway is saturated")
}

func Test_NotifyMessageDeleted(t *testing.T) {
	cs, _, su := newTestChatServer(t)
	go cs.Run()
	defer cs.Shutdown(context.Background())

	alice := &auth.Identity{Id: "u1", Name: "alice"}
	cA := newIdentifiedClient(t, cs, su, "c1", alice)

	cs.RegisterClient(cA)
	<-cA.send // presence from register

	cs.joinRoom(cA, "general")
	ev := recvEvent(t, cA)
	require.Equal(t, EventPresenceUpdate, ev.Type)

	cs.NotifyMessageDeleted("m1", "general")

	ev = recvEvent(t, cA)
	require.Equal(t, EventMessageDeleted, ev.Type)
	assert.Equal(t, &MessageDeleted{Id: "m1", ChannelId: "general"}, ev.Deleted)
}

func Test_Shutdown(t *testing.T) {
	cs, _, su := newTestChatServer(t)
	go cs.Run()

	cA := newIdentifiedClient(t, cs, su, "c1", &auth.Identity{Id: "u1", Name: "alice"})
	cs.RegisterClient(cA)

	require.NoError(t, cs.Shutdown(context.Background()))

	select {
	case <-cA.stop:
	case <-time.After(time.Second):
		t.Fatal("expected connected clients to be stopped on shutdown")
	}

	// the run loop has exited; a shutdown with a cancelled context reports it
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, cs.Shutdown(ctx), context.Canceled)
}
