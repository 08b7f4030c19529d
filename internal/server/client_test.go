package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamchat-dev/teamchat/internal/auth"
	"github.com/teamchat-dev/teamchat/internal/database"
	"github.com/teamchat-dev/teamchat/internal/types"
)

func Test_queueMessage(t *testing.T) {
	c := newTestClient(t, "c1")

	assert.True(t, c.queueMessage(ErrorEvent("ok")))

	for len(c.send) < cap(c.send) {
		c.send <- ErrorEvent("fill")
	}
	assert.False(t, c.queueMessage(ErrorEvent("overflow")), "expected queueMessage to drop instead of block")
}

func Test_handleEvent_unknownType(t *testing.T) {
	c := newTestClient(t, "c1")

	c.handleEvent(&ClientEvent{Type: "nope"})

	require.Len(t, c.send, 1)
	ev := <-c.send
	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, "unknown event type", ev.Error)
}

func Test_publish_anonymousDropped(t *testing.T) {
	cs, db, su := newTestChatServer(t)
	c := newIdentifiedClient(t, cs, su, "c1", nil)

	c.publish(&ClientEvent{Type: EventMessageCreate, ChannelId: "general", Text: "hi"})

	db.AssertNotCalled(t, "CreateMessage")
	assert.Len(t, c.send, 0, "expected no reply to an anonymous write")
}

func Test_publish_missingChannel(t *testing.T) {
	cs, db, su := newTestChatServer(t)
	c := newIdentifiedClient(t, cs, su, "c1", &auth.Identity{Id: "u1", Name: "alice"})

	c.publish(&ClientEvent{Type: EventMessageCreate, Text: "hi"})

	db.AssertNotCalled(t, "CreateMessage")
	require.Len(t, c.send, 1)
	assert.Equal(t, "channelId required", (<-c.send).Error)
}

func Test_publish(t *testing.T) {
	cs, db, su := newTestChatServer(t)
	c := newIdentifiedClient(t, cs, su, "c1", &auth.Identity{Id: "u1", Name: "alice", Email: "alice@example.com"})

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	db.On("CreateMessage", "general", "u1", "hi").Return(database.Message{
		Id:        "m1",
		ChannelId: "general",
		SenderId:  "u1",
		Text:      "hi",
		CreatedAt: created,
	}, nil)

	c.publish(&ClientEvent{Type: EventMessageCreate, ChannelId: "general", Text: "hi"})

	db.AssertExpectations(t)
	su.AssertCalled(t, "Incr", StatMessagesSent)
	assert.Len(t, c.send, 0, "expected no private reply on success")

	require.Len(t, cs.broadcastChan, 1, "expected the broadcast to be enqueued after the store append")
	req := <-cs.broadcastChan
	assert.Equal(t, "general", req.roomId)
	require.Equal(t, EventMessageNew, req.event.Type)
	assert.Equal(t, &types.Message{
		Id:        "m1",
		Text:      "hi",
		ChannelId: "general",
		CreatedAt: created,
		Sender:    types.User{Id: "u1", Name: "alice"},
	}, req.event.Message)
}

func Test_publish_storeError(t *testing.T) {
	cs, db, su := newTestChatServer(t)
	c := newIdentifiedClient(t, cs, su, "c1", &auth.Identity{Id: "u1", Name: "alice"})

	db.On("CreateMessage", "general", "u1", "hi").Return(database.Message{}, errors.New("db down"))

	c.publish(&ClientEvent{Type: EventMessageCreate, ChannelId: "general", Text: "hi"})

	require.Len(t, c.send, 1, "expected the failure to be reported to this connection only")
	assert.Equal(t, "failed to send message", (<-c.send).Error)
	assert.Len(t, cs.broadcastChan, 0, "expected no broadcast for a failed append")
	su.AssertNotCalled(t, "Incr", StatMessagesSent)
}

func Test_typing(t *testing.T) {
	cs, _, su := newTestChatServer(t)

	anon := newIdentifiedClient(t, cs, su, "c1", nil)
	anon.typing(&ClientEvent{Type: EventTyping, ChannelId: "general", IsTyping: true})
	assert.Len(t, cs.broadcastChan, 0, "expected anonymous typing to be dropped")

	c := newIdentifiedClient(t, cs, su, "c2", &auth.Identity{Id: "u1", Name: "alice", Email: "alice@example.com"})
	c.typing(&ClientEvent{Type: EventTyping, ChannelId: "general", IsTyping: true})

	require.Len(t, cs.broadcastChan, 1)
	req := <-cs.broadcastChan
	assert.Equal(t, "general", req.roomId)
	require.Equal(t, EventTyping, req.event.Type)
	assert.Equal(t, &TypingNotice{
		ChannelId: "general",
		User:      types.User{Id: "u1", Name: "alice", Email: "alice@example.com"},
		IsTyping:  true,
	}, req.event.Typing)
}

func Test_stopClient_idempotent(t *testing.T) {
	c := newTestClient(t, "c1")

	c.stopClient()
	c.stopClient()

	select {
	case <-c.stop:
	default:
		t.Fatal("expected stop channel to be closed")
	}
}
