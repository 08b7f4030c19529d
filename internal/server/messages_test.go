package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamchat-dev/teamchat/internal/types"
)

func Test_ServerEvent_json(t *testing.T) {
	ev := TypingEvent("general", types.User{Id: "u1", Name: "alice"}, true)

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"type": "typing",
		"typing": {
			"channelId": "general",
			"user": {"id": "u1", "name": "alice"},
			"isTyping": true
		}
	}`, string(raw))
}

func Test_ErrorEvent_json(t *testing.T) {
	raw, err := json.Marshal(ErrorEvent("failed to send message"))
	require.NoError(t, err)

	assert.JSONEq(t, `{"type": "error", "error": "failed to send message"}`, string(raw))
}

func Test_PresenceUpdateEvent_emptyList(t *testing.T) {
	raw, err := json.Marshal(PresenceUpdateEvent([]types.User{}))
	require.NoError(t, err)

	assert.JSONEq(t, `{"type": "presence:update", "presence": {"users": []}}`, string(raw))
}
