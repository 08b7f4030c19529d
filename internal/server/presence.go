package server

import (
	"sort"

	"github.com/teamchat-dev/teamchat/internal/types"
)

type presenceEntry struct {
	user  types.User
	conns map[string]struct{}
}

// presenceTracker maps an identity to the set of its open connection ids. An
// identity is online iff its set is non-empty; entries are removed, not left
// empty, when the last connection closes. The tracker is owned by the
// ChatServer run loop and must not be touched from other goroutines.
type presenceTracker struct {
	entries map[string]*presenceEntry
}

func newPresenceTracker() *presenceTracker {
	return &presenceTracker{
		entries: make(map[string]*presenceEntry),
	}
}

// connectionOpened records connId for the user and reports whether the user
// just came online.
func (pt *presenceTracker) connectionOpened(user types.User, connId string) bool {
	entry, ok := pt.entries[user.Id]
	if !ok {
		entry = &presenceEntry{
			user:  user,
			conns: make(map[string]struct{}),
		}
		pt.entries[user.Id] = entry
	}
	entry.conns[connId] = struct{}{}

	return !ok
}

// connectionClosed removes connId for the user and reports whether the user
// went offline. Closing an unknown connection is a no-op.
func (pt *presenceTracker) connectionClosed(userId, connId string) bool {
	entry, ok := pt.entries[userId]
	if !ok {
		return false
	}

	delete(entry.conns, connId)
	if len(entry.conns) == 0 {
		delete(pt.entries, userId)
		return true
	}

	return false
}

func (pt *presenceTracker) onlineUsers() []types.User {
	users := make([]types.User, 0, len(pt.entries))
	for _, entry := range pt.entries {
		users = append(users, entry.user)
	}

	sort.Slice(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].Id < users[j].Id
	})

	return users
}
