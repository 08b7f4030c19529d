package server

import (
	"github.com/teamchat-dev/teamchat/internal/types"
)

// Client to server event types.
const (
	EventJoin          = "join"
	EventLeave         = "leave"
	EventMessageCreate = "message:create"
	EventTyping        = "typing"
)

// Server to client event types.
const (
	EventMessageNew     = "message:new"
	EventMessageDeleted = "message:deleted"
	EventPresenceUpdate = "presence:update"
	EventError          = "error"
)

type ClientEvent struct {
	Type      string `json:"type"`
	ChannelId string `json:"channelId"`
	Text      string `json:"text,omitempty"`
	IsTyping  bool   `json:"isTyping,omitempty"`
}

type ServerEvent struct {
	Type     string          `json:"type"`
	Message  *types.Message  `json:"message,omitempty"`
	Deleted  *MessageDeleted `json:"deleted,omitempty"`
	Typing   *TypingNotice   `json:"typing,omitempty"`
	Presence *PresenceUpdate `json:"presence,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type MessageDeleted struct {
	Id        string `json:"id"`
	ChannelId string `json:"channelId"`
}

type TypingNotice struct {
	ChannelId string     `json:"channelId"`
	User      types.User `json:"user"`
	IsTyping  bool       `json:"isTyping"`
}

type PresenceUpdate struct {
	Users []types.User `json:"users"`
}

func NewMessageEvent(msg types.Message) *ServerEvent {
	return &ServerEvent{
		Type:    EventMessageNew,
		Message: &msg,
	}
}

func MessageDeletedEvent(id, channelId string) *ServerEvent {
	return &ServerEvent{
		Type:    EventMessageDeleted,
		Deleted: &MessageDeleted{Id: id, ChannelId: channelId},
	}
}

func TypingEvent(channelId string, user types.User, isTyping bool) *ServerEvent {
	return &ServerEvent{
		Type:   EventTyping,
		Typing: &TypingNotice{ChannelId: channelId, User: user, IsTyping: isTyping},
	}
}

func PresenceUpdateEvent(users []types.User) *ServerEvent {
	return &ServerEvent{
		Type:     EventPresenceUpdate,
		Presence: &PresenceUpdate{Users: users},
	}
}

func ErrorEvent(msg string) *ServerEvent {
	return &ServerEvent{
		Type:  EventError,
		Error: msg,
	}
}
