package types

import (
	"time"
)

type User struct {
	Id    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type Channel struct {
	Id          string    `json:"id"`
	Name        string    `json:"name"`
	IsPrivate   bool      `json:"isPrivate"`
	MemberCount int       `json:"memberCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Membership struct {
	UserId    string    `json:"userId"`
	ChannelId string    `json:"channelId"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

type Message struct {
	Id        string    `json:"id"`
	Text      string    `json:"text"`
	ChannelId string    `json:"channelId"`
	Sender    User      `json:"sender"`
	CreatedAt time.Time `json:"createdAt"`
}
