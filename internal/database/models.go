package database

import "time"

type User struct {
	Id           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

type Channel struct {
	Id          string    `db:"id"`
	Name        string    `db:"name"`
	IsPrivate   bool      `db:"is_private"`
	MemberCount int       `db:"member_count"`
	CreatedAt   time.Time `db:"created_at"`
}

type Membership struct {
	UserId    string    `db:"user_id"`
	ChannelId string    `db:"channel_id"`
	CreatedAt time.Time `db:"created_at"`
}

// Message rows returned by GetMessages carry the sender's name and email from
// a join against users; rows returned by CreateMessage leave them empty.
type Message struct {
	Id          string    `db:"id"`
	ChannelId   string    `db:"channel_id"`
	SenderId    string    `db:"sender_id"`
	Text        string    `db:"text"`
	CreatedAt   time.Time `db:"created_at"`
	SenderName  string    `db:"sender_name"`
	SenderEmail string    `db:"sender_email"`
}

type CreateUserParams struct {
	Name         string
	Email        string
	PasswordHash string
}

type CreateChannelParams struct {
	Id        string
	Name      string
	IsPrivate bool
}
