package database

import "errors"

var (
	ErrDuplicateEmail = errors.New("email already registered")
	ErrAlreadyMember  = errors.New("user is already a member of channel")
)

type TeamChatRepository interface {
	Ping() error
	CreateUser(params CreateUserParams) (User, error)
	GetUserByEmail(email string) (User, error)
	GetUserById(id string) (User, error)
	GetUsersByIds(ids []string) ([]User, error)
	ListChannels() ([]Channel, error)
	CreateChannel(params CreateChannelParams) (Channel, error)
	GetChannelById(id string) (Channel, error)
	JoinChannel(userId, channelId string) (Membership, error)
	LeaveChannel(userId, channelId string) error
	CreateMessage(channelId, senderId, text string) (Message, error)
	GetMessage(id string) (Message, error)
	DeleteMessage(id string) error
	GetMessages(channelId string, limit int, cursor string) ([]Message, error)
}
