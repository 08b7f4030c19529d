package database

import (
	"github.com/stretchr/testify/mock"
)

type MockTeamChatRepository struct {
	mock.Mock
}

func (m *MockTeamChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockTeamChatRepository) CreateUser(params CreateUserParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockTeamChatRepository) GetUserByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockTeamChatRepository) GetUserById(id string) (User, error) {
	args := m.Called(id)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockTeamChatRepository) GetUsersByIds(ids []string) ([]User, error) {
	args := m.Called(ids)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockTeamChatRepository) ListChannels() ([]Channel, error) {
	args := m.Called()
	return args.Get(0).([]Channel), args.Error(1)
}
func (m *MockTeamChatRepository) CreateChannel(params CreateChannelParams) (Channel, error) {
	args := m.Called(params)
	return args.Get(0).(Channel), args.Error(1)
}
func (m *MockTeamChatRepository) GetChannelById(id string) (Channel, error) {
	args := m.Called(id)
	return args.Get(0).(Channel), args.Error(1)
}
func (m *MockTeamChatRepository) JoinChannel(userId, channelId string) (Membership, error) {
	args := m.Called(userId, channelId)
	return args.Get(0).(Membership), args.Error(1)
}
func (m *MockTeamChatRepository) LeaveChannel(userId, channelId string) error {
	args := m.Called(userId, channelId)
	return args.Error(0)
}
func (m *MockTeamChatRepository) CreateMessage(channelId, senderId, text string) (Message, error) {
	args := m.Called(channelId, senderId, text)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockTeamChatRepository) GetMessage(id string) (Message, error) {
	args := m.Called(id)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockTeamChatRepository) DeleteMessage(id string) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockTeamChatRepository) GetMessages(channelId string, limit int, cursor string) ([]Message, error) {
	args := m.Called(channelId, limit, cursor)
	return args.Get(0).([]Message), args.Error(1)
}
