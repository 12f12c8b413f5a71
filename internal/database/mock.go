package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRepository) GetRoomByExternalId(ctx context.Context, externalId string) (Room, error) {
	args := m.Called(externalId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRepository) ListRoomsByCategory(ctx context.Context, category string) ([]Room, error) {
	args := m.Called(category)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) GetRecentMessages(ctx context.Context, roomId string, limit int) ([]Message, error) {
	args := m.Called(roomId, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockRepository) CreateNotification(ctx context.Context, params CreateNotificationParams) (Notification, error) {
	args := m.Called(params)
	return args.Get(0).(Notification), args.Error(1)
}
func (m *MockRepository) ListNotifications(ctx context.Context, recipientId string, limit int) ([]Notification, error) {
	args := m.Called(recipientId, limit)
	return args.Get(0).([]Notification), args.Error(1)
}
func (m *MockRepository) CountUnreadNotifications(ctx context.Context, recipientId string) (int, error) {
	args := m.Called(recipientId)
	return args.Int(0), args.Error(1)
}
func (m *MockRepository) MarkNotificationsRead(ctx context.Context, recipientId string, ids []int64) error {
	args := m.Called(recipientId, ids)
	return args.Error(0)
}
func (m *MockRepository) GetAccountName(ctx context.Context, accountId string) (string, error) {
	args := m.Called(accountId)
	return args.String(0), args.Error(1)
}
