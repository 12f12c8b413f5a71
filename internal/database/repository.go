package database

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("record not found")

type Repository interface {
	Ping(ctx context.Context) error
	GetRoomByExternalId(ctx context.Context, externalId string) (Room, error)
	ListRoomsByCategory(ctx context.Context, category string) ([]Room, error)
	CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error)
	CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error)
	GetRecentMessages(ctx context.Context, roomId string, limit int) ([]Message, error)
	CreateNotification(ctx context.Context, params CreateNotificationParams) (Notification, error)
	ListNotifications(ctx context.Context, recipientId string, limit int) ([]Notification, error)
	CountUnreadNotifications(ctx context.Context, recipientId string) (int, error)
	MarkNotificationsRead(ctx context.Context, recipientId string, ids []int64) error
	GetAccountName(ctx context.Context, accountId string) (string, error)
}
