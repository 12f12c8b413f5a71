package database

import "time"

type Room struct {
	Id         int
	ExternalId string
	Category   string
	Name       string
	CreatedAt  time.Time
}

type Message struct {
	Id        int64
	RoomId    string
	UserId    *string
	Name      string
	Text      string
	Cid       *string
	CreatedAt time.Time
}

type Notification struct {
	Id          int64
	RecipientId string
	Type        string
	ActorId     string
	PostId      *string
	CommentId   *string
	Read        bool
	CreatedAt   time.Time
}

type CreateRoomParams struct {
	ExternalId string
	Category   string
	Name       string
}

type CreateMessageParams struct {
	RoomId    string
	UserId    *string
	Name      string
	Text      string
	Cid       *string
	CreatedAt time.Time
}

type CreateNotificationParams struct {
	RecipientId string
	Type        string
	ActorId     string
	PostId      *string
	CommentId   *string
	CreatedAt   time.Time
}
