package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/npezzotti/go-blogchat/internal/database"
	"github.com/npezzotti/go-blogchat/internal/types"
)

const unknownActorName = "누군가"

var ErrInvalidNotification = errors.New("invalid notification")

type NotifyParams struct {
	RecipientId string
	Type        types.NotificationType
	ActorId     string
	PostId      *string
	CommentId   *string
}

// Notify stores a notification and pushes it to the recipient's private
// channel if any connection is bound to it. The stored record is
// authoritative; a recipient with no bound connection reads it later.
func (cs *ChatServer) Notify(ctx context.Context, p NotifyParams) (types.Notification, error) {
	p.RecipientId = strings.TrimSpace(p.RecipientId)
	if p.RecipientId == "" || !p.Type.Valid() {
		return types.Notification{}, ErrInvalidNotification
	}

	saved, err := cs.db.CreateNotification(ctx, database.CreateNotificationParams{
		RecipientId: p.RecipientId,
		Type:        string(p.Type),
		ActorId:     p.ActorId,
		PostId:      p.PostId,
		CommentId:   p.CommentId,
		CreatedAt:   Now(),
	})
	if err != nil {
		return types.Notification{}, fmt.Errorf("create notification: %w", err)
	}

	n := SerializeNotification(ctx, cs.db, saved)

	pushed, err := cs.PushToUser(ctx, p.RecipientId, NotifyMessage(n))
	if err != nil {
		cs.log.Printf("push notification %s to %q: %v", n.Id, p.RecipientId, err)
	} else if pushed == 0 {
		cs.log.Printf("no connection bound for %q, notification %s stored only", p.RecipientId, n.Id)
	}

	return n, nil
}

// SerializeNotification builds the client payload, resolving the actor's
// display name.
func SerializeNotification(ctx context.Context, db database.Repository, n database.Notification) types.Notification {
	actor := unknownActorName
	if n.ActorId != "" {
		if name, err := db.GetAccountName(ctx, n.ActorId); err == nil && strings.TrimSpace(name) != "" {
			actor = name
		}
	}

	return types.Notification{
		Id:        strconv.FormatInt(n.Id, 10),
		Type:      types.NotificationType(n.Type),
		ActorName: actor,
		Text:      notificationText(types.NotificationType(n.Type), actor),
		PostId:    n.PostId,
		CommentId: n.CommentId,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

func notificationText(t types.NotificationType, actor string) string {
	switch t {
	case types.NotifySubscribe:
		return actor + "님이 나를 구독하였습니다."
	case types.NotifyPostLike:
		return actor + "님이 내 글을 추천했습니다."
	case types.NotifyCommentLike:
		return actor + "님이 내 댓글을 추천했습니다."
	}

	return actor + "님의 활동 알림"
}
