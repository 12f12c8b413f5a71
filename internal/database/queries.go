package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (db *PgRepository) GetRoomByExternalId(ctx context.Context, externalId string) (Room, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, external_id, category, name, created_at FROM chat_rooms "+
			"WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Category,
		&room.Name,
		&room.CreatedAt,
	)

	return room, notFound(err)
}

func (db *PgRepository) ListRoomsByCategory(ctx context.Context, category string) ([]Room, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, external_id, category, name, created_at FROM chat_rooms "+
			"WHERE category = $1 ORDER BY id DESC",
		category,
	)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]Room, 0)
	for rows.Next() {
		var room Room
		if err := rows.Scan(&room.Id, &room.ExternalId, &room.Category, &room.Name, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

func (db *PgRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error) {
	res := db.conn.QueryRowContext(ctx,
		"INSERT INTO chat_rooms (external_id, category, name, created_at) "+
			"VALUES ($1, $2, $3, now()) RETURNING id, external_id, category, name, created_at",
		params.ExternalId,
		params.Category,
		params.Name,
	)

	var room Room
	err := res.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Category,
		&room.Name,
		&room.CreatedAt,
	)

	return room, err
}

func (db *PgRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	res := db.conn.QueryRowContext(ctx,
		"INSERT INTO chat_messages (room_id, user_id, name, text, cid, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) RETURNING id",
		params.RoomId,
		params.UserId,
		params.Name,
		params.Text,
		params.Cid,
		params.CreatedAt,
	)

	msg := Message{
		RoomId:    params.RoomId,
		UserId:    params.UserId,
		Name:      params.Name,
		Text:      params.Text,
		Cid:       params.Cid,
		CreatedAt: params.CreatedAt,
	}
	err := res.Scan(&msg.Id)

	return msg, err
}

// GetRecentMessages returns up to limit messages for the room, newest first.
func (db *PgRepository) GetRecentMessages(ctx context.Context, roomId string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, room_id, user_id, name, text, cid, created_at FROM chat_messages "+
			"WHERE room_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2",
		roomId,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0, limit)
	for rows.Next() {
		var (
			msg    Message
			userId sql.NullString
			cid    sql.NullString
		)
		if err := rows.Scan(&msg.Id, &msg.RoomId, &userId, &msg.Name, &msg.Text, &cid, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if userId.Valid {
			msg.UserId = &userId.String
		}
		if cid.Valid {
			msg.Cid = &cid.String
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (db *PgRepository) CreateNotification(ctx context.Context, params CreateNotificationParams) (Notification, error) {
	res := db.conn.QueryRowContext(ctx,
		"INSERT INTO notifications (recipient_id, type, actor_id, post_id, comment_id, read, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, FALSE, $6) RETURNING id",
		params.RecipientId,
		params.Type,
		params.ActorId,
		params.PostId,
		params.CommentId,
		params.CreatedAt,
	)

	n := Notification{
		RecipientId: params.RecipientId,
		Type:        params.Type,
		ActorId:     params.ActorId,
		PostId:      params.PostId,
		CommentId:   params.CommentId,
		CreatedAt:   params.CreatedAt,
	}
	err := res.Scan(&n.Id)

	return n, err
}

func (db *PgRepository) ListNotifications(ctx context.Context, recipientId string, limit int) ([]Notification, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, recipient_id, type, actor_id, post_id, comment_id, read, created_at FROM notifications "+
			"WHERE recipient_id = $1 ORDER BY id DESC LIMIT $2",
		recipientId,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]Notification, 0, limit)
	for rows.Next() {
		var (
			n         Notification
			postId    sql.NullString
			commentId sql.NullString
		)
		if err := rows.Scan(&n.Id, &n.RecipientId, &n.Type, &n.ActorId, &postId, &commentId, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if postId.Valid {
			n.PostId = &postId.String
		}
		if commentId.Valid {
			n.CommentId = &commentId.String
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

func (db *PgRepository) CountUnreadNotifications(ctx context.Context, recipientId string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		"SELECT count(*) FROM notifications WHERE recipient_id = $1 AND read = FALSE",
		recipientId,
	).Scan(&count)

	return count, err
}

// MarkNotificationsRead marks the given notifications read. An empty ids slice
// marks every unread notification of the recipient.
func (db *PgRepository) MarkNotificationsRead(ctx context.Context, recipientId string, ids []int64) error {
	if len(ids) == 0 {
		_, err := db.conn.ExecContext(ctx,
			"UPDATE notifications SET read = TRUE WHERE recipient_id = $1 AND read = FALSE",
			recipientId,
		)
		return err
	}

	_, err := db.conn.ExecContext(ctx,
		"UPDATE notifications SET read = TRUE WHERE recipient_id = $1 AND id = ANY($2)",
		recipientId,
		pq.Array(ids),
	)

	return err
}

func (db *PgRepository) GetAccountName(ctx context.Context, accountId string) (string, error) {
	var name string
	err := db.conn.QueryRowContext(ctx,
		"SELECT name FROM accounts WHERE id = $1 LIMIT 1",
		accountId,
	).Scan(&name)

	return name, notFound(err)
}
