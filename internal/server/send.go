package server

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/npezzotti/go-blogchat/internal/database"
	"github.com/npezzotti/go-blogchat/internal/stats"
	"github.com/npezzotti/go-blogchat/internal/types"
)

const (
	anonymousName = "익명"
	maxTextRunes  = 2000
)

var ErrEmptyText = errors.New("text required")

// Author is who a message is attributed to. UserId is nil for anonymous
// senders that supplied no fallback id.
type Author struct {
	UserId *string
	Name   string
}

// resolveAuthor prefers the connection's identity. The client supplied
// fallback id and name are only used when no identity is bound, so an
// anonymous sender's chat identity is whatever it claims to be.
func resolveAuthor(identity types.Identity, meId *LooseText, meName string) Author {
	if !identity.Anonymous() {
		uid := identity.UserId
		name := strings.TrimSpace(identity.Name)
		if name == "" {
			name = anonymousName
		}
		return Author{UserId: &uid, Name: name}
	}

	name := strings.TrimSpace(meName)
	if name == "" {
		name = anonymousName
	}

	return Author{UserId: meId.ptr(), Name: name}
}

// AuthorFromIdentity attributes a message to an authenticated caller.
func AuthorFromIdentity(identity types.Identity) Author {
	return resolveAuthor(identity, nil, "")
}

type SendRequest struct {
	RoomId string
	Text   string
	Cid    *string
	Author Author
	// AckTo is the connection that receives send_ack after the broadcast.
	AckTo string
}

// normalizeText trims text and truncates it to maxTextRunes.
func normalizeText(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= maxTextRunes {
		return text
	}

	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxTextRunes]))
}

// Publish runs the send pipeline: validate, enrich with a link preview,
// persist and broadcast to the room. Only validation errors are returned. A
// failed write is logged and the message goes out under an ephemeral id.
func (cs *ChatServer) Publish(ctx context.Context, req SendRequest) (*NewMessage, error) {
	text := normalizeText(req.Text)
	if text == "" {
		return nil, ErrEmptyText
	}

	lookupCtx, cancel := storeContext(ctx)
	room, err := cs.directory.Get(lookupCtx, req.RoomId)
	cancel()
	if err != nil {
		return nil, err
	}

	msg := &NewMessage{
		RoomId: room.Id,
		UserId: req.Author.UserId,
		Name:   req.Author.Name,
		Text:   text,
		Ts:     Now(),
		Cid:    req.Cid,
	}

	if cs.previews != nil {
		msg.Preview = cs.previews.ForMessage(ctx, text)
	}

	msg.Id = cs.persistMessage(ctx, msg)
	cs.stats.Incr(stats.MessagesSent)

	bcast := broadcastReq{roomId: room.Id, msg: NewMessageMessage(msg)}
	if req.AckTo != "" {
		bcast.to = req.AckTo
		bcast.direct = SendAckMessage(msg.Id)
	}
	cs.submitBroadcast(bcast)

	return msg, nil
}

func (cs *ChatServer) persistMessage(ctx context.Context, msg *NewMessage) MessageID {
	storeCtx, cancel := storeContext(ctx)
	defer cancel()

	saved, err := cs.db.CreateMessage(storeCtx, database.CreateMessageParams{
		RoomId:    msg.RoomId,
		UserId:    msg.UserId,
		Name:      msg.Name,
		Text:      msg.Text,
		Cid:       msg.Cid,
		CreatedAt: msg.Ts,
	})
	if err != nil {
		cs.log.Printf("error saving message to room %q: %v", msg.RoomId, err)
		cs.stats.Incr(stats.MessagePersistFailures)
		return EphemeralID(msg.Ts)
	}

	return PersistedID(saved.Id)
}

// History returns up to limit recent messages of the room in chronological
// order.
func (cs *ChatServer) History(ctx context.Context, roomId string, limit int) ([]types.Message, error) {
	dbMessages, err := cs.db.GetRecentMessages(ctx, roomId, limit)
	if err != nil {
		return nil, err
	}

	messages := make([]types.Message, len(dbMessages))
	for i, m := range dbMessages {
		messages[len(dbMessages)-1-i] = types.Message{
			Id:        PersistedID(m.Id).String(),
			UserId:    m.UserId,
			Name:      m.Name,
			Text:      m.Text,
			Timestamp: m.CreatedAt,
		}
	}

	return messages, nil
}
