package server

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/npezzotti/go-blogchat/internal/database"
	"github.com/npezzotti/go-blogchat/internal/testutil"
	"github.com/npezzotti/go-blogchat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubPreviewer struct {
	preview *types.Preview
	texts   []string
}

func (s *stubPreviewer) ForMessage(ctx context.Context, text string) *types.Preview {
	s.texts = append(s.texts, text)
	return s.preview
}

func Test_resolveAuthor(t *testing.T) {
	meId := LooseText("anon-7")

	tcases := []struct {
		name     string
		identity types.Identity
		meId     *LooseText
		meName   string
		userId   *string
		author   string
	}{
		{
			name:     "bound identity wins over fallback",
			identity: types.Identity{UserId: "u1", Name: "alice"},
			meId:     &meId,
			meName:   "mallory",
			userId:   testutil.Ptr("u1"),
			author:   "alice",
		},
		{
			name:     "bound identity without name",
			identity: types.Identity{UserId: "u1"},
			userId:   testutil.Ptr("u1"),
			author:   anonymousName,
		},
		{
			name:   "anonymous uses fallback",
			meId:   &meId,
			meName: " mallory ",
			userId: testutil.Ptr("anon-7"),
			author: "mallory",
		},
		{
			name:   "anonymous without fallback",
			author: anonymousName,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			a := resolveAuthor(tc.identity, tc.meId, tc.meName)
			assert.Equal(t, tc.userId, a.UserId)
			assert.Equal(t, tc.author, a.Name)
		})
	}
}

func Test_normalizeText(t *testing.T) {
	assert.Equal(t, "hi", normalizeText("  hi \n"))
	assert.Equal(t, "", normalizeText(" \t "))

	long := strings.Repeat("가", maxTextRunes+10)
	out := normalizeText(long)
	assert.Equal(t, maxTextRunes, utf8.RuneCountInString(out), "expected text to be truncated by runes")
}

func TestChatServer_Publish(t *testing.T) {
	t.Run("rejects empty text and unknown rooms", func(t *testing.T) {
		db := roomRepo()
		cs := startTestChatServer(t, db)
		a := newTestClient(t, cs, types.Identity{UserId: "u1", Name: "alice"})
		cs.join(a, "r1", "alice")
		drain(a)

		_, err := cs.Publish(context.Background(), SendRequest{RoomId: "r1", Text: "   ", AckTo: a.Id()})
		assert.ErrorIs(t, err, ErrEmptyText)

		_, err = cs.Publish(context.Background(), SendRequest{RoomId: "missing", Text: "hi", AckTo: a.Id()})
		assert.ErrorIs(t, err, ErrRoomNotFound)

		settle(t, cs)
		assert.Empty(t, drain(a), "expected dropped sends to emit nothing")
		db.AssertNotCalled(t, "CreateMessage", mock.Anything)
	})

	t.Run("persistence failure falls back to ephemeral id", func(t *testing.T) {
		db := roomRepo()
		db.On("CreateMessage", mock.Anything).Return(database.Message{}, errors.New("store unavailable")).Once()
		defer db.AssertExpectations(t)

		cs := startTestChatServer(t, db)
		a := newTestClient(t, cs, types.Identity{})
		cs.join(a, "r1", anonymousName)
		drain(a)

		msg, err := cs.Publish(context.Background(), SendRequest{
			RoomId: "r1",
			Text:   "hello",
			Author: Author{Name: anonymousName},
			AckTo:  a.Id(),
		})
		require.NoError(t, err, "expected persistence failure not to surface")
		assert.True(t, msg.Id.IsEphemeral(), "expected ephemeral id")

		settle(t, cs)
		msgs := drain(a)
		require.Equal(t, []string{EventNewMessage, EventSendAck}, events(msgs))
		assert.Equal(t, msg, msgs[0].Data)
		assert.Equal(t, SendAck{}, msgs[1].Data, "expected ack without id")
	})

	t.Run("enriches with link preview", func(t *testing.T) {
		db := roomRepo()
		db.On("CreateMessage", mock.Anything).Return(database.Message{Id: 9}, nil).Once()
		defer db.AssertExpectations(t)

		previews := &stubPreviewer{preview: &types.Preview{Url: "https://go.dev", Title: "Go"}}
		cs := startTestChatServer(t, db, WithPreviewer(previews))

		msg, err := cs.Publish(context.Background(), SendRequest{
			RoomId: "r1",
			Text:   "see https://go.dev",
			Author: AuthorFromIdentity(types.Identity{UserId: "u1", Name: "alice"}),
		})
		require.NoError(t, err)
		assert.Equal(t, previews.preview, msg.Preview)
		assert.Equal(t, []string{"see https://go.dev"}, previews.texts)
		assert.Equal(t, "9", msg.Id.String())
	})

	t.Run("missing preview is omitted", func(t *testing.T) {
		db := roomRepo()
		db.On("CreateMessage", mock.Anything).Return(database.Message{Id: 10}, nil).Once()

		cs := startTestChatServer(t, db, WithPreviewer(&stubPreviewer{}))
		msg, err := cs.Publish(context.Background(), SendRequest{RoomId: "r1", Text: "no links here"})
		require.NoError(t, err)
		assert.Nil(t, msg.Preview)
	})

	t.Run("sender need not be a member", func(t *testing.T) {
		db := roomRepo()
		db.On("CreateMessage", mock.Anything).Return(database.Message{Id: 11}, nil).Once()

		cs := startTestChatServer(t, db)
		member := newTestClient(t, cs, types.Identity{UserId: "u2", Name: "bob"})
		sender := newTestClient(t, cs, types.Identity{UserId: "u1", Name: "alice"})
		cs.join(member, "r1", "bob")
		drain(member)

		_, err := cs.Publish(context.Background(), SendRequest{RoomId: "r1", Text: "hi", AckTo: sender.Id()})
		require.NoError(t, err)
		settle(t, cs)

		assert.Equal(t, []string{EventNewMessage}, events(drain(member)))
		assert.Equal(t, []string{EventSendAck}, events(drain(sender)))
	})
}

func TestChatServer_History(t *testing.T) {
	uid := "u1"
	db := &database.MockRepository{}
	db.On("GetRecentMessages", "r1", 3).Return([]database.Message{
		{Id: 3, RoomId: "r1", UserId: &uid, Name: "alice", Text: "third"},
		{Id: 2, RoomId: "r1", Name: "익명", Text: "second"},
		{Id: 1, RoomId: "r1", UserId: &uid, Name: "alice", Text: "first"},
	}, nil).Once()
	db.On("GetRecentMessages", "r2", 3).Return([]database.Message(nil), errors.New("boom")).Once()
	defer db.AssertExpectations(t)

	cs := newTestChatServer(t, db)

	msgs, err := cs.History(context.Background(), "r1", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{msgs[0].Text, msgs[1].Text, msgs[2].Text},
		"expected chronological order")
	assert.Equal(t, "1", msgs[0].Id)
	assert.Nil(t, msgs[1].UserId)

	_, err = cs.History(context.Background(), "r2", 3)
	assert.Error(t, err)
}
