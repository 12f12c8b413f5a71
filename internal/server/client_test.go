package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-blogchat/internal/database"
	"github.com/npezzotti/go-blogchat/internal/testutil"
	"github.com/npezzotti/go-blogchat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubAuthenticator map[string]types.Identity

func (s stubAuthenticator) Authenticate(token string) (types.Identity, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return types.Identity{}, errors.New("invalid token")
}

func Test_queueMessage(t *testing.T) {
	t.Run("successful queue", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		res := c.queueMessage(&ServerMessage{})
		assert.True(t, res, "expected queueMessage to return true when channel is not full")
		assert.Len(t, c.send, 1, "expected a message to be sent to the client")
	})

	t.Run("channel full", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		c.send <- &ServerMessage{}
		res := c.queueMessage(&ServerMessage{Event: EventRoomPeers})
		assert.False(t, res, "expected queueMessage to return false when channel is full")
	})
}

func Test_stopClient(t *testing.T) {
	c := &Client{
		stop: make(chan struct{}),
	}

	c.stopClient()
	c.stopClient()

	select {
	case <-c.stop:
	default:
		t.Error("expected stop channel to be closed")
	}
}

func Test_displayName(t *testing.T) {
	assert.Equal(t, "alice", (&Client{identity: types.Identity{UserId: "u1", Name: " alice "}}).displayName())
	assert.Equal(t, anonymousName, (&Client{}).displayName())
}

func TestClient_handleMessage(t *testing.T) {
	t.Run("malformed input is dropped", func(t *testing.T) {
		cs := startTestChatServer(t, roomRepo())
		c := newTestClient(t, cs, types.Identity{UserId: "u1", Name: "alice"})

		for _, raw := range []string{
			`not json`,
			`{"event":"dance"}`,
			`{"event":"join"}`,
			`{"event":"join","data":{"room_id":""}}`,
			`{"event":"join","data":{"room_id":"missing"}}`,
			`{"event":"join","data":"r1"}`,
			`{"event":"leave","data":{"room_id":"r1"}}`,
			`{"event":"send_message","data":{"room_id":"r1","text":"  "}}`,
			`{"event":"send_message","data":{"room_id":"","text":"hi"}}`,
		} {
			c.handleMessage([]byte(raw))
		}
		settle(t, cs)

		assert.Empty(t, drain(c), "expected no events for malformed input")
		peers, err := cs.Peers(context.Background(), "r1")
		require.NoError(t, err)
		assert.Zero(t, peers["r1"])
	})

	t.Run("rate limited events are dropped", func(t *testing.T) {
		cs := startTestChatServer(t, roomRepo())
		c := newTestClient(t, cs, types.Identity{UserId: "u1", Name: "alice"})
		c.limiter = NewRateLimiter(1, time.Minute)

		c.handleMessage([]byte(`{"event":"join","data":{"room_id":"r1"}}`))
		c.handleMessage([]byte(`{"event":"join","data":{"room_id":"r2"}}`))

		assert.Equal(t, []*ServerMessage{JoinedMessage("r1", 1)}, drain(c))
	})

	t.Run("anonymous send uses fallback identity", func(t *testing.T) {
		db := roomRepo()
		db.On("CreateMessage", mock.MatchedBy(func(p database.CreateMessageParams) bool {
			return p.Name == "guest" && p.UserId != nil && *p.UserId == "7"
		})).Return(database.Message{Id: 1}, nil).Once()
		defer db.AssertExpectations(t)

		cs := startTestChatServer(t, db)
		c := newTestClient(t, cs, types.Identity{})
		c.handleMessage([]byte(`{"event":"join","data":{"room_id":"r1"}}`))
		drain(c)

		c.handleMessage([]byte(`{"event":"send_message","data":{"room_id":"r1","text":"hi","cid":42,"me_id":7,"me_name":"guest"}}`))
		settle(t, cs)

		msgs := drain(c)
		require.Equal(t, []string{EventNewMessage, EventSendAck}, events(msgs))
		nm := msgs[0].Data.(*NewMessage)
		assert.Equal(t, "42", *nm.Cid)
		assert.Equal(t, "guest", nm.Name)
	})
}

func TestClient_bindUser(t *testing.T) {
	auth := stubAuthenticator{"good": {UserId: "u1", Name: "alice"}}
	cs := startTestChatServer(t, roomRepo(), WithAuthenticator(auth))
	ctx := context.Background()

	c := newTestClient(t, cs, types.Identity{})

	c.handleMessage([]byte(`{"event":"bind_user_notifications","data":{}}`))
	n, err := cs.PushToUser(ctx, "u1", NotifyMessage(types.Notification{Id: "1"}))
	require.NoError(t, err)
	assert.Zero(t, n, "expected anonymous rebind to bind nothing")

	c.handleMessage([]byte(`{"event":"bind_user_notifications","data":{"token":"bad"}}`))
	n, err = cs.PushToUser(ctx, "u1", NotifyMessage(types.Notification{Id: "2"}))
	require.NoError(t, err)
	assert.Zero(t, n, "expected invalid token to bind nothing")

	c.handleMessage([]byte(`{"event":"bind_user_notifications","data":{"token":"good"}}`))
	n, err = cs.PushToUser(ctx, "u1", NotifyMessage(types.Notification{Id: "3"}))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "expected token to bind the private channel")
	assert.Equal(t, "alice", c.displayName(), "expected identity to be replaced")

	c.handleMessage([]byte(`{"event":"bind_user_notifications"}`))
	n, err = cs.PushToUser(ctx, "u1", NotifyMessage(types.Notification{Id: "4"}))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "expected rebind without token to keep a single binding")
}

func TestClient_ReadWrite(t *testing.T) {
	cs := startTestChatServer(t, roomRepo())
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(types.Identity{UserId: r.URL.Query().Get("u"), Name: r.URL.Query().Get("u")}, conn, cs, testutil.TestLogger(t))
		if !c.Register() {
			conn.Close()
			return
		}
		go c.Write()
		go c.Read()
	}))
	defer srv.Close()

	dial := func(user string) *websocket.Conn {
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?u=" + user
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		return conn
	}

	read := func(conn *websocket.Conn) map[string]any {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	a := dial("alice")
	defer a.Close()
	require.NoError(t, a.WriteJSON(map[string]any{"event": "join", "data": map[string]string{"room_id": "r1"}}))
	assert.Equal(t, "joined", read(a)["event"])

	b := dial("bob")
	require.NoError(t, b.WriteJSON(map[string]any{"event": "join", "data": map[string]string{"room_id": "r1"}}))
	assert.Equal(t, "joined", read(b)["event"])

	peers := read(a)
	assert.Equal(t, "room_peers", peers["event"])
	assert.EqualValues(t, 2, peers["data"].(map[string]any)["peers"])
	assert.Equal(t, "system_notice", read(a)["event"])

	require.NoError(t, b.Close())

	peers = read(a)
	assert.Equal(t, "room_peers", peers["event"])
	assert.EqualValues(t, 1, peers["data"].(map[string]any)["peers"])
	notice := read(a)
	assert.Equal(t, "bob님이 퇴장하셨습니다.", notice["data"].(map[string]any)["text"])
}
