package server

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-blogchat/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Client is one live websocket connection. identity is only touched by the
// Read goroutine after the client is registered.
type Client struct {
	id         string
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	identity   types.Identity
	send       chan *ServerMessage
	limiter    *RateLimiter
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(identity types.Identity, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		id:         newConnectionId(),
		conn:       conn,
		chatServer: cs,
		log:        l,
		identity:   identity,
		send:       make(chan *ServerMessage, sendBufferSize),
		limiter:    NewRateLimiter(rateLimitEvents, rateLimitWindow),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Id() string {
	return c.id
}

// Register adds the client to the chat server and binds its private
// channel when the handshake resolved an identity.
func (c *Client) Register() bool {
	return c.chatServer.register(c, c.identity.UserId)
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		c.handleMessage(raw)
	}
}

// handleMessage dispatches one inbound frame. Malformed or unknown frames
// are dropped without a reply.
func (c *Client) handleMessage(raw []byte) {
	if !c.limiter.Allow(time.Now()) {
		c.log.Printf("rate limit exceeded on connection %q, dropping event", c.id)
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.log.Println("error parsing message:", err)
		return
	}

	switch msg.Event {
	case EventJoin:
		var join Join
		if c.decode(msg, &join) {
			c.joinRoom(join)
		}
	case EventLeave:
		var leave Leave
		if c.decode(msg, &leave) {
			c.leaveRoom(leave)
		}
	case EventSendMessage:
		var send SendMessage
		if c.decode(msg, &send) {
			c.sendChatMessage(send)
		}
	case EventBindUser:
		var bind BindUser
		if c.decode(msg, &bind) {
			c.bindUser(bind)
		}
	default:
		c.log.Printf("unknown event %q", msg.Event)
	}
}

func (c *Client) decode(msg ClientMessage, v any) bool {
	if len(msg.Data) == 0 {
		return true
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		c.log.Printf("invalid %s payload: %v", msg.Event, err)
		return false
	}

	return true
}

func (c *Client) joinRoom(join Join) {
	ctx, cancel := storeContext(context.Background())
	defer cancel()

	room, err := c.chatServer.directory.Get(ctx, join.RoomId)
	if err != nil {
		c.log.Printf("join %q: %v", join.RoomId, err)
		return
	}

	c.chatServer.join(c, room.Id, c.displayName())
}

func (c *Client) leaveRoom(leave Leave) {
	roomId := strings.TrimSpace(leave.RoomId)
	if roomId == "" {
		return
	}

	c.chatServer.leave(c, roomId, c.displayName())
}

func (c *Client) sendChatMessage(send SendMessage) {
	_, err := c.chatServer.Publish(context.Background(), SendRequest{
		RoomId: send.RoomId,
		Text:   send.Text,
		Cid:    send.Cid.ptr(),
		Author: resolveAuthor(c.identity, send.MeId, send.MeName),
		AckTo:  c.id,
	})
	if err != nil {
		c.log.Printf("send_message dropped: %v", err)
	}
}

// bindUser rebinds the connection's private channel. A token in the payload
// replaces the identity resolved at handshake.
func (c *Client) bindUser(bind BindUser) {
	if bind.Token != "" && c.chatServer.auth != nil {
		identity, err := c.chatServer.auth.Authenticate(bind.Token)
		if err != nil {
			c.log.Printf("bind_user_notifications: %v", err)
		} else {
			c.identity = identity
		}
	}

	if c.identity.Anonymous() {
		c.log.Printf("bind_user_notifications: connection %q has no identity", c.id)
		return
	}

	c.chatServer.bind(c, c.identity.UserId)
}

func (c *Client) displayName() string {
	if name := strings.TrimSpace(c.identity.Name); name != "" {
		return name
	}

	return anonymousName
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("send buffer full on connection %q, dropping %s", c.id, msg.Event)
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// cleanup runs once the read loop ends. It removes every room membership
// and private channel binding of the connection.
func (c *Client) cleanup() {
	c.chatServer.purge(c, c.displayName())
	c.stopClient()
}
