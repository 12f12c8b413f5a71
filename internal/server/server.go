package server

import (
	"context"
	"log"
	"time"

	"github.com/npezzotti/go-blogchat/internal/database"
	"github.com/npezzotti/go-blogchat/internal/stats"
	"github.com/npezzotti/go-blogchat/internal/types"
)

// Authenticator resolves a session token to an identity.
type Authenticator interface {
	Authenticate(token string) (types.Identity, error)
}

// Previewer enriches message text with a link preview. It returns nil when
// no preview is available.
type Previewer interface {
	ForMessage(ctx context.Context, text string) *types.Preview
}

type registerReq struct {
	client *Client
	userId string
}

type bindReq struct {
	client *Client
	userId string
}

type joinReq struct {
	client *Client
	roomId string
	name   string
	done   chan joinResult
}

type joinResult struct {
	peers  int
	joined bool
}

type leaveReq struct {
	client *Client
	roomId string
	name   string
	done   chan joinResult
}

type purgeReq struct {
	client *Client
	name   string
	done   chan []RoomCount
}

type userMsgReq struct {
	userId string
	msg    *ServerMessage
	done   chan int
}

type peersReq struct {
	roomIds []string
	done    chan map[string]int
}

type stopReq struct {
	done chan struct{}
}

// ChatServer owns all shared real-time state: registered connections, room
// presence and private notification channel bindings. Only the Run
// goroutine reads or writes that state; everything else submits requests
// over unbuffered channels, so requests are applied in the order they are
// accepted.
type ChatServer struct {
	log       *log.Logger
	db        database.Repository
	stats     stats.StatsProvider
	directory *Directory
	auth      Authenticator
	previews  Previewer

	clients  map[string]*Client
	presence *Presence
	// userConns indexes private channels by user id.
	userConns map[string]map[string]struct{}
	bindings  map[string]string

	registerChan  chan registerReq
	bindChan      chan bindReq
	joinChan      chan joinReq
	leaveChan     chan leaveReq
	purgeChan     chan purgeReq
	broadcastChan chan broadcastReq
	userMsgChan   chan userMsgReq
	peersChan     chan peersReq
	stop          chan stopReq
	done          chan struct{}
}

type Option func(*ChatServer)

func WithAuthenticator(a Authenticator) Option {
	return func(cs *ChatServer) {
		cs.auth = a
	}
}

func WithPreviewer(p Previewer) Option {
	return func(cs *ChatServer) {
		cs.previews = p
	}
}

func NewChatServer(logger *log.Logger, db database.Repository, su stats.StatsProvider, opts ...Option) (*ChatServer, error) {
	cs := &ChatServer{
		log:           logger,
		db:            db,
		stats:         su,
		directory:     NewDirectory(db),
		clients:       make(map[string]*Client),
		presence:      NewPresence(),
		userConns:     make(map[string]map[string]struct{}),
		bindings:      make(map[string]string),
		registerChan:  make(chan registerReq),
		bindChan:      make(chan bindReq),
		joinChan:      make(chan joinReq),
		leaveChan:     make(chan leaveReq),
		purgeChan:     make(chan purgeReq),
		broadcastChan: make(chan broadcastReq),
		userMsgChan:   make(chan userMsgReq),
		peersChan:     make(chan peersReq),
		stop:          make(chan stopReq),
		done:          make(chan struct{}),
	}

	for _, opt := range opts {
		opt(cs)
	}

	cs.stats.RegisterMetric(stats.NumActiveClients)
	cs.stats.RegisterMetric(stats.NumOccupiedRooms)
	cs.stats.RegisterMetric(stats.MessagesSent)
	cs.stats.RegisterMetric(stats.MessagePersistFailures)
	cs.stats.RegisterMetric(stats.NotificationsPushed)

	return cs, nil
}

func (cs *ChatServer) Directory() *Directory {
	return cs.directory
}

func (cs *ChatServer) Run() {
	defer close(cs.done)

	for {
		select {
		case req := <-cs.registerChan:
			cs.handleRegister(req)
		case req := <-cs.bindChan:
			cs.handleBind(req)
		case req := <-cs.joinChan:
			cs.handleJoin(req)
		case req := <-cs.leaveChan:
			cs.handleLeave(req)
		case req := <-cs.purgeChan:
			req.done <- cs.handlePurge(req)
		case req := <-cs.broadcastChan:
			cs.handleBroadcast(req)
		case req := <-cs.userMsgChan:
			n := cs.emitUser(req.userId, req.msg)
			if n > 0 {
				cs.stats.Incr(stats.NotificationsPushed)
			}
			req.done <- n
		case req := <-cs.peersChan:
			peers := make(map[string]int, len(req.roomIds))
			for _, id := range req.roomIds {
				peers[id] = cs.presence.Count(id)
			}
			req.done <- peers
		case req := <-cs.stop:
			cs.log.Println("stopping clients")
			for _, c := range cs.clients {
				c.stopClient()
			}
			close(req.done)
			return
		}
	}
}

func (cs *ChatServer) handleRegister(req registerReq) {
	c := req.client
	if _, ok := cs.clients[c.id]; ok {
		return
	}

	cs.log.Printf("adding connection %q", c.id)
	cs.clients[c.id] = c
	cs.stats.Incr(stats.NumActiveClients)

	if req.userId != "" {
		cs.bindUser(c.id, req.userId)
	}
}

func (cs *ChatServer) handleBind(req bindReq) {
	if _, ok := cs.clients[req.client.id]; !ok {
		return
	}

	cs.unbindUser(req.client.id)
	if req.userId != "" {
		cs.bindUser(req.client.id, req.userId)
	}
}

func (cs *ChatServer) handleJoin(req joinReq) {
	c, ok := cs.clients[req.client.id]
	if !ok {
		req.done <- joinResult{}
		return
	}

	peers, joined := cs.presence.Join(c.id, req.roomId)
	if joined {
		if peers == 1 {
			cs.stats.Incr(stats.NumOccupiedRooms)
		}
		cs.emitRoom(req.roomId, RoomPeersMessage(req.roomId, peers), c.id)
		cs.emitRoom(req.roomId, JoinNotice(req.roomId, req.name), c.id)
	}

	c.queueMessage(JoinedMessage(req.roomId, peers))
	req.done <- joinResult{peers: peers, joined: joined}
}

func (cs *ChatServer) handleLeave(req leaveReq) {
	peers, left := cs.presence.Leave(req.client.id, req.roomId)
	if left {
		cs.roomLeft(req.roomId, peers, req.name)
	}

	req.done <- joinResult{peers: peers, joined: left}
}

// handlePurge removes the connection and all of its memberships. Purging an
// already removed connection is a no-op.
func (cs *ChatServer) handlePurge(req purgeReq) []RoomCount {
	id := req.client.id
	if _, ok := cs.clients[id]; ok {
		cs.log.Printf("removing connection %q", id)
		delete(cs.clients, id)
		cs.stats.Decr(stats.NumActiveClients)
	}
	cs.unbindUser(id)

	left := cs.presence.Purge(id)
	for _, rc := range left {
		cs.roomLeft(rc.RoomId, rc.Peers, req.name)
	}

	return left
}

func (cs *ChatServer) roomLeft(roomId string, peers int, name string) {
	if peers == 0 {
		cs.stats.Decr(stats.NumOccupiedRooms)
	}
	cs.emitRoom(roomId, RoomPeersMessage(roomId, peers), "")
	cs.emitRoom(roomId, LeaveNotice(roomId, name), "")
}

func (cs *ChatServer) bindUser(connId, userId string) {
	if cs.userConns[userId] == nil {
		cs.userConns[userId] = make(map[string]struct{})
	}
	cs.userConns[userId][connId] = struct{}{}
	cs.bindings[connId] = userId
}

func (cs *ChatServer) unbindUser(connId string) {
	userId, ok := cs.bindings[connId]
	if !ok {
		return
	}

	delete(cs.bindings, connId)
	delete(cs.userConns[userId], connId)
	if len(cs.userConns[userId]) == 0 {
		delete(cs.userConns, userId)
	}
}

func (cs *ChatServer) register(c *Client, userId string) bool {
	select {
	case cs.registerChan <- registerReq{client: c, userId: userId}:
		return true
	case <-cs.done:
		return false
	}
}

func (cs *ChatServer) bind(c *Client, userId string) {
	select {
	case cs.bindChan <- bindReq{client: c, userId: userId}:
	case <-cs.done:
	}
}

func (cs *ChatServer) join(c *Client, roomId, name string) joinResult {
	req := joinReq{client: c, roomId: roomId, name: name, done: make(chan joinResult, 1)}
	select {
	case cs.joinChan <- req:
		return <-req.done
	case <-cs.done:
		return joinResult{}
	}
}

func (cs *ChatServer) leave(c *Client, roomId, name string) joinResult {
	req := leaveReq{client: c, roomId: roomId, name: name, done: make(chan joinResult, 1)}
	select {
	case cs.leaveChan <- req:
		return <-req.done
	case <-cs.done:
		return joinResult{}
	}
}

func (cs *ChatServer) purge(c *Client, name string) []RoomCount {
	req := purgeReq{client: c, name: name, done: make(chan []RoomCount, 1)}
	select {
	case cs.purgeChan <- req:
		return <-req.done
	case <-cs.done:
		return nil
	}
}

// Peers returns the live member count of each room.
func (cs *ChatServer) Peers(ctx context.Context, roomIds ...string) (map[string]int, error) {
	req := peersReq{roomIds: roomIds, done: make(chan map[string]int, 1)}
	select {
	case cs.peersChan <- req:
	case <-cs.done:
		return nil, ErrServerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return <-req.done, nil
}

// PushToUser delivers msg to every connection bound to the user's private
// channel and returns how many connections it was queued on.
func (cs *ChatServer) PushToUser(ctx context.Context, userId string, msg *ServerMessage) (int, error) {
	req := userMsgReq{userId: userId, msg: msg, done: make(chan int, 1)}
	select {
	case cs.userMsgChan <- req:
	case <-cs.done:
		return 0, ErrServerStopped
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	return <-req.done, nil
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")

	req := stopReq{done: make(chan struct{})}
	select {
	case cs.stop <- req:
	case <-cs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func storeContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, storeTimeout)
}

const storeTimeout = 5 * time.Second
