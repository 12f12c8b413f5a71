package server

import "errors"

var ErrServerStopped = errors.New("chat server stopped")

// broadcastReq fans msg out to the members of roomId, skipping exclude, and
// then queues direct on connection to. Either half may be empty.
type broadcastReq struct {
	roomId  string
	msg     *ServerMessage
	exclude string
	to      string
	direct  *ServerMessage
}

// Emit delivers msg to every connection currently in the room except
// exclude. Delivery is best effort: a connection whose send buffer is full
// misses the event.
func (cs *ChatServer) Emit(roomId string, msg *ServerMessage, exclude string) {
	cs.submitBroadcast(broadcastReq{roomId: roomId, msg: msg, exclude: exclude})
}

// EmitTo delivers msg to a single connection regardless of room membership.
func (cs *ChatServer) EmitTo(connId string, msg *ServerMessage) {
	cs.submitBroadcast(broadcastReq{to: connId, direct: msg})
}

func (cs *ChatServer) submitBroadcast(req broadcastReq) {
	select {
	case cs.broadcastChan <- req:
	case <-cs.done:
	}
}

func (cs *ChatServer) handleBroadcast(req broadcastReq) {
	if req.roomId != "" && req.msg != nil {
		cs.emitRoom(req.roomId, req.msg, req.exclude)
	}
	if req.to != "" && req.direct != nil {
		cs.emitTo(req.to, req.direct)
	}
}

func (cs *ChatServer) emitRoom(roomId string, msg *ServerMessage, exclude string) {
	for _, connId := range cs.presence.Members(roomId) {
		if connId == exclude {
			continue
		}
		cs.emitTo(connId, msg)
	}
}

func (cs *ChatServer) emitTo(connId string, msg *ServerMessage) bool {
	c, ok := cs.clients[connId]
	if !ok {
		return false
	}

	return c.queueMessage(msg)
}

func (cs *ChatServer) emitUser(userId string, msg *ServerMessage) int {
	n := 0
	for connId := range cs.userConns[userId] {
		if cs.emitTo(connId, msg) {
			n++
		}
	}

	return n
}
