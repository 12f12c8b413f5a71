package server

import "sort"

// RoomCount is the online counter of a room after a presence transition.
type RoomCount struct {
	RoomId string
	Peers  int
}

// Presence tracks which connections are members of which rooms. It is not
// safe for concurrent use; the chat server goroutine is its only owner.
type Presence struct {
	counts  map[string]int
	members map[string]map[string]struct{}
	rooms   map[string]map[string]struct{}
}

func NewPresence() *Presence {
	return &Presence{
		counts:  make(map[string]int),
		members: make(map[string]map[string]struct{}),
		rooms:   make(map[string]map[string]struct{}),
	}
}

// Join adds roomId to the connection's rooms. joined is false when the
// connection was already a member, in which case the counter is unchanged.
func (p *Presence) Join(connId, roomId string) (peers int, joined bool) {
	if _, ok := p.rooms[connId][roomId]; ok {
		return p.counts[roomId], false
	}

	if p.rooms[connId] == nil {
		p.rooms[connId] = make(map[string]struct{})
	}
	p.rooms[connId][roomId] = struct{}{}

	if p.members[roomId] == nil {
		p.members[roomId] = make(map[string]struct{})
	}
	p.members[roomId][connId] = struct{}{}

	p.counts[roomId]++
	return p.counts[roomId], true
}

// Leave removes roomId from the connection's rooms. left is false when the
// connection was not a member.
func (p *Presence) Leave(connId, roomId string) (peers int, left bool) {
	if _, ok := p.rooms[connId][roomId]; !ok {
		return p.counts[roomId], false
	}

	delete(p.rooms[connId], roomId)
	if len(p.rooms[connId]) == 0 {
		delete(p.rooms, connId)
	}

	delete(p.members[roomId], connId)
	if len(p.members[roomId]) == 0 {
		delete(p.members, roomId)
	}

	if p.counts[roomId] > 0 {
		p.counts[roomId]--
	}
	if p.counts[roomId] == 0 {
		delete(p.counts, roomId)
	}

	return p.counts[roomId], true
}

// Purge leaves every room of the connection. A second purge of the same
// connection returns nothing.
func (p *Presence) Purge(connId string) []RoomCount {
	rooms := p.Rooms(connId)

	out := make([]RoomCount, 0, len(rooms))
	for _, roomId := range rooms {
		if peers, ok := p.Leave(connId, roomId); ok {
			out = append(out, RoomCount{RoomId: roomId, Peers: peers})
		}
	}

	return out
}

func (p *Presence) Count(roomId string) int {
	return p.counts[roomId]
}

// Rooms returns the connection's rooms in a stable order.
func (p *Presence) Rooms(connId string) []string {
	rooms := make([]string, 0, len(p.rooms[connId]))
	for roomId := range p.rooms[connId] {
		rooms = append(rooms, roomId)
	}
	sort.Strings(rooms)

	return rooms
}

func (p *Presence) Members(roomId string) []string {
	conns := make([]string, 0, len(p.members[roomId]))
	for connId := range p.members[roomId] {
		conns = append(conns, connId)
	}

	return conns
}

func (p *Presence) IsMember(connId, roomId string) bool {
	_, ok := p.rooms[connId][roomId]
	return ok
}

// OccupiedRooms is the number of rooms with at least one member.
func (p *Presence) OccupiedRooms() int {
	return len(p.members)
}
