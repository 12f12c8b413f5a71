package server

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/npezzotti/go-blogchat/internal/types"
)

// Inbound event names.
const (
	EventJoin        = "join"
	EventLeave       = "leave"
	EventSendMessage = "send_message"
	EventBindUser    = "bind_user_notifications"
)

// Outbound event names.
const (
	EventRoomPeers    = "room_peers"
	EventJoined       = "joined"
	EventNewMessage   = "new_message"
	EventSystemNotice = "system_notice"
	EventNotify       = "notify"
	EventSendAck      = "send_ack"
)

// ClientMessage is the envelope of a frame received from a connection.
type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Join struct {
	RoomId string `json:"room_id"`
}

type Leave struct {
	RoomId string `json:"room_id"`
}

type SendMessage struct {
	RoomId string     `json:"room_id"`
	Text   string     `json:"text"`
	Cid    *LooseText `json:"cid,omitempty"`
	MeId   *LooseText `json:"me_id,omitempty"`
	MeName string     `json:"me_name,omitempty"`
}

type BindUser struct {
	Token string `json:"token,omitempty"`
}

// LooseText decodes a JSON string or number into its textual form. Clients
// send correlation ids and fallback user ids either way.
type LooseText string

func (t *LooseText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = LooseText(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*t = LooseText(n.String())
	return nil
}

func (t *LooseText) ptr() *string {
	if t == nil || *t == "" {
		return nil
	}
	s := string(*t)
	return &s
}

// ServerMessage is the envelope of a frame sent to a connection.
type ServerMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type RoomPeers struct {
	RoomId string `json:"room_id"`
	Peers  int    `json:"peers"`
}

type SystemNotice struct {
	RoomId string `json:"room_id"`
	Text   string `json:"text"`
}

type NewMessage struct {
	Id      MessageID      `json:"id"`
	RoomId  string         `json:"room_id"`
	UserId  *string        `json:"user_id"`
	Name    string         `json:"name"`
	Text    string         `json:"text"`
	Ts      time.Time      `json:"ts"`
	Cid     *string        `json:"cid"`
	Preview *types.Preview `json:"preview,omitempty"`
}

type SendAck struct {
	// Id is null when the message could not be persisted.
	Id *string `json:"id"`
}

// MessageID identifies a broadcast message. Ids assigned by the message store
// are persisted; ids synthesized after a failed write are ephemeral and must
// not be used to address stored messages.
type MessageID struct {
	persisted int64
	ephemeral string
}

const ephemeralPrefix = "temp-"

func PersistedID(id int64) MessageID {
	return MessageID{persisted: id}
}

func (id MessageID) IsEphemeral() bool {
	return id.ephemeral != ""
}

// Persisted returns the store id, or false for ephemeral ids.
func (id MessageID) Persisted() (int64, bool) {
	if id.IsEphemeral() {
		return 0, false
	}
	return id.persisted, true
}

func (id MessageID) String() string {
	if id.IsEphemeral() {
		return id.ephemeral
	}
	return strconv.FormatInt(id.persisted, 10)
}

func (id MessageID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func RoomPeersMessage(roomId string, peers int) *ServerMessage {
	return &ServerMessage{Event: EventRoomPeers, Data: RoomPeers{RoomId: roomId, Peers: peers}}
}

func JoinedMessage(roomId string, peers int) *ServerMessage {
	return &ServerMessage{Event: EventJoined, Data: RoomPeers{RoomId: roomId, Peers: peers}}
}

func JoinNotice(roomId, name string) *ServerMessage {
	return &ServerMessage{Event: EventSystemNotice, Data: SystemNotice{RoomId: roomId, Text: name + "님이 입장하셨습니다."}}
}

func LeaveNotice(roomId, name string) *ServerMessage {
	return &ServerMessage{Event: EventSystemNotice, Data: SystemNotice{RoomId: roomId, Text: name + "님이 퇴장하셨습니다."}}
}

func NewMessageMessage(msg *NewMessage) *ServerMessage {
	return &ServerMessage{Event: EventNewMessage, Data: msg}
}

func SendAckMessage(id MessageID) *ServerMessage {
	ack := SendAck{}
	if !id.IsEphemeral() {
		s := id.String()
		ack.Id = &s
	}
	return &ServerMessage{Event: EventSendAck, Data: ack}
}

func NotifyMessage(n types.Notification) *ServerMessage {
	return &ServerMessage{Event: EventNotify, Data: n}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
