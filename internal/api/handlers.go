package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-blogchat/internal/preview"
	"github.com/npezzotti/go-blogchat/internal/server"
	"github.com/npezzotti/go-blogchat/internal/types"
)

const (
	defaultHistoryLimit      = 50
	maxHistoryLimit          = 200
	defaultNotificationLimit = 10
	maxNotificationLimit     = 50
)

type CreateRoomRequest struct {
	Name string `json:"name"`
}

type SendMessageRequest struct {
	Text string `json:"text"`
	Cid  string `json:"cid"`
}

type MarkReadRequest struct {
	Ids []string `json:"ids"`
}

type CreateNotificationRequest struct {
	RecipientId string                 `json:"recipient_id"`
	Type        types.NotificationType `json:"type"`
	PostId      *string                `json:"post_id"`
	CommentId   *string                `json:"comment_id"`
}

type roomSummary struct {
	Id    string `json:"id"`
	Name  string `json:"name"`
	Peers int    `json:"peers"`
}

type sentMessage struct {
	Id     *string   `json:"id"`
	Ts     time.Time `json:"ts"`
	Name   string    `json:"name"`
	Text   string    `json:"text"`
	Cid    *string   `json:"cid"`
	UserId *string   `json:"user_id"`
}

type previewResponse struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	*types.Preview
}

func (s *GoChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *GoChatApp) writeError(w http.ResponseWriter, errResp *ApiError) {
	s.writeJson(w, errResp.StatusCode, errResp)
}

// clampLimit parses a limit query value, falling back to def when it is
// missing or not an integer.
func clampLimit(raw string, def, upper int) int {
	limit, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}

	return min(upper, max(1, limit))
}

func (s *GoChatApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Println("health check:", err)
		s.writeError(w, NewInternalServerError(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *GoChatApp) listCategories(w http.ResponseWriter, _ *http.Request) {
	s.writeJson(w, http.StatusOK, map[string]any{"categories": server.Categories})
}

func (s *GoChatApp) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.cs.Directory().List(r.Context(), r.PathValue("category"))
	if err != nil {
		s.log.Println("list rooms:", err)
		s.writeError(w, NewInternalServerError(err))
		return
	}

	ids := make([]string, len(rooms))
	for i, room := range rooms {
		ids[i] = room.Id
	}

	peers, err := s.cs.Peers(r.Context(), ids...)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	out := make([]roomSummary, len(rooms))
	for i, room := range rooms {
		out[i] = roomSummary{Id: room.Id, Name: room.Name, Peers: peers[room.Id]}
	}

	s.writeJson(w, http.StatusOK, map[string]any{"rooms": out})
}

func (s *GoChatApp) createRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req = CreateRoomRequest{}
	}

	room, err := s.cs.Directory().Create(r.Context(), r.PathValue("category"), req.Name)
	if err != nil {
		switch {
		case errors.Is(err, server.ErrInvalidCategory):
			s.writeError(w, NewInvalidInputError("bad_category"))
		case errors.Is(err, server.ErrEmptyName):
			s.writeError(w, NewInvalidInputError("name_required"))
		default:
			s.log.Println("create room:", err)
			s.writeError(w, NewInternalServerError(err))
		}
		return
	}

	s.writeJson(w, http.StatusOK, map[string]string{"id": room.Id})
}

func (s *GoChatApp) getMessages(w http.ResponseWriter, r *http.Request) {
	category, roomId := r.PathValue("category"), r.PathValue("room_id")
	if !s.cs.Directory().Exists(r.Context(), roomId, category) {
		s.writeJson(w, http.StatusOK, map[string]any{"messages": []types.Message{}})
		return
	}

	limit := clampLimit(r.URL.Query().Get("limit"), defaultHistoryLimit, maxHistoryLimit)
	messages, err := s.cs.History(r.Context(), roomId, limit)
	if err != nil {
		s.log.Println("message history:", err)
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *GoChatApp) getPeers(w http.ResponseWriter, r *http.Request) {
	roomId := r.PathValue("room_id")
	peers, err := s.cs.Peers(r.Context(), roomId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, map[string]int{"peers": peers[roomId]})
}

// sendMessage publishes through the same pipeline as the websocket
// send_message event, attributed to the caller.
func (s *GoChatApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	category, roomId := r.PathValue("category"), r.PathValue("room_id")

	if !server.ValidCategory(category) {
		s.writeError(w, NewInvalidInputError("bad_category"))
		return
	}
	if !s.cs.Directory().Exists(r.Context(), roomId, category) {
		errResp := NewNotFoundError()
		errResp.Code = "not_found"
		s.writeError(w, errResp)
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req = SendMessageRequest{}
	}

	var cid *string
	if c := strings.TrimSpace(req.Cid); c != "" {
		cid = &c
	}

	msg, err := s.cs.Publish(r.Context(), server.SendRequest{
		RoomId: roomId,
		Text:   req.Text,
		Cid:    cid,
		Author: server.AuthorFromIdentity(id),
	})
	if err != nil {
		switch {
		case errors.Is(err, server.ErrEmptyText):
			s.writeError(w, NewInvalidInputError("text_required"))
		case errors.Is(err, server.ErrRoomNotFound):
			errResp := NewNotFoundError()
			errResp.Code = "not_found"
			s.writeError(w, errResp)
		default:
			s.writeError(w, NewInternalServerError(err))
		}
		return
	}

	resp := sentMessage{
		Ts:     msg.Ts,
		Name:   msg.Name,
		Text:   msg.Text,
		Cid:    msg.Cid,
		UserId: msg.UserId,
	}
	if !msg.Id.IsEphemeral() {
		mid := msg.Id.String()
		resp.Id = &mid
	}

	s.writeJson(w, http.StatusOK, resp)
}

func (s *GoChatApp) countNotifications(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	count, err := s.db.CountUnreadNotifications(r.Context(), id.UserId)
	if err != nil {
		s.log.Println("count notifications:", err)
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{"ok": true, "count": count})
}

func (s *GoChatApp) listNotifications(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	limit := clampLimit(r.URL.Query().Get("limit"), defaultNotificationLimit, maxNotificationLimit)

	stored, err := s.db.ListNotifications(r.Context(), id.UserId, limit)
	if err != nil {
		s.log.Println("list notifications:", err)
		s.writeError(w, NewInternalServerError(err))
		return
	}

	items := make([]types.Notification, len(stored))
	for i, n := range stored {
		items[i] = server.SerializeNotification(r.Context(), s.db, n)
	}

	s.writeJson(w, http.StatusOK, map[string]any{"ok": true, "items": items})
}

// markNotificationsRead marks the listed notifications read, or every
// unread one when no ids are given. Ids that do not parse are ignored.
func (s *GoChatApp) markNotificationsRead(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req = MarkReadRequest{}
	}

	ids := make([]int64, 0, len(req.Ids))
	for _, raw := range req.Ids {
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, n)
	}

	if len(req.Ids) > 0 && len(ids) == 0 {
		s.writeJson(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	if err := s.db.MarkNotificationsRead(r.Context(), id.UserId, ids); err != nil {
		s.log.Println("mark notifications read:", err)
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *GoChatApp) createNotification(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	var req CreateNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	n, err := s.cs.Notify(r.Context(), server.NotifyParams{
		RecipientId: req.RecipientId,
		Type:        req.Type,
		ActorId:     id.UserId,
		PostId:      req.PostId,
		CommentId:   req.CommentId,
	})
	if err != nil {
		if errors.Is(err, server.ErrInvalidNotification) {
			s.writeError(w, NewInvalidInputError("invalid_notification"))
			return
		}
		s.log.Println("notify:", err)
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, map[string]any{"ok": true, "item": n})
}

func (s *GoChatApp) previewURL(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		s.writeJson(w, http.StatusBadRequest, previewResponse{Ok: false, Error: "empty"})
		return
	}

	p, err := s.previews.Lookup(r.Context(), raw)
	if err != nil {
		switch {
		case errors.Is(err, preview.ErrInvalidURL):
			s.writeJson(w, http.StatusOK, previewResponse{Ok: false, Error: "invalid_url"})
		case errors.Is(err, preview.ErrUnsupportedContent):
			s.writeJson(w, http.StatusOK, previewResponse{Ok: false, Error: "unsupported_content"})
		default:
			s.log.Printf("preview %q: %v", raw, err)
			s.writeJson(w, http.StatusOK, previewResponse{Ok: false})
		}
		return
	}

	s.writeJson(w, http.StatusOK, previewResponse{Ok: p.HasContent(), Preview: p})
}

// serveWs upgrades the connection. Identity is best effort: a request
// without a valid token joins as an anonymous visitor.
func (s *GoChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	id, err := s.auth.FromRequest(r)
	if err != nil {
		id = types.Identity{}
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(id, conn, s.cs, s.log)
	if !client.Register() {
		conn.Close()
		return
	}

	go client.Write()
	go client.Read()
}
