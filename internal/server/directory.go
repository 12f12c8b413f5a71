package server

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/npezzotti/go-blogchat/internal/database"
	"github.com/npezzotti/go-blogchat/internal/types"
	"github.com/teris-io/shortid"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrInvalidCategory = errors.New("invalid category")
	ErrEmptyName       = errors.New("room name required")
)

// Categories are the fixed topic categories rooms may be created in.
var Categories = []string{
	"프로그래밍언어",
	"자료구조",
	"알고리즘",
	"컴퓨터구조",
	"운영체제",
	"시스템프로그래밍",
	"데이터베이스",
	"AI",
	"보안",
	"네트워크",
	"기타",
}

func ValidCategory(category string) bool {
	return slices.Contains(Categories, category)
}

// Directory resolves room ids to room metadata. Rooms are immutable once
// created, so lookups are cached for the life of the process.
type Directory struct {
	db        database.Repository
	cache     map[string]types.Room
	cacheLock sync.RWMutex
	newId     func() (string, error)
}

func NewDirectory(db database.Repository) *Directory {
	return &Directory{
		db:    db,
		cache: make(map[string]types.Room),
		newId: shortid.Generate,
	}
}

func (d *Directory) Get(ctx context.Context, roomId string) (types.Room, error) {
	roomId = strings.TrimSpace(roomId)
	if roomId == "" {
		return types.Room{}, ErrRoomNotFound
	}

	d.cacheLock.RLock()
	room, ok := d.cache[roomId]
	d.cacheLock.RUnlock()
	if ok {
		return room, nil
	}

	dbRoom, err := d.db.GetRoomByExternalId(ctx, roomId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return types.Room{}, ErrRoomNotFound
		}
		return types.Room{}, fmt.Errorf("get room: %w", err)
	}

	room = toRoom(dbRoom)
	d.remember(room)

	return room, nil
}

// Exists reports whether roomId names a room in category.
func (d *Directory) Exists(ctx context.Context, roomId, category string) bool {
	room, err := d.Get(ctx, roomId)
	if err != nil {
		return false
	}

	return room.Category == category
}

func (d *Directory) Create(ctx context.Context, category, name string) (types.Room, error) {
	if !ValidCategory(category) {
		return types.Room{}, ErrInvalidCategory
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Room{}, ErrEmptyName
	}

	sid, err := d.newId()
	if err != nil {
		return types.Room{}, fmt.Errorf("generate room id: %w", err)
	}

	dbRoom, err := d.db.CreateRoom(ctx, database.CreateRoomParams{
		ExternalId: sid,
		Category:   category,
		Name:       name,
	})
	if err != nil {
		return types.Room{}, fmt.Errorf("create room: %w", err)
	}

	room := toRoom(dbRoom)
	d.remember(room)

	return room, nil
}

// List returns the rooms of a category, newest first. Unknown categories
// have no rooms.
func (d *Directory) List(ctx context.Context, category string) ([]types.Room, error) {
	if !ValidCategory(category) {
		return []types.Room{}, nil
	}

	dbRooms, err := d.db.ListRoomsByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	rooms := make([]types.Room, 0, len(dbRooms))
	for _, r := range dbRooms {
		room := toRoom(r)
		d.remember(room)
		rooms = append(rooms, room)
	}

	return rooms, nil
}

func (d *Directory) remember(room types.Room) {
	d.cacheLock.Lock()
	defer d.cacheLock.Unlock()
	d.cache[room.Id] = room
}

func toRoom(r database.Room) types.Room {
	return types.Room{
		Id:        r.ExternalId,
		Category:  r.Category,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
	}
}
