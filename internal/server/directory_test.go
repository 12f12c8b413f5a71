package server

import (
	"context"
	"errors"
	"testing"

	"github.com/npezzotti/go-blogchat/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectory_Get(t *testing.T) {
	db := &database.MockRepository{}
	db.On("GetRoomByExternalId", "r1").Return(testRoom, nil).Once()
	db.On("GetRoomByExternalId", "missing").Return(database.Room{}, database.ErrNotFound).Once()
	db.On("GetRoomByExternalId", "broken").Return(database.Room{}, errors.New("conn reset")).Once()
	defer db.AssertExpectations(t)

	d := NewDirectory(db)
	ctx := context.Background()

	room, err := d.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", room.Id)
	assert.Equal(t, "AI", room.Category)
	assert.Equal(t, "general", room.Name)

	_, err = d.Get(ctx, " r1 ")
	assert.NoError(t, err, "expected cached lookup without a second query")

	_, err = d.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = d.Get(ctx, "")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = d.Get(ctx, "broken")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrRoomNotFound)

	assert.True(t, d.Exists(ctx, "r1", "AI"))
	assert.False(t, d.Exists(ctx, "r1", "보안"), "expected category mismatch")
}

func TestDirectory_Create(t *testing.T) {
	tcases := []struct {
		name     string
		category string
		roomName string
		err      error
	}{
		{name: "valid", category: "알고리즘", roomName: "  dp study  "},
		{name: "unknown category", category: "cooking", roomName: "x", err: ErrInvalidCategory},
		{name: "blank name", category: "AI", roomName: "   ", err: ErrEmptyName},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockRepository{}
			defer db.AssertExpectations(t)

			if tc.err == nil {
				db.On("CreateRoom", database.CreateRoomParams{
					ExternalId: "abc123",
					Category:   tc.category,
					Name:       "dp study",
				}).Return(database.Room{Id: 5, ExternalId: "abc123", Category: tc.category, Name: "dp study"}, nil).Once()
			}

			d := NewDirectory(db)
			d.newId = func() (string, error) { return "abc123", nil }

			room, err := d.Create(context.Background(), tc.category, tc.roomName)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "abc123", room.Id)

			cached, err := d.Get(context.Background(), "abc123")
			require.NoError(t, err, "expected created room to be cached")
			assert.Equal(t, room, cached)
		})
	}
}

func TestDirectory_List(t *testing.T) {
	db := &database.MockRepository{}
	db.On("ListRoomsByCategory", "AI").Return([]database.Room{
		{Id: 2, ExternalId: "b", Category: "AI", Name: "newer"},
		{Id: 1, ExternalId: "a", Category: "AI", Name: "older"},
	}, nil).Once()
	defer db.AssertExpectations(t)

	d := NewDirectory(db)

	rooms, err := d.List(context.Background(), "AI")
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "b", rooms[0].Id)

	rooms, err = d.List(context.Background(), "cooking")
	require.NoError(t, err)
	assert.Empty(t, rooms, "expected unknown category to have no rooms")
}

func TestValidCategory(t *testing.T) {
	assert.True(t, ValidCategory("AI"))
	assert.True(t, ValidCategory("기타"))
	assert.False(t, ValidCategory("ai"))
	assert.False(t, ValidCategory(""))
}
