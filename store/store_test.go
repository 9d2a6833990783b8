package store

import (
	"path/filepath"
	"testing"
	"time"

	"glowworm/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newDisplay(name, resolution, location string) *types.Display {
	return &types.Display{
		ID:           uuid.New().String(),
		Name:         name,
		Resolution:   resolution,
		Orientation:  "landscape",
		Location:     location,
		RegisteredAt: time.Now().UTC(),
	}
}

func newPlaylist(name string, images ...string) *types.Playlist {
	p := &types.Playlist{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	for i, img := range images {
		p.Items = append(p.Items, types.PlaylistItem{ImagePath: img, Position: i})
	}
	return p
}

func TestDisplayCRUD(t *testing.T) {
	s := newTestStore(t)

	d := newDisplay("Kitchen", "1920x1080", "kitchen")
	require.NoError(t, s.CreateDisplay(d))

	got, err := s.GetDisplay(d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kitchen", got.Name)
	assert.Equal(t, "1920x1080", got.Resolution)
	assert.Equal(t, "kitchen", got.Location)
	assert.Empty(t, got.PlaylistID)
	assert.Nil(t, got.LastSeenAt)

	got.Name = "Hallway"
	got.Resolution = "1080x1920"
	got.Orientation = "portrait"
	require.NoError(t, s.UpdateDisplay(got))

	got, err = s.GetDisplay(d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hallway", got.Name)
	assert.Equal(t, "portrait", got.Orientation)

	require.NoError(t, s.DeleteDisplay(d.ID))
	_, err = s.GetDisplay(d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDisplayNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetDisplay("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.UpdateDisplay(newDisplay("x", "1x1", "")), ErrNotFound)
	assert.ErrorIs(t, s.DeleteDisplay("missing"), ErrNotFound)
	assert.ErrorIs(t, s.TouchDisplay("missing", time.Now()), ErrNotFound)
	assert.ErrorIs(t, s.AssignPlaylist("missing", ""), ErrNotFound)
}

func TestListAndSearchDisplays(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.CreateDisplay(newDisplay("Bedroom", "640x480", "upstairs")))
	require.NoError(t, s.CreateDisplay(newDisplay("Kitchen", "1920x1080", "downstairs")))
	require.NoError(t, s.CreateDisplay(newDisplay("Lounge", "1920x1080", "downstairs")))

	displays, err := s.ListDisplays()
	require.NoError(t, err)
	require.Len(t, displays, 3)
	// Ordered by name
	assert.Equal(t, "Bedroom", displays[0].Name)
	assert.Equal(t, "Lounge", displays[2].Name)

	// Match on name
	hits, err := s.SearchDisplays("kitch")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Kitchen", hits[0].Name)

	// Match on location
	hits, err = s.SearchDisplays("downstairs")
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = s.SearchDisplays("garage")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestTouchDisplay(t *testing.T) {
	s := newTestStore(t)

	d := newDisplay("Kitchen", "1920x1080", "")
	require.NoError(t, s.CreateDisplay(d))

	seenAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.TouchDisplay(d.ID, seenAt))

	got, err := s.GetDisplay(d.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastSeenAt)
	assert.True(t, got.LastSeenAt.Equal(seenAt))
}

func TestDistinctResolutions(t *testing.T) {
	s := newTestStore(t)

	resolutions, err := s.DistinctResolutions()
	require.NoError(t, err)
	assert.Empty(t, resolutions)

	require.NoError(t, s.CreateDisplay(newDisplay("A", "1920x1080", "")))
	require.NoError(t, s.CreateDisplay(newDisplay("B", "1920x1080", "")))
	require.NoError(t, s.CreateDisplay(newDisplay("C", "640x480", "")))

	resolutions, err = s.DistinctResolutions()
	require.NoError(t, err)
	assert.Equal(t, []string{"1920x1080", "640x480"}, resolutions)
}

func TestPlaylistCRUD(t *testing.T) {
	s := newTestStore(t)

	p := newPlaylist("Vacation", "beach.png", "sunset.png")
	require.NoError(t, s.CreatePlaylist(p))

	got, err := s.GetPlaylist(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Vacation", got.Name)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "beach.png", got.Items[0].ImagePath)
	assert.Equal(t, "sunset.png", got.Items[1].ImagePath)

	// Update replaces name and items
	got.Name = "Summer"
	got.Items = []types.PlaylistItem{
		{ImagePath: "sunset.png", Position: 0},
		{ImagePath: "beach.png", Position: 1},
		{ImagePath: "boat.png", Position: 2},
	}
	require.NoError(t, s.UpdatePlaylist(got))

	got, err = s.GetPlaylist(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Summer", got.Name)
	require.Len(t, got.Items, 3)
	assert.Equal(t, "sunset.png", got.Items[0].ImagePath)

	require.NoError(t, s.DeletePlaylist(p.ID))
	_, err = s.GetPlaylist(p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndSearchPlaylists(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.CreatePlaylist(newPlaylist("Beach Days", "beach.png")))
	require.NoError(t, s.CreatePlaylist(newPlaylist("Winter")))

	playlists, err := s.ListPlaylists()
	require.NoError(t, err)
	require.Len(t, playlists, 2)
	assert.Equal(t, "Beach Days", playlists[0].Name)
	require.Len(t, playlists[0].Items, 1)
	assert.Empty(t, playlists[1].Items)

	hits, err := s.SearchPlaylists("beach")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Beach Days", hits[0].Name)
}

func TestAssignPlaylist(t *testing.T) {
	s := newTestStore(t)

	d := newDisplay("Kitchen", "1920x1080", "")
	require.NoError(t, s.CreateDisplay(d))

	p := newPlaylist("Vacation", "beach.png")
	require.NoError(t, s.CreatePlaylist(p))

	// Unknown playlist is rejected
	assert.ErrorIs(t, s.AssignPlaylist(d.ID, "missing"), ErrNotFound)

	require.NoError(t, s.AssignPlaylist(d.ID, p.ID))
	got, err := s.GetDisplay(d.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.PlaylistID)

	// Deleting the playlist clears the assignment
	require.NoError(t, s.DeletePlaylist(p.ID))
	got, err = s.GetDisplay(d.ID)
	require.NoError(t, err)
	assert.Empty(t, got.PlaylistID)

	// Explicitly clearing works too
	p2 := newPlaylist("Other")
	require.NoError(t, s.CreatePlaylist(p2))
	require.NoError(t, s.AssignPlaylist(d.ID, p2.ID))
	require.NoError(t, s.AssignPlaylist(d.ID, ""))
	got, err = s.GetDisplay(d.ID)
	require.NoError(t, err)
	assert.Empty(t, got.PlaylistID)
}
