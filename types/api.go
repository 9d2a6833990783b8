package types

import "time"

// Display represents a registered display device
type Display struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Resolution   string     `json:"resolution"`  // e.g. "1920x1080"
	Orientation  string     `json:"orientation"` // "landscape" or "portrait"
	Location     string     `json:"location,omitempty"`
	PlaylistID   string     `json:"playlistId,omitempty"`
	RegisteredAt time.Time  `json:"registeredAt"`
	LastSeenAt   *time.Time `json:"lastSeenAt,omitempty"`
}

// Playlist represents an ordered set of images shown on displays
type Playlist struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Items     []PlaylistItem `json:"items"`
	CreatedAt time.Time      `json:"createdAt"`
}

// PlaylistItem is a single image entry within a playlist
type PlaylistItem struct {
	ImagePath string `json:"imagePath"`
	Position  int    `json:"position"`
}

// ImageFile represents a discovered library image
type ImageFile struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Format   string `json:"format"` // "jpeg", "png"
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}
