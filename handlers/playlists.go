package handlers

import (
	"errors"
	"net/http"
	"time"

	"glowworm/store"
	"glowworm/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PlaylistHandler handles playlist management endpoints
type PlaylistHandler struct {
	store *store.Store
}

// NewPlaylistHandler creates a new playlist handler
func NewPlaylistHandler(s *store.Store) *PlaylistHandler {
	return &PlaylistHandler{store: s}
}

// playlistRequest is the body for creating or updating a playlist
type playlistRequest struct {
	Name   string   `json:"name" binding:"required"`
	Images []string `json:"images"`
}

func (r *playlistRequest) items() []types.PlaylistItem {
	items := make([]types.PlaylistItem, 0, len(r.Images))
	for i, path := range r.Images {
		items = append(items, types.PlaylistItem{ImagePath: path, Position: i})
	}
	return items
}

// CreatePlaylist creates a new playlist
func (h *PlaylistHandler) CreatePlaylist(c *gin.Context) {
	var req playlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid playlist",
			"details": err.Error(),
		})
		return
	}

	playlist := &types.Playlist{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Items:     req.items(),
		CreatedAt: time.Now(),
	}

	if err := h.store.CreatePlaylist(playlist); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to create playlist",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Playlist created successfully",
		"playlist": playlist,
	})
}

// ListPlaylists returns all playlists
func (h *PlaylistHandler) ListPlaylists(c *gin.Context) {
	playlists, err := h.store.ListPlaylists()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to list playlists",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"playlists": playlists,
		"total":     len(playlists),
	})
}

// GetPlaylist returns a specific playlist by ID
func (h *PlaylistHandler) GetPlaylist(c *gin.Context) {
	playlist, err := h.store.GetPlaylist(c.Param("id"))
	if err != nil {
		h.respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"playlist": playlist})
}

// UpdatePlaylist replaces a playlist's name and images
func (h *PlaylistHandler) UpdatePlaylist(c *gin.Context) {
	var req playlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid playlist",
			"details": err.Error(),
		})
		return
	}

	playlist := &types.Playlist{
		ID:    c.Param("id"),
		Name:  req.Name,
		Items: req.items(),
	}

	if err := h.store.UpdatePlaylist(playlist); err != nil {
		h.respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Playlist updated successfully",
		"playlist": playlist,
	})
}

// DeletePlaylist removes a playlist
func (h *PlaylistHandler) DeletePlaylist(c *gin.Context) {
	if err := h.store.DeletePlaylist(c.Param("id")); err != nil {
		h.respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Playlist deleted successfully",
	})
}

func (h *PlaylistHandler) respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "playlist not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "store operation failed",
		"details": err.Error(),
	})
}
