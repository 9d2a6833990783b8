package handlers

import (
	"errors"
	"net/http"
	"time"

	"glowworm/services"
	"glowworm/store"
	"glowworm/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DisplayHandler handles display device management endpoints
type DisplayHandler struct {
	store *store.Store
}

// NewDisplayHandler creates a new display handler
func NewDisplayHandler(s *store.Store) *DisplayHandler {
	return &DisplayHandler{store: s}
}

// displayRequest is the body for registering or updating a display
type displayRequest struct {
	Name        string `json:"name" binding:"required"`
	Resolution  string `json:"resolution" binding:"required"`
	Orientation string `json:"orientation"`
	Location    string `json:"location"`
}

// RegisterDisplay registers a new display device
func (h *DisplayHandler) RegisterDisplay(c *gin.Context) {
	var req displayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid display",
			"details": err.Error(),
		})
		return
	}

	if _, _, err := services.ParseDisplaySize(req.Resolution); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid resolution",
			"details": err.Error(),
		})
		return
	}

	orientation := req.Orientation
	if orientation == "" {
		orientation = "landscape"
	}
	if orientation != "landscape" && orientation != "portrait" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "orientation must be 'landscape' or 'portrait'",
		})
		return
	}

	display := &types.Display{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Resolution:   req.Resolution,
		Orientation:  orientation,
		Location:     req.Location,
		RegisteredAt: time.Now(),
	}

	if err := h.store.CreateDisplay(display); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to register display",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Display registered successfully",
		"display": display,
	})
}

// ListDisplays returns all registered displays
func (h *DisplayHandler) ListDisplays(c *gin.Context) {
	displays, err := h.store.ListDisplays()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to list displays",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"displays": displays,
		"total":    len(displays),
	})
}

// GetDisplay returns a specific display by ID
func (h *DisplayHandler) GetDisplay(c *gin.Context) {
	display, err := h.store.GetDisplay(c.Param("id"))
	if err != nil {
		h.respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"display": display})
}

// UpdateDisplay updates a display's settings
func (h *DisplayHandler) UpdateDisplay(c *gin.Context) {
	var req displayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid display",
			"details": err.Error(),
		})
		return
	}

	if _, _, err := services.ParseDisplaySize(req.Resolution); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid resolution",
			"details": err.Error(),
		})
		return
	}

	display := &types.Display{
		ID:          c.Param("id"),
		Name:        req.Name,
		Resolution:  req.Resolution,
		Orientation: req.Orientation,
		Location:    req.Location,
	}
	if display.Orientation == "" {
		display.Orientation = "landscape"
	}

	if err := h.store.UpdateDisplay(display); err != nil {
		h.respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Display updated successfully",
		"display": display,
	})
}

// DeleteDisplay removes a display registration
func (h *DisplayHandler) DeleteDisplay(c *gin.Context) {
	if err := h.store.DeleteDisplay(c.Param("id")); err != nil {
		h.respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Display deleted successfully",
	})
}

// assignPlaylistRequest is the body for playlist assignment
type assignPlaylistRequest struct {
	PlaylistID string `json:"playlistId"`
}

// AssignPlaylist links a playlist to a display; an empty playlist id
// clears the assignment
func (h *DisplayHandler) AssignPlaylist(c *gin.Context) {
	var req assignPlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid assignment",
			"details": err.Error(),
		})
		return
	}

	if err := h.store.AssignPlaylist(c.Param("id"), req.PlaylistID); err != nil {
		h.respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Playlist assigned successfully",
	})
}

// Heartbeat records that a display device is alive
func (h *DisplayHandler) Heartbeat(c *gin.Context) {
	if err := h.store.TouchDisplay(c.Param("id"), time.Now()); err != nil {
		h.respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Heartbeat recorded",
	})
}

func (h *DisplayHandler) respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "display not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "store operation failed",
		"details": err.Error(),
	})
}
