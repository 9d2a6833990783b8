package handlers

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"glowworm/config"
	"glowworm/services"

	"github.com/gin-gonic/gin"
)

// LibraryHandler handles photo library endpoints
type LibraryHandler struct {
	renditions services.RenditionService
}

// NewLibraryHandler creates a new library handler
func NewLibraryHandler(rs services.RenditionService) *LibraryHandler {
	return &LibraryHandler{
		renditions: rs,
	}
}

// ListImages returns all discovered library images
func (h *LibraryHandler) ListImages(c *gin.Context) {
	libraryLocation := config.GetLibraryLocation()

	images, err := h.renditions.ScanImages(libraryLocation)
	if err != nil {
		log.Printf("Error scanning library: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to scan library",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"images": images,
		"count":  len(images),
	})
}

// ServeImage serves a library image file
func (h *LibraryHandler) ServeImage(c *gin.Context) {
	requestedPath := strings.TrimPrefix(c.Param("filepath"), "/")

	// Security: reject paths that could escape the library root
	if err := h.renditions.ValidateFilePath(requestedPath); err != nil {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "path security violation",
			"details": err.Error(),
		})
		return
	}

	// Only image files may be served
	ext := strings.ToLower(filepath.Ext(requestedPath))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "file extension not allowed",
			"details": "only .jpg, .jpeg and .png files can be served",
		})
		return
	}

	fullPath := filepath.Join(config.GetLibraryLocation(), filepath.FromSlash(requestedPath))
	if _, err := os.Stat(fullPath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "image not found",
		})
		return
	}

	c.Header("Content-Type", h.renditions.GetContentType(requestedPath))
	c.File(fullPath)
}
