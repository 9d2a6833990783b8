package handlers

import (
	"net/http"
	"os"

	"glowworm/config"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check endpoints
type HealthHandler struct{}

// NewHealthHandler creates a new health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// HealthCheck returns basic service health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "glowworm",
	})
}

// APIStatus reports the state of the configured library and cache
func (h *HealthHandler) APIStatus(c *gin.Context) {
	library := config.GetLibraryLocation()
	cache := config.GetCacheLocation()

	libraryOK := true
	if _, err := os.Stat(library); err != nil {
		libraryOK = false
	}

	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"library_location":   library,
		"library_accessible": libraryOK,
		"cache_location":     cache,
	})
}
