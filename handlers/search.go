package handlers

import (
	"net/http"
	"strings"

	"glowworm/config"
	"glowworm/services"
	"glowworm/store"
	"glowworm/types"

	"github.com/gin-gonic/gin"
)

// SearchHandler handles search endpoints
type SearchHandler struct {
	store      *store.Store
	renditions services.RenditionService
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(s *store.Store, rs services.RenditionService) *SearchHandler {
	return &SearchHandler{
		store:      s,
		renditions: rs,
	}
}

// Search finds displays, playlists or library images by name
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("q")
	searchType := c.DefaultQuery("type", "image")

	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "query parameter 'q' is required",
		})
		return
	}

	switch searchType {
	case "display":
		displays, err := h.store.SearchDisplays(query)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "search failed",
				"details": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"query":   query,
			"type":    searchType,
			"results": displays,
		})

	case "playlist":
		playlists, err := h.store.SearchPlaylists(query)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "search failed",
				"details": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"query":   query,
			"type":    searchType,
			"results": playlists,
		})

	case "image":
		images, err := h.renditions.ScanImages(config.GetLibraryLocation())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "search failed",
				"details": err.Error(),
			})
			return
		}
		matches := filterImages(images, query)
		c.JSON(http.StatusOK, gin.H{
			"query":   query,
			"type":    searchType,
			"results": matches,
		})

	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "type parameter must be 'display', 'playlist' or 'image'",
		})
	}
}

// filterImages keeps images whose path contains the query,
// case-insensitively
func filterImages(images []types.ImageFile, query string) []types.ImageFile {
	needle := strings.ToLower(query)
	matches := make([]types.ImageFile, 0)
	for _, img := range images {
		if strings.Contains(strings.ToLower(img.Path), needle) {
			matches = append(matches, img)
		}
	}
	return matches
}
