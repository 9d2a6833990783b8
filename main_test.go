package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"glowworm/cmd"
	"glowworm/config"
	"glowworm/types"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHealthEndpoint tests the basic health check endpoint
func TestHealthEndpoint(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup(t)

	var response map[string]interface{}
	resp := helper.GetJSON(t, "/health", &response)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", response["status"])
	assert.Equal(t, "glowworm", response["service"])
}

// TestAPIStatus tests the status endpoint
func TestAPIStatus(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup(t)

	var response map[string]interface{}
	resp := helper.GetJSON(t, "/api/status", &response)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, helper.LibraryDir, response["library_location"])
	assert.Equal(t, true, response["library_accessible"])
}

// TestLibraryListing tests library scanning
func TestLibraryListing(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup(t)

	var response struct {
		Images []types.ImageFile `json:"images"`
		Count  int               `json:"count"`
	}
	resp := helper.GetJSON(t, "/api/library", &response)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, response.Count)

	paths := make(map[string]types.ImageFile)
	for _, img := range response.Images {
		paths[img.Path] = img
	}
	require.Contains(t, paths, "vacation/beach.png")
	assert.Equal(t, "png", paths["vacation/beach.png"].Format)
	assert.Equal(t, 32, paths["vacation/beach.png"].Width)
	assert.Equal(t, 24, paths["vacation/beach.png"].Height)
}

// TestServeImage tests image streaming and path validation
func TestServeImage(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup(t)

	resp := helper.MakeRequest(t, "GET", "/api/library/images/vacation/beach.png", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	// Unknown file
	resp = helper.MakeRequest(t, "GET", "/api/library/images/missing.png", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Traversal attempt
	resp = helper.MakeRequest(t, "GET", "/api/library/images/vacation/..secret.png", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Non-image extension
	resp = helper.MakeRequest(t, "GET", "/api/library/images/notes.txt", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

// TestDisplayLifecycle tests display registration and management
func TestDisplayLifecycle(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup(t)

	// Register
	var created struct {
		Display *types.Display `json:"display"`
	}
	resp := helper.PostJSON(t, "/api/displays", map[string]interface{}{
		"name":       "Kitchen Frame",
		"resolution": "1920x1080",
		"location":   "kitchen",
	}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, created.Display)
	require.NotEmpty(t, created.Display.ID)
	assert.Equal(t, "landscape", created.Display.Orientation)

	displayID := created.Display.ID

	// Get
	var fetched struct {
		Display *types.Display `json:"display"`
	}
	resp = helper.GetJSON(t, "/api/displays/"+displayID, &fetched)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Kitchen Frame", fetched.Display.Name)

	// List
	var listed struct {
		Displays []types.Display `json:"displays"`
		Total    int             `json:"total"`
	}
	resp = helper.GetJSON(t, "/api/displays", &listed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, listed.Total)

	// Update
	var updated struct {
		Display *types.Display `json:"display"`
	}
	resp = helper.PutJSON(t, "/api/displays/"+displayID, map[string]interface{}{
		"name":        "Hallway Frame",
		"resolution":  "1080x1920",
		"orientation": "portrait",
	}, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Hallway Frame", updated.Display.Name)
	assert.Equal(t, "portrait", updated.Display.Orientation)

	// Heartbeat
	resp = helper.PostJSON(t, "/api/displays/"+displayID+"/heartbeat", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = helper.GetJSON(t, "/api/displays/"+displayID, &fetched)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, fetched.Display.LastSeenAt)
	assert.WithinDuration(t, time.Now(), *fetched.Display.LastSeenAt, time.Minute)

	// Delete
	resp = helper.DeleteJSON(t, "/api/displays/"+displayID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = helper.GetJSON(t, "/api/displays/"+displayID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// TestDisplayValidation tests rejected display registrations
func TestDisplayValidation(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup(t)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing name", map[string]interface{}{"resolution": "1920x1080"}},
		{"missing resolution", map[string]interface{}{"name": "frame"}},
		{"bad resolution", map[string]interface{}{"name": "frame", "resolution": "huge"}},
		{"bad orientation", map[string]interface{}{"name": "frame", "resolution": "640x480", "orientation": "diagonal"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var response map[string]interface{}
			resp := helper.PostJSON(t, "/api/displays", tt.body, &response)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, response, "error")
		})
	}
}

// TestPlaylistLifecycle tests playlist creation and assignment
func TestPlaylistLifecycle(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup(t)

	var created struct {
		Playlist *types.Playlist `json:"playlist"`
	}
	resp := helper.PostJSON(t, "/api/playlists", map[string]interface{}{
		"name":   "Vacation",
		"images": []string{"vacation/beach.png", "vacation/sunset.png"},
	}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, created.Playlist)
	require.Len(t, created.Playlist.Items, 2)
	assert.Equal(t, "vacation/beach.png", created.Playlist.Items[0].ImagePath)
	assert.Equal(t, 0, created.Playlist.Items[0].Position)
	assert.Equal(t, 1, created.Playlist.Items[1].Position)

	playlistID := created.Playlist.ID

	// Update reorders items
	var updated struct {
		Playlist *types.Playlist `json:"playlist"`
	}
	resp = helper.PutJSON(t, "/api/playlists/"+playlistID, map[string]interface{}{
		"name":   "Vacation",
		"images": []string{"vacation/sunset.png", "vacation/beach.png", "portrait.png"},
	}, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, updated.Playlist.Items, 3)
	assert.Equal(t, "vacation/sunset.png", updated.Playlist.Items[0].ImagePath)

	// Assign to a display
	var display struct {
		Display *types.Display `json:"display"`
	}
	resp = helper.PostJSON(t, "/api/displays", map[string]interface{}{
		"name":       "Living Room",
		"resolution": "1280x720",
	}, &display)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = helper.PutJSON(t, "/api/displays/"+display.Display.ID+"/playlist", map[string]interface{}{
		"playlistId": playlistID,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched struct {
		Display *types.Display `json:"display"`
	}
	resp = helper.GetJSON(t, "/api/displays/"+display.Display.ID, &fetched)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, playlistID, fetched.Display.PlaylistID)

	// Assigning an unknown playlist fails
	resp = helper.PutJSON(t, "/api/displays/"+display.Display.ID+"/playlist", map[string]interface{}{
		"playlistId": "nope",
	}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Clearing the assignment
	resp = helper.PutJSON(t, "/api/displays/"+display.Display.ID+"/playlist", map[string]interface{}{
		"playlistId": "",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Delete playlist
	resp = helper.DeleteJSON(t, "/api/playlists/"+playlistID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = helper.GetJSON(t, "/api/playlists/"+playlistID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// TestSearchEndpoint tests searching across displays, playlists and images
func TestSearchEndpoint(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup(t)

	helper.PostJSON(t, "/api/displays", map[string]interface{}{
		"name":       "Kitchen Frame",
		"resolution": "1920x1080",
	}, nil)
	helper.PostJSON(t, "/api/playlists", map[string]interface{}{
		"name":   "Beach Days",
		"images": []string{"vacation/beach.png"},
	}, nil)

	tests := []struct {
		name           string
		query          string
		searchType     string
		expectedStatus int
		expectedHits   int
	}{
		{"image search", "beach", "image", http.StatusOK, 1},
		{"image search no hits", "winter", "image", http.StatusOK, 0},
		{"display search", "kitchen", "display", http.StatusOK, 1},
		{"playlist search", "beach", "playlist", http.StatusOK, 1},
		{"empty query", "", "image", http.StatusBadRequest, 0},
		{"bad type", "beach", "projector", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := fmt.Sprintf("/api/search?q=%s&type=%s", tt.query, tt.searchType)
			var response struct {
				Query   string        `json:"query"`
				Type    string        `json:"type"`
				Results []interface{} `json:"results"`
				Error   string        `json:"error"`
			}
			resp := helper.GetJSON(t, path, &response)

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, tt.query, response.Query)
				assert.Len(t, response.Results, tt.expectedHits)
			} else {
				assert.NotEmpty(t, response.Error)
			}
		})
	}
}

// TestSettingsRoundTrip tests reading and updating settings
func TestSettingsRoundTrip(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup(t)

	var settings config.UserSettings
	resp := helper.GetJSON(t, "/api/settings", &settings)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, helper.LibraryDir, settings.LibraryLocation)

	newLibrary := filepath.Join(helper.DataDir, "new-library")
	resp = helper.PostJSON(t, "/api/settings", config.UserSettings{
		LibraryLocation: newLibrary,
		DisplaySizes:    []string{"800x600"},
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The settings file should now exist and the new location be created
	_, err := os.Stat(newLibrary)
	assert.NoError(t, err)

	resp = helper.GetJSON(t, "/api/settings", &settings)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, newLibrary, settings.LibraryLocation)
	assert.Equal(t, []string{"800x600"}, settings.DisplaySizes)

	// Invalid display sizes are rejected
	resp = helper.PostJSON(t, "/api/settings", config.UserSettings{
		LibraryLocation: newLibrary,
		DisplaySizes:    []string{"very-big"},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestRegenerationWorkflow tests the complete regeneration workflow
func TestRegenerationWorkflow(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup(t)

	var queued struct {
		Task *types.RegenerationTask `json:"task"`
	}
	resp := helper.PostJSON(t, "/api/regeneration", map[string]interface{}{
		"display_sizes": []string{"16x16"},
	}, &queued)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, queued.Task)
	require.NotEmpty(t, queued.Task.ID)
	assert.Equal(t, []string{"16x16"}, queued.Task.DisplaySizes)

	taskID := queued.Task.ID

	// Task shows up in the listing
	var listing struct {
		Tasks []types.RegenerationTask `json:"tasks"`
		Total int                      `json:"total"`
	}
	resp = helper.GetJSON(t, "/api/regeneration", &listing)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, listing.Total)

	// Wait for the task to finish
	var final types.RegenerationTask
	require.Eventually(t, func() bool {
		var fetched struct {
			Task *types.RegenerationTask `json:"task"`
		}
		resp := helper.GetJSON(t, "/api/regeneration/"+taskID, &fetched)
		if resp.StatusCode != http.StatusOK || fetched.Task == nil {
			return false
		}
		final = *fetched.Task
		return final.Status.IsTerminal()
	}, 10*time.Second, 50*time.Millisecond)

	assert.Equal(t, types.TaskStatusCompleted, final.Status)
	assert.Equal(t, 3, final.TotalImages)
	assert.Equal(t, 3, final.ProcessedImages)
	assert.Equal(t, 0, final.ErrorCount)
	assert.Equal(t, 100.0, final.ProgressPercentage)
	require.NotNil(t, final.CompletedAt)

	// Renditions were written to the cache
	_, err := os.Stat(filepath.Join(helper.CacheDir, "16x16", "vacation", "beach.jpg"))
	assert.NoError(t, err)

	// A finished task can no longer be cancelled
	resp = helper.DeleteJSON(t, "/api/regeneration/"+taskID, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestGetUnknownTask tests fetching a task that does not exist
func TestGetUnknownTask(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup(t)

	resp := helper.GetJSON(t, "/api/regeneration/no-such-task", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// TestAuthRequiredWhenSecretConfigured tests bearer token enforcement
func TestAuthRequiredWhenSecretConfigured(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup(t)

	const secret = "test-signing-secret"
	config.Env["GLOWWORM_AUTH_SECRET"] = secret
	defer func() { config.Env["GLOWWORM_AUTH_SECRET"] = "" }()

	router, cleanup, err := cmd.SetupRouter()
	require.NoError(t, err)
	defer cleanup()

	server := httptest.NewServer(router)
	defer server.Close()

	// No token
	resp, err := http.Get(server.URL + "/api/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Garbage token
	req, _ := http.NewRequest("GET", server.URL+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Valid token
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "test-display",
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	req, _ = http.NewRequest("GET", server.URL+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Health endpoint stays open
	resp, err = http.Get(server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
