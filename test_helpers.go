package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"glowworm/cmd"
	"glowworm/config"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// TestHelper provides utilities for testing the Glowworm server
type TestHelper struct {
	Server     *httptest.Server
	LibraryDir string
	CacheDir   string
	DataDir    string
	Router     *gin.Engine

	prevEnv map[string]string
	cleanup func()
}

// NewTestHelper boots a full server against a temporary library,
// cache and database
func NewTestHelper(t *testing.T) *TestHelper {
	testDir := t.TempDir()

	libraryDir := filepath.Join(testDir, "library")
	cacheDir := filepath.Join(testDir, "cache")
	dataDir := filepath.Join(testDir, "data")
	require.NoError(t, os.MkdirAll(libraryDir, 0755))

	// Keep the settings file lookup away from the real home directory
	t.Setenv("HOME", testDir)
	t.Setenv("GLOWWORM_DISPLAY_SIZES", "64x64")

	helper := &TestHelper{
		LibraryDir: libraryDir,
		CacheDir:   cacheDir,
		DataDir:    dataDir,
		prevEnv: map[string]string{
			"GLOWWORM_LIBRARY":     config.Env["GLOWWORM_LIBRARY"],
			"GLOWWORM_CACHE":       config.Env["GLOWWORM_CACHE"],
			"GLOWWORM_DATA":        config.Env["GLOWWORM_DATA"],
			"GLOWWORM_AUTH_SECRET": config.Env["GLOWWORM_AUTH_SECRET"],
		},
	}
	config.Env["GLOWWORM_LIBRARY"] = libraryDir
	config.Env["GLOWWORM_CACHE"] = cacheDir
	config.Env["GLOWWORM_DATA"] = dataDir
	config.Env["GLOWWORM_AUTH_SECRET"] = ""

	gin.SetMode(gin.TestMode)

	helper.setupTestData(t)

	router, cleanup, err := cmd.SetupRouter()
	require.NoError(t, err)

	helper.Router = router
	helper.cleanup = cleanup
	helper.Server = httptest.NewServer(router)

	return helper
}

// Cleanup cleans up test resources
func (h *TestHelper) Cleanup(t *testing.T) {
	if h.Server != nil {
		h.Server.Close()
	}
	if h.cleanup != nil {
		h.cleanup()
	}
	for key, value := range h.prevEnv {
		config.Env[key] = value
	}
}

// setupTestData seeds the library with a few real PNG images
func (h *TestHelper) setupTestData(t *testing.T) {
	require.NoError(t, os.MkdirAll(filepath.Join(h.LibraryDir, "vacation"), 0755))

	writeTestImage(t, filepath.Join(h.LibraryDir, "vacation", "beach.png"), 32, 24)
	writeTestImage(t, filepath.Join(h.LibraryDir, "vacation", "sunset.png"), 24, 32)
	writeTestImage(t, filepath.Join(h.LibraryDir, "portrait.png"), 16, 16)

	// Non-image files must be ignored by the scanner
	err := os.WriteFile(filepath.Join(h.LibraryDir, "notes.txt"), []byte("not an image"), 0644)
	require.NoError(t, err)
}

// writeTestImage writes a small but fully valid PNG to path
func writeTestImage(t *testing.T, path string, width, height int) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 128, A: 255})
		}
	}

	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()
	require.NoError(t, png.Encode(file, img))
}

// MakeRequest makes an HTTP request to the test server
func (h *TestHelper) MakeRequest(t *testing.T, method, path string, body interface{}) *http.Response {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, h.Server.URL+path, reqBody)
	require.NoError(t, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	return resp
}

// GetJSON makes a GET request and unmarshals the JSON response
func (h *TestHelper) GetJSON(t *testing.T, path string, target interface{}) *http.Response {
	return h.doJSON(t, "GET", path, nil, target)
}

// PostJSON makes a POST request with a JSON body and unmarshals the
// JSON response
func (h *TestHelper) PostJSON(t *testing.T, path string, requestBody interface{}, target interface{}) *http.Response {
	return h.doJSON(t, "POST", path, requestBody, target)
}

// PutJSON makes a PUT request with a JSON body and unmarshals the JSON
// response
func (h *TestHelper) PutJSON(t *testing.T, path string, requestBody interface{}, target interface{}) *http.Response {
	return h.doJSON(t, "PUT", path, requestBody, target)
}

// DeleteJSON makes a DELETE request and unmarshals the JSON response
func (h *TestHelper) DeleteJSON(t *testing.T, path string, target interface{}) *http.Response {
	return h.doJSON(t, "DELETE", path, nil, target)
}

func (h *TestHelper) doJSON(t *testing.T, method, path string, requestBody, target interface{}) *http.Response {
	resp := h.MakeRequest(t, method, path, requestBody)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer resp.Body.Close()

	if target != nil && len(body) > 0 {
		err = json.Unmarshal(body, target)
		require.NoError(t, err)
	}

	return resp
}

// WebSocketURL converts the test server's base URL to a ws:// URL for
// the given path
func (h *TestHelper) WebSocketURL(path string) string {
	return strings.Replace(h.Server.URL, "http", "ws", 1) + path
}

// ConnectWebSocket opens a raw WebSocket connection to the test server
func (h *TestHelper) ConnectWebSocket(t *testing.T, path string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(h.WebSocketURL(path), nil)
	require.NoError(t, err)
	return conn
}
