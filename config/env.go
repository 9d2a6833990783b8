package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

var Env = map[string]string{
	"GLOWWORM_LIBRARY":      os.Getenv("GLOWWORM_LIBRARY"),
	"GLOWWORM_CACHE":        os.Getenv("GLOWWORM_CACHE"),
	"GLOWWORM_DATA":         os.Getenv("GLOWWORM_DATA"),
	"GLOWWORM_AUTH_SECRET":  os.Getenv("GLOWWORM_AUTH_SECRET"),
	"GLOWWORM_CORS_ORIGINS": os.Getenv("GLOWWORM_CORS_ORIGINS"),
}

// GetLibraryLocation returns the root directory of the photo library
func GetLibraryLocation() string {
	// Settings file takes precedence over environment
	if userPath := getUserLibraryLocation(); userPath != "" {
		return userPath
	}

	if customPath := Env["GLOWWORM_LIBRARY"]; customPath != "" {
		return customPath
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if can't get home dir
		return filepath.Join(".", "library")
	}

	return filepath.Join(homeDir, "Pictures", "Glowworm")
}

// GetCacheLocation returns the directory where display-size renditions
// are written
func GetCacheLocation() string {
	if customPath := Env["GLOWWORM_CACHE"]; customPath != "" {
		return customPath
	}
	return filepath.Join(GetLibraryLocation(), ".renditions")
}

// GetDataLocation returns the directory holding the SQLite database
func GetDataLocation() string {
	if customPath := Env["GLOWWORM_DATA"]; customPath != "" {
		return customPath
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".local", "share", "glowworm")
}

// GetAuthSecret returns the HS256 secret for API tokens, empty when auth
// is disabled
func GetAuthSecret() string {
	return Env["GLOWWORM_AUTH_SECRET"]
}

// GetCORSOrigins returns the origins allowed to call the HTTP API,
// defaulting to the local web frontends used during development
func GetCORSOrigins() []string {
	if origins := Env["GLOWWORM_CORS_ORIGINS"]; origins != "" {
		return strings.Split(origins, ",")
	}
	return []string{"http://localhost:3000", "http://localhost:5173"}
}

// GetDefaultDisplaySizes returns the rendition sizes used when neither a
// request nor the display registry provides any
func GetDefaultDisplaySizes() []string {
	if sizes := os.Getenv("GLOWWORM_DISPLAY_SIZES"); sizes != "" {
		return strings.Split(sizes, ",")
	}
	return []string{"1920x1080"}
}

// UserSettings represents the user's personal settings
type UserSettings struct {
	LibraryLocation string   `json:"libraryLocation"`
	CacheLocation   string   `json:"cacheLocation,omitempty"`
	DisplaySizes    []string `json:"displaySizes,omitempty"`
}

// SettingsFilePath returns the path to the settings file
func SettingsFilePath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".glowworm-settings.json")
}

// getUserLibraryLocation loads the preferred library location from the
// settings file
func getUserLibraryLocation() string {
	settingsPath := SettingsFilePath()

	// If file doesn't exist, return empty string to fall back to env vars
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		return ""
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return ""
	}

	var settings UserSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return ""
	}

	return settings.LibraryLocation
}
