package cmd

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"glowworm/auth"
	"glowworm/config"
	"glowworm/handlers"
	"glowworm/middleware"
	"glowworm/services"
	"glowworm/store"
	"glowworm/websocket"

	"github.com/gin-gonic/gin"
)

// StartWebServer starts the web server
func StartWebServer(port int) {
	// Set production mode if not specified
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r, cleanup, err := SetupRouter()
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}
	defer cleanup()

	portStr := strconv.Itoa(port)
	if serverPort := os.Getenv("SERVER_PORT"); serverPort != "" {
		portStr = serverPort
	}

	log.Printf("Glowworm web server starting on port %s", portStr)
	if err := r.Run(":" + portStr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// SetupRouter wires all services and routes and returns the engine
// along with a cleanup function that releases background resources.
func SetupRouter() (*gin.Engine, func(), error) {
	// Initialize services
	hub := websocket.NewHub()
	go hub.Run()

	dataDir := config.GetDataLocation()
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, nil, err
	}

	db, err := store.NewStore(filepath.Join(dataDir, "glowworm.db"))
	if err != nil {
		return nil, nil, err
	}

	renditions := services.NewRenditionService(config.GetCacheLocation())

	taskQueue := services.NewTaskQueue(2, hub, renditions, db)
	taskQueue.Start()

	cleanupScheduler := services.NewCleanupScheduler(taskQueue, services.DefaultTaskRetention)
	if err := cleanupScheduler.Start(services.DefaultCleanupInterval); err != nil {
		log.Printf("Warning: cleanup scheduler not started: %v", err)
	}

	// Token verification is enabled only when a secret is configured
	var verifier *auth.Verifier
	if secret := config.GetAuthSecret(); secret != "" {
		verifier = auth.NewVerifier(secret, auth.NewTokenCache(auth.DefaultCacheTTL))
	}

	// Initialize handlers
	regenHandler := handlers.NewRegenerationHandler(taskQueue, hub)
	displayHandler := handlers.NewDisplayHandler(db)
	playlistHandler := handlers.NewPlaylistHandler(db)
	libraryHandler := handlers.NewLibraryHandler(renditions)
	searchHandler := handlers.NewSearchHandler(db, renditions)
	healthHandler := handlers.NewHealthHandler()
	settingsHandler := handlers.NewSettingsHandler()

	// Setup router
	r := gin.Default()

	// Apply middleware
	r.Use(middleware.CORS())
	r.Use(middleware.Logging())
	r.Use(middleware.Security())

	setupRoutes(r, verifier, regenHandler, displayHandler, playlistHandler, libraryHandler, searchHandler, healthHandler, settingsHandler)

	cleanup := func() {
		cleanupScheduler.Stop()
		db.Close()
	}

	return r, cleanup, nil
}

// setupRoutes configures all the HTTP routes
func setupRoutes(r *gin.Engine, verifier *auth.Verifier, regenHandler *handlers.RegenerationHandler, displayHandler *handlers.DisplayHandler, playlistHandler *handlers.PlaylistHandler, libraryHandler *handlers.LibraryHandler, searchHandler *handlers.SearchHandler, healthHandler *handlers.HealthHandler, settingsHandler *handlers.SettingsHandler) {
	// Health check endpoint
	r.GET("/health", healthHandler.HealthCheck)

	// API routes group
	apiGroup := r.Group("/api")
	apiGroup.Use(middleware.Auth(verifier))
	{
		apiGroup.GET("/status", healthHandler.APIStatus)

		// Search endpoint
		apiGroup.GET("/search", searchHandler.Search)

		// Regeneration task endpoints
		regenGroup := apiGroup.Group("/regeneration")
		{
			regenGroup.POST("", regenHandler.QueueTask)
			regenGroup.GET("", regenHandler.GetAllTasks)
			regenGroup.GET("/:taskId", regenHandler.GetTask)
			regenGroup.DELETE("/:taskId", regenHandler.CancelTask)
		}

		// Display management endpoints
		displaysGroup := apiGroup.Group("/displays")
		{
			displaysGroup.POST("", displayHandler.RegisterDisplay)
			displaysGroup.GET("", displayHandler.ListDisplays)
			displaysGroup.GET("/:id", displayHandler.GetDisplay)
			displaysGroup.PUT("/:id", displayHandler.UpdateDisplay)
			displaysGroup.DELETE("/:id", displayHandler.DeleteDisplay)
			displaysGroup.PUT("/:id/playlist", displayHandler.AssignPlaylist)
			displaysGroup.POST("/:id/heartbeat", displayHandler.Heartbeat)
		}

		// Playlist management endpoints
		playlistsGroup := apiGroup.Group("/playlists")
		{
			playlistsGroup.POST("", playlistHandler.CreatePlaylist)
			playlistsGroup.GET("", playlistHandler.ListPlaylists)
			playlistsGroup.GET("/:id", playlistHandler.GetPlaylist)
			playlistsGroup.PUT("/:id", playlistHandler.UpdatePlaylist)
			playlistsGroup.DELETE("/:id", playlistHandler.DeletePlaylist)
		}

		// Library browsing and image serving endpoints
		apiGroup.GET("/library", libraryHandler.ListImages)
		apiGroup.GET("/library/images/*filepath", libraryHandler.ServeImage)

		// Settings endpoints
		apiGroup.GET("/settings", settingsHandler.GetSettings)
		apiGroup.POST("/settings", settingsHandler.UpdateSettings)
	}

	// WebSocket endpoints for real-time progress. Displays connect here
	// without credentials, so these stay outside the authenticated group.
	wsGroup := r.Group("/api/ws")
	{
		wsGroup.GET("/progress/:taskId", regenHandler.HandleProgressConnection)
		wsGroup.GET("/progress", regenHandler.HandleAllProgressConnection)
	}
}
