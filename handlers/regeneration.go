package handlers

import (
	"log"
	"net/http"

	"glowworm/services"
	"glowworm/websocket"

	"github.com/gin-gonic/gin"
)

// RegenerationHandler handles rendition regeneration endpoints
type RegenerationHandler struct {
	taskQueue services.TaskQueue
	hub       websocket.Hub
}

// NewRegenerationHandler creates a new regeneration handler
func NewRegenerationHandler(tq services.TaskQueue, hub websocket.Hub) *RegenerationHandler {
	return &RegenerationHandler{
		taskQueue: tq,
		hub:       hub,
	}
}

// regenerationRequest is the optional body for queueing a task
type regenerationRequest struct {
	DisplaySizes []string `json:"display_sizes"`
}

// QueueTask queues a library regeneration task
func (h *RegenerationHandler) QueueTask(c *gin.Context) {
	var req regenerationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid request body",
				"details": err.Error(),
			})
			return
		}
	}

	task, err := h.taskQueue.AddTask(req.DisplaySizes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "could not queue regeneration",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Regeneration queued successfully",
		"task":    task,
	})
}

// GetAllTasks returns all regeneration tasks
func (h *RegenerationHandler) GetAllTasks(c *gin.Context) {
	tasks := h.taskQueue.GetAllTasks()
	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"total": len(tasks),
	})
}

// GetTask returns a specific regeneration task by ID
func (h *RegenerationHandler) GetTask(c *gin.Context) {
	taskID := c.Param("taskId")
	task, exists := h.taskQueue.GetTask(taskID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "task not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task": task,
	})
}

// CancelTask cancels a pending regeneration task
func (h *RegenerationHandler) CancelTask(c *gin.Context) {
	taskID := c.Param("taskId")
	cancelled := h.taskQueue.CancelTask(taskID)
	if !cancelled {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "task cannot be cancelled (not found or already running)",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "task cancelled successfully",
	})
}

// HandleProgressConnection handles WebSocket subscriptions for a
// specific task's progress
func (h *RegenerationHandler) HandleProgressConnection(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "task ID is required"})
		return
	}

	// Check if task exists
	if _, exists := h.taskQueue.GetTask(taskID); !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	upgrader := websocket.GetUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, taskID)
	h.hub.RegisterClient(client)
	client.StartPumps()
}

// HandleAllProgressConnection handles WebSocket subscriptions for every
// task's progress
func (h *RegenerationHandler) HandleAllProgressConnection(c *gin.Context) {
	upgrader := websocket.GetUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, websocket.AllTasksChannel)
	h.hub.RegisterClient(client)
	client.StartPumps()
}
