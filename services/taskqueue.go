package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"glowworm/config"
	"glowworm/types"
	"glowworm/websocket"

	"github.com/google/uuid"
)

// DisplaySizeSource provides the rendition sizes to use when a request
// does not name any, normally the distinct resolutions of registered
// displays
type DisplaySizeSource interface {
	DistinctResolutions() ([]string, error)
}

// TaskQueue interface defines the methods for managing regeneration tasks
type TaskQueue interface {
	Start()
	AddTask(displaySizes []string) (*types.RegenerationTask, error)
	GetTask(id string) (*types.RegenerationTask, bool)
	GetAllTasks() []*types.RegenerationTask
	CancelTask(id string) bool
	PruneFinished(olderThan time.Duration) int
}

// taskQueue manages regeneration tasks
type taskQueue struct {
	tasks      map[string]*types.RegenerationTask
	queue      chan string
	mu         sync.RWMutex
	maxWorkers int
	hub        websocket.Hub
	renditions RenditionService
	sizes      DisplaySizeSource
}

// NewTaskQueue creates a new regeneration task queue. sizes may be nil,
// in which case requests without explicit sizes fall back to the
// configured defaults.
func NewTaskQueue(maxWorkers int, hub websocket.Hub, renditions RenditionService, sizes DisplaySizeSource) TaskQueue {
	return &taskQueue{
		tasks:      make(map[string]*types.RegenerationTask),
		queue:      make(chan string, 100), // Buffer for 100 tasks
		maxWorkers: maxWorkers,
		hub:        hub,
		renditions: renditions,
		sizes:      sizes,
	}
}

// AddTask queues a regeneration of the whole library for the given
// display sizes
func (tq *taskQueue) AddTask(displaySizes []string) (*types.RegenerationTask, error) {
	sizes, err := tq.resolveSizes(displaySizes)
	if err != nil {
		return nil, err
	}

	tq.mu.Lock()
	defer tq.mu.Unlock()

	task := &types.RegenerationTask{
		ID:           uuid.New().String(),
		Status:       types.TaskStatusPending,
		DisplaySizes: sizes,
		CreatedAt:    time.Now(),
	}

	tq.tasks[task.ID] = task
	tq.queue <- task.ID

	snapshot := *task
	return &snapshot, nil
}

// resolveSizes validates requested sizes, falling back to registered
// display resolutions and then to the configured defaults
func (tq *taskQueue) resolveSizes(displaySizes []string) ([]string, error) {
	sizes := displaySizes
	if len(sizes) == 0 && tq.sizes != nil {
		resolved, err := tq.sizes.DistinctResolutions()
		if err != nil {
			log.Printf("Could not resolve display resolutions: %v", err)
		} else {
			sizes = resolved
		}
	}
	if len(sizes) == 0 {
		sizes = config.GetDefaultDisplaySizes()
	}

	for _, size := range sizes {
		if _, _, err := ParseDisplaySize(size); err != nil {
			return nil, err
		}
	}
	return sizes, nil
}

// GetTask retrieves a task snapshot by ID
func (tq *taskQueue) GetTask(id string) (*types.RegenerationTask, bool) {
	tq.mu.RLock()
	defer tq.mu.RUnlock()

	task, exists := tq.tasks[id]
	if !exists {
		return nil, false
	}
	snapshot := *task
	return &snapshot, true
}

// GetAllTasks returns snapshots of all known tasks
func (tq *taskQueue) GetAllTasks() []*types.RegenerationTask {
	tq.mu.RLock()
	defer tq.mu.RUnlock()

	tasks := make([]*types.RegenerationTask, 0, len(tq.tasks))
	for _, task := range tq.tasks {
		snapshot := *task
		tasks = append(tasks, &snapshot)
	}
	return tasks
}

// CancelTask cancels a pending task
func (tq *taskQueue) CancelTask(id string) bool {
	tq.mu.Lock()

	task, exists := tq.tasks[id]
	if !exists || task.Status != types.TaskStatusPending {
		tq.mu.Unlock()
		return false
	}

	task.Status = types.TaskStatusCancelled
	now := time.Now()
	task.CompletedAt = &now
	progress := task.Progress()
	tq.mu.Unlock()

	tq.broadcast(progress)
	return true
}

// PruneFinished removes terminal tasks whose completion is older than
// the retention window, returning how many were dropped
func (tq *taskQueue) PruneFinished(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	tq.mu.Lock()
	defer tq.mu.Unlock()

	pruned := 0
	for id, task := range tq.tasks {
		if task.Status.IsTerminal() && task.CompletedAt != nil && task.CompletedAt.Before(cutoff) {
			delete(tq.tasks, id)
			pruned++
		}
	}
	return pruned
}

// Start begins processing tasks
func (tq *taskQueue) Start() {
	for i := 0; i < tq.maxWorkers; i++ {
		go tq.worker()
	}
}

// worker processes tasks from the queue
func (tq *taskQueue) worker() {
	for id := range tq.queue {
		tq.mu.RLock()
		task, exists := tq.tasks[id]
		cancelled := exists && task.Status == types.TaskStatusCancelled
		tq.mu.RUnlock()
		if !exists || cancelled {
			continue
		}

		if err := tq.processTask(id); err != nil {
			tq.setStatus(id, types.TaskStatusFailed, err.Error())
			log.Printf("Regeneration task %s failed: %v", id, err)
		} else {
			tq.setStatus(id, types.TaskStatusCompleted, "")
			log.Printf("Regeneration task %s completed successfully", id)
		}
	}
}

// processTask renders every library image into the task's display sizes
func (tq *taskQueue) processTask(id string) error {
	tq.mu.RLock()
	sizes := tq.tasks[id].DisplaySizes
	tq.mu.RUnlock()

	tq.setStatus(id, types.TaskStatusRunning, "")

	libraryPath := config.GetLibraryLocation()
	images, err := tq.renditions.ScanImages(libraryPath)
	if err != nil {
		return fmt.Errorf("failed to scan library: %w", err)
	}

	tq.updateProgress(id, 0, len(images), "")

	for i, img := range images {
		tq.updateProgress(id, i, len(images), img.Path)

		if err := tq.renditions.RenderSizes(libraryPath, img.Path, sizes); err != nil {
			log.Printf("Rendition failed for %s: %v", img.Path, err)
			tq.recordError(id)
		}

		tq.updateProgress(id, i+1, len(images), "")
	}

	return nil
}

// updateProgress updates a task's counters and broadcasts the snapshot
func (tq *taskQueue) updateProgress(id string, processed, total int, currentImage string) {
	tq.mu.Lock()
	task, exists := tq.tasks[id]
	if !exists {
		tq.mu.Unlock()
		return
	}

	task.ProcessedImages = processed
	task.TotalImages = total
	task.CurrentImage = currentImage
	if total > 0 {
		task.ProgressPercentage = float64(processed) / float64(total) * 100
	}
	progress := task.Progress()
	tq.mu.Unlock()

	tq.broadcast(progress)
}

// recordError bumps a task's error counter
func (tq *taskQueue) recordError(id string) {
	tq.mu.Lock()
	if task, exists := tq.tasks[id]; exists {
		task.ErrorCount++
	}
	tq.mu.Unlock()
}

// setStatus updates task status and broadcasts the transition
func (tq *taskQueue) setStatus(id string, status types.TaskStatus, errorMsg string) {
	tq.mu.Lock()
	task, exists := tq.tasks[id]
	if !exists {
		tq.mu.Unlock()
		return
	}

	task.Status = status
	if errorMsg != "" {
		task.ErrorMessage = errorMsg
	}

	now := time.Now()
	if status == types.TaskStatusRunning && task.StartedAt == nil {
		task.StartedAt = &now
	} else if status.IsTerminal() {
		task.CompletedAt = &now
		task.CurrentImage = ""
		if status == types.TaskStatusCompleted {
			task.ProgressPercentage = 100.0
		}
	}
	progress := task.Progress()
	tq.mu.Unlock()

	tq.broadcast(progress)
}

// broadcast pushes a snapshot through the hub when one is attached
func (tq *taskQueue) broadcast(progress types.RegenerationProgress) {
	if tq.hub != nil {
		tq.hub.BroadcastProgress(progress)
	}
}
