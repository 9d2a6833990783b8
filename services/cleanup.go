package services

import (
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// DefaultTaskRetention is how long finished tasks stay queryable before
// the cleanup job drops them
const DefaultTaskRetention = 24 * time.Hour

// DefaultCleanupInterval is how often the pruning job runs
const DefaultCleanupInterval = time.Hour

// CleanupScheduler periodically prunes finished regeneration tasks
type CleanupScheduler struct {
	scheduler *gocron.Scheduler
	queue     TaskQueue
	retention time.Duration
}

// NewCleanupScheduler creates a cleanup scheduler for the given queue.
// A zero retention falls back to DefaultTaskRetention.
func NewCleanupScheduler(queue TaskQueue, retention time.Duration) *CleanupScheduler {
	if retention == 0 {
		retention = DefaultTaskRetention
	}
	return &CleanupScheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		queue:     queue,
		retention: retention,
	}
}

// Start registers the pruning job and begins running it asynchronously
func (cs *CleanupScheduler) Start(interval time.Duration) error {
	if _, err := cs.scheduler.Every(interval).Do(cs.prune); err != nil {
		return fmt.Errorf("failed to schedule task cleanup: %w", err)
	}
	cs.scheduler.StartAsync()
	log.Printf("Task cleanup scheduled every %s with %s retention", interval, cs.retention)
	return nil
}

// Stop halts the scheduler
func (cs *CleanupScheduler) Stop() {
	cs.scheduler.Stop()
}

// prune drops finished tasks older than the retention window
func (cs *CleanupScheduler) prune() {
	if pruned := cs.queue.PruneFinished(cs.retention); pruned > 0 {
		log.Printf("Pruned %d finished regeneration tasks", pruned)
	}
}
