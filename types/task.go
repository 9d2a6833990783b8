package types

import "time"

// TaskStatus represents the current status of a regeneration task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether the status is a final state
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// RegenerationTask represents a rendition regeneration task in the queue
type RegenerationTask struct {
	ID                 string     `json:"task_id"`
	Status             TaskStatus `json:"status"`
	TotalImages        int        `json:"total_images"`
	ProcessedImages    int        `json:"processed_images"`
	ErrorCount         int        `json:"error_count"`
	CurrentImage       string     `json:"current_image,omitempty"`
	DisplaySizes       []string   `json:"display_sizes"`
	ProgressPercentage float64    `json:"progress_percentage"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// Progress returns the task's current progress snapshot for broadcasting
func (t *RegenerationTask) Progress() RegenerationProgress {
	return RegenerationProgress{
		TaskID:             t.ID,
		Status:             t.Status,
		TotalImages:        t.TotalImages,
		ProcessedImages:    t.ProcessedImages,
		ErrorCount:         t.ErrorCount,
		CurrentImage:       t.CurrentImage,
		DisplaySizes:       t.DisplaySizes,
		ProgressPercentage: t.ProgressPercentage,
		ErrorMessage:       t.ErrorMessage,
		StartedAt:          t.StartedAt,
		CompletedAt:        t.CompletedAt,
	}
}
