package types

import "time"

// ProgressUpdateType identifies the regeneration progress frame on the wire
const ProgressUpdateType = "regeneration_progress"

// RegenerationProgress is a single status snapshot pushed from the server
// describing how far a regeneration task has progressed
type RegenerationProgress struct {
	TaskID             string     `json:"task_id"`
	Status             TaskStatus `json:"status"`
	TotalImages        int        `json:"total_images"`
	ProcessedImages    int        `json:"processed_images"`
	ErrorCount         int        `json:"error_count"`
	CurrentImage       string     `json:"current_image,omitempty"`
	DisplaySizes       []string   `json:"display_sizes"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	ProgressPercentage float64    `json:"progress_percentage"`
}

// ProgressUpdate is the envelope for every frame sent over the progress
// WebSocket. Type is always ProgressUpdateType for regeneration frames.
type ProgressUpdate struct {
	Type string               `json:"type"`
	Data RegenerationProgress `json:"data"`
}
