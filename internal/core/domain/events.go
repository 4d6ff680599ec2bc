package domain

import "time"

type EventType string

const (
	EventUploaded           EventType = "dataset.uploaded"
	EventClassified         EventType = "dataset.classified"
	EventRegressed          EventType = "dataset.regressed"
	EventFailed             EventType = "pipeline.failed"
	EventOptimized          EventType = "optimization.completed"
	EventOptimizationFailed EventType = "optimization.failed"
)

// PipelineEvent describes a settled pipeline transition.
type PipelineEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	DatasetID  string    `json:"dataset_id,omitempty"`
	Generation uint64    `json:"generation,omitempty"`
	Phase      string    `json:"phase,omitempty"`
	Rows       int       `json:"rows,omitempty"`
	Message    string    `json:"message,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
