package model

import "time"

// ArtifactStatus tracks the lifecycle of the emotion canvas attached to a
// plan record. Records are created pending and flipped to completed exactly
// once by the artifact worker.
type ArtifactStatus string

const (
	ArtifactPending   ArtifactStatus = "pending"
	ArtifactCompleted ArtifactStatus = "completed"
)

// DayEntry is one day of the structured weekly plan.
type DayEntry struct {
	Day      string   `json:"day"`
	Tasks    []string `json:"tasks"`
	Focus    string   `json:"focus"`
	SelfCare string   `json:"self_care"`
}

// PlanRecord is the durable result of processing one reflection.
//
// The storage key is (UserID, CreatedAt); RecordID is an opaque correlation
// handle generated at ingestion so the worker can locate the record without
// knowing the exact timestamp.
type PlanRecord struct {
	UserID         string
	CreatedAt      time.Time
	RecordID       string
	Text           string
	Emotion        string
	SentimentScore int
	WeeklyPlan     []DayEntry
	ArtifactURL    *string
	ArtifactStatus ArtifactStatus
	// ArtifactGeneratedAt is set by the worker together with the URL.
	ArtifactGeneratedAt *time.Time
	// Fallback is true when the inference call degraded to the static payload.
	Fallback bool
}
