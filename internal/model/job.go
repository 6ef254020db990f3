package model

import "time"

// CanvasJob asks the artifact worker to render an emotion canvas for a stored
// plan record. Jobs are dispatched best-effort after the record is durable;
// losing one leaves the record pending forever, which the reader tolerates.
type CanvasJob struct {
	RecordID   string
	UserID     string
	Emotion    string
	EnqueuedAt time.Time
}
