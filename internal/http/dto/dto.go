// Package dto holds the request and response shapes of the HTTP edge.
package dto

import "time"

type SubmitReflectionRequest struct {
	Text string `json:"text" binding:"required"`
}

type SubmitReflectionResponse struct {
	Accepted bool   `json:"accepted"`
	UserID   string `json:"userId"`
}

type IssueTokenRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type IssueTokenResponse struct {
	Token string `json:"token"`
}

type DayEntry struct {
	Day      string   `json:"day"`
	Tasks    []string `json:"tasks"`
	Focus    string   `json:"focus"`
	SelfCare string   `json:"self_care"`
}

type PlanRecord struct {
	RecordID            string     `json:"recordId"`
	CreatedAt           time.Time  `json:"createdAt"`
	Emotion             string     `json:"emotion"`
	SentimentScore      int        `json:"sentimentScore"`
	WeeklyPlan          []DayEntry `json:"weeklyPlan"`
	ArtifactURL         *string    `json:"artifactUrl,omitempty"`
	ArtifactStatus      string     `json:"artifactStatus"`
	ArtifactGeneratedAt *time.Time `json:"artifactGeneratedAt,omitempty"`
	Fallback            bool       `json:"fallback"`
}

type ListPlansResponse struct {
	UserID string       `json:"userId"`
	Plans  []PlanRecord `json:"plans"`
	// Count of plans whose artifact has not been generated yet.
	PendingArtifacts int `json:"pendingArtifacts"`
}
