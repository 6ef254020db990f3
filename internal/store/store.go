// Package store persists plan records in PostgreSQL.
//
// Records are keyed by (user_id, created_at) so a user's plans read back in
// insertion order; record_id carries a unique index for the targeted artifact
// back-fill performed by the canvas worker.
package store

import (
	"context"
	"errors"
	"time"

	"sentientplanner.app/planner/internal/model"
)

// ErrNotFound is returned when a requested plan record does not exist.
var ErrNotFound = errors.New("not found")

// PlanStore defines the contract for plan record persistence.
type PlanStore interface {
	Create(ctx context.Context, record *model.PlanRecord) error
	ListByUser(ctx context.Context, userID string, limit int32) ([]model.PlanRecord, error)
	SetArtifact(ctx context.Context, userID, recordID, artifactURL string, generatedAt time.Time) error
}
