package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"sentientplanner.app/planner/core/db"
	"sentientplanner.app/planner/internal/model"
)

type planStore struct {
	db           *db.DB
	maxTextRunes int
}

// NewPlanStore creates a PostgreSQL-backed PlanStore. Reflection text longer
// than maxTextRunes is truncated before insert so oversized payloads cannot
// bloat rows.
func NewPlanStore(database *db.DB, maxTextRunes int) PlanStore {
	return &planStore{db: database, maxTextRunes: maxTextRunes}
}

const createPlanSQL = `
INSERT INTO plan_records (
	user_id, created_at, record_id, reflection_text, emotion,
	sentiment_score, weekly_plan, artifact_status, is_fallback
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func (s *planStore) Create(ctx context.Context, record *model.PlanRecord) error {
	text := record.Text
	if runes := []rune(text); len(runes) > s.maxTextRunes {
		text = string(runes[:s.maxTextRunes])
	}

	planJSON, err := json.Marshal(record.WeeklyPlan)
	if err != nil {
		return fmt.Errorf("marshal weekly plan: %w", err)
	}

	_, err = s.db.Pool().Exec(ctx, createPlanSQL,
		record.UserID,
		record.CreatedAt,
		record.RecordID,
		text,
		record.Emotion,
		record.SentimentScore,
		planJSON,
		string(record.ArtifactStatus),
		record.Fallback,
	)
	if err != nil {
		return fmt.Errorf("insert plan record: %w", err)
	}
	return nil
}

const listPlansSQL = `
SELECT user_id, created_at, record_id, reflection_text, emotion,
	sentiment_score, weekly_plan, artifact_url, artifact_status,
	artifact_generated_at, is_fallback
FROM plan_records
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2`

func (s *planStore) ListByUser(ctx context.Context, userID string, limit int32) ([]model.PlanRecord, error) {
	rows, err := s.db.Pool().Query(ctx, listPlansSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query plan records: %w", err)
	}
	defer rows.Close()

	var records []model.PlanRecord
	for rows.Next() {
		record, err := scanPlanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plan records: %w", err)
	}
	return records, nil
}

const setArtifactSQL = `
UPDATE plan_records
SET artifact_url = $3, artifact_status = $4, artifact_generated_at = $5
WHERE user_id = $1 AND record_id = $2`

func (s *planStore) SetArtifact(ctx context.Context, userID, recordID, artifactURL string, generatedAt time.Time) error {
	tag, err := s.db.Pool().Exec(ctx, setArtifactSQL,
		userID,
		recordID,
		artifactURL,
		string(model.ArtifactCompleted),
		generatedAt,
	)
	if err != nil {
		return fmt.Errorf("update artifact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPlanRecord(rows pgx.Rows) (model.PlanRecord, error) {
	var (
		record   model.PlanRecord
		planJSON []byte
		status   string
	)
	err := rows.Scan(
		&record.UserID,
		&record.CreatedAt,
		&record.RecordID,
		&record.Text,
		&record.Emotion,
		&record.SentimentScore,
		&planJSON,
		&record.ArtifactURL,
		&status,
		&record.ArtifactGeneratedAt,
		&record.Fallback,
	)
	if err != nil {
		return model.PlanRecord{}, fmt.Errorf("scan plan record: %w", err)
	}
	if err := json.Unmarshal(planJSON, &record.WeeklyPlan); err != nil {
		return model.PlanRecord{}, fmt.Errorf("unmarshal weekly plan: %w", err)
	}
	record.ArtifactStatus = model.ArtifactStatus(status)
	return record, nil
}
