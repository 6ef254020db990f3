// Package process turns raw reflection messages into durable plan records.
//
// Each batch resolves the secret bundle once, enriches every reflection
// (degrading to the fallback plan when inference fails), stores the record,
// and then hands artifact work to the canvas queue. Storage is the only step
// allowed to fail a record; dispatch failures degrade gracefully because the
// record is already durable.
package process

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"sentientplanner.app/planner/common/logger"
	"sentientplanner.app/planner/internal/enrich"
	"sentientplanner.app/planner/internal/model"
	"sentientplanner.app/planner/internal/queue"
	"sentientplanner.app/planner/internal/secrets"
	"sentientplanner.app/planner/internal/store"
)

// BatchResult summarizes one processed batch.
type BatchResult struct {
	Processed int
	Skipped   int
	Errors    int
}

// Service processes reflection batches.
type Service interface {
	ProcessBatch(ctx context.Context, batch []queue.Reflection) (BatchResult, error)
}

type service struct {
	secrets    secrets.Provider
	enricher   enrich.Client
	plans      store.PlanStore
	dispatcher queue.JobDispatcher
	logger     *slog.Logger
}

func NewService(secretProvider secrets.Provider, enricher enrich.Client, plans store.PlanStore, dispatcher queue.JobDispatcher, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return &service{
		secrets:    secretProvider,
		enricher:   enricher,
		plans:      plans,
		dispatcher: dispatcher,
		logger:     log,
	}
}

// ProcessBatch handles one read batch. A non-nil error means the whole batch
// must stay unacknowledged and be redelivered; per-record failures are
// absorbed into the result counters instead.
func (s *service) ProcessBatch(ctx context.Context, batch []queue.Reflection) (BatchResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "planner.process",
	})

	var result BatchResult
	if len(batch) == 0 {
		return result, nil
	}

	// Secrets gate the whole batch. Without an inference key even the
	// fallback path would misreport degraded enrichment as permanent.
	bundle, err := s.secrets.Fetch(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to resolve secret bundle, batch will be redelivered", "error", err)
		return result, err
	}

	s.logger.InfoContext(ctx, "processing reflection batch", "count", len(batch))

	for _, reflection := range batch {
		s.processOne(ctx, reflection, bundle, &result)
	}

	s.logger.InfoContext(ctx, "reflection batch complete",
		"processed", result.Processed,
		"skipped", result.Skipped,
		"errors", result.Errors)

	return result, nil
}

func (s *service) processOne(ctx context.Context, reflection queue.Reflection, bundle secrets.Bundle, result *BatchResult) {
	msgID := reflection.ID
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: &msgID,
	})

	input, err := queue.DecodeReflection(reflection.Data)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to decode reflection", "error", err)
		result.Errors++
		return
	}

	if strings.TrimSpace(input.Text) == "" {
		s.logger.InfoContext(ctx, "reflection has no text, skipping", "user_id", input.UserID)
		result.Skipped++
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID: &input.UserID,
	})
	s.logger.DebugContext(ctx, "reflection decoded", "text_preview", logger.Truncate(input.Text, 80))

	analysis := s.enricher.Analyze(ctx, input.Text, bundle.InferenceAPIKey)

	record := model.PlanRecord{
		UserID:         input.UserID,
		CreatedAt:      time.Now().UTC(),
		RecordID:       uuid.NewString(),
		Text:           input.Text,
		Emotion:        analysis.Emotion,
		SentimentScore: analysis.SentimentScore,
		WeeklyPlan:     analysis.WeeklyPlan,
		ArtifactStatus: model.ArtifactPending,
		Fallback:       analysis.Fallback,
	}

	if err := s.plans.Create(ctx, &record); err != nil {
		s.logger.ErrorContext(ctx, "failed to store plan record", "error", err, "record_id", record.RecordID)
		result.Errors++
		return
	}

	s.logger.InfoContext(ctx, "plan record stored",
		"record_id", record.RecordID,
		"emotion", record.Emotion,
		"fallback", record.Fallback)

	// Dispatch is best effort. The record is durable either way; the
	// artifact simply stays pending until a job eventually reaches the
	// worker.
	s.dispatcher.Dispatch(ctx, model.CanvasJob{
		RecordID:   record.RecordID,
		UserID:     record.UserID,
		Emotion:    record.Emotion,
		EnqueuedAt: record.CreatedAt,
	})

	result.Processed++
}
