// Package worker consumes canvas jobs and back-fills plan records with
// rendered artifacts.
//
// Acknowledgement is deliberately late: a job is acked only after the
// artifact is uploaded and the owning record updated, so a crash at any
// earlier point leaves the job pending for redelivery. Re-running a job is
// safe because rendering is deterministic and both the upload and the update
// are idempotent.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"sentientplanner.app/planner/common/logger"
	"sentientplanner.app/planner/internal/blob"
	"sentientplanner.app/planner/internal/canvas"
	"sentientplanner.app/planner/internal/queue"
	"sentientplanner.app/planner/internal/store"
)

// JobSource is the part of the job consumer the worker needs.
type JobSource interface {
	Read(ctx context.Context) ([]queue.JobMessage, error)
	Ack(ctx context.Context, id string) error
}

type Config struct {
	IdleDelay  time.Duration // pause after an empty poll
	ErrorDelay time.Duration // pause after a poll error
}

type Worker struct {
	consumer  JobSource
	artifacts blob.ArtifactStore
	plans     store.PlanStore
	cfg       Config

	processed int
	errored   int

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer JobSource, artifacts blob.ArtifactStore, plans store.PlanStore, cfg Config) *Worker {
	if cfg.IdleDelay == 0 {
		cfg.IdleDelay = time.Second
	}
	if cfg.ErrorDelay == 0 {
		cfg.ErrorDelay = 5 * time.Second
	}
	return &Worker{
		consumer:  consumer,
		artifacts: artifacts,
		plans:     plans,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run blocks until Stop() is called or the context is cancelled. Jobs in a
// batch process sequentially; the stop signal is honored between jobs so an
// in-flight job always completes or stays pending, never half-acked.
func (w *Worker) Run(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "planner.worker",
	})

	defer close(w.stoppedCh)
	defer w.logTotals(ctx)

	slog.InfoContext(ctx, "artifact worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "artifact worker stopping")
			return nil
		default:
		}

		jobs, err := w.consumer.Read(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to poll canvas jobs", "error", err)
			w.sleep(w.cfg.ErrorDelay)
			continue
		}
		if len(jobs) == 0 {
			w.sleep(w.cfg.IdleDelay)
			continue
		}

		for _, job := range jobs {
			if w.stopRequested(ctx) {
				slog.InfoContext(ctx, "stop requested mid-batch, remaining jobs stay pending",
					"remaining", len(jobs))
				return nil
			}
			w.handleJob(ctx, job)
		}
	}
}

// Stop signals the worker to stop gracefully.
func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

// Totals reports lifetime counters. Only meaningful after Run has returned.
func (w *Worker) Totals() (processed, errored int) {
	return w.processed, w.errored
}

func (w *Worker) handleJob(ctx context.Context, msg queue.JobMessage) {
	job := msg.Job
	msgID := msg.ID
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: &msgID,
		UserID:    &job.UserID,
		RecordID:  &job.RecordID,
		Emotion:   &job.Emotion,
	})

	if err := w.processJob(ctx, msg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The owning record is gone. Redelivery cannot fix that, so
			// ack and move on.
			slog.WarnContext(ctx, "plan record not found, dropping canvas job")
			w.ack(ctx, msg.ID)
			w.errored++
			return
		}
		slog.ErrorContext(ctx, "canvas job failed, leaving pending for redelivery", "error", err)
		w.errored++
		return
	}

	w.ack(ctx, msg.ID)
	w.processed++
}

func (w *Worker) processJob(ctx context.Context, msg queue.JobMessage) error {
	job := msg.Job
	start := time.Now()

	artifact := canvas.Generate(job.Emotion, job.RecordID, time.Now().UTC())

	enqueuedAt := job.EnqueuedAt
	if enqueuedAt.IsZero() {
		enqueuedAt = time.Now().UTC()
	}
	key := blob.ObjectKey(job.UserID, job.RecordID, enqueuedAt)

	url, err := w.artifacts.Upload(ctx, key, artifact)
	if err != nil {
		return fmt.Errorf("uploading artifact: %w", err)
	}

	if err := w.plans.SetArtifact(ctx, job.UserID, job.RecordID, url, time.Now().UTC()); err != nil {
		return fmt.Errorf("updating plan record: %w", err)
	}

	slog.InfoContext(ctx, "canvas artifact completed",
		"artifact_url", url,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// HandleReclaimed processes one stale job redelivered by the reclaimer.
func (w *Worker) HandleReclaimed(ctx context.Context, msg redis.XMessage) error {
	job, err := queue.ParseJob(msg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse reclaimed job, acknowledging to prevent loop",
			"error", err)
		return w.consumer.Ack(ctx, msg.ID)
	}
	w.handleJob(ctx, queue.JobMessage{ID: msg.ID, Job: job, Raw: msg})
	return nil
}

func (w *Worker) ack(ctx context.Context, id string) {
	if err := w.consumer.Ack(ctx, id); err != nil {
		slog.ErrorContext(ctx, "failed to ack canvas job", "error", err, "message_id", id)
	}
}

func (w *Worker) stopRequested(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-w.stopCh:
		return true
	default:
		return false
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-w.stopCh:
	}
}

func (w *Worker) logTotals(ctx context.Context) {
	slog.InfoContext(ctx, "artifact worker totals",
		"processed", w.processed,
		"errors", w.errored)
}
