package process

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"sentientplanner.app/planner/internal/queue"
)

// ReflectionSource is the part of the reflection consumer the runner needs.
type ReflectionSource interface {
	Read(ctx context.Context) ([]queue.Reflection, error)
	Ack(ctx context.Context, id string) error
}

// Runner drives the processor stage: read a batch, process it, acknowledge.
// Acknowledgement happens for every delivered message once the batch
// completes; per-record failures are already absorbed into the result and a
// retry would not change the outcome.
type Runner struct {
	consumer ReflectionSource
	service  Service

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewRunner(consumer ReflectionSource, service Service) *Runner {
	return &Runner{
		consumer:  consumer,
		service:   service,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run blocks until Stop() is called or the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.stoppedCh)

	slog.InfoContext(ctx, "processor started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stopCh:
			slog.InfoContext(ctx, "processor stopping")
			return nil
		default:
			if err := r.runOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

// Stop signals the runner to stop gracefully.
func (r *Runner) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

func (r *Runner) runOnce(ctx context.Context) error {
	batch, err := r.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}

	// A batch error (secrets unavailable) leaves every message pending so
	// the group redelivers it.
	if _, err := r.service.ProcessBatch(ctx, batch); err != nil {
		return fmt.Errorf("processing batch: %w", err)
	}

	for _, reflection := range batch {
		if ackErr := r.consumer.Ack(ctx, reflection.ID); ackErr != nil {
			slog.ErrorContext(ctx, "failed to ack reflection",
				"error", ackErr,
				"message_id", reflection.ID)
		}
	}

	return nil
}

// HandleReclaimed processes one stale reflection redelivered by the
// reclaimer. It runs as a single-message batch so the same ack discipline
// applies.
func (r *Runner) HandleReclaimed(ctx context.Context, msg redis.XMessage) error {
	data, ok := msg.Values["data"].(string)
	if !ok {
		slog.ErrorContext(ctx, "reclaimed message missing data field, acknowledging to prevent loop",
			"raw_message_id", msg.ID)
		return r.consumer.Ack(ctx, msg.ID)
	}

	batch := []queue.Reflection{{ID: msg.ID, Data: data, Raw: msg}}
	if _, err := r.service.ProcessBatch(ctx, batch); err != nil {
		return err
	}
	return r.consumer.Ack(ctx, msg.ID)
}
