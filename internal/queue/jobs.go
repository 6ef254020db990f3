package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"sentientplanner.app/planner/common/logger"
	"sentientplanner.app/planner/internal/model"
)

// JobDispatcher hands canvas work to the artifact worker. Dispatch reports
// whether the job actually reached the stream; the processor treats a false
// as degraded operation, never as a batch failure, because the plan record is
// already durable by the time dispatch happens.
type JobDispatcher interface {
	Dispatch(ctx context.Context, job model.CanvasJob) bool
}

type jobDispatcher struct {
	client *redis.Client
	stream string
}

// NewJobDispatcher creates a dispatcher for the given stream. An empty stream
// name disables dispatch entirely; every job is skipped with a warning.
func NewJobDispatcher(client *redis.Client, stream string) JobDispatcher {
	return &jobDispatcher{client: client, stream: stream}
}

func (d *jobDispatcher) Dispatch(ctx context.Context, job model.CanvasJob) bool {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "planner.queue.jobs",
		UserID:    logger.Ptr(job.UserID),
		RecordID:  logger.Ptr(job.RecordID),
	})

	if d.stream == "" {
		slog.WarnContext(ctx, "canvas job stream not configured, skipping dispatch")
		return false
	}

	err := d.client.XAdd(ctx, &redis.XAddArgs{
		Stream: d.stream,
		Values: map[string]any{
			"record_id":   job.RecordID,
			"user_id":     job.UserID,
			"emotion":     job.Emotion,
			"enqueued_at": job.EnqueuedAt.UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		slog.WarnContext(ctx, "failed to dispatch canvas job, plan record is still stored",
			"error", err)
		return false
	}

	slog.InfoContext(ctx, "canvas job dispatched", "stream", d.stream)
	return true
}

// JobMessage is one delivery read from the canvas job stream.
type JobMessage struct {
	ID  string
	Job model.CanvasJob
	Raw redis.XMessage
}

// JobConsumer reads canvas jobs for the artifact worker.
type JobConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

func NewJobConsumer(client *redis.Client, cfg ConsumerConfig) (*JobConsumer, error) {
	consumer := &JobConsumer{client: client, cfg: cfg}

	if err := ensureGroup(context.Background(), client, cfg.Stream, cfg.Group); err != nil { //nolint:contextcheck
		return nil, err
	}

	return consumer, nil
}

func (c *JobConsumer) Read(ctx context.Context) ([]JobMessage, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "planner.queue.jobs",
	})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []JobMessage{}, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var jobs []JobMessage
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			job, parseErr := ParseJob(msg)
			if parseErr != nil {
				// Poison message. Ack so it never redelivers.
				slog.ErrorContext(ctx, "failed to parse canvas job",
					"error", parseErr,
					"raw_message_id", msg.ID,
					"stream", c.cfg.Stream)
				_ = c.Ack(ctx, msg.ID)
				continue
			}
			jobs = append(jobs, JobMessage{ID: msg.ID, Job: job, Raw: msg})
		}
	}

	if len(jobs) > 0 {
		slog.DebugContext(ctx, "read canvas jobs from stream",
			"count", len(jobs),
			"stream", c.cfg.Stream,
			"consumer", c.cfg.Consumer)
	}

	return jobs, nil
}

func (c *JobConsumer) Ack(ctx context.Context, id string) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}
	return nil
}

// ParseJob extracts a CanvasJob from a raw stream entry.
func ParseJob(msg redis.XMessage) (model.CanvasJob, error) {
	recordID, err := requireString(msg.Values, "record_id")
	if err != nil {
		return model.CanvasJob{}, err
	}
	userID, err := requireString(msg.Values, "user_id")
	if err != nil {
		return model.CanvasJob{}, err
	}
	emotion, err := requireString(msg.Values, "emotion")
	if err != nil {
		return model.CanvasJob{}, err
	}

	job := model.CanvasJob{
		RecordID: recordID,
		UserID:   userID,
		Emotion:  emotion,
	}

	if raw, ok := msg.Values["enqueued_at"].(string); ok {
		if ts, parseErr := time.Parse(time.RFC3339, raw); parseErr == nil {
			job.EnqueuedAt = ts
		}
	}

	return job, nil
}

func requireString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing field %q", key)
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("field %q is empty or not a string", key)
	}
	return s, nil
}
