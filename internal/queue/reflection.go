// Package queue moves work between the pipeline stages over Redis streams.
//
// The reflection stream carries raw base64 payloads from the ingestion edge
// to the processor; the canvas job stream carries artifact work from the
// processor to the worker. Both use consumer groups so unacknowledged
// messages are redelivered after a crash.
package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"sentientplanner.app/planner/common/logger"
)

// ReflectionInput is the decoded payload of one reflection message.
type ReflectionInput struct {
	Text   string `json:"text"`
	UserID string `json:"userId"`
}

// Reflection is one delivery read from the reflection stream. Data is the
// still-encoded payload; the processor decodes it so malformed payloads count
// against the batch, not the transport.
type Reflection struct {
	ID   string
	Data string
	Raw  redis.XMessage
}

// DecodeReflection unpacks the base64-wrapped JSON document carried in the
// stream's data field.
func DecodeReflection(data string) (ReflectionInput, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return ReflectionInput{}, fmt.Errorf("decode base64: %w", err)
	}

	var input ReflectionInput
	if err := json.Unmarshal(raw, &input); err != nil {
		return ReflectionInput{}, fmt.Errorf("unmarshal reflection: %w", err)
	}

	if strings.TrimSpace(input.UserID) == "" {
		return ReflectionInput{}, fmt.Errorf("missing userId")
	}

	return input, nil
}

// ReflectionProducer publishes raw reflections onto the stream.
type ReflectionProducer interface {
	Publish(ctx context.Context, input ReflectionInput) error
}

type reflectionProducer struct {
	client *redis.Client
	stream string
}

func NewReflectionProducer(client *redis.Client, stream string) ReflectionProducer {
	return &reflectionProducer{client: client, stream: stream}
}

func (p *reflectionProducer) Publish(ctx context.Context, input ReflectionInput) error {
	raw, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("marshal reflection: %w", err)
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{"data": base64.StdEncoding.EncodeToString(raw)},
	}).Err(); err != nil {
		return fmt.Errorf("publish reflection: %w", err)
	}

	slog.InfoContext(ctx, "reflection published", "stream", p.stream)
	return nil
}

type ConsumerConfig struct {
	Stream    string        // Redis stream name
	Group     string        // Redis consumer group name
	Consumer  string        // Redis consumer name
	BatchSize int64         // Number of messages to read per batch
	Block     time.Duration // How long to block/poll for new messages
}

// ReflectionConsumer reads reflection batches for the processor stage.
type ReflectionConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

func NewReflectionConsumer(client *redis.Client, cfg ConsumerConfig) (*ReflectionConsumer, error) {
	consumer := &ReflectionConsumer{client: client, cfg: cfg}

	if err := ensureGroup(context.Background(), client, cfg.Stream, cfg.Group); err != nil { //nolint:contextcheck
		return nil, err
	}

	return consumer, nil
}

func (c *ReflectionConsumer) Read(ctx context.Context) ([]Reflection, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "planner.queue.reflections",
	})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		// > = new messages not yet delivered to anyone. Unacked messages
		// are redelivered through the reclaimer on a separate goroutine.
		Streams: []string{c.cfg.Stream, ">"},
		Count:   c.cfg.BatchSize,
		Block:   c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Reflection{}, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var reflections []Reflection
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			data, ok := msg.Values["data"].(string)
			if !ok {
				slog.ErrorContext(ctx, "message missing data field",
					"raw_message_id", msg.ID,
					"stream", c.cfg.Stream)
				_ = c.Ack(ctx, msg.ID)
				continue
			}
			reflections = append(reflections, Reflection{
				ID:   msg.ID,
				Data: data,
				Raw:  msg,
			})
		}
	}

	if len(reflections) > 0 {
		slog.DebugContext(ctx, "read reflections from stream",
			"count", len(reflections),
			"stream", c.cfg.Stream,
			"consumer", c.cfg.Consumer)
	}

	return reflections, nil
}

func (c *ReflectionConsumer) Ack(ctx context.Context, id string) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}
	return nil
}

func ensureGroup(ctx context.Context, client *redis.Client, stream, group string) error {
	// Starting from "0" instead of "$" means a recreated group still sees
	// everything already in the stream, so restarts don't lose messages.
	if err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err(); err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}
