package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Consumer reads tasks from the stream as one member of the consumer group.
type Consumer struct {
	broker    *Broker
	name      string
	batchSize int64
	block     time.Duration
}

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	// Name identifies this consumer within the group.
	Name string
	// BatchSize is the maximum number of tasks returned by one Read.
	BatchSize int64
	// Block is how long Read waits for new tasks.
	Block time.Duration
}

// Consumer returns a group consumer for the broker's stream.
func (b *Broker) Consumer(cfg ConsumerConfig) *Consumer {
	if cfg.Name == "" {
		cfg.Name = "worker-1"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Block <= 0 {
		cfg.Block = 2 * time.Second
	}
	return &Consumer{broker: b, name: cfg.Name, batchSize: cfg.BatchSize, block: cfg.Block}
}

// EnsureGroup creates the consumer group and stream if they do not exist.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.broker.client.XGroupCreateMkStream(ctx, c.broker.stream, c.broker.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Read waits up to the block timeout for new tasks. It returns no tasks and
// no error when the wait times out.
func (c *Consumer) Read(ctx context.Context) ([]Task, error) {
	streams, err := c.broker.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.broker.group,
		Consumer: c.name,
		Streams:  []string{c.broker.stream, ">"},
		Count:    c.batchSize,
		Block:    c.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var tasks []Task
	for _, stream := range streams {
		for _, message := range stream.Messages {
			tasks = append(tasks, parseTask(message))
		}
	}
	return tasks, nil
}

// Claim takes over tasks delivered to any consumer of the group that have
// stayed unacknowledged for at least minIdle, such as tasks held by a worker
// that crashed.
func (c *Consumer) Claim(ctx context.Context, minIdle time.Duration) ([]Task, error) {
	var tasks []Task
	start := "0-0"
	for {
		messages, next, err := c.broker.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   c.broker.stream,
			Group:    c.broker.group,
			Consumer: c.name,
			MinIdle:  minIdle,
			Start:    start,
			Count:    c.batchSize,
		}).Result()
		if err != nil {
			return tasks, err
		}
		for _, message := range messages {
			tasks = append(tasks, parseTask(message))
		}
		if next == "0-0" || next == "" || len(tasks) >= int(c.batchSize) {
			return tasks, nil
		}
		start = next
	}
}

// Ack acknowledges a task returned by Read or Claim.
func (c *Consumer) Ack(ctx context.Context, task Task) error {
	return c.broker.client.XAck(ctx, c.broker.stream, c.broker.group, task.MessageID).Err()
}

func parseTask(message redis.XMessage) Task {
	task := Task{MessageID: message.ID}
	if v, ok := message.Values["task_id"].(string); ok {
		task.ID = v
	}
	if v, ok := message.Values["name"].(string); ok {
		task.Name = v
	}
	if v, ok := message.Values["payload"].(string); ok && v != "" {
		task.Payload = json.RawMessage(v)
	}
	if v, ok := message.Values["enqueued_at"].(string); ok {
		task.EnqueuedAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	return task
}
