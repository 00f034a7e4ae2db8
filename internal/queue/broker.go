package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonathan/autopublisher/internal/metrics"
	"github.com/jonathan/autopublisher/internal/observability"
)

// Default key names.
const (
	DefaultStream    = "autopublisher:workflows"
	DefaultGroup     = "workflow-workers"
	RevokeChannel    = "autopublisher:revoke"
	DefaultResultTTL = time.Hour

	taskKeyPrefix    = "autopublisher:task:"
	revokedKeyPrefix = "autopublisher:revoked:"
)

// Config configures a Broker.
type Config struct {
	URL       string
	Stream    string
	Group     string
	ResultTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.Stream == "" {
		c.Stream = DefaultStream
	}
	if c.Group == "" {
		c.Group = DefaultGroup
	}
	if c.ResultTTL <= 0 {
		c.ResultTTL = DefaultResultTTL
	}
	return c
}

// Broker enqueues tasks and stores their state.
type Broker struct {
	client *redis.Client
	stream string
	group  string
	ttl    time.Duration
	logger *slog.Logger
}

// New connects to the Redis instance at cfg.URL.
func New(cfg Config, logger *slog.Logger) (*Broker, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewWithClient(redis.NewClient(opts), cfg, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, cfg Config, logger *slog.Logger) *Broker {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = observability.Discard()
	}
	return &Broker{
		client: client,
		stream: cfg.Stream,
		group:  cfg.Group,
		ttl:    cfg.ResultTTL,
		logger: logger,
	}
}

// Close closes the Redis connection.
func (b *Broker) Close() error {
	return b.client.Close()
}

// Ping checks that Redis is reachable.
func (b *Broker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Enqueue records the task as PENDING and appends it to the stream.
func (b *Broker) Enqueue(ctx context.Context, task Task) error {
	if task.ID == "" {
		return errors.New("task id is required")
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}
	now := task.EnqueuedAt.Format(time.RFC3339Nano)

	pipe := b.client.TxPipeline()
	pipe.HSet(ctx, taskKey(task.ID),
		"state", string(StatePending),
		"progress", 0,
		"created_at", now,
		"updated_at", now,
	)
	pipe.Expire(ctx, taskKey(task.ID), b.ttl)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]any{
			"task_id":     task.ID,
			"name":        task.Name,
			"payload":     string(task.Payload),
			"enqueued_at": now,
		},
	})
	_, err := pipe.Exec(ctx)
	metrics.RecordEnqueue(err)
	if err != nil {
		return fmt.Errorf("failed to enqueue task %s: %w", task.ID, err)
	}

	b.logger.Debug("task enqueued", "task_id", task.ID, "name", task.Name)
	return nil
}

// State returns the stored record. Unknown ids report PENDING, since a task
// that was never seen and one waiting in the stream are indistinguishable
// once the record has expired.
func (b *Broker) State(ctx context.Context, id string) (*TaskRecord, error) {
	fields, err := b.client.HGetAll(ctx, taskKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read task %s: %w", id, err)
	}
	record := &TaskRecord{ID: id, State: StatePending}
	if len(fields) == 0 {
		return record, nil
	}

	if s := fields["state"]; s != "" {
		record.State = State(s)
	}
	record.Progress, _ = strconv.Atoi(fields["progress"])
	record.Step = fields["step"]
	record.Error = fields["error"]
	if r := fields["result"]; r != "" {
		record.Result = json.RawMessage(r)
	}
	record.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	record.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return record, nil
}

// transitionScript writes the field pairs in ARGV[2:] unless the task is
// already terminal. ARGV[1] is the TTL in seconds.
var transitionScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if state == 'SUCCESS' or state == 'FAILURE' or state == 'REVOKED' then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
redis.call('EXPIRE', KEYS[1], ARGV[1])
return 1
`)

// transition applies fields to a non-terminal task and reports whether it did.
func (b *Broker) transition(ctx context.Context, id string, state State, fields ...any) (bool, error) {
	args := []any{
		int64(b.ttl / time.Second),
		"state", string(state),
		"updated_at", time.Now().UTC().Format(time.RFC3339Nano),
	}
	args = append(args, fields...)

	applied, err := transitionScript.Run(ctx, b.client, []string{taskKey(id)}, args...).Int()
	if err != nil {
		return false, fmt.Errorf("failed to set task %s to %s: %w", id, state, err)
	}
	return applied == 1, nil
}

// MarkStarted moves the task to STARTED.
func (b *Broker) MarkStarted(ctx context.Context, id string) (bool, error) {
	return b.transition(ctx, id, StateStarted)
}

// UpdateProgress records a PROGRESS step.
func (b *Broker) UpdateProgress(ctx context.Context, id string, progress int, step string) (bool, error) {
	return b.transition(ctx, id, StateProgress, "progress", progress, "step", step)
}

// MarkSuccess stores the task result.
func (b *Broker) MarkSuccess(ctx context.Context, id string, result json.RawMessage) (bool, error) {
	return b.transition(ctx, id, StateSuccess, "progress", 100, "result", string(result))
}

// MarkFailure stores the cause of a task failure.
func (b *Broker) MarkFailure(ctx context.Context, id string, cause string) (bool, error) {
	return b.transition(ctx, id, StateFailure, "error", cause)
}

// MarkRevoked records the task as revoked. It is a no-op for finished tasks.
func (b *Broker) MarkRevoked(ctx context.Context, id string) (bool, error) {
	return b.transition(ctx, id, StateRevoked)
}

// Revoke marks the task as revoked so workers skip it. With terminate, running
// workers are notified so they can cancel it.
func (b *Broker) Revoke(ctx context.Context, id string, terminate bool) error {
	if err := b.client.Set(ctx, revokedKey(id), "1", b.ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke task %s: %w", id, err)
	}
	if _, err := b.MarkRevoked(ctx, id); err != nil {
		return err
	}
	if terminate {
		if err := b.client.Publish(ctx, RevokeChannel, id).Err(); err != nil {
			return fmt.Errorf("failed to broadcast revoke of %s: %w", id, err)
		}
	}
	b.logger.Info("task revoked", "task_id", id, "terminate", terminate)
	return nil
}

// IsRevoked reports whether Revoke was called for id.
func (b *Broker) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := b.client.Exists(ctx, revokedKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Revocations streams the ids of terminated tasks until ctx is done.
func (b *Broker) Revocations(ctx context.Context) (<-chan string, error) {
	sub := b.client.Subscribe(ctx, RevokeChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to revocations: %w", err)
	}

	ids := make(chan string)
	go func() {
		defer close(ids)
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				select {
				case ids <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ids, nil
}

// Cleanup trims the stream to about maxLen entries and returns how many were removed.
func (b *Broker) Cleanup(ctx context.Context, maxLen int64) (int64, error) {
	removed, err := b.client.XTrimMaxLen(ctx, b.stream, maxLen).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to trim %s: %w", b.stream, err)
	}
	if removed > 0 {
		b.logger.Info("stream trimmed", "stream", b.stream, "removed", removed)
	}
	return removed, nil
}

// Length returns the number of entries kept in the stream, including tasks
// already processed but not yet trimmed by Cleanup.
func (b *Broker) Length(ctx context.Context) (int64, error) {
	return b.client.XLen(ctx, b.stream).Result()
}

// Pending returns the number of tasks delivered to workers and not yet
// acknowledged. It is zero before any worker created the group.
func (b *Broker) Pending(ctx context.Context) (int64, error) {
	pending, err := b.client.XPending(ctx, b.stream, b.group).Result()
	if err != nil {
		if strings.Contains(err.Error(), "NOGROUP") {
			return 0, nil
		}
		return 0, err
	}
	return pending.Count, nil
}

func taskKey(id string) string    { return taskKeyPrefix + id }
func revokedKey(id string) string { return revokedKeyPrefix + id }
