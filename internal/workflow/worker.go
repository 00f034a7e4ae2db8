package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/autopublisher/internal/metrics"
	"github.com/jonathan/autopublisher/internal/observability"
	"github.com/jonathan/autopublisher/internal/publishing"
	"github.com/jonathan/autopublisher/internal/queue"
	"github.com/jonathan/autopublisher/internal/types"
)

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	Name            string
	Concurrency     int
	TaskTimeout     time.Duration
	PollBlock       time.Duration
	CleanupInterval time.Duration
	// StreamMaxLen is the stream length kept by the periodic cleanup.
	StreamMaxLen int64
	// ClaimIdle is how long a delivered task may stay unacknowledged before
	// another worker takes it over. Defaults to TaskTimeout plus one minute.
	ClaimIdle time.Duration
	// ClaimInterval is how often the worker looks for stalled tasks.
	ClaimInterval time.Duration
}

// DefaultWorkerConfig matches the production settings.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Name:            "worker-1",
		Concurrency:     10,
		TaskTimeout:     600 * time.Second,
		PollBlock:       2 * time.Second,
		CleanupInterval: 24 * time.Hour,
		StreamMaxLen:    10000,
		ClaimInterval:   time.Minute,
	}
}

// Worker executes queued workflows with bounded concurrency.
type Worker struct {
	broker   *queue.Broker
	consumer *queue.Consumer
	runner   *Runner
	cfg      WorkerConfig
	logger   *slog.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// NewWorker creates a worker reading from broker.
func NewWorker(broker *queue.Broker, runner *Runner, cfg WorkerConfig, logger *slog.Logger) *Worker {
	def := DefaultWorkerConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = def.TaskTimeout
	}
	if cfg.PollBlock <= 0 {
		cfg.PollBlock = def.PollBlock
	}
	if cfg.ClaimIdle <= 0 {
		cfg.ClaimIdle = cfg.TaskTimeout + time.Minute
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = def.ClaimInterval
	}
	if logger == nil {
		logger = observability.Discard()
	}
	return &Worker{
		broker: broker,
		consumer: broker.Consumer(queue.ConsumerConfig{
			Name:      cfg.Name,
			BatchSize: int64(cfg.Concurrency),
			Block:     cfg.PollBlock,
		}),
		runner:  runner,
		cfg:     cfg,
		logger:  logger.With("worker", cfg.Name),
		running: make(map[string]context.CancelFunc),
	}
}

// Run consumes tasks until ctx is done, then waits for running tasks to
// finish. A failing task never stops the worker.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.consumer.EnsureGroup(ctx); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	revocations, err := w.broker.Revocations(ctx)
	if err != nil {
		return err
	}
	go w.watchRevocations(revocations)
	if w.cfg.CleanupInterval > 0 {
		go w.cleanupLoop(ctx)
	}

	w.logger.Info("worker started", "concurrency", w.cfg.Concurrency, "task_timeout", w.cfg.TaskTimeout.String())

	var g errgroup.Group
	g.SetLimit(w.cfg.Concurrency)
	var lastClaim time.Time
	for ctx.Err() == nil {
		var tasks []queue.Task
		if time.Since(lastClaim) >= w.cfg.ClaimInterval {
			lastClaim = time.Now()
			tasks = w.claimStalled(ctx)
		}

		read, err := w.consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			w.logger.Error("failed to read tasks", "error", err)
			_ = publishing.SleepContext(ctx, time.Second)
		}
		tasks = append(tasks, read...)

		for _, task := range tasks {
			// a claimed task may still be running here
			if !w.reserve(task.ID) {
				continue
			}
			g.Go(func() error {
				defer w.release(task.ID)
				w.handle(ctx, task)
				return nil
			})
		}
	}

	w.logger.Info("worker stopping, waiting for running tasks")
	return g.Wait()
}

// claimStalled takes over tasks left unacknowledged by a stopped worker.
func (w *Worker) claimStalled(ctx context.Context) []queue.Task {
	tasks, err := w.consumer.Claim(ctx, w.cfg.ClaimIdle)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Warn("failed to claim stalled tasks", "error", err)
		}
		return tasks
	}
	if len(tasks) > 0 {
		w.logger.Info("claimed stalled tasks", "count", len(tasks))
	}
	return tasks
}

// handle runs one task and records its outcome. The task keeps running when
// ctx is cancelled for shutdown; it stops on revocation or its timeout.
func (w *Worker) handle(ctx context.Context, task queue.Task) {
	bg := context.WithoutCancel(ctx)
	logger := w.logger.With("workflow_id", task.ID)
	defer func() {
		if err := w.consumer.Ack(bg, task); err != nil {
			logger.Error("failed to acknowledge task", "error", err)
		}
	}()

	if revoked, err := w.broker.IsRevoked(bg, task.ID); err == nil && revoked {
		logger.Info("skipping revoked workflow")
		_, _ = w.broker.MarkRevoked(bg, task.ID)
		return
	}

	if record, err := w.broker.State(bg, task.ID); err == nil && record.State.Terminal() {
		logger.Info("workflow already finished, skipping", "state", string(record.State))
		return
	}

	if task.Name != TaskName {
		w.fail(bg, logger, task.ID, fmt.Sprintf("unknown task %q", task.Name))
		return
	}
	var req types.WorkflowRequest
	if err := json.Unmarshal(task.Payload, &req); err != nil {
		w.fail(bg, logger, task.ID, fmt.Sprintf("invalid workflow payload: %v", err))
		return
	}

	taskCtx, cancel := context.WithTimeout(bg, w.cfg.TaskTimeout)
	defer cancel()
	w.track(task.ID, cancel)
	// a revoke may have been broadcast before the task was tracked
	if revoked, err := w.broker.IsRevoked(bg, task.ID); err == nil && revoked {
		cancel()
	}

	if _, err := w.broker.MarkStarted(bg, task.ID); err != nil {
		logger.Warn("failed to mark workflow started", "error", err)
	}

	metrics.ActiveTasks.Inc()
	start := time.Now()
	result := w.runner.Run(taskCtx, task.ID, &req, func(progress int, step string) {
		if _, err := w.broker.UpdateProgress(bg, task.ID, progress, step); err != nil {
			logger.Warn("failed to record progress", "progress", progress, "error", err)
		}
	})
	metrics.ActiveTasks.Dec()
	metrics.RecordWorkflow(string(result.Status), time.Since(start))

	payload, err := json.Marshal(result)
	if err != nil {
		w.fail(bg, logger, task.ID, fmt.Sprintf("failed to encode result: %v", err))
		return
	}
	applied, err := w.broker.MarkSuccess(bg, task.ID, payload)
	if err != nil {
		logger.Error("failed to store workflow result", "error", err)
		return
	}
	if !applied {
		logger.Info("workflow finished after revocation, result discarded", "status", string(result.Status))
		return
	}
	logger.Info("workflow finished", "status", string(result.Status), "duration", time.Since(start).String())
}

func (w *Worker) fail(ctx context.Context, logger *slog.Logger, id, cause string) {
	logger.Error("workflow failed", "error", cause)
	if _, err := w.broker.MarkFailure(ctx, id, cause); err != nil {
		logger.Error("failed to record failure", "error", err)
	}
}

// reserve records id as running. It returns false if it already is.
func (w *Worker) reserve(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.running[id]; ok {
		return false
	}
	w.running[id] = nil
	return true
}

// track attaches the cancel function of a reserved task.
func (w *Worker) track(id string, cancel context.CancelFunc) {
	w.mu.Lock()
	w.running[id] = cancel
	w.mu.Unlock()
}

func (w *Worker) release(id string) {
	w.mu.Lock()
	delete(w.running, id)
	w.mu.Unlock()
}

// watchRevocations cancels running tasks as their revocations arrive.
func (w *Worker) watchRevocations(ids <-chan string) {
	for id := range ids {
		w.mu.Lock()
		cancel := w.running[id]
		w.mu.Unlock()
		if cancel != nil {
			w.logger.Info("terminating revoked workflow", "workflow_id", id)
			cancel()
		}
	}
}

func (w *Worker) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.broker.Cleanup(ctx, w.cfg.StreamMaxLen); err != nil {
				w.logger.Warn("stream cleanup failed", "error", err)
			}
		}
	}
}
