package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/autopublisher/internal/observability"
	"github.com/jonathan/autopublisher/internal/queue"
	"github.com/jonathan/autopublisher/internal/types"
)

// TaskName identifies workflow tasks on the queue.
const TaskName = "workflow.generate_and_publish"

const (
	stepQueued     = "Workflow queued for execution"
	stepBulkQueued = "Workflow queued"

	bulkSubmitConcurrency = 10
)

// TaskQueue is the part of the queue the dispatcher needs.
type TaskQueue interface {
	Enqueue(ctx context.Context, task queue.Task) error
	State(ctx context.Context, id string) (*queue.TaskRecord, error)
	Revoke(ctx context.Context, id string, terminate bool) error
	Ping(ctx context.Context) error
	Length(ctx context.Context) (int64, error)
	Pending(ctx context.Context) (int64, error)
}

// Dispatcher submits workflows to the queue and reads their status.
type Dispatcher struct {
	queue  TaskQueue
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(q TaskQueue, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = observability.Discard()
	}
	return &Dispatcher{queue: q, logger: logger}
}

// Submit validates req and queues it, returning the pending placeholder.
func (d *Dispatcher) Submit(ctx context.Context, req *types.WorkflowRequest) (*types.WorkflowResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	resp, err := d.enqueue(ctx, req, stepQueued)
	if err != nil {
		return nil, err
	}
	d.logger.Info("workflow submitted", "workflow_id", resp.WorkflowID, "topic", req.ContentParams.Topic)
	return resp, nil
}

// SubmitBulk queues every workflow independently. With StopOnFirstError the
// workflows are submitted one at a time and submission stops at the first
// failure; otherwise ParallelExecution submits them concurrently.
func (d *Dispatcher) SubmitBulk(ctx context.Context, bulk *types.BulkWorkflowRequest) (*types.BulkWorkflowResponse, error) {
	if err := bulk.Validate(); err != nil {
		return nil, err
	}

	slots := make([]*types.WorkflowResponse, len(bulk.Workflows))
	submit := func(i int) error {
		resp, err := d.enqueue(ctx, &bulk.Workflows[i], stepBulkQueued)
		if err != nil {
			d.logger.Error("bulk submission failed", "index", i, "error", err)
			slots[i] = &types.WorkflowResponse{
				Status:            types.WorkflowFailed,
				PublishingResults: []types.TargetResult{},
				ErrorMessage:      fmt.Sprintf("Failed to queue workflow: %v", err),
				CurrentStep:       "Submission failed",
			}
			return err
		}
		slots[i] = resp
		return nil
	}

	switch {
	case bulk.StopOnFirstError:
		for i := range bulk.Workflows {
			if err := submit(i); err != nil {
				break
			}
		}
	case bulk.ParallelExecution:
		var g errgroup.Group
		g.SetLimit(bulkSubmitConcurrency)
		for i := range bulk.Workflows {
			g.Go(func() error {
				_ = submit(i)
				return nil
			})
		}
		_ = g.Wait()
	default:
		for i := range bulk.Workflows {
			_ = submit(i)
		}
	}

	out := &types.BulkWorkflowResponse{
		Total:     len(bulk.Workflows),
		Workflows: make([]types.WorkflowResponse, 0, len(bulk.Workflows)),
	}
	for _, slot := range slots {
		if slot == nil {
			continue
		}
		if slot.Status == types.WorkflowFailed {
			out.Failed++
		} else {
			out.InProgress++
		}
		out.Workflows = append(out.Workflows, *slot)
	}
	d.logger.Info("bulk workflows submitted", "total", out.Total, "queued", out.InProgress, "failed", out.Failed)
	return out, nil
}

// Status returns the projected status of a workflow.
func (d *Dispatcher) Status(ctx context.Context, workflowID string) (*types.WorkflowResponse, error) {
	record, err := d.queue.State(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("Failed to get status: %w", err)
	}
	resp := Project(record)
	return &resp, nil
}

// Cancel revokes a workflow, terminating it if it is already running.
// Work already published is not rolled back.
func (d *Dispatcher) Cancel(ctx context.Context, workflowID string) error {
	if err := d.queue.Revoke(ctx, workflowID, true); err != nil {
		return fmt.Errorf("Failed to cancel workflow: %w", err)
	}
	d.logger.Info("workflow cancelled", "workflow_id", workflowID)
	return nil
}

// Healthy reports whether the queue is reachable.
func (d *Dispatcher) Healthy(ctx context.Context) bool {
	return d.queue.Ping(ctx) == nil
}

// QueueStats reports the queue backlog.
func (d *Dispatcher) QueueStats(ctx context.Context) (*types.QueueStats, error) {
	length, err := d.queue.Length(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue length: %w", err)
	}
	pending, err := d.queue.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending tasks: %w", err)
	}
	return &types.QueueStats{Length: length, Pending: pending}, nil
}

func (d *Dispatcher) enqueue(ctx context.Context, req *types.WorkflowRequest, step string) (*types.WorkflowResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode workflow: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	if err := d.queue.Enqueue(ctx, queue.Task{ID: id, Name: TaskName, Payload: payload, EnqueuedAt: now}); err != nil {
		return nil, fmt.Errorf("Failed to execute workflow: %w", err)
	}

	return &types.WorkflowResponse{
		WorkflowID:        id,
		Status:            types.WorkflowPending,
		PublishingResults: []types.TargetResult{},
		CurrentStep:       step,
		CreatedAt:         now,
		UpdatedAt:         now,
		Metadata:          req.Metadata,
	}, nil
}
