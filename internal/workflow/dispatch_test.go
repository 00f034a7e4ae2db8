package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/autopublisher/internal/queue"
	"github.com/jonathan/autopublisher/internal/types"
)

func newTestBroker(t *testing.T) *queue.Broker {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return queue.NewWithClient(client, queue.Config{}, nil)
}

// fakeQueue rejects tasks whose payload contains failOn.
type fakeQueue struct {
	mu       sync.Mutex
	failOn   string
	enqueued []queue.Task
	record   *queue.TaskRecord
	err      error
}

func (q *fakeQueue) Enqueue(_ context.Context, task queue.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failOn != "" && bytes.Contains(task.Payload, []byte(q.failOn)) {
		return errors.New("connection refused")
	}
	q.enqueued = append(q.enqueued, task)
	return nil
}

func (q *fakeQueue) State(context.Context, string) (*queue.TaskRecord, error) {
	return q.record, q.err
}

func (q *fakeQueue) Revoke(context.Context, string, bool) error { return q.err }

func (q *fakeQueue) Ping(context.Context) error { return q.err }

func (q *fakeQueue) Length(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.enqueued)), q.err
}

func (q *fakeQueue) Pending(context.Context) (int64, error) { return 0, q.err }

func (q *fakeQueue) Enqueued() []queue.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.Task(nil), q.enqueued...)
}

func topicRequest(topic string) types.WorkflowRequest {
	req := workflowRequest(types.PlatformWordPress)
	req.ContentParams.Topic = topic
	req.Metadata = map[string]any{"campaign": topic}
	return *req
}

func TestDispatcher_SubmitQueuesTask(t *testing.T) {
	broker := newTestBroker(t)
	d := NewDispatcher(broker, nil)

	req := topicRequest("Go generics")
	resp, err := d.Submit(context.Background(), &req)
	require.NoError(t, err)

	assert.NotEmpty(t, resp.WorkflowID)
	assert.Equal(t, types.WorkflowPending, resp.Status)
	assert.Equal(t, "Workflow queued for execution", resp.CurrentStep)
	assert.Equal(t, map[string]any{"campaign": "Go generics"}, resp.Metadata)
	assert.Empty(t, resp.PublishingResults)

	status, err := d.Status(context.Background(), resp.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, types.WorkflowPending, status.Status)
	assert.Equal(t, "Waiting to start", status.CurrentStep)

	length, err := broker.Length(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)
}

func TestDispatcher_SubmitPayloadRoundTrips(t *testing.T) {
	q := &fakeQueue{}
	d := NewDispatcher(q, nil)

	req := topicRequest("Go generics")
	req.AutoPublish = false
	_, err := d.Submit(context.Background(), &req)
	require.NoError(t, err)

	tasks := q.Enqueued()
	require.Len(t, tasks, 1)
	assert.Equal(t, TaskName, tasks[0].Name)

	var decoded types.WorkflowRequest
	require.NoError(t, json.Unmarshal(tasks[0].Payload, &decoded))
	assert.False(t, decoded.AutoPublish)
	assert.Equal(t, "Go generics", decoded.ContentParams.Topic)
	assert.Equal(t, types.DefaultLanguage, decoded.ContentParams.Language)
}

func TestDispatcher_SubmitRejectsInvalidRequest(t *testing.T) {
	q := &fakeQueue{}
	d := NewDispatcher(q, nil)

	req := topicRequest("Go")
	_, err := d.Submit(context.Background(), &req)

	var ve *types.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Empty(t, q.Enqueued())

	noTargets := topicRequest("Go generics")
	noTargets.PublishingTargets = nil
	_, err = d.Submit(context.Background(), &noTargets)
	assert.Error(t, err)
}

func TestDispatcher_SubmitQueueFailure(t *testing.T) {
	d := NewDispatcher(&fakeQueue{failOn: "Go"}, nil)

	req := topicRequest("Go generics")
	_, err := d.Submit(context.Background(), &req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to execute workflow: connection refused")
}

func TestDispatcher_SubmitBulk(t *testing.T) {
	tests := []struct {
		name       string
		parallel   bool
		stop       bool
		inProgress int
		failed     int
		returned   int
	}{
		{name: "parallel", parallel: true, inProgress: 3, failed: 1, returned: 4},
		{name: "sequential", inProgress: 3, failed: 1, returned: 4},
		{name: "stop on first error", parallel: true, stop: true, inProgress: 1, failed: 1, returned: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQueue{failOn: "broken"}
			d := NewDispatcher(q, nil)

			bulk := &types.BulkWorkflowRequest{
				Workflows: []types.WorkflowRequest{
					topicRequest("first topic"),
					topicRequest("broken topic"),
					topicRequest("third topic"),
					topicRequest("fourth topic"),
				},
				ParallelExecution: tt.parallel,
				StopOnFirstError:  tt.stop,
			}
			resp, err := d.SubmitBulk(context.Background(), bulk)
			require.NoError(t, err)

			assert.Equal(t, 4, resp.Total)
			assert.Equal(t, tt.inProgress, resp.InProgress)
			assert.Equal(t, tt.failed, resp.Failed)
			assert.Zero(t, resp.Successful)
			require.Len(t, resp.Workflows, tt.returned)

			failed := resp.Workflows[1]
			assert.Equal(t, types.WorkflowFailed, failed.Status)
			assert.Contains(t, failed.ErrorMessage, "Failed to queue workflow")
			assert.Empty(t, failed.WorkflowID)
			assert.Equal(t, "Workflow queued", resp.Workflows[0].CurrentStep)
			assert.Len(t, q.Enqueued(), tt.inProgress)
		})
	}
}

func TestDispatcher_SubmitBulkLimits(t *testing.T) {
	d := NewDispatcher(&fakeQueue{}, nil)

	_, err := d.SubmitBulk(context.Background(), &types.BulkWorkflowRequest{})
	assert.Error(t, err)

	tooMany := &types.BulkWorkflowRequest{}
	for range types.MaxBulkWorkflows + 1 {
		tooMany.Workflows = append(tooMany.Workflows, topicRequest("Go generics"))
	}
	_, err = d.SubmitBulk(context.Background(), tooMany)
	assert.Error(t, err)

	tooMany.Workflows = tooMany.Workflows[:types.MaxBulkWorkflows]
	resp, err := d.SubmitBulk(context.Background(), tooMany)
	require.NoError(t, err)
	assert.Equal(t, types.MaxBulkWorkflows, resp.InProgress)
}

func TestDispatcher_StatusAndCancelErrors(t *testing.T) {
	d := NewDispatcher(&fakeQueue{err: errors.New("redis down")}, nil)

	_, err := d.Status(context.Background(), "wf-1")
	assert.EqualError(t, err, "Failed to get status: redis down")

	err = d.Cancel(context.Background(), "wf-1")
	assert.EqualError(t, err, "Failed to cancel workflow: redis down")

	assert.False(t, d.Healthy(context.Background()))
	assert.True(t, NewDispatcher(&fakeQueue{}, nil).Healthy(context.Background()))
}

func TestDispatcher_CancelRevokesPendingWorkflow(t *testing.T) {
	broker := newTestBroker(t)
	d := NewDispatcher(broker, nil)

	req := topicRequest("Go generics")
	resp, err := d.Submit(context.Background(), &req)
	require.NoError(t, err)

	require.NoError(t, d.Cancel(context.Background(), resp.WorkflowID))

	status, err := d.Status(context.Background(), resp.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, types.WorkflowCancelled, status.Status)
}

func TestDispatcher_QueueStats(t *testing.T) {
	broker := newTestBroker(t)
	d := NewDispatcher(broker, nil)
	for _, topic := range []string{"first topic", "second topic"} {
		req := topicRequest(topic)
		_, err := d.Submit(context.Background(), &req)
		require.NoError(t, err)
	}

	stats, err := d.QueueStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Length)
	assert.Zero(t, stats.Pending)

	_, err = NewDispatcher(&fakeQueue{err: errors.New("connection refused")}, nil).QueueStats(context.Background())
	assert.ErrorContains(t, err, "failed to read queue length")
}
