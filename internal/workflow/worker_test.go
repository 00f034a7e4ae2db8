package workflow

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/autopublisher/internal/queue"
	"github.com/jonathan/autopublisher/internal/types"
)

func testWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Name:        "test-worker",
		Concurrency: 1,
		TaskTimeout: 5 * time.Second,
		PollBlock:   20 * time.Millisecond,
	}
}

// startWorker runs a single-slot worker until the test ends or stop is called.
func startWorker(t *testing.T, broker *queue.Broker, runner *Runner) (stop func()) {
	t.Helper()
	return startWorkerWith(t, broker, runner, testWorkerConfig())
}

func startWorkerWith(t *testing.T, broker *queue.Broker, runner *Runner, cfg WorkerConfig) (stop func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(broker, runner, cfg, nil)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	stopped := false
	stop = func() {
		if stopped {
			return
		}
		stopped = true
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("worker did not stop")
		}
	}
	t.Cleanup(stop)
	return stop
}

func waitForState(t *testing.T, broker *queue.Broker, id string, state queue.State) *queue.TaskRecord {
	t.Helper()
	var record *queue.TaskRecord
	require.Eventually(t, func() bool {
		r, err := broker.State(context.Background(), id)
		if err != nil {
			return false
		}
		record = r
		return r.State == state
	}, 5*time.Second, 10*time.Millisecond)
	return record
}

func TestWorker_RunsWorkflowToCompletion(t *testing.T) {
	broker := newTestBroker(t)
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p types.ContentParams) bool {
		return p.Topic == "Go generics"
	})).Return(testArticle(), nil).Once()

	wp := &fakePublisher{platform: types.PlatformWordPress}
	svc := newTestService(allConfigured, wp)
	d := NewDispatcher(broker, nil)
	startWorker(t, broker, NewRunner(gen, svc.Service, nil))

	req := topicRequest("Go generics")
	submitted, err := d.Submit(context.Background(), &req)
	require.NoError(t, err)

	record := waitForState(t, broker, submitted.WorkflowID, queue.StateSuccess)
	assert.Equal(t, 100, record.Progress)

	status, err := d.Status(context.Background(), submitted.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, types.WorkflowPublished, status.Status)
	assert.True(t, status.ContentGenerated)
	assert.Equal(t, "T", status.ArticleTitle)
	assert.Equal(t, 500, status.WordCount)
	require.Len(t, status.PublishingResults, 1)
	assert.True(t, status.PublishingResults[0].Success)
	assert.NotNil(t, status.CompletedAt)

	gen.AssertExpectations(t)
}

func TestWorker_GenerationFailureProjectsFailed(t *testing.T) {
	broker := newTestBroker(t)
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	svc := newTestService(allConfigured)
	d := NewDispatcher(broker, nil)
	startWorker(t, broker, NewRunner(gen, svc.Service, nil))

	req := topicRequest("Go generics")
	submitted, err := d.Submit(context.Background(), &req)
	require.NoError(t, err)

	waitForState(t, broker, submitted.WorkflowID, queue.StateSuccess)
	status, err := d.Status(context.Background(), submitted.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, types.WorkflowFailed, status.Status)
	assert.Equal(t, "Content generation failed: "+assert.AnError.Error(), status.ErrorMessage)
}

func TestWorker_SkipsRevokedWorkflow(t *testing.T) {
	broker := newTestBroker(t)
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p types.ContentParams) bool {
		return p.Topic == "kept topic"
	})).Return(testArticle(), nil)

	wp := &fakePublisher{platform: types.PlatformWordPress}
	svc := newTestService(allConfigured, wp)
	d := NewDispatcher(broker, nil)

	cancelled := topicRequest("cancelled topic")
	first, err := d.Submit(context.Background(), &cancelled)
	require.NoError(t, err)
	require.NoError(t, d.Cancel(context.Background(), first.WorkflowID))

	kept := topicRequest("kept topic")
	second, err := d.Submit(context.Background(), &kept)
	require.NoError(t, err)

	startWorker(t, broker, NewRunner(gen, svc.Service, nil))
	waitForState(t, broker, second.WorkflowID, queue.StateSuccess)

	status, err := d.Status(context.Background(), first.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, types.WorkflowCancelled, status.Status)
	assert.Len(t, wp.Requests(), 1)
	gen.AssertNumberOfCalls(t, "Generate", 1)
}

func TestWorker_RevokeDuringRunDiscardsResult(t *testing.T) {
	broker := newTestBroker(t)
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(testArticle(), nil)

	d := NewDispatcher(broker, nil)
	var workflowID string
	wp := &fakePublisher{platform: types.PlatformWordPress}
	wp.onPublish = func() {
		assert.NoError(t, d.Cancel(context.Background(), workflowID))
	}
	svc := newTestService(allConfigured, wp)

	req := topicRequest("Go generics")
	submitted, err := d.Submit(context.Background(), &req)
	require.NoError(t, err)
	workflowID = submitted.WorkflowID

	stop := startWorker(t, broker, NewRunner(gen, svc.Service, nil))
	require.Eventually(t, func() bool { return len(wp.Requests()) == 1 }, 5*time.Second, 10*time.Millisecond)
	stop()

	status, err := d.Status(context.Background(), workflowID)
	require.NoError(t, err)
	assert.Equal(t, types.WorkflowCancelled, status.Status)
}

func TestWorker_RejectsUnknownTasks(t *testing.T) {
	broker := newTestBroker(t)
	svc := newTestService(allConfigured)
	startWorker(t, broker, NewRunner(&mockGenerator{}, svc.Service, nil))

	ctx := context.Background()
	require.NoError(t, broker.Enqueue(ctx, queue.Task{ID: "other-1", Name: "email.send", Payload: json.RawMessage(`{}`)}))
	require.NoError(t, broker.Enqueue(ctx, queue.Task{ID: "bad-1", Name: TaskName, Payload: json.RawMessage(`[1]`)}))

	record := waitForState(t, broker, "other-1", queue.StateFailure)
	assert.Equal(t, `unknown task "email.send"`, record.Error)

	record = waitForState(t, broker, "bad-1", queue.StateFailure)
	assert.Contains(t, record.Error, "invalid workflow payload")
}

// deliverToStoppedWorker hands every queued task to a consumer that never
// acknowledges it.
func deliverToStoppedWorker(t *testing.T, broker *queue.Broker) []queue.Task {
	t.Helper()
	ctx := context.Background()
	stopped := broker.Consumer(queue.ConsumerConfig{Name: "stopped-worker", Block: 10 * time.Millisecond})
	require.NoError(t, stopped.EnsureGroup(ctx))
	tasks, err := stopped.Read(ctx)
	require.NoError(t, err)
	return tasks
}

func TestWorker_ClaimsTasksFromStoppedWorker(t *testing.T) {
	broker := newTestBroker(t)
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(testArticle(), nil).Once()

	wp := &fakePublisher{platform: types.PlatformWordPress}
	svc := newTestService(allConfigured, wp)
	d := NewDispatcher(broker, nil)

	req := topicRequest("Go generics")
	submitted, err := d.Submit(context.Background(), &req)
	require.NoError(t, err)
	require.Len(t, deliverToStoppedWorker(t, broker), 1)

	cfg := testWorkerConfig()
	cfg.ClaimIdle = time.Millisecond
	cfg.ClaimInterval = 10 * time.Millisecond
	startWorkerWith(t, broker, NewRunner(gen, svc.Service, nil), cfg)

	waitForState(t, broker, submitted.WorkflowID, queue.StateSuccess)
	assert.Len(t, wp.Requests(), 1)
	gen.AssertExpectations(t)
}

func TestWorker_ClaimedFinishedTaskIsNotRerun(t *testing.T) {
	broker := newTestBroker(t)
	gen := &mockGenerator{}
	svc := newTestService(allConfigured)
	d := NewDispatcher(broker, nil)

	req := topicRequest("Go generics")
	submitted, err := d.Submit(context.Background(), &req)
	require.NoError(t, err)
	require.Len(t, deliverToStoppedWorker(t, broker), 1)
	_, err = broker.MarkSuccess(context.Background(), submitted.WorkflowID, json.RawMessage(`{"status":"completed"}`))
	require.NoError(t, err)

	cfg := testWorkerConfig()
	cfg.ClaimIdle = time.Millisecond
	cfg.ClaimInterval = 10 * time.Millisecond
	startWorkerWith(t, broker, NewRunner(gen, svc.Service, nil), cfg)

	ctx := context.Background()
	require.Eventually(t, func() bool {
		pending, err := broker.Pending(ctx)
		return err == nil && pending == 0
	}, 5*time.Second, 10*time.Millisecond)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestNewWorker_ClaimIdleDefaultsPastTaskTimeout(t *testing.T) {
	w := NewWorker(newTestBroker(t), nil, WorkerConfig{TaskTimeout: time.Minute}, nil)
	assert.Equal(t, 2*time.Minute, w.cfg.ClaimIdle)
	assert.Equal(t, time.Minute, w.cfg.ClaimInterval)
}
