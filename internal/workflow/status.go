package workflow

import (
	"encoding/json"

	"github.com/jonathan/autopublisher/internal/queue"
	"github.com/jonathan/autopublisher/internal/types"
)

// Current step descriptions used by the projection.
const (
	stepWaiting    = "Waiting to start"
	stepProcessing = "Processing..."
	stepDone       = "Completed"
)

// Project maps a task record onto the externally observed workflow status.
//
// A completed result reports "published" even when every target failed;
// only content generation decides the workflow outcome.
func Project(record *queue.TaskRecord) types.WorkflowResponse {
	resp := types.WorkflowResponse{
		WorkflowID:        record.ID,
		Status:            types.WorkflowPending,
		PublishingResults: []types.TargetResult{},
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
	}

	switch record.State {
	case queue.StatePending:
		resp.CurrentStep = stepWaiting

	case queue.StateStarted, queue.StateProgress:
		resp.Status = types.WorkflowGeneratingContent
		resp.ProgressPercentage = record.Progress
		resp.CurrentStep = record.Step
		if resp.CurrentStep == "" {
			resp.CurrentStep = stepProcessing
		}

	case queue.StateSuccess:
		projectResult(&resp, record.Result)

	case queue.StateFailure:
		resp.Status = types.WorkflowFailed
		resp.ErrorMessage = record.Error
		if resp.ErrorMessage == "" {
			resp.ErrorMessage = "Unknown error"
		}

	case queue.StateRevoked:
		resp.Status = types.WorkflowCancelled
		resp.CurrentStep = "Cancelled"
		resp.ProgressPercentage = record.Progress

	default:
		resp.CurrentStep = "State: " + string(record.State)
	}
	return resp
}

func projectResult(resp *types.WorkflowResponse, raw json.RawMessage) {
	var result types.WorkflowResult
	if err := json.Unmarshal(raw, &result); err != nil {
		resp.Status = types.WorkflowFailed
		resp.ErrorMessage = "unreadable workflow result: " + err.Error()
		return
	}

	completedAt := result.CompletedAt
	if !completedAt.IsZero() {
		resp.CompletedAt = &completedAt
	}

	if result.Status == types.ResultFailed {
		resp.Status = types.WorkflowFailed
		resp.ErrorMessage = result.ErrorMessage
		resp.CurrentStep = stepDone
		if result.PublishingResults != nil {
			resp.PublishingResults = result.PublishingResults
		}
		return
	}

	resp.Status = types.WorkflowPublished
	resp.ProgressPercentage = ProgressCompleted
	resp.CurrentStep = stepDone
	resp.ContentGenerated = result.Content != nil
	if result.Content != nil {
		resp.ArticleTitle = result.Content.Title
		resp.WordCount = result.Content.WordCount
	}
	if result.PublishingResults != nil {
		resp.PublishingResults = result.PublishingResults
	}
}
